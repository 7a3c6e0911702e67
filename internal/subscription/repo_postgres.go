package subscription

import (
	"context"
	"database/sql"
	"errors"

	"doorbell-signal/pkg/utils"
)

// PostgresRepo persists subscriptions in Postgres via database/sql (pgx
// stdlib driver).
//
// Schema:
//
//	CREATE TABLE push_subscriptions (
//	    id          UUID PRIMARY KEY,
//	    property_id TEXT NOT NULL,
//	    endpoint    TEXT NOT NULL,
//	    device_info TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    UNIQUE (property_id, endpoint)
//	);
//
//	CREATE TABLE push_permission_denials (
//	    property_id TEXT NOT NULL,
//	    endpoint    TEXT NOT NULL,
//	    denied_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (property_id, endpoint)
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, s Subscription) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO push_subscriptions (id, property_id, endpoint, device_info, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (property_id, endpoint) DO NOTHING`,
			s.ID, s.PropertyID, s.Endpoint, s.DeviceInfo, s.CreatedAt,
		)
		return err
	})
}

func (r *PostgresRepo) Delete(ctx context.Context, propertyID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM push_subscriptions WHERE property_id = $1 AND id = $2`,
		propertyID, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) FindByEndpoint(ctx context.Context, propertyID, endpoint string) (Subscription, bool, error) {
	var s Subscription
	err := r.db.QueryRowContext(ctx, `
		SELECT id, property_id, endpoint, device_info, created_at
		FROM push_subscriptions
		WHERE property_id = $1 AND endpoint = $2`,
		propertyID, endpoint,
	).Scan(&s.ID, &s.PropertyID, &s.Endpoint, &s.DeviceInfo, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, false, nil
	}
	if err != nil {
		return Subscription{}, false, err
	}
	return s, true, nil
}

func (r *PostgresRepo) ListByProperty(ctx context.Context, propertyID string) ([]Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, property_id, endpoint, device_info, created_at
		FROM push_subscriptions
		WHERE property_id = $1
		ORDER BY created_at`,
		propertyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.PropertyID, &s.Endpoint, &s.DeviceInfo, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkPermissionDenied(ctx context.Context, propertyID, endpoint string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_permission_denials (property_id, endpoint)
		VALUES ($1, $2)
		ON CONFLICT (property_id, endpoint) DO NOTHING`,
		propertyID, endpoint,
	)
	return err
}

func (r *PostgresRepo) ClearPermissionDenied(ctx context.Context, propertyID, endpoint string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM push_permission_denials WHERE property_id = $1 AND endpoint = $2`,
		propertyID, endpoint,
	)
	return err
}

func (r *PostgresRepo) IsPermissionDenied(ctx context.Context, propertyID, endpoint string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM push_permission_denials WHERE property_id = $1 AND endpoint = $2`,
		propertyID, endpoint,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
