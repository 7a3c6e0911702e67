package activity

import (
	"context"
	"database/sql"
)

// PostgresRepo persists the activity feed.
//
// Schema:
//
//	CREATE TABLE activity_records (
//	    id               UUID PRIMARY KEY,
//	    property_id      TEXT NOT NULL,
//	    type             TEXT NOT NULL,
//	    caller_label     TEXT NOT NULL DEFAULT '',
//	    room_name        TEXT NOT NULL DEFAULT '',
//	    duration_seconds INT NOT NULL DEFAULT 0,
//	    created_at       TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX activity_records_property_idx
//	    ON activity_records (property_id, created_at DESC);
//
// The table is INSERT-only; retention is an ops concern.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_records
			(id, property_id, type, caller_label, room_name, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.PropertyID, string(rec.Type), rec.CallerLabel, rec.RoomName, rec.DurationSeconds, rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByProperty(ctx context.Context, propertyID string, limit int) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, property_id, type, caller_label, room_name, duration_seconds, created_at
		FROM activity_records
		WHERE property_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		propertyID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var typ string
		if err := rows.Scan(&rec.ID, &rec.PropertyID, &typ, &rec.CallerLabel, &rec.RoomName, &rec.DurationSeconds, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Type = RecordType(typ)
		out = append(out, rec)
	}
	return out, rows.Err()
}
