package activity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for activity records.
//
// It is append-only; no Update/Delete methods exist.
type Repository interface {
	Append(ctx context.Context, r Record) error
	ListByProperty(ctx context.Context, propertyID string, limit int) ([]Record, error)
}

var ErrInvalidRecord = errors.New("activity: invalid record")

// Service writes the property activity feed. Callers treat activity logging
// as best-effort: a failed append never blocks call signaling.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, r Record) error {
	if s.repo == nil {
		return errors.New("activity: repository not configured")
	}
	if r.PropertyID == "" || r.Type == "" {
		return ErrInvalidRecord
	}
	if r.Type != RecordCallCompleted && r.DurationSeconds != 0 {
		return ErrInvalidRecord
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, r)
}

// LogRing records a visitor ring, whether or not it ends up answered.
func (s *Service) LogRing(ctx context.Context, propertyID, callerLabel, roomName string) error {
	return s.Append(ctx, Record{
		PropertyID:  propertyID,
		Type:        RecordRing,
		CallerLabel: callerLabel,
		RoomName:    roomName,
	})
}

// LogCompleted records an answered call with its final duration, reported by
// the call state machine exactly once at end-of-call.
func (s *Service) LogCompleted(ctx context.Context, propertyID, callerLabel, roomName string, durationSeconds int) error {
	return s.Append(ctx, Record{
		PropertyID:      propertyID,
		Type:            RecordCallCompleted,
		CallerLabel:     callerLabel,
		RoomName:        roomName,
		DurationSeconds: durationSeconds,
	})
}

// LogMissed records a ring the owner never acted on.
func (s *Service) LogMissed(ctx context.Context, propertyID, callerLabel, roomName string) error {
	return s.Append(ctx, Record{
		PropertyID:  propertyID,
		Type:        RecordCallMissed,
		CallerLabel: callerLabel,
		RoomName:    roomName,
	})
}

// LogDeclined records an explicit decline. No duration exists for it.
func (s *Service) LogDeclined(ctx context.Context, propertyID, callerLabel, roomName string) error {
	return s.Append(ctx, Record{
		PropertyID:  propertyID,
		Type:        RecordCallDeclined,
		CallerLabel: callerLabel,
		RoomName:    roomName,
	})
}

// ListByProperty returns the most recent records, newest first.
func (s *Service) ListByProperty(ctx context.Context, propertyID string, limit int) ([]Record, error) {
	if propertyID == "" {
		return nil, ErrInvalidRecord
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListByProperty(ctx, propertyID, limit)
}
