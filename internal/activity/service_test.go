package activity

import (
	"context"
	"testing"
)

func TestService_AppendRequiresPropertyAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Record{Type: RecordRing}); err == nil {
		t.Fatalf("expected error for missing property")
	}
	if err := svc.Append(context.Background(), Record{PropertyID: "p"}); err == nil {
		t.Fatalf("expected error for missing type")
	}
}

func TestService_DurationOnlyOnCompletedCalls(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	err := svc.Append(context.Background(), Record{
		PropertyID:      "p",
		Type:            RecordCallDeclined,
		DurationSeconds: 12,
	})
	if err != ErrInvalidRecord {
		t.Fatalf("declined record must not carry a duration, got %v", err)
	}
}

func TestService_LogCompletedCarriesDuration(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCompleted(context.Background(), "p", "Visitor", "room-42", 37); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	recs := repo.Records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Type != RecordCallCompleted || recs[0].DurationSeconds != 37 {
		t.Fatalf("unexpected record: %+v", recs[0])
	}
	if recs[0].ID == "" || recs[0].CreatedAt.IsZero() {
		t.Fatalf("record must be stamped with id and time: %+v", recs[0])
	}
}

func TestService_MissedRingIsNotAnError(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.LogRing(ctx, "p", "Visitor", "room-1"); err != nil {
		t.Fatalf("ring: %v", err)
	}
	if err := svc.LogMissed(ctx, "p", "Visitor", "room-1"); err != nil {
		t.Fatalf("missed: %v", err)
	}

	recs, err := svc.ListByProperty(ctx, "p", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	// Newest first.
	if recs[0].Type != RecordCallMissed {
		t.Fatalf("expected missed record first, got %v", recs[0].Type)
	}
	if recs[0].DurationSeconds != 0 {
		t.Fatalf("missed call must not carry a duration")
	}
}
