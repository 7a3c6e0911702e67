package subscription

import (
	"context"
	"testing"
)

func TestRegister_RequiresPropertyAndEndpoint(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if _, err := svc.Register(context.Background(), "", "ep", ""); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "prop", "", ""); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRegister_IdempotentOnEndpoint(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	first, err := svc.Register(ctx, "prop-1", "ep-1", "Firefox on laptop")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := svc.Register(ctx, "prop-1", "ep-1", "ignored")
	if err != nil {
		t.Fatalf("repeat register: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("repeat opt-in must return the existing registration")
	}

	subs, err := svc.ListByProperty(ctx, "prop-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}
}

func TestStatus_DistinguishesAbsentFromDenied(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	st, err := svc.Status(ctx, "prop-1", "ep-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st != StatusNotSubscribed {
		t.Fatalf("expected not_subscribed, got %v", st)
	}

	if err := svc.MarkPermissionDenied(ctx, "prop-1", "ep-1"); err != nil {
		t.Fatalf("mark denied: %v", err)
	}
	st, _ = svc.Status(ctx, "prop-1", "ep-1")
	if st != StatusPermissionDenied {
		t.Fatalf("expected permission_denied, got %v", st)
	}
}

func TestStatus_DenialWinsOverSubscription(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "prop-1", "ep-1", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if st, _ := svc.Status(ctx, "prop-1", "ep-1"); st != StatusSubscribed {
		t.Fatalf("expected subscribed, got %v", st)
	}

	// Permission revoked after subscribing: the device cannot be woken.
	_ = svc.MarkPermissionDenied(ctx, "prop-1", "ep-1")
	if st, _ := svc.Status(ctx, "prop-1", "ep-1"); st != StatusPermissionDenied {
		t.Fatalf("denial must win over a surviving registration, got %v", st)
	}

	// Re-registering clears the denial.
	if _, err := svc.Register(ctx, "prop-1", "ep-1", ""); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if st, _ := svc.Status(ctx, "prop-1", "ep-1"); st != StatusSubscribed {
		t.Fatalf("expected subscribed after re-opt-in, got %v", st)
	}
}

func TestUnregister_RemovesRegistration(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	sub, err := svc.Register(ctx, "prop-1", "ep-1", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Unregister(ctx, "prop-1", sub.ID); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if st, _ := svc.Status(ctx, "prop-1", "ep-1"); st != StatusNotSubscribed {
		t.Fatalf("expected not_subscribed after opt-out, got %v", st)
	}
	if err := svc.Unregister(ctx, "prop-1", sub.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on repeated opt-out, got %v", err)
	}
}

func TestListByProperty_ScopesToOneSubscriberSet(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	_, _ = svc.Register(ctx, "prop-1", "ep-1", "")
	_, _ = svc.Register(ctx, "prop-1", "ep-2", "")
	_, _ = svc.Register(ctx, "prop-2", "ep-3", "")

	subs, err := svc.ListByProperty(ctx, "prop-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions for prop-1, got %d", len(subs))
	}
}
