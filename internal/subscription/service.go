package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for delivery subscriptions.
type Repository interface {
	Insert(ctx context.Context, s Subscription) error
	Delete(ctx context.Context, propertyID, id string) error
	FindByEndpoint(ctx context.Context, propertyID, endpoint string) (Subscription, bool, error)
	ListByProperty(ctx context.Context, propertyID string) ([]Subscription, error)

	// Permission denial is tracked per device endpoint, independently of a
	// subscription row: a user can block notifications before ever opting in.
	MarkPermissionDenied(ctx context.Context, propertyID, endpoint string) error
	ClearPermissionDenied(ctx context.Context, propertyID, endpoint string) error
	IsPermissionDenied(ctx context.Context, propertyID, endpoint string) (bool, error)
}

var (
	ErrInvalidArgument = errors.New("subscription: invalid argument")
	ErrNotFound        = errors.New("subscription: not found")
)

// Service manages the delivery-subscription lifecycle. The signaling core
// never inspects subscription contents; it only needs registrations to exist
// and the user-visible status to be truthful.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Register records an explicit opt-in. It is idempotent on endpoint: a
// repeated opt-in from the same device returns the existing registration.
// A successful registration clears any recorded permission denial for the
// device (the user evidently re-granted permission).
func (s *Service) Register(ctx context.Context, propertyID, endpoint, deviceInfo string) (Subscription, error) {
	if propertyID == "" || endpoint == "" {
		return Subscription{}, ErrInvalidArgument
	}

	if existing, ok, err := s.repo.FindByEndpoint(ctx, propertyID, endpoint); err != nil {
		return Subscription{}, err
	} else if ok {
		_ = s.repo.ClearPermissionDenied(ctx, propertyID, endpoint)
		return existing, nil
	}

	sub := Subscription{
		ID:         uuid.NewString(),
		PropertyID: propertyID,
		Endpoint:   endpoint,
		DeviceInfo: deviceInfo,
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.repo.Insert(ctx, sub); err != nil {
		return Subscription{}, err
	}
	if err := s.repo.ClearPermissionDenied(ctx, propertyID, endpoint); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// Unregister destroys a registration (opt-out or permission revocation).
func (s *Service) Unregister(ctx context.Context, propertyID, id string) error {
	if propertyID == "" || id == "" {
		return ErrInvalidArgument
	}
	return s.repo.Delete(ctx, propertyID, id)
}

// ListByProperty returns the subscriber set push dispatch fans out to.
func (s *Service) ListByProperty(ctx context.Context, propertyID string) ([]Subscription, error) {
	if propertyID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListByProperty(ctx, propertyID)
}

// MarkPermissionDenied records that the device reported an OS/browser-level
// notification block.
func (s *Service) MarkPermissionDenied(ctx context.Context, propertyID, endpoint string) error {
	if propertyID == "" || endpoint == "" {
		return ErrInvalidArgument
	}
	return s.repo.MarkPermissionDenied(ctx, propertyID, endpoint)
}

// Status reports the user-visible delivery state for one device. Permission
// denial wins over an existing registration: a blocked device cannot be woken
// even if a subscription row survives.
func (s *Service) Status(ctx context.Context, propertyID, endpoint string) (Status, error) {
	if propertyID == "" || endpoint == "" {
		return "", ErrInvalidArgument
	}

	denied, err := s.repo.IsPermissionDenied(ctx, propertyID, endpoint)
	if err != nil {
		return "", err
	}
	if denied {
		return StatusPermissionDenied, nil
	}

	if _, ok, err := s.repo.FindByEndpoint(ctx, propertyID, endpoint); err != nil {
		return "", err
	} else if ok {
		return StatusSubscribed, nil
	}
	return StatusNotSubscribed, nil
}
