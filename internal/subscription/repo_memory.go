package subscription

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu     sync.Mutex
	subs   map[string]Subscription // keyed by id
	denied map[string]bool         // keyed by propertyID+"\x00"+endpoint
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		subs:   make(map[string]Subscription),
		denied: make(map[string]bool),
	}
}

func deniedKey(propertyID, endpoint string) string {
	return propertyID + "\x00" + endpoint
}

func (r *MemoryRepo) Insert(_ context.Context, s Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.ID] = s
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, propertyID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.PropertyID != propertyID {
		return ErrNotFound
	}
	delete(r.subs, id)
	return nil
}

func (r *MemoryRepo) FindByEndpoint(_ context.Context, propertyID, endpoint string) (Subscription, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.PropertyID == propertyID && s.Endpoint == endpoint {
			return s, true, nil
		}
	}
	return Subscription{}, false, nil
}

func (r *MemoryRepo) ListByProperty(_ context.Context, propertyID string) ([]Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Subscription
	for _, s := range r.subs {
		if s.PropertyID == propertyID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepo) MarkPermissionDenied(_ context.Context, propertyID, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied[deniedKey(propertyID, endpoint)] = true
	return nil
}

func (r *MemoryRepo) ClearPermissionDenied(_ context.Context, propertyID, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.denied, deniedKey(propertyID, endpoint))
	return nil
}

func (r *MemoryRepo) IsPermissionDenied(_ context.Context, propertyID, endpoint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.denied[deniedKey(propertyID, endpoint)], nil
}
