package activity

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *MemoryRepo) ListByProperty(_ context.Context, propertyID string, limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].PropertyID == propertyID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

// Records returns a copy of everything appended so far.
func (r *MemoryRepo) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
