// Package memory provides in-process implementations of the bill store and
// the attachment storage, used for local development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/csg33k/billed/internal/domain"
	"github.com/csg33k/billed/internal/ports"
)

var _ ports.BillRepository = (*Repository)(nil)

// Repository keeps bills in insertion order.
type Repository struct {
	mu    sync.RWMutex
	bills []domain.Bill
}

// NewRepository returns a repository pre-filled with seed.
func NewRepository(seed ...domain.Bill) *Repository {
	r := &Repository{}
	for _, b := range seed {
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		r.bills = append(r.bills, b)
	}
	return r
}

func (r *Repository) Add(ctx context.Context, b *domain.Bill) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil {
		return errors.New("memory: nil bill")
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bills = append(r.bills, *b)
	return nil
}

func (r *Repository) List(ctx context.Context, email string) ([]domain.Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Bill
	for _, b := range r.bills {
		if b.Email == email {
			out = append(out, b)
		}
	}
	return out, nil
}

// Count returns the number of stored bills across all owners.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bills)
}
