package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/csg33k/billed/internal/controllers"
)

// formRegistry keeps the live new-bill form controllers. Each GET of the
// form page creates one; its id travels in the page and the form URLs.
// Entries expire after ttl and the oldest are evicted beyond max.
type formRegistry struct {
	ttl time.Duration
	max int
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*formEntry
	order   []string // creation order, oldest first
}

type formEntry struct {
	ctrl    *controllers.NewBillController
	owner   string
	created time.Time
}

func newFormRegistry(ttl time.Duration, max int) *formRegistry {
	return &formRegistry{
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		entries: map[string]*formEntry{},
	}
}

// add registers ctrl for owner and returns its id.
func (r *formRegistry) add(owner string, ctrl *controllers.NewBillController) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	for len(r.order) >= r.max && len(r.order) > 0 {
		r.removeLocked(r.order[0])
	}
	r.entries[id] = &formEntry{ctrl: ctrl, owner: owner, created: r.now()}
	r.order = append(r.order, id)
	return id
}

// get returns the controller for id when it is live and owned by owner.
func (r *formRegistry) get(id, owner string) (*controllers.NewBillController, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	e, ok := r.entries[id]
	if !ok || e.owner != owner {
		return nil, false
	}
	return e.ctrl, true
}

func (r *formRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *formRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *formRegistry) pruneLocked() {
	cutoff := r.now().Add(-r.ttl)
	for len(r.order) > 0 {
		e := r.entries[r.order[0]]
		if e != nil && e.created.After(cutoff) {
			return
		}
		r.removeLocked(r.order[0])
	}
}

func (r *formRegistry) removeLocked(id string) {
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
