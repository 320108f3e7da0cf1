package controllers_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/csg33k/billed/internal/domain"
)

type fakeSession struct {
	user domain.User
	err  error
}

func (s fakeSession) CurrentUser(context.Context) (domain.User, error) {
	return s.user, s.err
}

type fakeNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *fakeNavigator) Navigate(_ context.Context, route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *fakeNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

type fakeModal struct {
	shown []string
}

func (m *fakeModal) ShowModal(_ context.Context, id string) {
	m.shown = append(m.shown, id)
}

// fakeRepo records added bills. When release is non-nil Add blocks until it
// is closed.
type fakeRepo struct {
	mu      sync.Mutex
	added   []domain.Bill
	bills   []domain.Bill
	listErr error
	addErr  error
	release chan struct{}
}

func (r *fakeRepo) Add(ctx context.Context, b *domain.Bill) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	b.ID = "generated"
	r.added = append(r.added, *b)
	return nil
}

func (r *fakeRepo) List(_ context.Context, email string) ([]domain.Bill, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Bill
	for _, b := range r.bills {
		if b.Email == email {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeRepo) Added() []domain.Bill {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Bill(nil), r.added...)
}

// fakeStorage returns url for every Put. A non-nil hook runs before the
// result is returned, letting tests interleave selections.
type fakeStorage struct {
	url  string
	err  error
	hook func(key string)
	keys []string
}

func (s *fakeStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	s.keys = append(s.keys, key)
	if r != nil {
		io.Copy(io.Discard, r)
	}
	if s.hook != nil {
		s.hook(key)
	}
	if s.err != nil {
		return "", s.err
	}
	return s.url + "/" + key, nil
}

var errStore = errors.New("Erreur 500")
