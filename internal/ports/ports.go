package ports

import (
	"context"
	"io"

	"github.com/csg33k/billed/internal/domain"
)

// BillRepository is the remote document store holding expense bills.
type BillRepository interface {
	// Add persists b and fills in b.ID.
	Add(ctx context.Context, b *domain.Bill) error
	// List returns the bills owned by email, in store order.
	List(ctx context.Context, email string) ([]domain.Bill, error)
}

// FileStorage stores receipt attachments and hands back a URL the browser
// can load them from.
type FileStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (url string, err error)
}

// SessionReader resolves the logged-in user for a request.
// It returns domain.ErrNoSession when nobody is logged in.
type SessionReader interface {
	CurrentUser(ctx context.Context) (domain.User, error)
}

// Navigator performs a view transition to route.
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// ModalDisplay opens the modal with the given element id.
type ModalDisplay interface {
	ShowModal(ctx context.Context, id string)
}

// BillReporter renders a printable summary of bills.
type BillReporter interface {
	Report(ctx context.Context, owner domain.User, bills []domain.Bill, w io.Writer) error
}
