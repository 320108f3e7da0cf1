// Package firestore stores bills in the Cloud Firestore "bills" collection,
// one document per bill.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/csg33k/billed/internal/domain"
	"github.com/csg33k/billed/internal/ports"
)

// Collection is the Firestore collection holding bills.
const Collection = "bills"

var _ ports.BillRepository = (*Repository)(nil)

type Repository struct {
	client *firestore.Client
}

// New creates a client for projectID. Credentials come from the usual
// Google application-default sources; FIRESTORE_EMULATOR_HOST is honored.
func New(ctx context.Context, projectID string) (*Repository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Repository{client: client}, nil
}

// Close closes the client.
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) Add(ctx context.Context, b *domain.Bill) error {
	ref, _, err := r.client.Collection(Collection).Add(ctx, b)
	if err != nil {
		return fmt.Errorf("add bill: %w", err)
	}
	b.ID = ref.ID
	return nil
}

func (r *Repository) List(ctx context.Context, email string) ([]domain.Bill, error) {
	iter := r.client.Collection(Collection).Where("email", "==", email).Documents(ctx)
	defer iter.Stop()
	var bills []domain.Bill
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list bills: %w", err)
		}
		var b domain.Bill
		if err := doc.DataTo(&b); err != nil {
			return nil, fmt.Errorf("decode bill %s: %w", doc.Ref.ID, err)
		}
		b.ID = doc.Ref.ID
		if b.Pct == 0 {
			b.Pct = domain.DefaultPct
		}
		bills = append(bills, b)
	}
	return bills, nil
}
