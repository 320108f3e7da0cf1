package controllers

import (
	"context"
	"fmt"

	"github.com/csg33k/billed/internal/domain"
	"github.com/csg33k/billed/internal/logging"
)

// AttachmentModalID is the element id of the receipt preview modal.
const AttachmentModalID = "modaleFile"

// AttachmentModal is the content injected into the receipt preview modal.
type AttachmentModal struct {
	ID         string
	Label      string
	ImageURL   string
	ImageWidth int
}

// BillRow is a bill prepared for the listing table.
type BillRow struct {
	domain.Bill
	StatusLabel string
}

// BillsPage is the view state of the listing. Exactly one of Loading,
// Error or Bills is meaningful.
type BillsPage struct {
	Loading bool
	Error   string
	Bills   []BillRow
}

// BillsController drives the bill listing screen.
type BillsController struct {
	cfg Config
}

// NewBillsController returns a listing controller. Modal and Storage may be
// nil; a nil Modal simply skips the display call.
func NewBillsController(cfg Config) (*BillsController, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("bills controller: %w", err)
	}
	return &BillsController{cfg: cfg.withDefaults()}, nil
}

// HandleClickNewBill navigates to the new-bill form.
func (c *BillsController) HandleClickNewBill(ctx context.Context) {
	c.cfg.Navigator.Navigate(ctx, domain.RouteNewBill)
}

// HandleClickIconEye builds the preview for the attachment at billURL and
// opens the modal. The URL is not checked: a bad one renders a broken image.
func (c *BillsController) HandleClickIconEye(ctx context.Context, billURL string) AttachmentModal {
	m := AttachmentModal{
		ID:         AttachmentModalID,
		Label:      "Justificatif",
		ImageURL:   billURL,
		ImageWidth: c.cfg.ModalWidth / 2,
	}
	if c.cfg.Modal != nil {
		c.cfg.Modal.ShowModal(ctx, m.ID)
	}
	return m
}

// LoadingPage is the placeholder shown until GetBills resolves.
func (c *BillsController) LoadingPage() BillsPage {
	return BillsPage{Loading: true}
}

// GetBills fetches the session user's bills once. Any failure becomes an
// error page carrying the failure text; nothing is retried.
func (c *BillsController) GetBills(ctx context.Context) BillsPage {
	user, err := c.cfg.Session.CurrentUser(ctx)
	if err != nil {
		return BillsPage{Error: err.Error()}
	}
	bills, err := c.cfg.Bills.List(ctx, user.Email)
	if err != nil {
		c.cfg.Metrics.ListFailure()
		logging.FromContext(ctx).Warn("bill listing failed", "error", err)
		return BillsPage{Error: err.Error()}
	}
	domain.SortByDateDesc(bills)
	rows := make([]BillRow, len(bills))
	for i, b := range bills {
		rows[i] = BillRow{Bill: b, StatusLabel: b.Status.Label()}
	}
	return BillsPage{Bills: rows}
}
