package controllers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/csg33k/billed/internal/controllers"
	"github.com/csg33k/billed/internal/domain"
)

// fixtureBills mirrors the employee fixture: four bills for a@a with
// distinct dates and one bill for someone else.
func fixtureBills() []domain.Bill {
	return []domain.Bill{
		{ID: "47qAXb6fIm2zOKkLzMro", Email: "a@a", Name: "encore", Date: "2004-04-04", Status: domain.StatusPending, Amount: 400, Pct: 20},
		{ID: "BeKy5Mo4jkmdfPGYpTxZ", Email: "a@a", Name: "test1", Date: "2001-01-01", Status: domain.StatusRefused, Amount: 100, Pct: 20},
		{ID: "UIUZtnPQvnbFnB0ozvJh", Email: "a@a", Name: "test3", Date: "2003-03-03", Status: domain.StatusAccepted, Amount: 300, Pct: 20},
		{ID: "qcCK3SzECmaZAGRrHjaC", Email: "a@a", Name: "test2", Date: "2002-02-02", Status: domain.StatusRefused, Amount: 200, Pct: 20},
		{ID: "zzz", Email: "b@b", Name: "other", Date: "2010-10-10", Status: domain.StatusPending},
	}
}

func newBillsController(t *testing.T, repo *fakeRepo, nav *fakeNavigator, modal *fakeModal) *controllers.BillsController {
	t.Helper()
	cfg := controllers.Config{
		Session:   fakeSession{user: domain.User{Type: "Employee", Email: "a@a"}},
		Navigator: nav,
		Bills:     repo,
	}
	if modal != nil {
		cfg.Modal = modal
	}
	c, err := controllers.NewBillsController(cfg)
	if err != nil {
		t.Fatalf("NewBillsController: %v", err)
	}
	return c
}

func TestNewBillsController_RequiresCollaborators(t *testing.T) {
	if _, err := controllers.NewBillsController(controllers.Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
	_, err := controllers.NewBillsController(controllers.Config{
		Session:    fakeSession{},
		Navigator:  &fakeNavigator{},
		Bills:      &fakeRepo{},
		SubmitMode: "eventually",
	})
	if err == nil {
		t.Fatal("expected error for unknown submit mode")
	}
}

func TestHandleClickNewBill_Navigates(t *testing.T) {
	nav := &fakeNavigator{}
	c := newBillsController(t, &fakeRepo{}, nav, nil)
	c.HandleClickNewBill(context.Background())

	routes := nav.Routes()
	if len(routes) != 1 || routes[0] != domain.RouteNewBill {
		t.Fatalf("routes = %v, want [%s]", routes, domain.RouteNewBill)
	}
}

func TestHandleClickIconEye_OpensModal(t *testing.T) {
	modal := &fakeModal{}
	c := newBillsController(t, &fakeRepo{}, &fakeNavigator{}, modal)

	m := c.HandleClickIconEye(context.Background(), "https://files.example/justificatifs/facture.jpg")
	if m.Label != "Justificatif" {
		t.Errorf("label = %q", m.Label)
	}
	if m.ImageURL != "https://files.example/justificatifs/facture.jpg" {
		t.Errorf("image url = %q", m.ImageURL)
	}
	if m.ImageWidth != 400 {
		t.Errorf("image width = %d, want half of the default modal width", m.ImageWidth)
	}
	if len(modal.shown) != 1 || modal.shown[0] != controllers.AttachmentModalID {
		t.Errorf("modal calls = %v", modal.shown)
	}
}

func TestHandleClickIconEye_AcceptsMalformedURL(t *testing.T) {
	c := newBillsController(t, &fakeRepo{}, &fakeNavigator{}, nil)
	m := c.HandleClickIconEye(context.Background(), "null")
	if m.ImageURL != "null" {
		t.Errorf("image url = %q", m.ImageURL)
	}
}

func TestGetBills_SortedLatestFirst(t *testing.T) {
	c := newBillsController(t, &fakeRepo{bills: fixtureBills()}, &fakeNavigator{}, nil)
	page := c.GetBills(context.Background())

	if page.Error != "" || page.Loading {
		t.Fatalf("unexpected page state: %+v", page)
	}
	if len(page.Bills) != 4 {
		t.Fatalf("got %d bills, want the 4 owned by a@a", len(page.Bills))
	}
	for i := 1; i < len(page.Bills); i++ {
		if page.Bills[i-1].Date <= page.Bills[i].Date {
			t.Fatalf("dates not strictly descending: %s then %s", page.Bills[i-1].Date, page.Bills[i].Date)
		}
	}
	if page.Bills[0].StatusLabel != "En attente" {
		t.Errorf("status label = %q", page.Bills[0].StatusLabel)
	}
}

func TestGetBills_ErrorPage(t *testing.T) {
	for _, msg := range []string{"Erreur 404", "Erreur 500"} {
		t.Run(msg, func(t *testing.T) {
			c := newBillsController(t, &fakeRepo{listErr: errors.New(msg)}, &fakeNavigator{}, nil)
			page := c.GetBills(context.Background())
			if page.Error != msg {
				t.Errorf("error = %q, want %q", page.Error, msg)
			}
			if len(page.Bills) != 0 {
				t.Errorf("partial list returned: %v", page.Bills)
			}
		})
	}
}

func TestGetBills_NoSession(t *testing.T) {
	c, err := controllers.NewBillsController(controllers.Config{
		Session:   fakeSession{err: domain.ErrNoSession},
		Navigator: &fakeNavigator{},
		Bills:     &fakeRepo{bills: fixtureBills()},
	})
	if err != nil {
		t.Fatal(err)
	}
	page := c.GetBills(context.Background())
	if page.Error != domain.ErrNoSession.Error() {
		t.Errorf("error = %q", page.Error)
	}
}

func TestLoadingPage(t *testing.T) {
	c := newBillsController(t, &fakeRepo{}, &fakeNavigator{}, nil)
	if !c.LoadingPage().Loading {
		t.Error("LoadingPage should be in loading state")
	}
}
