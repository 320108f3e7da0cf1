package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/csg33k/billed/internal/ports"
)

// outcome collects the view transitions a controller requested while a
// request was being served. The handler turns them into response headers.
type outcome struct {
	mu    sync.Mutex
	route string
	modal string
}

func (o *outcome) navigation() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.route
}

func (o *outcome) modalID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.modal
}

type outcomeKey struct{}

func withOutcome(ctx context.Context) (context.Context, *outcome) {
	o := &outcome{}
	return context.WithValue(ctx, outcomeKey{}, o), o
}

func outcomeFrom(ctx context.Context) *outcome {
	o, _ := ctx.Value(outcomeKey{}).(*outcome)
	return o
}

// contextNavigator records the requested route on the request's outcome.
// Calls outside a request are ignored.
type contextNavigator struct{}

var _ ports.Navigator = contextNavigator{}

func (contextNavigator) Navigate(ctx context.Context, route string) {
	if o := outcomeFrom(ctx); o != nil {
		o.mu.Lock()
		o.route = route
		o.mu.Unlock()
	}
}

// contextModal records the modal to open on the request's outcome.
type contextModal struct{}

var _ ports.ModalDisplay = contextModal{}

func (contextModal) ShowModal(ctx context.Context, id string) {
	if o := outcomeFrom(ctx); o != nil {
		o.mu.Lock()
		o.modal = id
		o.mu.Unlock()
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect sends htmx requests an HX-Redirect and plain browsers a 303.
func redirect(w http.ResponseWriter, r *http.Request, route string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", route)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, route, http.StatusSeeOther)
}

// triggerModal asks htmx to fire the show-modal event for id once the
// response is swapped in and settled. Plain HX-Trigger fires before the
// swap and would mark the node that is about to be replaced.
func triggerModal(w http.ResponseWriter, id string) {
	b, err := json.Marshal(map[string]string{"show-modal": id})
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger-After-Settle", string(b))
}
