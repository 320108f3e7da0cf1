package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/csg33k/billed/internal/controllers"
	"github.com/csg33k/billed/internal/domain"
	"github.com/csg33k/billed/internal/logging"
	"github.com/csg33k/billed/internal/metrics"
	"github.com/csg33k/billed/internal/middleware"
	"github.com/csg33k/billed/internal/ports"
	"github.com/csg33k/billed/internal/session"
	"github.com/csg33k/billed/internal/templates"
)

const (
	defaultMaxUploadBytes = 10 << 20
	loginFailedMessage    = "Email ou mot de passe incorrect"
)

// Config wires the handler to its collaborators.
type Config struct {
	Bills     ports.BillRepository
	Storage   ports.FileStorage
	Reporter  ports.BillReporter
	Sessions  *session.Manager
	Directory *session.Directory
	Metrics   *metrics.Metrics
	// Files serves stored attachments under /files/ when set.
	Files http.Handler

	SubmitMode     controllers.SubmitMode
	WriteTimeout   time.Duration
	ModalWidth     int
	FormTTL        time.Duration
	MaxForms       int
	MaxUploadBytes int64
}

type Handler struct {
	cfg      Config
	ctrlCfg  controllers.Config
	billsCtl *controllers.BillsController
	forms    *formRegistry

	// writes tracks submitted forms whose bill write may still be running.
	writes sync.WaitGroup
}

func New(cfg Config) (*Handler, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("handlers: session manager is required")
	}
	if cfg.Reporter == nil {
		return nil, errors.New("handlers: bill reporter is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.FormTTL <= 0 {
		cfg.FormTTL = time.Hour
	}
	if cfg.MaxForms <= 0 {
		cfg.MaxForms = 1000
	}
	ctrlCfg := controllers.Config{
		Session:      session.ContextReader{},
		Navigator:    contextNavigator{},
		Modal:        contextModal{},
		Bills:        cfg.Bills,
		Storage:      cfg.Storage,
		Metrics:      cfg.Metrics,
		SubmitMode:   cfg.SubmitMode,
		WriteTimeout: cfg.WriteTimeout,
		ModalWidth:   cfg.ModalWidth,
	}
	billsCtl, err := controllers.NewBillsController(ctrlCfg)
	if err != nil {
		return nil, err
	}
	// Validate the form configuration once instead of on first page load.
	if _, err := controllers.NewNewBillController(ctrlCfg); err != nil {
		return nil, err
	}
	return &Handler{
		cfg:      cfg,
		ctrlCfg:  ctrlCfg,
		billsCtl: billsCtl,
		forms:    newFormRegistry(cfg.FormTTL, cfg.MaxForms),
	}, nil
}

// Routes returns the mux wrapped in the middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /logout", h.logout)
	mux.HandleFunc("GET /bills", h.requireUser(h.billsPage))
	mux.HandleFunc("GET /bills/rows", h.requireUser(h.billRows))
	mux.HandleFunc("POST /bills/actions/new", h.requireUser(h.clickNewBill))
	mux.HandleFunc("GET /bills/attachment", h.requireUser(h.attachment))
	mux.HandleFunc("GET /bills/report.pdf", h.requireUser(h.report))
	mux.HandleFunc("GET /bills/new", h.requireUser(h.newBillPage))
	mux.HandleFunc("POST /bills/new/{form}/file", h.requireUser(h.changeFile))
	mux.HandleFunc("POST /bills/new/{form}", h.requireUser(h.submitBill))
	mux.HandleFunc("GET /health", h.health)
	if h.cfg.Metrics != nil {
		mux.Handle("GET /metrics", h.cfg.Metrics.Handler())
	}
	if h.cfg.Files != nil {
		mux.Handle("GET /files/", http.StripPrefix("/files", h.cfg.Files))
	}
	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recovery,
		middleware.Logger,
		h.cfg.Sessions.Middleware,
		middleware.Metrics(h.cfg.Metrics),
	)
}

// Wait blocks until bill writes started by submitted forms finish.
func (h *Handler) Wait() {
	h.writes.Wait()
}

// requireUser sends anonymous requests back to the login page.
func (h *Handler) requireUser(next func(http.ResponseWriter, *http.Request, domain.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := session.ContextReader{}.CurrentUser(r.Context())
		if err != nil {
			redirect(w, r, domain.RouteLogin)
			return
		}
		r = r.WithContext(logging.WithUser(r.Context(), user.Email))
		next(w, r, user)
	}
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	if _, err := (session.ContextReader{}).CurrentUser(r.Context()); err == nil {
		redirect(w, r, domain.RouteBills)
		return
	}
	render(w, r, templates.Login(templates.LoginData{}))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	email := r.FormValue("email")
	if h.cfg.Directory == nil {
		renderStatus(w, r, http.StatusUnauthorized, templates.Login(templates.LoginData{Email: email, Error: loginFailedMessage}))
		return
	}
	user, err := h.cfg.Directory.Authenticate(email, r.FormValue("password"))
	if err != nil {
		logging.FromContext(r.Context()).Info("login rejected", "email", email)
		renderStatus(w, r, http.StatusUnauthorized, templates.Login(templates.LoginData{Email: email, Error: loginFailedMessage}))
		return
	}
	if err := h.cfg.Sessions.Issue(w, user); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	redirect(w, r, domain.RouteBills)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.cfg.Sessions.Clear(w)
	redirect(w, r, domain.RouteLogin)
}

func (h *Handler) billsPage(w http.ResponseWriter, r *http.Request, user domain.User) {
	render(w, r, templates.Bills(templates.BillsData{
		Nav:  templates.Nav{User: user},
		Page: h.billsCtl.LoadingPage(),
	}))
}

// billRows answers the htmx fetch issued by the loading placeholder. Fetch
// failures render the error page with a 200 so htmx swaps it in.
func (h *Handler) billRows(w http.ResponseWriter, r *http.Request, _ domain.User) {
	render(w, r, templates.BillRows(h.billsCtl.GetBills(r.Context())))
}

func (h *Handler) clickNewBill(w http.ResponseWriter, r *http.Request, _ domain.User) {
	ctx, out := withOutcome(r.Context())
	h.billsCtl.HandleClickNewBill(ctx)
	redirect(w, r, out.navigation())
}

func (h *Handler) attachment(w http.ResponseWriter, r *http.Request, _ domain.User) {
	ctx, out := withOutcome(r.Context())
	modal := h.billsCtl.HandleClickIconEye(ctx, r.URL.Query().Get("url"))
	if id := out.modalID(); id != "" {
		triggerModal(w, id)
	}
	render(w, r, templates.AttachmentModal(modal))
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request, user domain.User) {
	bills, err := h.cfg.Bills.List(r.Context(), user.Email)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	var buf bytes.Buffer
	if err := h.cfg.Reporter.Report(r.Context(), user, bills, &buf); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	filename := fmt.Sprintf("notes-de-frais_%s.pdf", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Write(buf.Bytes())
}

func (h *Handler) newBillPage(w http.ResponseWriter, r *http.Request, user domain.User) {
	ctrl, err := controllers.NewNewBillController(h.ctrlCfg)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	id := h.forms.add(user.Email, ctrl)
	render(w, r, templates.NewBill(h.formData(user, id, controllers.BillForm{}, ctrl.View())))
}

func (h *Handler) changeFile(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := r.PathValue("form")
	ctrl, ok := h.forms.get(id, user.Email)
	if !ok {
		http.Error(w, "form expired, reload the page", http.StatusNotFound)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), 400)
		return
	}
	var sel controllers.FileSelection
	f, fh, err := r.FormFile("file")
	switch {
	case err == nil:
		defer f.Close()
		sel = controllers.FileSelection{
			Path:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		}
		if p := r.FormValue("path"); p != "" {
			sel.Path = p
		}
	case errors.Is(err, http.ErrMissingFile):
		// An emptied input is an invalid selection.
	default:
		http.Error(w, err.Error(), 400)
		return
	}
	view := ctrl.HandleChangeFile(r.Context(), sel)
	render(w, r, templates.FileStatus(templates.FileStatusData{FormID: id, View: view}))
}

func (h *Handler) submitBill(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := r.PathValue("form")
	ctrl, ok := h.forms.get(id, user.Email)
	if !ok {
		http.Error(w, "form expired, reload the page", http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	form := controllers.BillForm{
		Type:       r.FormValue("type"),
		Name:       r.FormValue("name"),
		Amount:     r.FormValue("amount"),
		Date:       r.FormValue("date"),
		VAT:        r.FormValue("vat"),
		Pct:        r.FormValue("pct"),
		Commentary: r.FormValue("commentary"),
	}

	ctx, out := withOutcome(r.Context())
	view := ctrl.HandleSubmit(ctx, form)
	if route := out.navigation(); route != "" {
		h.forms.remove(id)
		h.writes.Add(1)
		go func() {
			defer h.writes.Done()
			ctrl.Wait()
		}()
		redirect(w, r, route)
		return
	}

	data := h.formData(user, id, form, view)
	if isHTMX(r) {
		renderStatus(w, r, http.StatusUnprocessableEntity, templates.NewBillForm(data))
		return
	}
	renderStatus(w, r, http.StatusUnprocessableEntity, templates.NewBill(data))
}

func (h *Handler) formData(user domain.User, id string, form controllers.BillForm, view controllers.FormView) templates.NewBillData {
	if form.Type == "" {
		form.Type = domain.ExpenseTypes[0]
	}
	return templates.NewBillData{
		Nav:          templates.Nav{User: user},
		FormID:       id,
		Form:         form,
		View:         view,
		ExpenseTypes: domain.ExpenseTypes,
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// render writes a templ component to the response.
func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), 500)
	}
}

// renderStatus is render with a non-200 status code.
func renderStatus(w http.ResponseWriter, r *http.Request, code int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "error", err)
	}
}
