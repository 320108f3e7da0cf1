package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/csg33k/billed/internal/adapters/memory"
	"github.com/csg33k/billed/internal/adapters/pdf"
	"github.com/csg33k/billed/internal/controllers"
	"github.com/csg33k/billed/internal/domain"
	"github.com/csg33k/billed/internal/metrics"
	"github.com/csg33k/billed/internal/ports"
	"github.com/csg33k/billed/internal/session"
)

var employee = domain.User{Type: "Employee", Email: "employee@test.tld"}

type testServer struct {
	h       *Handler
	routes  http.Handler
	repo    ports.BillRepository
	cookie  *http.Cookie
	manager *session.Manager
}

type option func(*Config)

func newTestServer(t *testing.T, repo ports.BillRepository, opts ...option) *testServer {
	t.Helper()
	manager := session.NewManager("test-secret", time.Hour, false)
	hash, err := session.HashPassword("employee")
	if err != nil {
		t.Fatal(err)
	}
	storage := memory.NewStorage("/files")
	cfg := Config{
		Bills:     repo,
		Storage:   storage,
		Reporter:  pdf.Reporter{},
		Sessions:  manager,
		Directory: session.NewDirectory([]session.Account{{Email: employee.Email, PasswordHash: hash}}),
		Metrics:   metrics.New(),
		Files:     storage,
	}
	for _, o := range opts {
		o(&cfg)
	}
	h, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testServer{
		h:       h,
		routes:  h.Routes(),
		repo:    repo,
		cookie:  sessionCookie(t, manager, employee),
		manager: manager,
	}
}

func sessionCookie(t *testing.T, m *session.Manager, u domain.User) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := m.Issue(rec, u); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return rec.Result().Cookies()[0]
}

func (s *testServer) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.routes.ServeHTTP(rec, req)
	return rec
}

func htmx(req *http.Request) *http.Request {
	req.Header.Set("HX-Request", "true")
	return req
}

var formIDPattern = regexp.MustCompile(`action="/bills/new/([^"]+)"`)

func (s *testServer) openForm(t *testing.T, cookie *http.Cookie) string {
	t.Helper()
	rec := s.do(httptest.NewRequest(http.MethodGet, "/bills/new", nil), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /bills/new = %d", rec.Code)
	}
	m := formIDPattern.FindStringSubmatch(rec.Body.String())
	if m == nil {
		t.Fatal("form id not found in page")
	}
	return m[1]
}

func fileRequest(t *testing.T, formID, fileName, contentType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("fake image bytes"))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/bills/new/"+formID+"/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return htmx(req)
}

func submitRequest(formID string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/bills/new/"+formID, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return htmx(req)
}

var billValues = url.Values{
	"type":       {"Transports"},
	"name":       {"Vol Paris Londres"},
	"amount":     {"348"},
	"date":       {"2022-05-01"},
	"vat":        {"70"},
	"pct":        {""},
	"commentary": {"séminaire"},
}

type failingRepo struct{ err error }

func (r failingRepo) Add(context.Context, *domain.Bill) error { return r.err }
func (r failingRepo) List(context.Context, string) ([]domain.Bill, error) {
	return nil, r.err
}

func TestRequiresSession(t *testing.T) {
	s := newTestServer(t, memory.NewRepository())
	for _, path := range []string{"/bills", "/bills/new", "/bills/rows", "/bills/report.pdf"} {
		rec := s.do(httptest.NewRequest(http.MethodGet, path, nil), nil)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
			t.Errorf("GET %s = %d %q, want redirect to /", path, rec.Code, rec.Header().Get("Location"))
		}
	}
	rec := s.do(htmx(httptest.NewRequest(http.MethodGet, "/bills/rows", nil)), nil)
	if rec.Header().Get("HX-Redirect") != "/" {
		t.Errorf("htmx request not redirected with HX-Redirect")
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, memory.NewRepository())

	form := url.Values{"email": {employee.Email}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(req, nil)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), loginFailedMessage) {
		t.Fatalf("bad password: %d", rec.Code)
	}

	form.Set("password", "employee")
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = s.do(req, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != domain.RouteBills {
		t.Fatalf("login = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.CookieName {
		t.Fatalf("cookies = %v", cookies)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/", nil), cookies[0])
	if rec.Header().Get("Location") != domain.RouteBills {
		t.Errorf("logged-in index should redirect to the listing")
	}
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, memory.NewRepository())
	rec := s.do(httptest.NewRequest(http.MethodPost, "/logout", nil), s.cookie)
	if rec.Header().Get("Location") != domain.RouteLogin {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
	c := rec.Result().Cookies()
	if len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("session cookie not cleared: %v", c)
	}
}

func TestBillsPage(t *testing.T) {
	s := newTestServer(t, memory.NewRepository())
	rec := s.do(httptest.NewRequest(http.MethodGet, "/bills", nil), s.cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Loading...", `hx-get="/bills/rows"`, `data-testid="icon-window" class="active-icon"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestBillRows_SortedAndOwned(t *testing.T) {
	repo := memory.NewRepository(
		domain.Bill{Email: employee.Email, Name: "a", Date: "2001-01-01", Status: domain.StatusPending},
		domain.Bill{Email: employee.Email, Name: "c", Date: "2004-04-04", Status: domain.StatusAccepted},
		domain.Bill{Email: "other@test.tld", Name: "x", Date: "2010-10-10", Status: domain.StatusPending},
		domain.Bill{Email: employee.Email, Name: "b", Date: "2003-03-03", Status: domain.StatusRefused},
	)
	s := newTestServer(t, repo)
	rec := s.do(htmx(httptest.NewRequest(http.MethodGet, "/bills/rows", nil)), s.cookie)
	body := rec.Body.String()

	dates := regexp.MustCompile(`data-testid="bill-date">([^<]+)<`).FindAllStringSubmatch(body, -1)
	var got []string
	for _, d := range dates {
		got = append(got, d[1])
	}
	want := "2004-04-04,2003-03-03,2001-01-01"
	if strings.Join(got, ",") != want {
		t.Errorf("dates = %v, want %s", got, want)
	}
	for _, label := range []string{"En attente", "Accepté", "Refusé"} {
		if !strings.Contains(body, label) {
			t.Errorf("missing status label %q", label)
		}
	}
}

func TestBillRows_Error(t *testing.T) {
	for _, msg := range []string{"Erreur 404", "Erreur 500"} {
		s := newTestServer(t, failingRepo{err: errors.New(msg)})
		rec := s.do(htmx(httptest.NewRequest(http.MethodGet, "/bills/rows", nil)), s.cookie)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), msg) {
			t.Errorf("error page missing %q", msg)
		}
	}
}

func TestAttachmentModal(t *testing.T) {
	s := newTestServer(t, memory.NewRepository())
	target := "/bills/attachment?url=" + url.QueryEscape("https://files.test/receipt.png")
	rec := s.do(htmx(httptest.NewRequest(http.MethodGet, target, nil)), s.cookie)
	if got := rec.Header().Get("HX-Trigger-After-Settle"); got != `{"show-modal":"modaleFile"}` {
		t.Errorf("HX-Trigger-After-Settle = %q", got)
	}
	if got := rec.Header().Get("HX-Trigger"); got != "" {
		t.Errorf("HX-Trigger = %q, the modal must open after the swap", got)
	}
	body := rec.Body.String()
	for _, want := range []string{"Justificatif", "<img", `src="https://files.test/receipt.png"`, `width="400"`} {
		if !strings.Contains(body, want) {
			t.Errorf("modal missing %q", want)
		}
	}
}

func TestClickNewBill(t *testing.T) {
	s := newTestServer(t, memory.NewRepository())
	rec := s.do(htmx(httptest.NewRequest(http.MethodPost, "/bills/actions/new", nil)), s.cookie)
	if got := rec.Header().Get("HX-Redirect"); got != domain.RouteNewBill {
		t.Errorf("HX-Redirect = %q", got)
	}
}

func TestNewBill_SubmitFlow(t *testing.T) {
	repo := memory.NewRepository()
	s := newTestServer(t, repo)
	id := s.openForm(t, s.cookie)

	rec := s.do(fileRequest(t, id, "receipt.png", "image/png"), s.cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "receipt.png") {
		t.Fatalf("file status missing name: %s", rec.Body.String())
	}

	rec = s.do(submitRequest(id, billValues), s.cookie)
	if got := rec.Header().Get("HX-Redirect"); got != domain.RouteBills {
		t.Fatalf("HX-Redirect = %q (status %d)", got, rec.Code)
	}
	s.h.Wait()

	bills, err := repo.List(context.Background(), employee.Email)
	if err != nil || len(bills) != 1 {
		t.Fatalf("bills = %v, %v", bills, err)
	}
	b := bills[0]
	if b.Amount != 348 || b.Pct != domain.DefaultPct || b.Status != domain.StatusPending ||
		b.Email != employee.Email || b.FileName != "receipt.png" || b.Commentary != "séminaire" {
		t.Errorf("bill = %+v", b)
	}
	if !strings.HasPrefix(b.FileURL, "/files/justificatifs/") {
		t.Fatalf("FileURL = %q", b.FileURL)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, b.FileURL, nil), nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("GET attachment = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	// The form instance is gone once submitted.
	rec = s.do(submitRequest(id, billValues), s.cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("resubmit = %d, want 404", rec.Code)
	}
}

func TestNewBill_InvalidFile(t *testing.T) {
	repo := memory.NewRepository()
	s := newTestServer(t, repo)
	id := s.openForm(t, s.cookie)

	rec := s.do(fileRequest(t, id, "receipt.pdf", "application/pdf"), s.cookie)
	if n := strings.Count(rec.Body.String(), domain.InvalidFileFormatMessage); n != 1 {
		t.Errorf("message rendered %d times", n)
	}

	rec = s.do(submitRequest(id, billValues), s.cookie)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("submit = %d, want 422", rec.Code)
	}
	if n := strings.Count(rec.Body.String(), domain.InvalidFileFormatMessage); n != 1 {
		t.Errorf("message rendered %d times", n)
	}
	if rec.Header().Get("HX-Redirect") != "" {
		t.Error("navigated despite the invalid form")
	}
	s.h.Wait()
	if n := repo.Count(); n != 0 {
		t.Errorf("%d bills created", n)
	}
}

func TestNewBill_SubmitWithoutFile(t *testing.T) {
	repo := memory.NewRepository()
	s := newTestServer(t, repo)
	id := s.openForm(t, s.cookie)

	req := httptest.NewRequest(http.MethodPost, "/bills/new/"+id, strings.NewReader(billValues.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(req, s.cookie)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<html") || !strings.Contains(body, domain.InvalidFileFormatMessage) {
		t.Error("plain submit should re-render the full page with the inline error")
	}
	if !strings.Contains(body, `value="Vol Paris Londres"`) {
		t.Error("entered values were not kept")
	}
	if repo.Count() != 0 {
		t.Error("bill created without a file")
	}
}

func TestNewBill_ConsistentWriteFailure(t *testing.T) {
	s := newTestServer(t, failingRepo{err: errors.New("unavailable")}, func(c *Config) {
		c.SubmitMode = controllers.SubmitConsistent
	})
	id := s.openForm(t, s.cookie)
	s.do(fileRequest(t, id, "receipt.jpg", "image/jpeg"), s.cookie)

	rec := s.do(submitRequest(id, billValues), s.cookie)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), controllers.WriteFailedMessage) {
		t.Error("write failure not surfaced")
	}
	if rec.Header().Get("HX-Redirect") != "" {
		t.Error("navigated despite the failed write")
	}
}

func TestNewBill_OptimisticWriteFailure(t *testing.T) {
	s := newTestServer(t, failingRepo{err: errors.New("unavailable")})
	id := s.openForm(t, s.cookie)
	s.do(fileRequest(t, id, "receipt.jpg", "image/jpeg"), s.cookie)

	rec := s.do(submitRequest(id, billValues), s.cookie)
	if rec.Header().Get("HX-Redirect") != domain.RouteBills {
		t.Errorf("optimistic submit should navigate, got %d", rec.Code)
	}
	s.h.Wait()
}

func TestNewBill_FormBelongsToOwner(t *testing.T) {
	s := newTestServer(t, memory.NewRepository())
	id := s.openForm(t, s.cookie)
	other := sessionCookie(t, s.manager, domain.User{Type: "Employee", Email: "other@test.tld"})

	rec := s.do(fileRequest(t, id, "receipt.png", "image/png"), other)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign upload = %d, want 404", rec.Code)
	}
	rec = s.do(submitRequest("unknown", billValues), s.cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown form = %d, want 404", rec.Code)
	}
}

func TestReport(t *testing.T) {
	repo := memory.NewRepository(domain.Bill{Email: employee.Email, Name: "a", Date: "2001-01-01", Amount: 10, Pct: 20})
	s := newTestServer(t, repo)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/bills/report.pdf", nil), s.cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, memory.NewRepository())
	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
	rec = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	if !strings.Contains(rec.Body.String(), `billed_http_requests_total{code="200",route="GET /health"} 1`) {
		t.Errorf("metrics missing health request:\n%s", rec.Body.String())
	}
}
