// Package session stores the logged-in user in a signed cookie and exposes
// it to the controllers through the request context.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/csg33k/billed/internal/domain"
	"github.com/csg33k/billed/internal/ports"
)

// CookieName is the session cookie. It plays the role the "user" entry of
// browser storage plays in a client-only app.
const CookieName = "billed_user"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired session")
)

// Account is an entry of the employee directory.
type Account struct {
	Email        string `yaml:"email"`
	Type         string `yaml:"type"`
	PasswordHash string `yaml:"password_hash"`
}

// Directory authenticates accounts against bcrypt hashes.
type Directory struct {
	accounts map[string]Account
}

// NewDirectory indexes accounts by lower-cased email.
func NewDirectory(accounts []Account) *Directory {
	d := &Directory{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		if a.Type == "" {
			a.Type = "Employee"
		}
		d.accounts[strings.ToLower(a.Email)] = a
	}
	return d
}

// Authenticate returns the user for email when password matches.
func (d *Directory) Authenticate(email, password string) (domain.User, error) {
	a, ok := d.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return domain.User{Type: a.Type, Email: a.Email}, nil
}

// HashPassword returns a bcrypt hash suitable for Account.PasswordHash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

type claims struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager issues and validates session cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewManager returns a manager signing with secret. Cookies are marked
// Secure when secure is set.
func NewManager(secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, secure: secure}
}

// Issue signs u into the session cookie.
func (m *Manager) Issue(w http.ResponseWriter, u domain.User) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		Type:  u.Type,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest validates the session cookie of r.
func (m *Manager) FromRequest(r *http.Request) (domain.User, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return domain.User{}, domain.ErrNoSession
	}
	var cl claims
	_, err = jwt.ParseWithClaims(c.Value, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return domain.User{Type: cl.Type, Email: cl.Email}, nil
}

type contextKey struct{}

// WithUser returns ctx carrying u.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// Middleware attaches the cookie's user to the request context when the
// cookie is valid. Requests without a session pass through untouched.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, err := m.FromRequest(r); err == nil {
			r = r.WithContext(WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// ContextReader reads the session user placed in the context by Middleware.
type ContextReader struct{}

var _ ports.SessionReader = ContextReader{}

func (ContextReader) CurrentUser(ctx context.Context) (domain.User, error) {
	u, ok := ctx.Value(contextKey{}).(domain.User)
	if !ok || u.Email == "" {
		return domain.User{}, domain.ErrNoSession
	}
	return u, nil
}
