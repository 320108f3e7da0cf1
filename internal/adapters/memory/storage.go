package memory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/csg33k/billed/internal/ports"
)

var _ ports.FileStorage = (*Storage)(nil)

// Object is a stored attachment.
type Object struct {
	Body        []byte
	ContentType string
}

// Storage keeps attachments in memory and serves them under BaseURL.
type Storage struct {
	BaseURL string

	mu   sync.RWMutex
	data map[string]Object
}

// NewStorage returns an empty storage whose URLs start with baseURL,
// e.g. "/files".
func NewStorage(baseURL string) *Storage {
	return &Storage{
		BaseURL: strings.TrimRight(baseURL, "/"),
		data:    map[string]Object{},
	}
}

func (s *Storage) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	var buf bytes.Buffer
	if r != nil {
		if _, err := io.Copy(&buf, r); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.data[key] = Object{Body: buf.Bytes(), ContentType: contentType}
	s.mu.Unlock()
	return s.BaseURL + "/" + (&url.URL{Path: key}).EscapedPath(), nil
}

// Get returns the object stored under key.
func (s *Storage) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.data[key]
	return o, ok
}

// ServeHTTP serves stored objects by key. Mount it under BaseURL with
// http.StripPrefix.
func (s *Storage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o, ok := s.Get(strings.TrimPrefix(r.URL.Path, "/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", o.ContentType)
	w.Write(o.Body)
}
