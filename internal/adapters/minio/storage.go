// Package minio stores receipt attachments in an S3-compatible bucket.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/csg33k/billed/internal/logging"
	"github.com/csg33k/billed/internal/ports"
)

var _ ports.FileStorage = (*Storage)(nil)

// Config is the bucket connection. BaseURL is where the app serves
// attachments, e.g. "/files".
type Config struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	ExpireDays int
	BaseURL    string
}

// Storage uploads attachments to the bucket. The URLs it hands out point at
// the app, which redirects each request to a freshly presigned GET URL, so a
// stored bill URL never expires.
type Storage struct {
	client  *minio.Client
	bucket  string
	expiry  time.Duration
	baseURL string
}

func New(cfg Config) (*Storage, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	days := cfg.ExpireDays
	if days <= 0 {
		days = 7
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "/files"
	}
	return &Storage{
		client:  client,
		bucket:  cfg.Bucket,
		expiry:  time.Duration(days) * 24 * time.Hour,
		baseURL: base,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// Put uploads the object and returns its stable app URL.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if size <= 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return s.objectURL(key), nil
}

func (s *Storage) objectURL(key string) string {
	return s.baseURL + "/" + (&url.URL{Path: key}).EscapedPath()
}

// ServeHTTP redirects to a presigned GET URL for the requested key. Mount it
// under BaseURL with http.StripPrefix.
func (s *Storage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	if key == "" {
		http.NotFound(w, r)
		return
	}
	u, err := s.client.PresignedGetObject(r.Context(), s.bucket, key, s.expiry, nil)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to generate presigned URL", "key", key, "error", err)
		http.Error(w, "attachment unavailable", http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// Delete removes an object.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
