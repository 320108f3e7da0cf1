package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firestoreadapter "github.com/csg33k/billed/internal/adapters/firestore"
	"github.com/csg33k/billed/internal/adapters/memory"
	minioadapter "github.com/csg33k/billed/internal/adapters/minio"
	"github.com/csg33k/billed/internal/adapters/pdf"
	pgadapter "github.com/csg33k/billed/internal/adapters/postgres"
	sqliteadapter "github.com/csg33k/billed/internal/adapters/sqlite"
	"github.com/csg33k/billed/internal/config"
	"github.com/csg33k/billed/internal/controllers"
	"github.com/csg33k/billed/internal/handlers"
	"github.com/csg33k/billed/internal/logging"
	"github.com/csg33k/billed/internal/metrics"
	"github.com/csg33k/billed/internal/ports"
	"github.com/csg33k/billed/internal/session"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openBills(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	storage, files, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	h, err := handlers.New(handlers.Config{
		Bills:        repo,
		Storage:      storage,
		Reporter:     pdf.Reporter{},
		Sessions:     session.NewManager(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.SecureCookie),
		Directory:    session.NewDirectory(cfg.Users),
		Metrics:      metrics.New(),
		Files:        files,
		SubmitMode:   controllers.SubmitMode(cfg.Bills.SubmitMode),
		WriteTimeout: cfg.Bills.WriteTimeout,
		ModalWidth:   cfg.Bills.ModalWidth,
		FormTTL:      cfg.Bills.FormTTL,
		MaxForms:     cfg.Bills.MaxForms,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Billed running", "url", "http://localhost"+cfg.Addr(),
			"db", cfg.DB.Driver, "storage", cfg.Storage.Driver, "submit_mode", cfg.Bills.SubmitMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	// Let optimistic bill writes land before the store is closed.
	h.Wait()
	return nil
}

func openBills(ctx context.Context, cfg *config.Config) (ports.BillRepository, func(), error) {
	switch cfg.DB.Driver {
	case "memory":
		return memory.NewRepository(), func() {}, nil
	case "sqlite":
		repo, err := sqliteadapter.New(cfg.DB.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		slog.Info("database", "path", cfg.DB.Path)
		return repo, func() { repo.Close() }, nil
	case "postgres":
		repo, err := pgadapter.New(ctx, cfg.DB.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return repo, repo.Close, nil
	case "firestore":
		repo, err := firestoreadapter.New(ctx, cfg.DB.FirestoreProject)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
}

// openStorage returns the attachment store and the handler serving its
// files under /files.
func openStorage(ctx context.Context, cfg *config.Config) (ports.FileStorage, http.Handler, error) {
	switch cfg.Storage.Driver {
	case "memory":
		s := memory.NewStorage("/files")
		return s, s, nil
	case "minio":
		m := cfg.Storage.Minio
		s, err := minioadapter.New(minioadapter.Config{
			Endpoint:   m.Endpoint,
			AccessKey:  m.AccessKey,
			SecretKey:  m.SecretKey,
			Bucket:     m.Bucket,
			Region:     m.Region,
			UseSSL:     m.UseSSL,
			ExpireDays: m.ExpireDays,
			BaseURL:    "/files",
		})
		if err != nil {
			return nil, nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
