// Package postgres stores bills in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/csg33k/billed/internal/domain"
	"github.com/csg33k/billed/internal/ports"
)

var _ ports.BillRepository = (*Repository)(nil)

type Repository struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and runs migrations.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	r := &Repository{pool: pool}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the pool.
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bills (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			amount INTEGER NOT NULL DEFAULT 0,
			date TEXT NOT NULL DEFAULT '',
			vat TEXT NOT NULL DEFAULT '',
			pct INTEGER NOT NULL DEFAULT 20,
			commentary TEXT NOT NULL DEFAULT '',
			file_url TEXT NOT NULL,
			file_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			comment_admin TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS bills_email_idx ON bills (email);`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

func (r *Repository) Add(ctx context.Context, b *domain.Bill) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bills (id, email, type, name, amount, date, vat, pct,
		                   commentary, file_url, file_name, status, comment_admin)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		b.ID, b.Email, b.Type, b.Name, b.Amount, b.Date, b.VAT, b.Pct,
		b.Commentary, b.FileURL, b.FileName, string(b.Status), b.CommentAdmin,
	)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, email string) ([]domain.Bill, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, type, name, amount, date, vat, pct,
		       commentary, file_url, file_name, status, comment_admin
		FROM bills WHERE email = $1 ORDER BY created_at`, email)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	bills, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Bill, error) {
		var b domain.Bill
		var status string
		err := row.Scan(
			&b.ID, &b.Email, &b.Type, &b.Name, &b.Amount, &b.Date, &b.VAT, &b.Pct,
			&b.Commentary, &b.FileURL, &b.FileName, &status, &b.CommentAdmin,
		)
		b.Status = domain.Status(status)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan bills: %w", err)
	}
	return bills, nil
}
