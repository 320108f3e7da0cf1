package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/csg33k/billed/internal/domain"
	"github.com/csg33k/billed/internal/ports"
)

var _ ports.BillRepository = (*Repository)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS bills (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	type          TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	amount        INTEGER NOT NULL DEFAULT 0,
	date          TEXT NOT NULL DEFAULT '',
	vat           TEXT NOT NULL DEFAULT '',
	pct           INTEGER NOT NULL DEFAULT 20,
	commentary    TEXT NOT NULL DEFAULT '',
	file_url      TEXT NOT NULL,
	file_name     TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	comment_admin TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bills_email ON bills(email);
`

type Repository struct {
	db *sql.DB
}

// New opens the SQLite database at dsn and creates the bills table when
// missing.
func New(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Add(ctx context.Context, b *domain.Bill) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bills (
			id, email, type, name, amount, date, vat, pct,
			commentary, file_url, file_name, status, comment_admin, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.Email, b.Type, b.Name, b.Amount, b.Date, b.VAT, b.Pct,
		b.Commentary, b.FileURL, b.FileName, string(b.Status), b.CommentAdmin,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, email string) ([]domain.Bill, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, type, name, amount, date, vat, pct,
		       commentary, file_url, file_name, status, comment_admin
		FROM bills WHERE email=? ORDER BY created_at`, email)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()
	var list []domain.Bill
	for rows.Next() {
		var b domain.Bill
		var status string
		if err := rows.Scan(
			&b.ID, &b.Email, &b.Type, &b.Name, &b.Amount, &b.Date, &b.VAT, &b.Pct,
			&b.Commentary, &b.FileURL, &b.FileName, &status, &b.CommentAdmin,
		); err != nil {
			return nil, err
		}
		b.Status = domain.Status(status)
		list = append(list, b)
	}
	return list, rows.Err()
}
