package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zombor/billed/internal/bill"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS bills (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	type TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL,
	amount NUMERIC(12,2) NOT NULL,
	vat NUMERIC(12,2) NOT NULL DEFAULT 0,
	pct INTEGER NOT NULL,
	commentary TEXT NOT NULL DEFAULT '',
	comment_admin TEXT NOT NULL DEFAULT '',
	file_name TEXT NOT NULL,
	file_key TEXT NOT NULL,
	content_type TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bills_email ON bills(email);`

const billColumns = `id, email, type, name, date, amount, vat, pct, commentary, comment_admin, file_name, file_key, content_type, status, created_at, updated_at`

// PostgresDB implements the DB interface on PostgreSQL
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB connects to dsn and creates the bills table if needed
func NewPostgresDB(ctx context.Context, dsn string) (*PostgresDB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresDB{pool: pool}, nil
}

// SaveBill upserts a bill
func (p *PostgresDB) SaveBill(ctx context.Context, b *bill.Bill) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO bills (`+billColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			name = EXCLUDED.name,
			date = EXCLUDED.date,
			amount = EXCLUDED.amount,
			vat = EXCLUDED.vat,
			pct = EXCLUDED.pct,
			commentary = EXCLUDED.commentary,
			comment_admin = EXCLUDED.comment_admin,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`, b.ID, b.Email, b.Type, b.Name, b.Date, b.Amount, b.VAT, b.Pct, b.Commentary, b.CommentAdmin,
		b.FileName, b.FileKey, b.ContentType, string(b.Status), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert bill: %w", err)
	}
	return nil
}

// GetBill returns a bill by id
func (p *PostgresDB) GetBill(ctx context.Context, id string) (*bill.Bill, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1`, id)
	b, err := scanBill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("select bill: %w", err)
	}
	return b, nil
}

// ListBills returns bills ordered by creation time
func (p *PostgresDB) ListBills(ctx context.Context, email string) ([]*bill.Bill, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE $1 = '' OR email = $1
		ORDER BY created_at`, email)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	bills := make([]*bill.Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return bills, nil
}

// DeleteBill removes a bill
func (p *PostgresDB) DeleteBill(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM bills WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close releases the pool
func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

func scanBill(row pgx.Row) (*bill.Bill, error) {
	var (
		b      bill.Bill
		status string
	)
	err := row.Scan(&b.ID, &b.Email, &b.Type, &b.Name, &b.Date, &b.Amount, &b.VAT, &b.Pct, &b.Commentary, &b.CommentAdmin,
		&b.FileName, &b.FileKey, &b.ContentType, &status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = bill.Status(status)
	return &b, nil
}
