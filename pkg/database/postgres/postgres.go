package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type ConnectionInfo struct {
	Host     string
	Port     int
	Username string
	DBName   string
	SSLMode  string
	Password string
}

func (info ConnectionInfo) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s password=%s",
		info.Host,
		info.Port,
		info.Username,
		info.DBName,
		info.SSLMode,
		info.Password,
	)
}

// NewPostgresConnection opens a pgx-backed *sql.DB. The pgx stdlib driver
// must be registered by the caller's imports.
func NewPostgresConnection(ctx context.Context, info ConnectionInfo) (*sql.DB, error) {
	db, err := sql.Open("pgx", info.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS invoices (
		invoice_no             TEXT PRIMARY KEY,
		status                 TEXT NOT NULL CHECK (status IN ('PARTIAL', 'COMPLETED')),
		fields                 JSONB NOT NULL DEFAULT '{}'::jsonb,
		documents              JSONB NOT NULL DEFAULT '{}'::jsonb,
		confidence             JSONB NOT NULL DEFAULT '{}'::jsonb,
		invoice_amount         NUMERIC NOT NULL DEFAULT 0,
		lr_weight              NUMERIC NOT NULL DEFAULT 0,
		site_weight            NUMERIC NOT NULL DEFAULT 0,
		weight_difference      NUMERIC,
		weight_loss_percentage NUMERIC,
		deduction_amount       NUMERIC,
		final_bill_amount      NUMERIC,
		variance_class         TEXT NOT NULL DEFAULT '',
		version                BIGINT NOT NULL DEFAULT 0,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_payments (
		id           UUID PRIMARY KEY,
		seq          BIGSERIAL,
		invoice_no   TEXT NOT NULL REFERENCES invoices (invoice_no) ON DELETE CASCADE,
		amount       NUMERIC NOT NULL CHECK (amount > 0),
		payment_date DATE NOT NULL,
		payment_mode TEXT NOT NULL,
		reference_no TEXT NOT NULL DEFAULT '',
		remarks      TEXT NOT NULL DEFAULT '',
		recorded_by  TEXT NOT NULL DEFAULT '',
		recorded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS invoice_payments_invoice_no_seq_idx
		ON invoice_payments (invoice_no, seq)`,
	`CREATE INDEX IF NOT EXISTS invoices_status_idx ON invoices (status)`,
	`ALTER TABLE invoices ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 0`,
	`CREATE TABLE IF NOT EXISTS operator_tokens (
		id           BIGSERIAL PRIMARY KEY,
		operator     TEXT NOT NULL,
		token        TEXT NOT NULL UNIQUE,
		expires_at   TIMESTAMPTZ,
		last_used_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the invoice tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return tx.Commit()
}
