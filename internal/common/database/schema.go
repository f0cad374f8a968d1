package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements build the local ledger of submissions. The staff backend
// stays the system of record; these rows let operators trace what the
// workers sent and received.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id                 UUID PRIMARY KEY,
		staff_application_id TEXT NOT NULL UNIQUE,
		status             TEXT NOT NULL,
		duplicate          BOOLEAN NOT NULL DEFAULT FALSE,
		applicant_email    TEXT,
		requested_amount   NUMERIC(14,2),
		category           TEXT,
		country            TEXT,
		payload            JSONB NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS application_documents (
		id                 UUID PRIMARY KEY,
		staff_application_id TEXT NOT NULL,
		staff_document_id  TEXT,
		document_type      TEXT NOT NULL,
		file_name          TEXT NOT NULL,
		size_bytes         BIGINT NOT NULL,
		checksum_sha256    TEXT NOT NULL,
		validation_status  TEXT NOT NULL,
		storage            TEXT,
		fallback           BOOLEAN NOT NULL DEFAULT FALSE,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_application_documents_app
		ON application_documents (staff_application_id)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id          BIGSERIAL PRIMARY KEY,
		entity_id   TEXT NOT NULL,
		action      TEXT NOT NULL,
		details     JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema runs the idempotent DDL in one transaction.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}

// AuditEntry is one row of audit_log.
type AuditEntry struct {
	EntityID string
	Action   string
	Details  []byte // JSON
}

// WriteAudit appends to audit_log. Execer is satisfied by *sql.DB and *sql.Tx.
func WriteAudit(ctx context.Context, db Execer, entry AuditEntry) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO audit_log (entity_id, action, details) VALUES ($1, $2, $3)`,
		entry.EntityID, entry.Action, entry.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Execer is the subset of *sql.DB and *sql.Tx used for writes.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
