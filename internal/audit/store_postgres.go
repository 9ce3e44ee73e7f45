package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore persists audit events in PostgreSQL so the trail survives
// the migrating process.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the backing table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migration_audit (
			id          UUID PRIMARY KEY,
			run_id      UUID NOT NULL,
			ts          TIMESTAMPTZ NOT NULL,
			kind        TEXT NOT NULL,
			record_id   TEXT NOT NULL DEFAULT '',
			event_name  TEXT NOT NULL DEFAULT '',
			instance    INT NOT NULL DEFAULT 0,
			status      TEXT NOT NULL DEFAULT '',
			code        TEXT NOT NULL DEFAULT '',
			message     TEXT NOT NULL DEFAULT '',
			batch_index INT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS migration_audit_run_idx ON migration_audit (run_id, ts)`)
	if err != nil {
		return fmt.Errorf("create migration_audit table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO migration_audit
			(id, run_id, ts, kind, record_id, event_name, instance, status, code, message, batch_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.RunID, e.Timestamp, e.Kind, e.RecordID, e.Event, e.Instance,
		e.Status, e.Code, e.Message, e.BatchIndex)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRun(ctx context.Context, runID uuid.UUID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, ts, kind, record_id, event_name, instance, status, code, message, batch_index
		FROM migration_audit WHERE run_id = $1 ORDER BY ts`, runID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RunID, &e.Timestamp, &e.Kind, &e.RecordID,
			&e.Event, &e.Instance, &e.Status, &e.Code, &e.Message, &e.BatchIndex); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
