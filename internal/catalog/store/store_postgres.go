package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"redmig/pkg/platform/sentinel"
)

// PostgresSnapshotStore persists dictionary snapshots in PostgreSQL so
// snapshots survive across runs and hosts.
type PostgresSnapshotStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed snapshot store.
func NewPostgres(db *sql.DB) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{db: db}
}

// Migrate creates the backing table when it does not exist yet.
func (s *PostgresSnapshotStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dictionary_snapshots (
			project_id  TEXT PRIMARY KEY,
			raw         BYTEA NOT NULL,
			captured_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create dictionary_snapshots table: %w", err)
	}
	return nil
}

func (s *PostgresSnapshotStore) Put(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dictionary_snapshots (project_id, raw, captured_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id) DO UPDATE
		SET raw = EXCLUDED.raw, captured_at = EXCLUDED.captured_at`,
		snap.ProjectID, snap.Raw, snap.CapturedAt)
	if err != nil {
		return fmt.Errorf("upsert dictionary snapshot: %w", err)
	}
	return nil
}

func (s *PostgresSnapshotStore) Get(ctx context.Context, projectID string) (Snapshot, error) {
	snap := Snapshot{ProjectID: projectID}
	err := s.db.QueryRowContext(ctx, `
		SELECT raw, captured_at FROM dictionary_snapshots WHERE project_id = $1`,
		projectID).Scan(&snap.Raw, &snap.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("dictionary snapshot for project %s: %w", projectID, sentinel.ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("query dictionary snapshot: %w", err)
	}
	return snap, nil
}
