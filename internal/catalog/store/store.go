package store

import (
	"context"
	"time"
)

// Snapshot is one cached copy of a project's data dictionary export, kept so
// repeated runs against the same project can skip the metadata fetch and so
// a post-run audit can show which dictionary a migration validated against.
type Snapshot struct {
	ProjectID  string
	Raw        []byte
	CapturedAt time.Time
}

// SnapshotStore persists dictionary snapshots.
//
// Error contract: Get returns sentinel.ErrNotFound (wrapped) when no snapshot
// exists for the project; infrastructure failures are returned wrapped with
// context.
type SnapshotStore interface {
	Put(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, projectID string) (Snapshot, error)
}
