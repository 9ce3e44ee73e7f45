package store

import (
	"context"
	"fmt"
	"sync"

	"redmig/pkg/platform/sentinel"
)

// InMemorySnapshotStore holds dictionary snapshots in memory for tests/dev.
type InMemorySnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]Snapshot
}

// NewMemory constructs an empty in-memory snapshot store.
func NewMemory() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{snaps: make(map[string]Snapshot)}
}

func (s *InMemorySnapshotStore) Put(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.ProjectID] = snap
	return nil
}

func (s *InMemorySnapshotStore) Get(_ context.Context, projectID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[projectID]
	if !ok {
		return Snapshot{}, fmt.Errorf("dictionary snapshot for project %s: %w", projectID, sentinel.ErrNotFound)
	}
	return snap, nil
}
