package cursor

import (
	"context"
	"fmt"
	"sync"

	"redmig/internal/domain"
	"redmig/pkg/platform/sentinel"
)

// InMemoryStore holds the cursor in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.Mutex
	cursor domain.BatchCursor
	saved  bool
}

// NewMemory constructs an empty in-memory cursor store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (domain.BatchCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return domain.BatchCursor{}, fmt.Errorf("cursor: %w", sentinel.ErrNotFound)
	}
	return s.cursor, nil
}

func (s *InMemoryStore) Save(_ context.Context, c domain.BatchCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = c
	s.saved = true
	return nil
}
