package audit

import (
	"context"

	"github.com/google/uuid"
)

// Store persists audit events. Append-only; events are never updated or
// deleted by the engine.
type Store interface {
	Append(ctx context.Context, e Event) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]Event, error)
}
