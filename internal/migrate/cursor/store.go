// Package cursor persists the resume point of a migration run. The cursor is
// written after every committed batch, so a crash loses at most the batch in
// flight.
package cursor

import (
	"context"

	"redmig/internal/domain"
)

// Store persists and recalls a run's BatchCursor.
//
// Error contract: Load returns sentinel.ErrNotFound (wrapped) when no cursor
// has been saved yet; Save failures are infrastructure errors and abort the
// run rather than risk silent re-submission.
type Store interface {
	Load(ctx context.Context) (domain.BatchCursor, error)
	Save(ctx context.Context, c domain.BatchCursor) error
}
