// Package existence memoizes destination existence checks so skip/merge runs
// do not re-query the same (record, event, instance) tuple, and so a resumed
// run can reuse lookups from the interrupted one.
package existence

import (
	"context"
	"fmt"

	"redmig/internal/domain"
)

// Cache stores known existence facts. Lookup's second return reports whether
// the cache holds an answer at all.
type Cache interface {
	Lookup(ctx context.Context, key domain.Key) (exists bool, known bool, err error)
	Store(ctx context.Context, key domain.Key, exists bool) error
}

// cacheKey renders a tuple as a flat string key usable by any backend.
func cacheKey(key domain.Key) string {
	return fmt.Sprintf("exists:%s:%s:%d", key.RecordID, key.Event, key.Instance)
}
