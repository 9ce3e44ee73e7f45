// Package source reads tabular input rows. Sources are forward-only with a
// known row count so runs can chunk and resume deterministically.
package source

import (
	"context"

	"redmig/internal/domain"
)

// RowSource yields source rows in file order. Next returns io.EOF after the
// last row.
type RowSource interface {
	Headers() []string
	Total() int
	Next(ctx context.Context) (domain.SourceRecord, error)
}
