package source

import (
	"context"
	"io"

	"redmig/internal/domain"
)

// MemorySource serves rows from a slice. Used by tests and by callers that
// already have rows in hand.
type MemorySource struct {
	headers []string
	rows    []domain.SourceRecord
	pos     int
}

func NewMemorySource(headers []string, rows []domain.SourceRecord) *MemorySource {
	return &MemorySource{headers: headers, rows: rows}
}

func (s *MemorySource) Headers() []string { return s.headers }

func (s *MemorySource) Total() int { return len(s.rows) }

func (s *MemorySource) Next(ctx context.Context) (domain.SourceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	rec := s.rows[s.pos]
	s.pos++
	return rec, nil
}
