package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"redmig/internal/domain"
	derrors "redmig/pkg/domain-errors"
)

// CSVSource reads a comma-separated file with a header row. The whole file
// is parsed up front: resume needs a stable Total before the first row is
// handed out, and research extracts are small enough to hold.
type CSVSource struct {
	headers []string
	rows    [][]string
	pos     int
}

// OpenCSV reads and parses the file at path.
func OpenCSV(path string) (*CSVSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	return ParseCSV(raw)
}

// ParseCSV parses raw CSV bytes. The first row is the header; headers are
// trimmed and must be unique and non-empty.
func ParseCSV(raw []byte) (*CSVSource, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.TrimLeadingSpace = true

	all, err := r.ReadAll()
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInvalidInput, "malformed csv")
	}
	if len(all) == 0 {
		return nil, derrors.New(derrors.CodeInvalidInput, "source file has no header row")
	}

	headers := all[0]
	seen := make(map[string]struct{}, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, derrors.Newf(derrors.CodeInvalidInput, "empty header in column %d", i+1)
		}
		if _, dup := seen[h]; dup {
			return nil, derrors.Newf(derrors.CodeInvalidInput, "duplicate header %q", h)
		}
		seen[h] = struct{}{}
		headers[i] = h
	}

	return &CSVSource{headers: headers, rows: all[1:]}, nil
}

func (s *CSVSource) Headers() []string { return s.headers }

func (s *CSVSource) Total() int { return len(s.rows) }

func (s *CSVSource) Next(ctx context.Context) (domain.SourceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++

	rec := make(domain.SourceRecord, len(s.headers))
	for i, h := range s.headers {
		if i < len(row) {
			rec[h] = row[i]
		} else {
			rec[h] = ""
		}
	}
	return rec, nil
}
