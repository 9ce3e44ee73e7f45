// Package report aggregates run results into a reconciliation summary.
// Summaries carry counts, codes, and redacted messages only; field values
// never appear in a report.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"

	"redmig/internal/domain"
)

// RecordFailure is one terminally failed or skipped record, identified by
// its submission key.
type RecordFailure struct {
	RecordID  string           `json:"record_id"`
	Event     string           `json:"event,omitempty"`
	Instance  int              `json:"instance,omitempty"`
	Status    string           `json:"status"`
	Attempts  int              `json:"attempts,omitempty"`
	ErrorCode domain.IssueCode `json:"error_code,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// Summary is the reconciliation report for one run.
type Summary struct {
	RunID         uuid.UUID        `json:"run_id"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	Elapsed       time.Duration    `json:"elapsed_ns"`
	TotalRecords  int              `json:"total_records"`
	Confirmed     int              `json:"confirmed"`
	Failed        int              `json:"failed"`
	Skipped       int              `json:"skipped"`
	// Rejected counts skipped records that carry an error code: records
	// excluded by validation, as opposed to benign overwrite-behavior skips.
	Rejected      int              `json:"rejected,omitempty"`
	SuccessRate   float64          `json:"success_rate"`
	IssuesByCode  map[string]int   `json:"issues_by_code,omitempty"`
	Warnings      []domain.Issue   `json:"warnings,omitempty"`
	Failures      []RecordFailure  `json:"failures,omitempty"`
	CursorIndex   int              `json:"cursor_index"`
	Cancelled     bool             `json:"cancelled,omitempty"`
}

// Build folds outcomes and validation issues into a Summary.
func Build(runID uuid.UUID, started, finished time.Time, total int, outcomes []domain.Outcome, issues []domain.Issue, cursor domain.BatchCursor, cancelled bool) *Summary {
	s := &Summary{
		RunID:        runID,
		StartedAt:    started,
		FinishedAt:   finished,
		Elapsed:      finished.Sub(started),
		TotalRecords: total,
		IssuesByCode: make(map[string]int),
		CursorIndex:  cursor.LastCommittedIndex,
		Cancelled:    cancelled,
	}

	for _, is := range issues {
		if is.Code != "" {
			s.IssuesByCode[string(is.Code)]++
		}
		if is.Severity == domain.SeverityWarning {
			s.Warnings = append(s.Warnings, is)
		}
	}

	for _, out := range outcomes {
		switch out.Status {
		case domain.StatusConfirmed:
			s.Confirmed++
		case domain.StatusFailed:
			s.Failed++
		case domain.StatusSkipped:
			s.Skipped++
			if out.ErrorCode != "" {
				s.Rejected++
			}
		}
		if out.Status == domain.StatusFailed || out.Status == domain.StatusSkipped {
			s.Failures = append(s.Failures, RecordFailure{
				RecordID:  out.Key.RecordID,
				Event:     out.Key.Event,
				Instance:  out.Key.Instance,
				Status:    string(out.Status),
				Attempts:  out.Attempts,
				ErrorCode: out.ErrorCode,
				Message:   out.LastError,
			})
		}
	}

	attempted := s.Confirmed + s.Failed
	if attempted > 0 {
		s.SuccessRate = float64(s.Confirmed) / float64(attempted)
	}
	return s
}

// Clean reports whether the run ran to completion with no failed records and
// no records rejected by validation. Overwrite-behavior skips do not dirty a
// run; a cancelled run is never clean.
func (s *Summary) Clean() bool {
	return s.Failed == 0 && s.Rejected == 0 && !s.Cancelled
}

// WriteJSON emits the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteText emits a human-oriented rendition.
func (s *Summary) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	fmt.Fprintf(w, "  records:   %d total, %d confirmed, %d failed, %d skipped\n",
		s.TotalRecords, s.Confirmed, s.Failed, s.Skipped)
	if s.Rejected > 0 {
		fmt.Fprintf(w, "  rejected:  %d excluded by validation\n", s.Rejected)
	}
	fmt.Fprintf(w, "  success:   %.1f%%\n", s.SuccessRate*100)
	fmt.Fprintf(w, "  elapsed:   %s\n", s.Elapsed.Round(time.Millisecond))
	if s.Cancelled {
		fmt.Fprintf(w, "  cancelled: resumable from index %d\n", s.CursorIndex)
	}

	if len(s.IssuesByCode) > 0 {
		fmt.Fprintln(w, "  issues by code:")
		codes := make([]string, 0, len(s.IssuesByCode))
		for c := range s.IssuesByCode {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		for _, c := range codes {
			fmt.Fprintf(w, "    %-24s %d\n", c, s.IssuesByCode[c])
		}
	}

	for _, f := range s.Failures {
		fmt.Fprintf(w, "  %s record=%s", f.Status, f.RecordID)
		if f.Event != "" {
			fmt.Fprintf(w, " event=%s", f.Event)
		}
		if f.Instance > 1 {
			fmt.Fprintf(w, " instance=%d", f.Instance)
		}
		if f.Message != "" {
			fmt.Fprintf(w, ": %s", f.Message)
		}
		fmt.Fprintln(w)
	}
	return nil
}
