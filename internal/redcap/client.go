// Package redcap is the transport boundary to the destination data-capture
// platform. The client speaks the platform's form-encoded API and classifies
// remote failures; retry policy belongs to the orchestrator, not here.
package redcap

import (
	"context"
	"fmt"

	"redmig/internal/domain"
)

// Confirmation is the destination's acknowledgement of one submission.
// Fields holds the values the destination reports after the write (read-back
// verification); the post-transfer validator compares them against what was
// submitted.
type Confirmation struct {
	Count  int
	Fields map[string]string
}

// RemoteError is a destination-side failure. Transient errors (timeouts,
// rate limiting, 5xx) are retried by the orchestrator; permanent ones
// (schema rejection, malformed payload) are terminal.
type RemoteError struct {
	Transient  bool
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("destination error (%s, status %d): %s", kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("destination error (%s): %s", kind, e.Message)
}

// ProjectInfo is the destination project description, used for connection
// checks and run logs.
type ProjectInfo struct {
	ProjectID    string `json:"project_id"`
	ProjectTitle string `json:"project_title"`
	Longitudinal int    `json:"is_longitudinal"`

	// Events and RepeatingForms come from separate API exports; the HTTP
	// client folds them in so callers get one project description.
	Events         []string `json:"-"`
	RepeatingForms []string `json:"-"`
}

// Client is the sole transport boundary the engine depends on.
type Client interface {
	// SubmitRecord imports one record's field values addressed by key.
	SubmitRecord(ctx context.Context, key domain.Key, values map[string]string) (*Confirmation, error)
	// RecordExists reports whether the destination already holds any data
	// for the key.
	RecordExists(ctx context.Context, key domain.Key) (bool, error)
	// ExportRecord returns the field values currently stored for the key.
	ExportRecord(ctx context.Context, key domain.Key) (map[string]string, error)
	// Dictionary exports the project metadata (data dictionary) as JSON.
	Dictionary(ctx context.Context) ([]byte, error)
	// ProjectInfo fetches the project description; used as a connection test.
	ProjectInfo(ctx context.Context) (ProjectInfo, error)
}
