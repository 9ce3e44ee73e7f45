package audit

import (
	"time"

	"github.com/google/uuid"

	"redmig/internal/domain"
)

// Kind names the class of migration event being recorded.
type Kind string

const (
	KindRunStarted     Kind = "run_started"
	KindRunFinished    Kind = "run_finished"
	KindBatchCommitted Kind = "batch_committed"
	KindRecordOutcome  Kind = "record_outcome"
)

// Event is one append-only audit entry for a migration run. Events carry
// record identifiers, statuses, and error codes only; field values never
// enter the audit trail.
type Event struct {
	ID        uuid.UUID
	RunID     uuid.UUID
	Timestamp time.Time
	Kind      Kind

	RecordID string
	Event    string
	Instance int
	Status   domain.OutcomeStatus
	Code     domain.IssueCode
	Message  string

	// BatchIndex is set on batch_committed events.
	BatchIndex int
}
