package domain

// OutcomeStatus is the terminal (or in-flight) state of one submission unit.
type OutcomeStatus string

const (
	StatusPending   OutcomeStatus = "pending"
	StatusSubmitted OutcomeStatus = "submitted"
	StatusConfirmed OutcomeStatus = "confirmed"
	StatusFailed    OutcomeStatus = "failed"
	StatusSkipped   OutcomeStatus = "skipped"
)

// Terminal reports whether the status will not change for the rest of the run.
func (s OutcomeStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusSkipped
}

// Outcome records what happened to one (record, event, instance) tuple.
// Exactly one Outcome exists per Key within a run.
type Outcome struct {
	Key       Key
	Status    OutcomeStatus
	Attempts  int
	ErrorCode IssueCode
	// LastError holds the final remote or validation message. It is derived
	// from error text, never from field values, so it is PHI-safe.
	LastError string
}
