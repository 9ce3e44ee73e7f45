package domain

import "fmt"

// Severity classifies a validation issue. Errors exclude the record from
// transfer; warnings are advisory and pass through.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// IssueCode identifies the class of validation failure. Codes feed the
// reconciliation histogram, so they must stay stable across releases.
type IssueCode string

const (
	CodeMissingSourceField IssueCode = "missing_source_field"
	CodeUnknownChoice      IssueCode = "unknown_choice"
	CodeBadDate            IssueCode = "bad_date"
	CodeBadFormat          IssueCode = "bad_format"
	CodeRequiredMissing    IssueCode = "required_missing"
	CodeOutOfRange         IssueCode = "out_of_range"
	CodeNotNumeric         IssueCode = "not_numeric"
	CodeCalcError          IssueCode = "calc_error"
	CodeBranchingMismatch  IssueCode = "branching_mismatch"
	CodeDuplicateRecordID  IssueCode = "duplicate_record_id"
	CodeFieldGap           IssueCode = "field_gap"
	CodeReconcileMismatch  IssueCode = "reconcile_mismatch"
)

// Issue is one validation finding attached to a record, optionally scoped to
// a single field. Messages never contain PHI values; callers pass redacted
// text when the offending value is sensitive.
type Issue struct {
	RecordID string
	Field    string
	Severity Severity
	Code     IssueCode
	Message  string
}

func (i Issue) String() string {
	if i.Field != "" {
		return fmt.Sprintf("%s [%s] record=%s field=%s: %s", i.Severity, i.Code, i.RecordID, i.Field, i.Message)
	}
	return fmt.Sprintf("%s [%s] record=%s: %s", i.Severity, i.Code, i.RecordID, i.Message)
}

// HasErrors reports whether any issue in the slice is error severity.
func HasErrors(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}
