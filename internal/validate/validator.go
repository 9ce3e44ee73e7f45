// Package validate classifies candidate records before and after transfer.
// The validator never mutates a candidate; it only attaches issues. Error
// severity excludes a record from transfer, warnings ride along.
package validate

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"redmig/internal/catalog"
	"redmig/internal/domain"
	"redmig/internal/mapping"
	"redmig/internal/phi"
)

const isoDate = "2006-01-02"

// Validator applies the mapping document's validation rules plus the
// catalog's branching logic. Duplicate-key detection is stateful across one
// run, so records must pass through a single validator in source order.
type Validator struct {
	rules  mapping.ValidationRules
	cat    *catalog.Catalog
	logger *slog.Logger

	seen map[domain.Key]struct{}
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// New constructs a validator for one run. cat may be nil; branching checks
// are then skipped.
func New(rules mapping.ValidationRules, cat *catalog.Catalog, opts ...Option) *Validator {
	v := &Validator{
		rules: rules,
		cat:   cat,
		seen:  make(map[domain.Key]struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Pre runs all structural and domain checks against a mapped candidate.
func (v *Validator) Pre(rec *domain.CandidateRecord) []domain.Issue {
	var issues []domain.Issue
	issues = append(issues, v.checkDuplicate(rec)...)
	issues = append(issues, v.checkRequired(rec)...)
	issues = append(issues, v.checkFormats(rec)...)
	issues = append(issues, v.checkDateRanges(rec)...)
	issues = append(issues, v.checkNumericRanges(rec)...)
	issues = append(issues, v.checkBranching(rec)...)
	return issues
}

func (v *Validator) checkDuplicate(rec *domain.CandidateRecord) []domain.Issue {
	key := rec.Key()
	if _, dup := v.seen[key]; dup {
		return []domain.Issue{{
			RecordID: rec.RecordID,
			Severity: domain.SeverityError,
			Code:     domain.CodeDuplicateRecordID,
			Message:  fmt.Sprintf("duplicate record id for event %q instance %d", key.Event, key.Instance),
		}}
	}
	v.seen[key] = struct{}{}
	return nil
}

func (v *Validator) checkRequired(rec *domain.CandidateRecord) []domain.Issue {
	var issues []domain.Issue
	for _, field := range v.rules.RequiredFields {
		val, ok := rec.Get(field)
		if !ok || strings.TrimSpace(val) == "" {
			issues = append(issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    field,
				Severity: domain.SeverityError,
				Code:     domain.CodeRequiredMissing,
				Message:  "required field is missing or empty",
			})
		}
	}
	return issues
}

func (v *Validator) checkFormats(rec *domain.CandidateRecord) []domain.Issue {
	var issues []domain.Issue
	for field, format := range v.rules.FieldFormats {
		val, ok := rec.Get(field)
		if !ok || val == "" {
			continue
		}
		valid := true
		switch format {
		case "date":
			_, err := time.Parse(isoDate, val)
			valid = err == nil
		case "email":
			at := strings.IndexByte(val, '@')
			valid = at > 0 && strings.Contains(val[at+1:], ".")
		case "phone":
			digits := 0
			for _, r := range val {
				if r >= '0' && r <= '9' {
					digits++
				}
			}
			valid = digits >= 10
		}
		if !valid {
			issues = append(issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    field,
				Severity: domain.SeverityError,
				Code:     domain.CodeBadFormat,
				Message:  fmt.Sprintf("value is not a valid %s: %s", format, v.safeValue(rec, field, val)),
			})
		}
	}
	return issues
}

func (v *Validator) checkDateRanges(rec *domain.CandidateRecord) []domain.Issue {
	var issues []domain.Issue
	for field, rule := range v.rules.DateRange {
		val, ok := rec.Get(field)
		if !ok || val == "" {
			continue
		}
		d, err := time.Parse(isoDate, val)
		if err != nil {
			issues = append(issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    field,
				Severity: domain.SeverityError,
				Code:     domain.CodeBadDate,
				Message:  "value under a date_range rule is not a calendar date: " + v.safeValue(rec, field, val),
			})
			continue
		}
		if rule.Min != "" {
			if min, err := time.Parse(isoDate, rule.Min); err == nil && d.Before(min) {
				issues = append(issues, domain.Issue{
					RecordID: rec.RecordID,
					Field:    field,
					Severity: domain.SeverityError,
					Code:     domain.CodeOutOfRange,
					Message:  fmt.Sprintf("date %s is before minimum %s", v.safeValue(rec, field, val), rule.Min),
				})
			}
		}
		if rule.Max != "" {
			if max, err := time.Parse(isoDate, rule.Max); err == nil && d.After(max) {
				issues = append(issues, domain.Issue{
					RecordID: rec.RecordID,
					Field:    field,
					Severity: domain.SeverityError,
					Code:     domain.CodeOutOfRange,
					Message:  fmt.Sprintf("date %s is after maximum %s", v.safeValue(rec, field, val), rule.Max),
				})
			}
		}
	}
	return issues
}

func (v *Validator) checkNumericRanges(rec *domain.CandidateRecord) []domain.Issue {
	var issues []domain.Issue
	for field, rule := range v.rules.NumericRange {
		val, ok := rec.Get(field)
		if !ok || val == "" {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			issues = append(issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    field,
				Severity: domain.SeverityError,
				Code:     domain.CodeNotNumeric,
				Message:  "value under a numeric_range rule is not numeric: " + v.safeValue(rec, field, val),
			})
			continue
		}
		if rule.Min != "" {
			if min, err := strconv.ParseFloat(rule.Min, 64); err == nil && n < min {
				issues = append(issues, domain.Issue{
					RecordID: rec.RecordID,
					Field:    field,
					Severity: domain.SeverityError,
					Code:     domain.CodeOutOfRange,
					Message:  fmt.Sprintf("value %v is below minimum %s", n, rule.Min),
				})
			}
		}
		if rule.Max != "" {
			if max, err := strconv.ParseFloat(rule.Max, 64); err == nil && n > max {
				issues = append(issues, domain.Issue{
					RecordID: rec.RecordID,
					Field:    field,
					Severity: domain.SeverityError,
					Code:     domain.CodeOutOfRange,
					Message:  fmt.Sprintf("value %v is above maximum %s", n, rule.Max),
				})
			}
		}
	}
	return issues
}

// checkBranching flags fields whose presence disagrees with their branching
// condition. Mismatches are warnings: legacy exports routinely carry values
// for hidden fields and a reviewer decides whether that matters.
func (v *Validator) checkBranching(rec *domain.CandidateRecord) []domain.Issue {
	if v.cat == nil {
		return nil
	}
	var issues []domain.Issue
	for _, field := range rec.FieldNames() {
		def, ok := v.cat.Field(field)
		if !ok || def.Branching == nil {
			continue
		}
		visible := def.Branching.Eval(rec.Get)
		val, _ := rec.Get(field)
		switch {
		case !visible && strings.TrimSpace(val) != "":
			issues = append(issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    field,
				Severity: domain.SeverityWarning,
				Code:     domain.CodeBranchingMismatch,
				Message:  "field has a value but its branching condition is false",
			})
		case visible && def.Required && strings.TrimSpace(val) == "":
			issues = append(issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    field,
				Severity: domain.SeverityWarning,
				Code:     domain.CodeBranchingMismatch,
				Message:  "branching condition is true but the required field is empty",
			})
		}
	}
	return issues
}

// Post compares the destination's acknowledged values against what was
// submitted. Any difference is an error: it indicates corruption or a
// partial write, surfaced for reconciliation rather than rolled back.
func (v *Validator) Post(rec *domain.CandidateRecord, acknowledged map[string]string) []domain.Issue {
	var issues []domain.Issue
	for _, field := range rec.FieldNames() {
		want, _ := rec.Get(field)
		got, ok := acknowledged[field]
		if !ok && want == "" {
			continue
		}
		if got != want {
			issues = append(issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    field,
				Severity: domain.SeverityError,
				Code:     domain.CodeReconcileMismatch,
				Message: fmt.Sprintf("destination acknowledged %s, submitted %s",
					v.safeValue(rec, field, got), v.safeValue(rec, field, want)),
			})
		}
	}
	return issues
}

// Consistency flags fields that appear in some records but not others, a
// frequent sign of a ragged legacy export. Advisory only.
func Consistency(records []*domain.CandidateRecord) []domain.Issue {
	all := make(map[string]struct{})
	for _, rec := range records {
		for _, f := range rec.FieldNames() {
			all[f] = struct{}{}
		}
	}
	var issues []domain.Issue
	for _, rec := range records {
		var missing []string
		for f := range all {
			if _, ok := rec.Get(f); !ok {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			issues = append(issues, domain.Issue{
				RecordID: rec.RecordID,
				Severity: domain.SeverityWarning,
				Code:     domain.CodeFieldGap,
				Message:  fmt.Sprintf("%d fields present in other records are missing here", len(missing)),
			})
		}
	}
	return issues
}

// safeValue renders a value for an issue message, masking PHI fields.
func (v *Validator) safeValue(rec *domain.CandidateRecord, field, value string) string {
	if rec.IsPHI(field) {
		return phi.Redact(value)
	}
	return value
}
