package mapping

import (
	"log/slog"
	"strconv"
	"strings"

	"redmig/internal/catalog"
	"redmig/internal/domain"
	"redmig/internal/mapping/expr"
	"redmig/internal/transform"
)

// Interpreter turns source rows into candidate records under one mapping
// document. It is created per run; repeating-instance numbering is stateful
// across rows, so rows must be resolved in source order.
type Interpreter struct {
	doc      *Document
	cat      *catalog.Catalog
	asOfYear int
	logger   *slog.Logger

	// repeating is true when any mapped target belongs to a repeating
	// instrument, fixed at construction from the catalog.
	repeating bool

	// occurrences counts rows seen per (record, event) so repeating
	// instruments get increasing instance numbers.
	occurrences map[domain.Key]int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) { i.logger = logger }
}

// NewInterpreter builds an interpreter for one run. cat may be nil when the
// catalog is unavailable (validate-only against a raw document); repeating
// detection then defaults to non-repeating.
func NewInterpreter(doc *Document, cat *catalog.Catalog, asOfYear int, opts ...Option) *Interpreter {
	it := &Interpreter{
		doc:         doc,
		cat:         cat,
		asOfYear:    asOfYear,
		occurrences: make(map[domain.Key]int),
	}
	for _, opt := range opts {
		opt(it)
	}
	if cat != nil {
		for _, fm := range doc.Fields {
			if cat.Repeats(fm.TargetField) {
				it.repeating = true
				break
			}
		}
	}
	return it
}

// Resolve maps one source row into a candidate record. Issues carry error
// severity when a field could not be coerced; the caller decides whether the
// record still transfers (it does not, once any issue is an error). The
// returned candidate is always non-nil unless the row has no usable record id.
func (it *Interpreter) Resolve(row domain.SourceRecord, index int) (*domain.CandidateRecord, []domain.Issue) {
	var issues []domain.Issue

	recordID := ""
	for _, fm := range it.doc.Fields {
		if fm.TargetField == it.doc.RecordIDField {
			recordID = strings.TrimSpace(row[fm.SourceField])
			break
		}
	}
	if recordID == "" {
		issues = append(issues, domain.Issue{
			RecordID: rowLabel(index),
			Field:    it.doc.RecordIDField,
			Severity: domain.SeverityError,
			Code:     domain.CodeMissingSourceField,
			Message:  "source row has no record id value",
		})
		return nil, issues
	}

	rec := domain.NewCandidateRecord(recordID, it.doc.PHIFields)
	rec.Index = index
	rec.Event = it.resolveEvent(row)
	rec.Instance = it.nextInstance(rec)

	for _, fm := range it.doc.Fields {
		it.resolveField(fm, row, rec, &issues)
	}
	return rec, issues
}

// resolveEvent picks the longitudinal event for a row: the event column when
// present, else the document default. Both empty means non-longitudinal and
// the orchestrator submits to the canonical event.
func (it *Interpreter) resolveEvent(row domain.SourceRecord) string {
	if it.doc.EventField != "" {
		if v := strings.TrimSpace(row[it.doc.EventField]); v != "" {
			return v
		}
	}
	return it.doc.DefaultEvent
}

// nextInstance numbers repeated occurrences of the same record/event.
// Non-repeating instruments always get instance 1.
func (it *Interpreter) nextInstance(rec *domain.CandidateRecord) int {
	key := domain.Key{RecordID: rec.RecordID, Event: rec.Event}
	it.occurrences[key]++
	n := it.occurrences[key]
	if n == 1 {
		return 1
	}
	if it.repeating {
		return n
	}
	// Repeated rows for a non-repeating instrument collapse onto instance 1;
	// the validator flags the duplicate record id.
	return 1
}

func (it *Interpreter) resolveField(fm FieldMapping, row domain.SourceRecord, rec *domain.CandidateRecord, issues *[]domain.Issue) {
	raw, present := row[fm.SourceField]
	raw = strings.TrimSpace(raw)
	if fm.FieldType != domain.FieldCalculated && (!present || raw == "") {
		if fm.Default != nil {
			raw = *fm.Default
		} else if !present {
			*issues = append(*issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    fm.TargetField,
				Severity: domain.SeverityError,
				Code:     domain.CodeMissingSourceField,
				Message:  "source field " + fm.SourceField + " absent from row",
			})
			return
		}
	}

	switch fm.FieldType {
	case domain.FieldDate:
		iso, err := transform.ParseDate(raw, fm.dateLayout)
		if err != nil {
			*issues = append(*issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    fm.TargetField,
				Severity: domain.SeverityError,
				Code:     domain.CodeBadDate,
				Message:  it.safeValueMessage(fm.TargetField, raw, "unparsable date"),
			})
			return
		}
		rec.Set(fm.TargetField, iso)

	case domain.FieldRadio, domain.FieldDropdown:
		if raw == "" {
			rec.Set(fm.TargetField, "")
			return
		}
		code, err := transform.ResolveChoice(raw, fm.Options)
		if err != nil {
			*issues = append(*issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    fm.TargetField,
				Severity: domain.SeverityError,
				Code:     domain.CodeUnknownChoice,
				Message:  it.safeValueMessage(fm.TargetField, raw, "value matches no choice code or label"),
			})
			return
		}
		rec.Set(fm.TargetField, code)

	case domain.FieldCheckbox:
		selected, err := transform.EncodeCheckbox(raw, fm.Options, fm.OtherCode)
		if err != nil {
			*issues = append(*issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    fm.TargetField,
				Severity: domain.SeverityError,
				Code:     domain.CodeUnknownChoice,
				Message:  it.safeValueMessage(fm.TargetField, raw, "checkbox token matches no choice code or label"),
			})
			return
		}
		on := make(map[string]struct{}, len(selected))
		for _, code := range selected {
			on[code] = struct{}{}
		}
		for code := range fm.Options {
			col := transform.CheckboxColumn(fm.TargetField, code)
			if _, ok := on[code]; ok {
				rec.Set(col, "1")
			} else {
				rec.Set(col, "0")
			}
		}

	case domain.FieldCalculated:
		out, err := fm.program.Eval(expr.Env{
			Field:    rec.Get,
			AsOfYear: it.asOfYear,
		})
		if err != nil {
			*issues = append(*issues, domain.Issue{
				RecordID: rec.RecordID,
				Field:    fm.TargetField,
				Severity: domain.SeverityError,
				Code:     domain.CodeCalcError,
				Message:  "formula evaluation failed: " + err.Error(),
			})
			return
		}
		rec.Set(fm.TargetField, out)

	default: // text, file
		rec.Set(fm.TargetField, raw)
	}
}

// safeValueMessage builds an issue message that includes the offending value
// only for non-PHI fields; sensitive values are withheld entirely.
func (it *Interpreter) safeValueMessage(target, value, reason string) string {
	if it.doc.IsPHI(target) {
		return reason + " (value withheld: PHI field)"
	}
	return reason + ": " + value
}

func rowLabel(index int) string {
	return "row_" + strconv.Itoa(index)
}
