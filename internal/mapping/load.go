package mapping

import (
	"encoding/json"

	"redmig/internal/domain"
	"redmig/internal/mapping/expr"
	"redmig/internal/transform"
	derrors "redmig/pkg/domain-errors"
)

// Load parses and structurally validates a mapping document. Everything that
// can fail per-document fails here, before any record is touched: unknown
// field types, duplicate targets, a record_id_field without a mapping entry,
// malformed date formats, and formulas that reference undeclared or
// later-declared fields.
func Load(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInvalidInput, "mapping document is not valid JSON")
	}

	switch doc.SourceType {
	case SourceCSV, SourceExcel, SourceDB:
	case "":
		return nil, derrors.New(derrors.CodeInvalidInput, "mapping document missing source_type")
	default:
		return nil, derrors.Newf(derrors.CodeInvalidInput, "unknown source_type %q", doc.SourceType)
	}
	if doc.RecordIDField == "" {
		return nil, derrors.New(derrors.CodeInvalidInput, "mapping document missing record_id_field")
	}
	if len(doc.Fields) == 0 {
		return nil, derrors.New(derrors.CodeInvalidInput, "mapping document declares no fields")
	}
	if doc.Settings.BatchSize <= 0 {
		return nil, derrors.New(derrors.CodeInvalidInput, "migration_settings.batch_size must be positive")
	}
	switch doc.Settings.OverwriteBehavior {
	case "":
		doc.Settings.OverwriteBehavior = OverwriteAlways
	case OverwriteAlways, OverwriteSkip, OverwriteMerge:
	default:
		return nil, derrors.Newf(derrors.CodeInvalidInput, "unknown overwrite_behavior %q", doc.Settings.OverwriteBehavior)
	}

	// Declared order encodes the dependency contract: a calculated field may
	// only reference targets declared before it.
	declared := make(map[string]int, len(doc.Fields))
	recordIDMapped := false
	for i := range doc.Fields {
		fm := &doc.Fields[i]
		if fm.TargetField == "" {
			return nil, derrors.Newf(derrors.CodeInvalidInput, "field %d has no target_field", i)
		}
		if _, dup := declared[fm.TargetField]; dup {
			return nil, derrors.Newf(derrors.CodeInvalidInput, "duplicate target_field %q", fm.TargetField)
		}
		if !fm.FieldType.Valid() {
			return nil, derrors.Newf(derrors.CodeInvalidInput, "field %q has unknown field_type %q", fm.TargetField, fm.FieldType)
		}
		if fm.TargetField == doc.RecordIDField {
			recordIDMapped = true
		}

		switch fm.FieldType {
		case domain.FieldCalculated:
			if fm.Formula == "" {
				return nil, derrors.Newf(derrors.CodeInvalidInput, "calculated field %q has no formula", fm.TargetField)
			}
			prog, err := expr.Parse(fm.Formula)
			if err != nil {
				return nil, derrors.Wrap(err, derrors.CodeInvalidInput, "field "+fm.TargetField)
			}
			for _, ref := range prog.Fields() {
				if _, ok := declared[ref]; !ok {
					return nil, derrors.Newf(derrors.CodeInvalidInput,
						"calculated field %q references %q, which is not declared earlier in the document", fm.TargetField, ref)
				}
			}
			fm.program = prog
		case domain.FieldDate:
			if fm.DateFormat != "" {
				layout, err := transform.DateLayout(fm.DateFormat)
				if err != nil {
					return nil, derrors.Wrap(err, derrors.CodeInvalidInput, "field "+fm.TargetField)
				}
				fm.dateLayout = layout
			}
		case domain.FieldRadio, domain.FieldDropdown, domain.FieldCheckbox:
			if len(fm.Options) == 0 {
				return nil, derrors.Newf(derrors.CodeInvalidInput, "choice field %q has no options", fm.TargetField)
			}
			if fm.OtherCode != "" {
				if _, ok := fm.Options[fm.OtherCode]; !ok {
					return nil, derrors.Newf(derrors.CodeInvalidInput, "field %q other_code %q is not an option code", fm.TargetField, fm.OtherCode)
				}
			}
		default:
			if fm.SourceField == "" {
				return nil, derrors.Newf(derrors.CodeInvalidInput, "field %q has no source_field", fm.TargetField)
			}
		}
		if fm.FieldType != domain.FieldCalculated && fm.SourceField == "" {
			return nil, derrors.Newf(derrors.CodeInvalidInput, "field %q has no source_field", fm.TargetField)
		}

		declared[fm.TargetField] = i
	}
	if !recordIDMapped {
		return nil, derrors.Newf(derrors.CodeInvalidInput,
			"record_id_field %q has no matching field mapping", doc.RecordIDField)
	}

	doc.phiSet = make(map[string]struct{}, len(doc.PHIFields))
	for _, f := range doc.PHIFields {
		doc.phiSet[f] = struct{}{}
	}
	return &doc, nil
}
