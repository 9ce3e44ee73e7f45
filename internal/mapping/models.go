package mapping

import (
	"redmig/internal/domain"
	"redmig/internal/mapping/expr"
)

// FieldMapping declares how one source column becomes one destination field.
type FieldMapping struct {
	SourceField string           `json:"source_field"`
	TargetField string           `json:"target_field"`
	FieldType   domain.FieldType `json:"field_type"`
	// DateFormat is a strptime-style format for date fields; empty falls back
	// to the common layouts.
	DateFormat string `json:"date_format,omitempty"`
	// Options maps destination choice codes to labels for radio/dropdown/
	// checkbox fields. Codes are authoritative; labels are descriptive only.
	Options map[string]string `json:"options,omitempty"`
	// OtherCode, when set, absorbs unrecognized checkbox tokens instead of
	// rejecting the record.
	OtherCode string `json:"other_code,omitempty"`
	// Formula is the calculated-field expression; required iff FieldType is
	// calculated.
	Formula string `json:"formula,omitempty"`
	// Default substitutes when the source column is absent or blank. Without
	// it, a missing source column is a per-record error.
	Default *string `json:"default,omitempty"`

	// compiled at load time
	program    *expr.Program
	dateLayout string
}

// RangeRule is an inclusive bound pair; empty strings mean unbounded.
type RangeRule struct {
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

// ValidationRules is the rule set the validator applies before transfer.
type ValidationRules struct {
	RequiredFields []string             `json:"required_fields,omitempty"`
	DateRange      map[string]RangeRule `json:"date_range,omitempty"`
	NumericRange   map[string]RangeRule `json:"numeric_range,omitempty"`
	// FieldFormats maps target fields to a named format check:
	// "date", "email", or "phone".
	FieldFormats map[string]string `json:"field_formats,omitempty"`
}

// OverwriteBehavior controls how existing destination data is treated.
type OverwriteBehavior string

const (
	OverwriteAlways OverwriteBehavior = "overwrite"
	OverwriteSkip   OverwriteBehavior = "skip"
	OverwriteMerge  OverwriteBehavior = "merge"
)

// MigrationSettings are the per-document transfer knobs.
type MigrationSettings struct {
	BatchSize         int               `json:"batch_size"`
	ImportFormat      string            `json:"import_format,omitempty"`
	OverwriteBehavior OverwriteBehavior `json:"overwrite_behavior,omitempty"`
}

// SourceType names the legacy source family the document was written for.
type SourceType string

const (
	SourceCSV   SourceType = "csv"
	SourceExcel SourceType = "excel"
	SourceDB    SourceType = "db"
)

// Document is a loaded, structurally validated mapping document. All formula
// and date-format compilation happened at load; Resolve never re-parses.
type Document struct {
	SourceType    SourceType        `json:"source_type"`
	RecordIDField string            `json:"record_id_field"`
	Fields        []FieldMapping    `json:"fields"`
	Rules         ValidationRules   `json:"validation_rules,omitempty"`
	PHIFields     []string          `json:"phi_fields,omitempty"`
	Settings      MigrationSettings `json:"migration_settings"`

	// EventField optionally names the source column holding the longitudinal
	// event for each row; DefaultEvent is used when the column is blank or
	// absent. Both empty means a non-longitudinal project.
	EventField   string `json:"event_field,omitempty"`
	DefaultEvent string `json:"default_event,omitempty"`

	phiSet map[string]struct{}
}

// IsPHI reports whether a target field is declared sensitive by the document.
func (d *Document) IsPHI(target string) bool {
	_, ok := d.phiSet[target]
	return ok
}
