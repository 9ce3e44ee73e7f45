package domain

import (
	"sort"
	"strings"
)

// SourceRecord is one raw row from the legacy source, keyed by source field
// names. PHI status is unknown until the row has been mapped.
type SourceRecord map[string]string

// FieldType enumerates the destination field kinds a mapping may target.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldDate       FieldType = "date"
	FieldRadio      FieldType = "radio"
	FieldDropdown   FieldType = "dropdown"
	FieldCheckbox   FieldType = "checkbox"
	FieldCalculated FieldType = "calculated"
	FieldFile       FieldType = "file"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldDate, FieldRadio, FieldDropdown, FieldCheckbox, FieldCalculated, FieldFile:
		return true
	}
	return false
}

// Key addresses one submission unit at the destination. It doubles as the
// idempotency key: resume and skip logic compare keys, never raw rows.
type Key struct {
	RecordID string
	Event    string
	Instance int
}

// CandidateRecord is one mapped record headed for the destination. Field
// values and PHI flags are private so every consumer goes through accessors
// that know which fields are sensitive; a report or log cannot pick up a PHI
// value by ranging over an exported map.
type CandidateRecord struct {
	RecordID string
	Event    string
	Instance int
	// Index is the zero-based position of the originating row in the source,
	// used for cursor accounting.
	Index int

	fields map[string]string
	phi    map[string]struct{}
}

// NewCandidateRecord constructs an empty candidate. phiFields lists the
// target fields that must be treated as sensitive; the set is fixed at
// construction so downstream code cannot forget to apply it.
func NewCandidateRecord(recordID string, phiFields []string) *CandidateRecord {
	phi := make(map[string]struct{}, len(phiFields))
	for _, f := range phiFields {
		phi[f] = struct{}{}
	}
	return &CandidateRecord{
		RecordID: recordID,
		Instance: 1,
		fields:   make(map[string]string),
		phi:      phi,
	}
}

// Set stores a coerced value for a target field.
func (r *CandidateRecord) Set(field, value string) {
	r.fields[field] = value
}

// Get returns the coerced value for a target field.
func (r *CandidateRecord) Get(field string) (string, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// FieldNames returns the target field names in sorted order.
func (r *CandidateRecord) FieldNames() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of all field values, PHI included. Callers that emit
// data outside the submission path must filter through IsPHI first.
func (r *CandidateRecord) Values() map[string]string {
	out := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// IsPHI reports whether a target field is flagged as sensitive. Checkbox
// expansion columns (field___code) inherit the flag of their base field.
func (r *CandidateRecord) IsPHI(field string) bool {
	if _, ok := r.phi[field]; ok {
		return true
	}
	if base, found := checkboxBase(field); found {
		_, ok := r.phi[base]
		return ok
	}
	return false
}

// PHIFields returns the sorted set of flagged target fields.
func (r *CandidateRecord) PHIFields() []string {
	names := make([]string, 0, len(r.phi))
	for name := range r.phi {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Key returns the idempotency key for this candidate.
func (r *CandidateRecord) Key() Key {
	return Key{RecordID: r.RecordID, Event: r.Event, Instance: r.Instance}
}

// checkboxBase splits a checkbox expansion column name ("race___2") into its
// base field name.
func checkboxBase(field string) (string, bool) {
	i := strings.LastIndex(field, "___")
	if i <= 0 {
		return "", false
	}
	return field[:i], true
}
