package catalog

import (
	"redmig/internal/domain"
)

// FieldDef describes one destination field as declared in the project's data
// dictionary: its type, choice set, range constraints, branching logic, and
// which instrument it belongs to.
type FieldDef struct {
	Name       string
	Form       string
	Type       domain.FieldType
	Required   bool
	// Choices maps destination choice codes to their labels. Codes are the
	// authoritative values; labels are descriptive only.
	Choices map[string]string
	// Validation bounds as declared in the dictionary; empty means unbounded.
	MinValue string
	MaxValue string
	// Branching holds the parsed visibility condition, nil when the field is
	// always visible.
	Branching *Condition
}

// Catalog is the destination field dictionary plus the project's event and
// repeating-instrument layout. It is immutable after construction; share it
// freely across goroutines.
type Catalog struct {
	fields map[string]FieldDef
	order  []string

	// Longitudinal projects address submissions by event name. A
	// non-longitudinal project has no events and submissions default to the
	// canonical event.
	longitudinal bool
	events       map[string]struct{}

	// repeating maps instrument (form) name to whether it repeats within one
	// record/event.
	repeating map[string]bool
}

// New builds a catalog from field definitions and project layout. Field order
// follows defs.
func New(defs []FieldDef, events []string, repeatingForms []string) *Catalog {
	c := &Catalog{
		fields:    make(map[string]FieldDef, len(defs)),
		order:     make([]string, 0, len(defs)),
		events:    make(map[string]struct{}, len(events)),
		repeating: make(map[string]bool, len(repeatingForms)),
	}
	for _, d := range defs {
		if _, dup := c.fields[d.Name]; dup {
			continue
		}
		c.fields[d.Name] = d
		c.order = append(c.order, d.Name)
	}
	for _, e := range events {
		c.events[e] = struct{}{}
	}
	c.longitudinal = len(events) > 0
	for _, f := range repeatingForms {
		c.repeating[f] = true
	}
	return c
}

// Field returns the definition for a destination field name.
func (c *Catalog) Field(name string) (FieldDef, bool) {
	d, ok := c.fields[name]
	return d, ok
}

// FieldNames returns all field names in dictionary order.
func (c *Catalog) FieldNames() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Longitudinal reports whether the project addresses submissions by event.
func (c *Catalog) Longitudinal() bool { return c.longitudinal }

// HasEvent reports whether the named event exists in the project.
func (c *Catalog) HasEvent(name string) bool {
	_, ok := c.events[name]
	return ok
}

// Repeats reports whether the instrument owning the named field repeats.
func (c *Catalog) Repeats(fieldName string) bool {
	d, ok := c.fields[fieldName]
	if !ok {
		return false
	}
	return c.repeating[d.Form]
}
