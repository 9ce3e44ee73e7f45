package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"redmig/internal/domain"
	derrors "redmig/pkg/domain-errors"
)

// DictionaryFetcher is the narrow slice of the destination client the loader
// needs. The full client lives in internal/redcap.
type DictionaryFetcher interface {
	Dictionary(ctx context.Context) ([]byte, error)
}

// metadataRow mirrors one entry of the destination's metadata export.
type metadataRow struct {
	FieldName      string `json:"field_name"`
	FormName       string `json:"form_name"`
	FieldType      string `json:"field_type"`
	Choices        string `json:"select_choices_or_calculations"`
	ValidationMin  string `json:"text_validation_min"`
	ValidationMax  string `json:"text_validation_max"`
	BranchingLogic string `json:"branching_logic"`
	RequiredField  string `json:"required_field"`
}

// Load fetches the project data dictionary from the destination and builds a
// catalog. Malformed branching logic is logged and treated as always-visible
// rather than aborting the load; the destination itself tolerates it the
// same way.
func Load(ctx context.Context, fetcher DictionaryFetcher, events []string, repeatingForms []string, log *slog.Logger) (*Catalog, error) {
	raw, err := fetcher.Dictionary(ctx)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "fetch data dictionary")
	}
	var rows []metadataRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInvalidInput, "parse data dictionary")
	}
	if len(rows) == 0 {
		return nil, derrors.New(derrors.CodeInvalidInput, "data dictionary is empty")
	}

	defs := make([]FieldDef, 0, len(rows))
	for _, row := range rows {
		def := FieldDef{
			Name:     row.FieldName,
			Form:     row.FormName,
			Type:     mapFieldType(row.FieldType),
			Required: strings.EqualFold(row.RequiredField, "y"),
			MinValue: row.ValidationMin,
			MaxValue: row.ValidationMax,
		}
		if def.Type == domain.FieldRadio || def.Type == domain.FieldDropdown || def.Type == domain.FieldCheckbox {
			def.Choices = parseChoices(row.Choices)
		}
		if row.BranchingLogic != "" {
			cond, err := ParseCondition(row.BranchingLogic)
			if err != nil {
				if log != nil {
					log.Warn("ignoring malformed branching logic",
						"field", row.FieldName, "error", err)
				}
			} else {
				def.Branching = cond
			}
		}
		defs = append(defs, def)
	}
	return New(defs, events, repeatingForms), nil
}

// mapFieldType converts destination metadata types to the internal enum.
func mapFieldType(t string) domain.FieldType {
	switch t {
	case "radio", "yesno", "truefalse":
		return domain.FieldRadio
	case "dropdown":
		return domain.FieldDropdown
	case "checkbox":
		return domain.FieldCheckbox
	case "calc":
		return domain.FieldCalculated
	case "file":
		return domain.FieldFile
	default:
		// text, notes, descriptive, slider and anything unrecognized coerce
		// as plain text.
		return domain.FieldText
	}
}

// parseChoices parses the destination's "1, Male | 2, Female" choice syntax
// into a code->label map.
func parseChoices(raw string) map[string]string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, "|") {
		code, label, found := strings.Cut(pair, ",")
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if !found {
			out[code] = code
			continue
		}
		out[code] = strings.TrimSpace(label)
	}
	return out
}
