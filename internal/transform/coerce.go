// Package transform holds the pure value-coercion functions the mapping
// interpreter applies per field: date reparsing, choice-code resolution, and
// checkbox set encoding. Everything here is deterministic and I/O free.
package transform

import (
	"sort"
	"strconv"
	"strings"
	"time"

	derrors "redmig/pkg/domain-errors"
)

// canonicalDate is the destination's calendar date format.
const canonicalDate = "2006-01-02"

// commonLayouts are tried in order when a mapping declares no date_format,
// matching the legacy toolkit's fallback behavior.
var commonLayouts = []string{"2006-01-02", "01/02/2006", "02-Jan-2006"}

// ParseDate normalizes a source date value to the canonical YYYY-MM-DD form.
// layout is a Go time layout (already translated from the mapping document's
// strptime format); empty layout tries the common fallbacks. Unparsable
// values are an error, not a silent null.
func ParseDate(value, layout string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if layout != "" {
		t, err := time.Parse(layout, value)
		if err != nil {
			return "", derrors.Wrap(err, derrors.CodeInvalidInput, "unparsable date")
		}
		return t.Format(canonicalDate), nil
	}
	for _, l := range commonLayouts {
		if t, err := time.Parse(l, value); err == nil {
			return t.Format(canonicalDate), nil
		}
	}
	return "", derrors.New(derrors.CodeInvalidInput, "date matches no known format")
}

// ResolveChoice maps a free-text or coded source value to the destination
// choice code. Codes are authoritative and matched first; labels are matched
// as a courtesy for sources that exported display text.
func ResolveChoice(value string, options map[string]string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if _, ok := options[value]; ok {
		return value, nil
	}
	for code, label := range options {
		if strings.EqualFold(label, value) {
			return code, nil
		}
	}
	return "", derrors.Newf(derrors.CodeInvalidInput, "value matches no choice code or label")
}

// EncodeCheckbox resolves a delimited token list ("A, C") into the set of
// selected destination codes. Each token maps independently; an unrecognized
// token is an error unless otherCode names an explicit passthrough code.
func EncodeCheckbox(value string, options map[string]string, otherCode string) ([]string, error) {
	selected := make(map[string]struct{})
	for _, token := range strings.Split(value, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		code, err := ResolveChoice(token, options)
		if err != nil {
			if otherCode == "" {
				return nil, derrors.Newf(derrors.CodeInvalidInput, "checkbox token matches no choice code or label")
			}
			code = otherCode
		}
		selected[code] = struct{}{}
	}
	out := make([]string, 0, len(selected))
	for code := range selected {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

// CheckboxColumn returns the destination column name for one checkbox code.
func CheckboxColumn(field, code string) string {
	return field + "___" + code
}

// DecodeCheckbox recovers the selected code set from expanded checkbox
// columns, the inverse of EncodeCheckbox + CheckboxColumn. Used by the
// post-transfer reconciliation check.
func DecodeCheckbox(field string, values map[string]string, options map[string]string) []string {
	var selected []string
	for code := range options {
		if values[CheckboxColumn(field, code)] == "1" {
			selected = append(selected, code)
		}
	}
	sort.Strings(selected)
	return selected
}

// NormalizeNumber canonicalizes numeric text (trims whitespace, validates it
// parses). The original text is preserved otherwise; the destination accepts
// any decimal representation.
func NormalizeNumber(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
		return "", derrors.Wrap(err, derrors.CodeInvalidInput, "not a number")
	}
	return trimmed, nil
}
