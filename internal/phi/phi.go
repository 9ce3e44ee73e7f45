// Package phi centralizes handling of Protected Health Information: deciding
// which fields look sensitive, masking values for log-safe display, and
// summarizing PHI coverage. Nothing in this package ever stores or transmits
// an unmasked value.
package phi

import (
	"regexp"
	"strings"
)

// fieldPatterns are the header heuristics for spotting likely PHI columns.
// Detection supplements, never replaces, the mapping document's explicit
// phi_fields list; reviewers confirm the final set.
var fieldPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(name|first|last|middle|initial)`),
	regexp.MustCompile(`(?i)(ssn|social|security)`),
	regexp.MustCompile(`(?i)(dob|birth|birthday)`),
	regexp.MustCompile(`(?i)(address|street|city|zip|postal)`),
	regexp.MustCompile(`(?i)(email|e-mail)`),
	regexp.MustCompile(`(?i)(phone|cell|mobile|fax)`),
	regexp.MustCompile(`(?i)(mrn|medical|patient)`),
	regexp.MustCompile(`(?i)(license|driver)`),
}

// DetectFields returns the subset of headers whose names suggest PHI.
func DetectFields(headers []string) []string {
	var out []string
	for _, h := range headers {
		for _, p := range fieldPatterns {
			if p.MatchString(h) {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

var phoneLike = regexp.MustCompile(`^[0-9\-()+ ]+$`)
var nonDigit = regexp.MustCompile(`[^0-9]`)

// Redact masks a sensitive value for display. The shape of the mask follows
// the value kind: emails keep their domain, phone numbers keep two digits at
// each end, general text keeps two characters at each end. Short values are
// fully masked.
func Redact(value string) string {
	if value == "" {
		return value
	}

	if at := strings.IndexByte(value, '@'); at > 0 && strings.Contains(value[at+1:], ".") {
		user := value[:at]
		if len(user) > 2 {
			user = user[:1] + strings.Repeat("*", len(user)-2) + user[len(user)-1:]
		} else {
			user = strings.Repeat("*", len(user))
		}
		return user + "@" + value[at+1:]
	}

	if phoneLike.MatchString(value) {
		digits := nonDigit.ReplaceAllString(value, "")
		if len(digits) > 4 {
			return digits[:2] + strings.Repeat("*", len(digits)-4) + digits[len(digits)-2:]
		}
		return strings.Repeat("*", len(digits))
	}

	if len(value) > 6 {
		return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
	}
	return strings.Repeat("*", len(value))
}
