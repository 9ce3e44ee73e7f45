package transform

import (
	"strings"

	derrors "redmig/pkg/domain-errors"
)

// strptime directives supported in mapping documents. Mapping templates
// predate this tool and use strptime tokens, so they are translated to Go
// reference layouts once at load time.
var strptimeTokens = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'b': "Jan",
	'B': "January",
	'p': "PM",
	'I': "03",
}

// DateLayout converts a strptime-style format string into a Go time layout.
// Unsupported directives are a load-time error, never a silent passthrough.
func DateLayout(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' {
			b.WriteByte(ch)
			continue
		}
		i++
		if i >= len(format) {
			return "", derrors.New(derrors.CodeInvalidInput, "date format ends with a bare %")
		}
		if format[i] == '%' {
			b.WriteByte('%')
			continue
		}
		layout, ok := strptimeTokens[format[i]]
		if !ok {
			return "", derrors.Newf(derrors.CodeInvalidInput, "unsupported date format directive %%%c", format[i])
		}
		b.WriteString(layout)
	}
	return b.String(), nil
}
