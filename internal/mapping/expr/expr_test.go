package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "redmig/pkg/domain-errors"
)

func fieldEnv(fields map[string]string) Env {
	return Env{
		Field: func(name string) (string, bool) {
			v, ok := fields[name]
			return v, ok
		},
		AsOfYear: 2026,
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		fields map[string]string
		want   string
	}{
		{
			name: "integer literal",
			src:  "42",
			want: "42",
		},
		{
			name: "string literal",
			src:  "'hello'",
			want: "hello",
		},
		{
			name:   "field reference",
			src:    "{dob}",
			fields: map[string]string{"dob": "1985-03-20"},
			want:   "1985-03-20",
		},
		{
			name:   "age from birth year",
			src:    "as_of_year - {dob}[0:4]",
			fields: map[string]string{"dob": "1985-03-20"},
			want:   "41",
		},
		{
			name: "arithmetic precedence",
			src:  "2 + 3 * 4",
			want: "14",
		},
		{
			name: "parentheses override precedence",
			src:  "(2 + 3) * 4",
			want: "20",
		},
		{
			name: "unary minus",
			src:  "-5 + 10",
			want: "5",
		},
		{
			name:   "numeric field coerced for arithmetic",
			src:    "{weight} * 2",
			fields: map[string]string{"weight": "70"},
			want:   "140",
		},
		{
			name:   "split selects piece",
			src:    "split({name}, ' ', 1)",
			fields: map[string]string{"name": "Marie Curie"},
			want:   "Curie",
		},
		{
			name:   "split index out of range is empty",
			src:    "split({name}, ' ', 5)",
			fields: map[string]string{"name": "Marie Curie"},
			want:   "",
		},
		{
			name:   "slice clamps to string length",
			src:    "{code}[0:10]",
			fields: map[string]string{"code": "abc"},
			want:   "abc",
		},
		{
			name:   "chained slice",
			src:    "{visit}[0:7][5:7]",
			fields: map[string]string{"visit": "2024-06-15"},
			want:   "06",
		},
		{
			name: "as_of_year constant",
			src:  "as_of_year",
			want: "2026",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Parse(tt.src)
			require.NoError(t, err)

			got, err := prog.Eval(fieldEnv(tt.fields))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		fields map[string]string
	}{
		{
			name:   "unknown field",
			src:    "{missing} + 1",
			fields: map[string]string{},
		},
		{
			name:   "non-numeric operand",
			src:    "{note} + 1",
			fields: map[string]string{"note": "n/a"},
		},
		{
			name:   "division by zero",
			src:    "10 / {zero}",
			fields: map[string]string{"zero": "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Parse(tt.src)
			require.NoError(t, err)

			_, err = prog.Eval(fieldEnv(tt.fields))
			assert.Error(t, err)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "empty input", src: ""},
		{name: "unknown identifier", src: "floor(2)"},
		{name: "unterminated field reference", src: "{dob"},
		{name: "unterminated string", src: "'abc"},
		{name: "missing closing paren", src: "(1 + 2"},
		{name: "slice without colon", src: "{dob}[0 4]"},
		{name: "split with numeric separator", src: "split({name}, 2, 0)"},
		{name: "trailing garbage", src: "1 + 2 ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.True(t, derrors.HasCode(err, derrors.CodeInvalidInput))
		})
	}
}

func TestFieldsReturnsReferenceOrder(t *testing.T) {
	prog, err := Parse("split({full_name}, ' ', 0) + {suffix}")
	require.NoError(t, err)
	assert.Equal(t, []string{"full_name", "suffix"}, prog.Fields())
}
