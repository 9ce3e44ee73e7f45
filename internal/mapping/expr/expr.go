// Package expr implements the restricted expression grammar for calculated
// fields. Expressions are parsed into a typed AST once when the mapping
// document loads, so unknown functions, syntax errors, and field references
// surface before any record is processed. Evaluation is pure: field lookups
// and a configured as-of-year constant are the only inputs.
//
// Grammar:
//
//	expr    := term { ("+" | "-") term }
//	term    := unary { ("*" | "/") unary }
//	unary   := "-" unary | postfix
//	postfix := primary { "[" int ":" int "]" }
//	primary := int | "'" text "'" | "{" field "}" | as_of_year
//	        | split(expr, 'sep', int) | "(" expr ")"
//
// Arithmetic operates on integers; a string operand (typically a resolved
// field value) is coerced with strconv and a non-numeric value is an
// evaluation error attributed to the record, not a crash.
package expr

import (
	"strconv"
	"strings"
	"unicode"

	derrors "redmig/pkg/domain-errors"
)

// Env supplies the two inputs an expression may read.
type Env struct {
	// Field resolves an already-computed target field of the same record.
	Field func(name string) (string, bool)
	// AsOfYear is the configured reference year constant.
	AsOfYear int
}

// Program is a parsed, reusable expression.
type Program struct {
	root   node
	fields []string
}

// Parse compiles src into a Program or fails with an invalid_input error.
func Parse(src string) (*Program, error) {
	p := &parser{input: src}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, derrors.Newf(derrors.CodeInvalidInput, "formula: unexpected %q at offset %d", p.input[p.pos:], p.pos)
	}
	return &Program{root: root, fields: p.fields}, nil
}

// Fields returns every field name the expression references, in reference
// order. The mapping loader uses this to enforce declare-before-use.
func (p *Program) Fields() []string {
	out := make([]string, len(p.fields))
	copy(out, p.fields)
	return out
}

// Eval evaluates the program and renders the result as the destination
// string form: integers in base 10, strings verbatim.
func (p *Program) Eval(env Env) (string, error) {
	v, err := p.root.eval(env)
	if err != nil {
		return "", err
	}
	return v.text(), nil
}

// value is the runtime representation: either an integer or a string.
type value struct {
	n     int64
	s     string
	isNum bool
}

func numVal(n int64) value  { return value{n: n, isNum: true} }
func strVal(s string) value { return value{s: s} }

func (v value) text() string {
	if v.isNum {
		return strconv.FormatInt(v.n, 10)
	}
	return v.s
}

// asNum coerces the value to an integer, parsing string contents.
func (v value) asNum() (int64, error) {
	if v.isNum {
		return v.n, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
	if err != nil {
		return 0, derrors.Newf(derrors.CodeInvalidInput, "formula: %q is not an integer", v.s)
	}
	return n, nil
}

type node interface {
	eval(env Env) (value, error)
}

type intLit int64

func (n intLit) eval(Env) (value, error) { return numVal(int64(n)), nil }

type strLit string

func (n strLit) eval(Env) (value, error) { return strVal(string(n)), nil }

type fieldRef string

func (n fieldRef) eval(env Env) (value, error) {
	v, ok := env.Field(string(n))
	if !ok {
		// Load-time checks make this unreachable for well-formed documents;
		// kept as a hard stop for direct API misuse.
		return value{}, derrors.Newf(derrors.CodeInvalidInput, "formula: field %q not resolved", string(n))
	}
	return strVal(v), nil
}

type yearConst struct{}

func (yearConst) eval(env Env) (value, error) { return numVal(int64(env.AsOfYear)), nil }

type binOp struct {
	op          byte
	left, right node
}

func (n *binOp) eval(env Env) (value, error) {
	lv, err := n.left.eval(env)
	if err != nil {
		return value{}, err
	}
	rv, err := n.right.eval(env)
	if err != nil {
		return value{}, err
	}
	l, err := lv.asNum()
	if err != nil {
		return value{}, err
	}
	r, err := rv.asNum()
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case '+':
		return numVal(l + r), nil
	case '-':
		return numVal(l - r), nil
	case '*':
		return numVal(l * r), nil
	case '/':
		if r == 0 {
			return value{}, derrors.New(derrors.CodeInvalidInput, "formula: division by zero")
		}
		return numVal(l / r), nil
	}
	return value{}, derrors.Newf(derrors.CodeInvalidInput, "formula: unknown operator %q", n.op)
}

type negOp struct{ inner node }

func (n *negOp) eval(env Env) (value, error) {
	v, err := n.inner.eval(env)
	if err != nil {
		return value{}, err
	}
	x, err := v.asNum()
	if err != nil {
		return value{}, err
	}
	return numVal(-x), nil
}

// sliceOp takes characters [from:to) of a string value, clamping bounds the
// way the legacy templates expect.
type sliceOp struct {
	inner    node
	from, to int
}

func (n *sliceOp) eval(env Env) (value, error) {
	v, err := n.inner.eval(env)
	if err != nil {
		return value{}, err
	}
	s := v.text()
	from, to := n.from, n.to
	if from < 0 {
		from = 0
	}
	if to > len(s) || to < 0 {
		to = len(s)
	}
	if from > to {
		from = to
	}
	return strVal(s[from:to]), nil
}

// splitOp splits a string on a separator and selects the i-th piece.
type splitOp struct {
	inner node
	sep   string
	index int
}

func (n *splitOp) eval(env Env) (value, error) {
	v, err := n.inner.eval(env)
	if err != nil {
		return value{}, err
	}
	parts := strings.Split(v.text(), n.sep)
	if n.index < 0 || n.index >= len(parts) {
		return strVal(""), nil
	}
	return strVal(parts[n.index]), nil
}

type parser struct {
	input  string
	pos    int
	fields []string
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.peek() == '+' || p.peek() == '-' {
			op := p.input[p.pos]
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = &binOp{op: op, left: left, right: right}
			continue
		}
		return left, nil
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.peek() == '*' || p.peek() == '/' {
			op := p.input[p.pos]
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &binOp{op: op, left: left, right: right}
			continue
		}
		return left, nil
	}
}

func (p *parser) parseUnary() (node, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negOp{inner: inner}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	inner, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.peek() != '[' {
			return inner, nil
		}
		p.pos++
		from, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, derrors.New(derrors.CodeInvalidInput, "formula: expected ':' in slice")
		}
		p.pos++
		to, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ']' {
			return nil, derrors.New(derrors.CodeInvalidInput, "formula: expected ']' to close slice")
		}
		p.pos++
		inner = &sliceOp{inner: inner, from: int(from), to: int(to)}
	}
}

func (p *parser) parsePrimary() (node, error) {
	p.skipSpace()
	switch {
	case p.peek() == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, derrors.New(derrors.CodeInvalidInput, "formula: missing closing parenthesis")
		}
		p.pos++
		return inner, nil

	case p.peek() == '{':
		p.pos++
		end := strings.IndexByte(p.input[p.pos:], '}')
		if end < 0 {
			return nil, derrors.New(derrors.CodeInvalidInput, "formula: unterminated field reference")
		}
		name := strings.TrimSpace(p.input[p.pos : p.pos+end])
		if name == "" {
			return nil, derrors.New(derrors.CodeInvalidInput, "formula: empty field reference")
		}
		p.pos += end + 1
		p.fields = append(p.fields, name)
		return fieldRef(name), nil

	case p.peek() == '\'':
		p.pos++
		end := strings.IndexByte(p.input[p.pos:], '\'')
		if end < 0 {
			return nil, derrors.New(derrors.CodeInvalidInput, "formula: unterminated string literal")
		}
		lit := p.input[p.pos : p.pos+end]
		p.pos += end + 1
		return strLit(lit), nil

	case unicode.IsDigit(rune(p.peek())):
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		return intLit(n), nil

	case unicode.IsLetter(rune(p.peek())) || p.peek() == '_':
		ident := p.parseIdent()
		switch ident {
		case "as_of_year":
			return yearConst{}, nil
		case "split":
			return p.parseSplitCall()
		default:
			return nil, derrors.Newf(derrors.CodeInvalidInput, "formula: unknown identifier %q", ident)
		}
	}
	return nil, derrors.Newf(derrors.CodeInvalidInput, "formula: unexpected input at offset %d", p.pos)
}

// parseSplitCall parses split(expr, 'sep', index) after the ident was read.
func (p *parser) parseSplitCall() (node, error) {
	p.skipSpace()
	if p.peek() != '(' {
		return nil, derrors.New(derrors.CodeInvalidInput, "formula: expected '(' after split")
	}
	p.pos++
	inner, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectComma(); err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != '\'' {
		return nil, derrors.New(derrors.CodeInvalidInput, "formula: split separator must be a string literal")
	}
	p.pos++
	end := strings.IndexByte(p.input[p.pos:], '\'')
	if end < 0 {
		return nil, derrors.New(derrors.CodeInvalidInput, "formula: unterminated separator literal")
	}
	sep := p.input[p.pos : p.pos+end]
	p.pos += end + 1
	if err := p.expectComma(); err != nil {
		return nil, err
	}
	index, err := p.parseInt()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != ')' {
		return nil, derrors.New(derrors.CodeInvalidInput, "formula: expected ')' to close split")
	}
	p.pos++
	return &splitOp{inner: inner, sep: sep, index: int(index)}, nil
}

func (p *parser) expectComma() error {
	p.skipSpace()
	if p.peek() != ',' {
		return derrors.New(derrors.CodeInvalidInput, "formula: expected ','")
	}
	p.pos++
	return nil
}

func (p *parser) parseInt() (int64, error) {
	p.skipSpace()
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for p.pos < len(p.input) && unicode.IsDigit(rune(p.input[p.pos])) {
		p.pos++
	}
	if p.pos == start || (p.pos == start+1 && p.input[start] == '-') {
		return 0, derrors.Newf(derrors.CodeInvalidInput, "formula: expected integer at offset %d", start)
	}
	n, err := strconv.ParseInt(p.input[start:p.pos], 10, 64)
	if err != nil {
		return 0, derrors.Wrap(err, derrors.CodeInvalidInput, "formula: bad integer")
	}
	return n, nil
}

func (p *parser) parseIdent() string {
	start := p.pos
	for p.pos < len(p.input) {
		ch := rune(p.input[p.pos])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

// peek returns the current byte or 0 at end of input.
func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}
