package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	derrors "redmig/pkg/domain-errors"
)

// Condition is a parsed branching-logic expression, e.g.
//
//	[consent] = '1' and [age] >= 18
//
// It is parsed once when the catalog loads; evaluation is pure and cannot
// fail, matching how the destination platform treats malformed references
// (unknown fields compare as blank).
type Condition struct {
	root condNode
	// Fields lists every field referenced by the expression.
	Fields []string
}

// Eval evaluates the condition against a field lookup. Missing fields read
// as the empty string.
func (c *Condition) Eval(get func(field string) (string, bool)) bool {
	if c == nil || c.root == nil {
		return true
	}
	return c.root.eval(get)
}

type condNode interface {
	eval(get func(string) (string, bool)) bool
}

type boolNode struct {
	op          string // "and" | "or"
	left, right condNode
}

func (n *boolNode) eval(get func(string) (string, bool)) bool {
	if n.op == "and" {
		return n.left.eval(get) && n.right.eval(get)
	}
	return n.left.eval(get) || n.right.eval(get)
}

type cmpNode struct {
	field string
	op    string // = <> > >= < <=
	value string
}

func (n *cmpNode) eval(get func(string) (string, bool)) bool {
	v, ok := get(n.field)
	if !ok {
		v = ""
	}
	// Numeric comparison when both sides parse; string comparison otherwise.
	av, aerr := strconv.ParseFloat(strings.TrimSpace(v), 64)
	bv, berr := strconv.ParseFloat(strings.TrimSpace(n.value), 64)
	numeric := aerr == nil && berr == nil
	switch n.op {
	case "=":
		if numeric {
			return av == bv
		}
		return v == n.value
	case "<>":
		if numeric {
			return av != bv
		}
		return v != n.value
	case ">":
		return numeric && av > bv
	case ">=":
		return numeric && av >= bv
	case "<":
		return numeric && av < bv
	case "<=":
		return numeric && av <= bv
	}
	return false
}

// ParseCondition parses a branching-logic expression. Grammar:
//
//	expr   := andExp { "or" andExp }
//	andExp := cmp { "and" cmp }
//	cmp    := "[" field "]" op literal | "(" expr ")"
//	op     := "=" | "<>" | ">" | ">=" | "<" | "<="
//
// Literals are single- or double-quoted strings or bare numbers.
func ParseCondition(s string) (*Condition, error) {
	p := &condParser{input: s}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, derrors.Newf(derrors.CodeInvalidInput, "branching logic: unexpected %q at offset %d", p.input[p.pos:], p.pos)
	}
	return &Condition{root: root, Fields: p.fields}, nil
}

type condParser struct {
	input  string
	pos    int
	fields []string
}

func (p *condParser) parseOr() (condNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.takeWord("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseAnd() (condNode, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.takeWord("and") {
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = &boolNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseCmp() (condNode, error) {
	p.skipSpace()
	if p.take("(") {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.take(")") {
			return nil, derrors.New(derrors.CodeInvalidInput, "branching logic: missing closing parenthesis")
		}
		return inner, nil
	}
	if !p.take("[") {
		return nil, derrors.Newf(derrors.CodeInvalidInput, "branching logic: expected field reference at offset %d", p.pos)
	}
	end := strings.IndexByte(p.input[p.pos:], ']')
	if end < 0 {
		return nil, derrors.New(derrors.CodeInvalidInput, "branching logic: unterminated field reference")
	}
	field := strings.TrimSpace(p.input[p.pos : p.pos+end])
	if field == "" {
		return nil, derrors.New(derrors.CodeInvalidInput, "branching logic: empty field reference")
	}
	p.pos += end + 1
	p.fields = append(p.fields, field)

	p.skipSpace()
	var op string
	for _, candidate := range []string{"<>", ">=", "<=", "=", ">", "<"} {
		if p.take(candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		return nil, derrors.Newf(derrors.CodeInvalidInput, "branching logic: expected operator after [%s]", field)
	}

	value, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &cmpNode{field: field, op: op, value: value}, nil
}

func (p *condParser) parseLiteral() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return "", derrors.New(derrors.CodeInvalidInput, "branching logic: expected literal")
	}
	q := p.input[p.pos]
	if q == '\'' || q == '"' {
		end := strings.IndexByte(p.input[p.pos+1:], q)
		if end < 0 {
			return "", derrors.New(derrors.CodeInvalidInput, "branching logic: unterminated string literal")
		}
		lit := p.input[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return lit, nil
	}
	start := p.pos
	for p.pos < len(p.input) {
		ch := rune(p.input[p.pos])
		if unicode.IsDigit(ch) || ch == '.' || ch == '-' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", derrors.Newf(derrors.CodeInvalidInput, "branching logic: invalid literal at offset %d", start)
	}
	lit := p.input[start:p.pos]
	if _, err := strconv.ParseFloat(lit, 64); err != nil {
		return "", fmt.Errorf("branching logic: bad numeric literal %q: %w", lit, err)
	}
	return lit, nil
}

func (p *condParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *condParser) take(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.input[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

// takeWord consumes a keyword only when followed by a word boundary, so a
// field value like "oral" is not read as "or".
func (p *condParser) takeWord(word string) bool {
	p.skipSpace()
	rest := p.input[p.pos:]
	if len(rest) < len(word) {
		return false
	}
	if !strings.EqualFold(rest[:len(word)], word) {
		return false
	}
	if len(rest) > len(word) {
		next := rune(rest[len(word)])
		if unicode.IsLetter(next) || unicode.IsDigit(next) || next == '_' {
			return false
		}
	}
	p.pos += len(word)
	return true
}
