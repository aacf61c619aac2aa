package expr

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dreamware/gridcalc/internal/calcerr"
)

// parser holds the state of one Parse call. It is never reused.
type parser struct {
	src string
	pos int
}

// Parse parses exactly one expression. Input that continues after a
// complete expression is an error.
func Parse(src string) (Node, error) {
	ps := &parser{src: stripSpace(src)}
	n, err := ps.expr()
	if err != nil {
		return nil, err
	}
	if !ps.eof() {
		return nil, ps.errorf("unexpected input at %d after complete expression: '%s'",
			ps.pos, ps.src[ps.pos:])
	}
	return n, nil
}

// ParseAll parses a ';'-separated list of expressions. Trailing empty
// segments are ignored; any other failure aborts the whole list.
func ParseAll(src string) ([]Node, error) {
	parts := strings.Split(src, ";")
	for len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	nodes := make([]Node, 0, len(parts))
	for _, part := range parts {
		n, err := Parse(part)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func (ps *parser) eof() bool { return ps.pos >= len(ps.src) }

func (ps *parser) peek() byte { return ps.src[ps.pos] }

// current returns the rune under the cursor, for error messages.
func (ps *parser) current() rune {
	r, _ := utf8.DecodeRuneInString(ps.src[ps.pos:])
	return r
}

func (ps *parser) errorf(format string, args ...any) error {
	return calcerr.Newf(calcerr.ExpressionParsingError, format, args...)
}

func (ps *parser) unexpectedEnd() error {
	return ps.errorf("unexpected end of expression '%s'", ps.src)
}

func (ps *parser) expr() (Node, error) {
	if ps.eof() {
		return nil, ps.unexpectedEnd()
	}
	switch c := ps.peek(); {
	case isDigit(c):
		return ps.constant()
	case isLower(c):
		return ps.variable(), nil
	case c == '(':
		return ps.operator()
	default:
		return nil, ps.errorf("unexpected char at %d: '%c'", ps.pos, ps.current())
	}
}

func (ps *parser) constant() (Node, error) {
	begin := ps.pos
	ps.skipDigits()
	if ps.pos+1 < len(ps.src) && ps.src[ps.pos] == '.' && isDigit(ps.src[ps.pos+1]) {
		ps.pos++
		ps.skipDigits()
	}
	v, err := strconv.ParseFloat(ps.src[begin:ps.pos], 64)
	if err != nil {
		return nil, ps.errorf("bad constant at %d: '%s'", begin, ps.src[begin:ps.pos])
	}
	return Constant{Value: v}, nil
}

func (ps *parser) skipDigits() {
	for !ps.eof() && isDigit(ps.peek()) {
		ps.pos++
	}
}

func (ps *parser) variable() Node {
	begin := ps.pos
	ps.pos++
	for !ps.eof() && (isLower(ps.peek()) || isDigit(ps.peek())) {
		ps.pos++
	}
	return Variable{Name: ps.src[begin:ps.pos]}
}

// operator parses '(' expr OPERATOR expr ')'; the cursor is on '('.
func (ps *parser) operator() (Node, error) {
	ps.pos++
	left, err := ps.expr()
	if err != nil {
		return nil, err
	}
	if ps.eof() {
		return nil, ps.unexpectedEnd()
	}
	op, ok := opFromByte(ps.peek())
	if !ok {
		if isLower(ps.peek()) {
			return nil, ps.errorf("unknown operation at %d: '%c'", ps.pos, ps.current())
		}
		return nil, ps.errorf("unexpected char at %d instead of operator: '%c'", ps.pos, ps.current())
	}
	ps.pos++
	right, err := ps.expr()
	if err != nil {
		return nil, err
	}
	if ps.eof() {
		return nil, ps.unexpectedEnd()
	}
	if ps.peek() != ')' {
		return nil, ps.errorf("operator not enclosed in brackets at %d in expression '%s'", ps.pos, ps.src)
	}
	ps.pos++
	return Operator{Op: op, Left: left, Right: right}, nil
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
func isLower(c byte) bool { return 'a' <= c && c <= 'z' }
