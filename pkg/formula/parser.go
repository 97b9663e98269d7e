package formula

import (
	"strconv"
	"strings"

	"github.com/Ramsey-B/sage/pkg/errors"
)

// Parse parses a formula into its expression tree.
//
// Grammar:
//
//	expr   := term (('+' | '-') term)*
//	term   := factor (('*' | '/') factor)*
//	factor := number | code | '(' expr ')' | '-' factor
func Parse(input string) (Node, error) {
	p := &parser{input: input}
	p.skipSpace()
	if p.eof() {
		return nil, errors.New(errors.CodeInvalidFormula, "formula is empty")
	}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, errors.Newf(errors.CodeInvalidFormula, "unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return node, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t' || p.input[p.pos] == '\n') {
		p.pos++
	}
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseFactor() (Node, error) {
	p.skipSpace()
	if p.eof() {
		return nil, errors.New(errors.CodeInvalidFormula, "formula ends unexpectedly")
	}

	ch := p.peek()
	switch {
	case ch == '(':
		p.pos++
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, errors.Newf(errors.CodeInvalidFormula, "missing closing parenthesis at position %d", p.pos)
		}
		p.pos++
		return node, nil
	case ch == '-':
		p.pos++
		node, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &BinaryOp{Op: '-', Left: &Literal{Value: 0}, Right: node}, nil
	case ch >= '0' && ch <= '9' || ch == '.':
		return p.parseNumber()
	case isCodeStart(ch):
		return p.parseReference(), nil
	}
	return nil, errors.Newf(errors.CodeInvalidFormula, "unexpected %q at position %d", ch, p.pos)
}

func (p *parser) parseNumber() (Node, error) {
	start := p.pos
	for !p.eof() && (isDigit(p.peek()) || p.peek() == '.') {
		p.pos++
	}
	raw := p.input[start:p.pos]
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.Newf(errors.CodeInvalidFormula, "invalid number %q at position %d", raw, start)
	}
	return &Literal{Value: value}, nil
}

func (p *parser) parseReference() *Reference {
	start := p.pos
	for !p.eof() && isCodeChar(p.peek()) {
		p.pos++
	}
	return &Reference{Code: strings.ToUpper(p.input[start:p.pos])}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isCodeStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isCodeChar(ch byte) bool {
	return isCodeStart(ch) || isDigit(ch)
}
