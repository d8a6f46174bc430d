package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolCalculator is the registered name of the calculator tool.
const ToolCalculator = "calculator"

// ErrInvalidExpression indicates input outside the arithmetic grammar. The
// calculator accepts + - * /, parentheses and decimal numbers, nothing
// else; there is no general expression evaluation.
var ErrInvalidExpression = errors.New("invalid expression")

// ErrDivisionByZero indicates a division by zero in the expression.
var ErrDivisionByZero = errors.New("division by zero")

// NewCalculator returns the arithmetic tool.
func NewCalculator() Tool {
	return Tool{
		Name: ToolCalculator,
		Description: "Evaluate a basic arithmetic expression. Supports addition, " +
			"subtraction, multiplication, division, parentheses and decimal numbers. " +
			"Example: (150 * 3) / 2",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"expression": {
					Type:        "string",
					Description: "The arithmetic expression to evaluate.",
				},
			},
			Required: []string{"expression"},
		},
		Handler: func(_ context.Context, args map[string]any) (Output, error) {
			expr, _ := args["expression"].(string)
			value, err := Evaluate(expr)
			if err != nil {
				return Output{}, err
			}
			return Output{Text: strconv.FormatFloat(value, 'f', -1, 64)}, nil
		},
	}
}

// Evaluate parses and evaluates an arithmetic expression. Anything outside
// the grammar returns ErrInvalidExpression.
//
// Grammar:
//
//	expr   = term   { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | "-" factor | "(" expr ")"
func Evaluate(expr string) (float64, error) {
	p := &parser{input: []rune(expr)}
	p.skipSpaces()
	if p.eof() {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidExpression)
	}

	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}

	p.skipSpaces()
	if !p.eof() {
		return 0, fmt.Errorf("%w: unexpected %q at position %d", ErrInvalidExpression, p.input[p.pos], p.pos)
	}
	return value, nil
}

type parser struct {
	input []rune
	pos   int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) skipSpaces() {
	for !p.eof() && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpaces()
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			value += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			value -= rhs
		default:
			return value, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpaces()
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			value *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, ErrDivisionByZero
			}
			value /= rhs
		default:
			return value, nil
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	p.skipSpaces()

	switch {
	case p.eof():
		return 0, fmt.Errorf("%w: unexpected end of input", ErrInvalidExpression)
	case p.peek() == '-':
		p.pos++
		value, err := p.parseFactor()
		return -value, err
	case p.peek() == '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidExpression)
		}
		p.pos++
		return value, nil
	default:
		return p.parseNumber()
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for !p.eof() && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("%w: unexpected %q at position %d", ErrInvalidExpression, p.peek(), p.pos)
	}

	text := string(p.input[start:p.pos])
	if strings.Count(text, ".") > 1 {
		return 0, fmt.Errorf("%w: malformed number %q", ErrInvalidExpression, text)
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed number %q", ErrInvalidExpression, text)
	}
	return value, nil
}
