package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thisisjab/docquery/expr/lexer"
	"github.com/thisisjab/docquery/expr/token"
	"github.com/thisisjab/docquery/fault"
	"github.com/thisisjab/docquery/query"
)

// Parser turns filter expressions such as `age >= 18` or
// `name not in [Donald, Daisy]` into query conditions.
type Parser struct {
	l         *lexer.Lexer
	input     string
	curToken  token.Token
	peekToken token.Token
}

func New(input string) *Parser {
	p := &Parser{
		l:     lexer.New(input),
		input: input,
	}

	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// ParseCondition parses a single `field operator value` expression.
func ParseCondition(input string) (query.Condition, error) {
	return New(input).ParseCondition()
}

// ParseSort parses `name`, `-name`, `name asc` or `name DESC`.
func ParseSort(input string) (string, query.Direction, error) {
	return New(input).ParseSort()
}

func (p *Parser) ParseCondition() (query.Condition, error) {
	if p.curToken.Type != token.IDENT {
		return query.Condition{}, p.errorf("expected field name, got %q", p.curToken.Literal)
	}

	field := p.curToken.Literal
	p.nextToken()

	op, err := p.parseOperator()
	if err != nil {
		return query.Condition{}, err
	}
	p.nextToken()

	var value any
	switch op.Kind() {
	case query.KindList, query.KindRange:
		value, err = p.parseList()
	default:
		value, err = p.parseScalar()
		if err == nil {
			p.nextToken()
		}
	}
	if err != nil {
		return query.Condition{}, err
	}

	if p.curToken.Type != token.EOF {
		return query.Condition{}, p.errorf("unexpected %q after value", p.curToken.Literal)
	}

	if err := op.Check(value); err != nil {
		return query.Condition{}, fault.New(fault.BadInputCode, fmt.Sprintf("invalid value in %q", p.input)).WithOriginal(err)
	}

	return query.Condition{Field: field, Operator: op, Value: value}, nil
}

func (p *Parser) ParseSort() (string, query.Direction, error) {
	dir := query.Asc

	if p.curToken.Type == token.MINUS {
		dir = query.Desc
		p.nextToken()
	}

	if p.curToken.Type != token.IDENT {
		return "", "", p.errorf("expected field name, got %q", p.curToken.Literal)
	}

	field := p.curToken.Literal
	p.nextToken()

	if p.curToken.Type == token.IDENT {
		switch d := query.Direction(p.curToken.Literal); d {
		case query.Asc, query.AscUpper, query.Desc, query.DescUpper:
			dir = d
		default:
			return "", "", p.errorf("invalid sort direction %q", p.curToken.Literal)
		}
		p.nextToken()
	}

	if p.curToken.Type != token.EOF {
		return "", "", p.errorf("unexpected %q after sort field", p.curToken.Literal)
	}

	return field, dir, nil
}

var wordOperators = map[string]bool{
	"like":     true,
	"in":       true,
	"contains": true,
	"between":  true,
	"exists":   true,
}

// parseOperator reads the operator at curToken. Word operators keep the case
// they were written in when it is all upper case, otherwise they are lowered.
func (p *Parser) parseOperator() (query.Operator, error) {
	if p.curToken.Type.IsOperator() {
		return query.ParseOperator(p.curToken.Literal)
	}

	if p.curToken.Type != token.IDENT {
		return "", p.errorf("expected operator, got %q", p.curToken.Literal)
	}

	words := []string{p.curToken.Literal}
	if strings.EqualFold(p.curToken.Literal, "not") {
		if p.peekToken.Type != token.IDENT {
			return "", p.errorf("expected operator after %q", p.curToken.Literal)
		}
		p.nextToken()
		words = append(words, p.curToken.Literal)
	}

	last := strings.ToLower(words[len(words)-1])
	if !wordOperators[last] || (len(words) == 2 && last == "exists") {
		return "", p.errorf("unknown operator %q", strings.Join(words, " "))
	}

	literal := strings.Join(words, " ")
	if literal == strings.ToUpper(literal) {
		return query.ParseOperator(literal)
	}
	return query.ParseOperator(strings.ToLower(literal))
}

// parseList reads `[a, b]`, `(a, b)` or a bare `a, b` list up to EOF.
func (p *Parser) parseList() ([]any, error) {
	closing := token.EOF
	switch p.curToken.Type {
	case token.LBRACKET:
		closing = token.RBRACKET
		p.nextToken()
	case token.LPAREN:
		closing = token.RPAREN
		p.nextToken()
	}

	items := []any{}

	for p.curToken.Type != closing {
		if p.curToken.Type == token.EOF {
			return nil, p.errorf("unterminated list")
		}

		v, err := p.parseScalar()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.nextToken()

		if p.curToken.Type == token.COMMA {
			p.nextToken()
			continue
		}

		if p.curToken.Type != closing {
			return nil, p.errorf("expected \",\" in list, got %q", p.curToken.Literal)
		}
	}

	if closing == token.EOF && len(items) == 0 {
		return nil, p.errorf("missing value")
	}

	if closing != token.EOF {
		p.nextToken()
	}

	return items, nil
}

// parseScalar reads the value at curToken without advancing past it.
func (p *Parser) parseScalar() (any, error) {
	switch p.curToken.Type {
	case token.MINUS:
		if p.peekToken.Type != token.INT && p.peekToken.Type != token.DECIMAL {
			return nil, p.errorf("expected number after \"-\", got %q", p.peekToken.Literal)
		}
		p.nextToken()
		v, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return v, nil
	case token.INT, token.DECIMAL:
		return p.parseNumber()
	case token.STRING, token.IDENT:
		return p.curToken.Literal, nil
	case token.TRUE:
		return true, nil
	case token.FALSE:
		return false, nil
	case token.NULL:
		return nil, nil
	case token.EOF:
		return nil, p.errorf("missing value")
	default:
		return nil, p.errorf("unexpected %q where a value was expected", p.curToken.Literal)
	}
}

func (p *Parser) parseNumber() (any, error) {
	if p.curToken.Type == token.DECIMAL {
		f, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			return nil, p.errorf("invalid decimal %q", p.curToken.Literal)
		}
		return f, nil
	}

	n, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		return nil, p.errorf("invalid integer %q", p.curToken.Literal)
	}
	return n, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return fault.New(fault.BadInputCode, fmt.Sprintf("cannot parse %q: %s", p.input, fmt.Sprintf(format, args...)))
}
