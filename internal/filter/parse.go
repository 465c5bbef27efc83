package filter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/bandmap/internal/apierr"
)

// Schema resolves filter field names.
type Schema interface {
	// Lookup resolves a lowercased field token to its API field name.
	Lookup(name string) (apiField string, ok bool)

	// Suggest returns a " (did you mean 'x'?)" hint or "".
	Suggest(name string) string

	// Type returns the schema type of an API field.
	Type(apiField string) string

	// DBField maps an API field to its storage path.
	DBField(apiField string) string

	// Scope returns the entity path owning a storage field.
	Scope(dbField string) string
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the clock used to date bare time operands.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// Parser parses filter strings against one resource's fields.
type Parser struct {
	schema Schema
	now    func() time.Time
}

// NewParser creates a parser resolving fields through s.
func NewParser(s Schema, opts ...Option) *Parser {
	p := &Parser{schema: s, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the filter tree of text, or nil for an empty filter.
// Syntax and operand errors are invalid-filter errors.
func (p *Parser) Parse(text string) (Node, error) {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return nil, nil
	}
	tokens, err := p.lex(text)
	if err != nil {
		return nil, err
	}

	g := &grammar{tokens: tokens}
	root, err := g.or()
	if err != nil {
		return nil, err
	}
	if g.pos != len(g.tokens) {
		return nil, apierr.ServerError("Unexpected trailing tokens while parsing filter '%s'.", text)
	}

	root = buffer(root)
	scopes, fields := collect(root)
	return &Objects{Scopes: scopes, Fields: fields, Child: root}, nil
}

// grammar is a recursive descent over lexed tokens. The lexer has already
// enforced token order, so failures here are internal.
type grammar struct {
	tokens []token
	pos    int
}

func (g *grammar) peek() (tokenKind, bool) {
	if g.pos >= len(g.tokens) {
		return 0, false
	}
	return g.tokens[g.pos].kind, true
}

func (g *grammar) or() (Node, error) {
	return g.chain(tokOr, OpOr, g.and)
}

func (g *grammar) and() (Node, error) {
	return g.chain(tokAnd, OpAnd, g.not)
}

func (g *grammar) chain(kind tokenKind, op string, next func() (Node, error)) (Node, error) {
	first, err := next()
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for {
		k, ok := g.peek()
		if !ok || k != kind {
			break
		}
		g.pos++
		n, err := next()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &LogicOp{Op: op, Children: children}, nil
}

func (g *grammar) not() (Node, error) {
	if k, ok := g.peek(); ok && k == tokNot {
		g.pos++
		child, err := g.not()
		if err != nil {
			return nil, err
		}
		return &LogicOp{Op: OpNot, Children: []Node{child}}, nil
	}
	return g.primary()
}

func (g *grammar) primary() (Node, error) {
	k, ok := g.peek()
	if !ok {
		return nil, apierr.ServerError("Unexpected end of tokens while parsing filter.")
	}
	switch k {
	case tokOpen:
		g.pos++
		if k, ok := g.peek(); ok && k == tokClose {
			return nil, apierr.ServerError("Unexpected empty parentheses grouping while parsing filter.")
		}
		n, err := g.or()
		if err != nil {
			return nil, err
		}
		if k, ok := g.peek(); !ok || k != tokClose {
			return nil, apierr.ServerError("Unexpected end of tokens array while parsing filter.")
		}
		g.pos++
		return n, nil
	case tokClause:
		c := g.tokens[g.pos].clause
		g.pos++
		return c, nil
	default:
		return nil, apierr.ServerError("Unexpected token while parsing filter.")
	}
}

// buffer inserts an Objects node between a LogicOp and each child needing
// fewer scopes than the LogicOp.
func buffer(n Node) Node {
	op, ok := n.(*LogicOp)
	if !ok {
		return n
	}
	for i, c := range op.Children {
		op.Children[i] = buffer(c)
	}
	parentScopes, _ := collect(op)
	for i, c := range op.Children {
		scopes, fields := collect(c)
		if len(parentScopes) > len(scopes) {
			op.Children[i] = &Objects{Scopes: scopes, Fields: fields, Child: c}
		}
	}
	return op
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// clause validates one comparison and converts its operand to a bind
// value.
func (p *Parser) clause(apiField, op, operand string) (*Clause, error) {
	typ := p.schema.Type(apiField)
	if typ == "array" || typ == "object" {
		return nil, fmt.Errorf("Filters cannot be applied directly to objects or arrays -- specify ids or specific fields: '%s'", apiField)
	}
	switch op {
	case "ct", "not ct", "like", "not like":
		if typ != "string" {
			return nil, fmt.Errorf("The '%s' operator only works with string values but it was used with %s field '%s'", op, typ, apiField)
		}
		if op == "ct" || op == "not ct" {
			operand = "%" + operand + "%"
		}
	}

	var value any = operand
	switch typ {
	case "integer", "number":
		v, ok := numeric(operand)
		if !ok {
			return nil, fmt.Errorf("Numeric field '%s' can only be compared against numeric types, but it was compared to '%s'", apiField, operand)
		}
		value = v
	case "date", "dateTime":
		t, err := p.parseTime(operand)
		if err != nil {
			return nil, fmt.Errorf("Could not parse a date or date-time value from '%s' for field '%s'", operand, apiField)
		}
		if typ == "date" {
			value = t.Format("2006-01-02")
		} else {
			value = t.UTC().Format(time.RFC3339)
		}
	}

	db := p.schema.DBField(apiField)
	return &Clause{
		APIField: apiField,
		Field:    db,
		Scope:    p.schema.Scope(db),
		Type:     typ,
		Op:       comparisonOps[op],
		Value:    value,
	}, nil
}

func numeric(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func (p *Parser) parseTime(s string) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse("15:04:05", s); err == nil {
		y, m, d := p.now().UTC().Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
	}
	return time.Time{}, errors.New("unrecognized date format")
}
