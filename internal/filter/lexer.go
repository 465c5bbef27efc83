package filter

import (
	"fmt"
	"strings"

	"github.com/roach88/bandmap/internal/apierr"
)

type tokenKind int

const (
	tokOpen tokenKind = iota
	tokClose
	tokNot
	tokAnd
	tokOr
	tokClause
)

type token struct {
	kind   tokenKind
	clause *Clause
}

// part is the clause position of the last token seen.
type part int

const (
	partNone part = iota
	partUnaryNot
	partField
	partNot
	partCmpOperator
	partOperand
	partLogicalOperator
)

var comparisonOps = map[string]string{
	"=":        "=",
	"!=":       "!=",
	">":        ">",
	">=":       ">=",
	"<":        "<",
	"<=":       "<=",
	"like":     "like",
	"not like": "not like",
	"eq":       "=",
	"ne":       "!=",
	"gt":       ">",
	"ge":       ">=",
	"lt":       "<",
	"le":       "<=",
	"ct":       "like",
	"not ct":   "not like",
}

func isDelimiter(c rune) bool {
	switch c {
	case ' ', '\t', '\n', '\'', '"', '(', ')', '=', '!', '>', '<':
		return true
	}
	return false
}

func isSingleCharToken(c rune) bool {
	return c == '\'' || c == '"' || c == '(' || c == ')'
}

// lexer turns a lowercased filter string into validated tokens. Clauses
// are validated as soon as their operand is read, so every error can name
// the index it was detected at.
type lexer struct {
	p      *Parser
	text   string
	src    []rune
	i      int
	buf    []rune
	quote  rune
	escape bool
	parens int
	last   part
	field  string
	op     string
	tokens []token
}

func (p *Parser) lex(text string) ([]token, error) {
	l := &lexer{p: p, text: text, src: []rune(text)}

	for l.i = 0; l.i < len(l.src); l.i++ {
		c := l.src[l.i]
		switch {
		case l.escape:
			switch c {
			case 'n':
				l.buf = append(l.buf, '\n')
			case 't':
				l.buf = append(l.buf, '\t')
			default:
				l.buf = append(l.buf, c)
			}
			l.escape = false

		case c == '\\':
			if l.quote == 0 {
				return nil, l.errorf("Unexpected escape character in filter")
			}
			l.escape = true

		case l.quote != 0:
			if c == l.quote {
				if err := l.literal(); err != nil {
					return nil, err
				}
				continue
			}
			l.buf = append(l.buf, c)

		case isDelimiter(c):
			if err := l.flush(); err != nil {
				return nil, err
			}
			l.buf = append(l.buf[:0], c)
			if isSingleCharToken(c) {
				if err := l.flush(); err != nil {
					return nil, err
				}
				continue
			}
			candidate := string(c)
			if (c == '!' || c == '<' || c == '>') && l.i+1 < len(l.src) && l.src[l.i+1] == '=' {
				candidate += "="
				l.i++
			}
			switch candidate {
			case "=", "!=", "<", "<=", ">", ">=":
				l.buf = append(l.buf[:0], []rune(candidate)...)
				if err := l.flush(); err != nil {
					return nil, err
				}
			}

		default:
			l.buf = append(l.buf, c)
		}
	}

	if l.quote != 0 {
		return nil, apierr.InvalidFilter("Filter argument is missing a closing quote: %s", l.text)
	}
	if err := l.flush(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(l.text) != "" && l.last != partOperand {
		return nil, apierr.InvalidFilter("Filter argument is missing a final operand: %s", l.text)
	}
	if l.parens != 0 {
		return nil, apierr.InvalidFilter("Filter argument is missing a close parenthesis ')': %s", l.text)
	}
	return l.tokens, nil
}

// errorf builds an invalid-filter error located at the current index.
func (l *lexer) errorf(format string, args ...any) error {
	return apierr.InvalidFilter("%s at index %d: '%s...'", fmt.Sprintf(format, args...), l.i, l.upTo())
}

func (l *lexer) upTo() string {
	end := l.i + 1
	if end > len(l.src) {
		end = len(l.src)
	}
	return string(l.src[:end])
}

func (l *lexer) emit(kind tokenKind) {
	l.tokens = append(l.tokens, token{kind: kind})
}

// literal ends a quoted string. String literals are only valid operands.
func (l *lexer) literal() error {
	value := string(l.buf)
	l.buf = l.buf[:0]
	l.quote = 0
	if l.last != partCmpOperator {
		return l.errorf("Unexpected string literal '%s' in filter", value)
	}
	return l.finishClause(value)
}

func (l *lexer) flush() error {
	tok := strings.TrimSpace(string(l.buf))
	l.buf = l.buf[:0]
	if tok == "" {
		return nil
	}

	switch {
	case tok == "'" || tok == `"`:
		l.quote = rune(tok[0])

	case tok == "(":
		if l.last != partNone && l.last != partUnaryNot && l.last != partLogicalOperator {
			return l.errorf("Unexpected open parenthesis in filter")
		}
		l.parens++
		l.emit(tokOpen)

	case tok == ")":
		if l.last != partOperand || l.parens < 1 {
			return apierr.InvalidFilter("Unexpected close parenthesis at index %d: '%s...'", l.i, l.upTo())
		}
		l.parens--
		l.emit(tokClose)

	case tok == OpNot:
		switch l.last {
		case partField:
			l.last = partNot
		case partNone, partLogicalOperator, partUnaryNot:
			l.emit(tokNot)
			l.last = partUnaryNot
		default:
			return l.errorf("Unexpected 'not' operator in filter")
		}

	case comparisonOps[tok] != "":
		switch {
		case l.last == partNot && (tok == "ct" || tok == "like"):
			l.op = "not " + tok
		case l.last == partField:
			l.op = tok
		default:
			return l.errorf("Unexpected '%s' operator in filter", tok)
		}
		l.last = partCmpOperator

	case tok == OpAnd || tok == OpOr:
		if l.last != partOperand {
			return l.errorf("Unexpected '%s' operator in filter", tok)
		}
		if tok == OpAnd {
			l.emit(tokAnd)
		} else {
			l.emit(tokOr)
		}
		l.last = partLogicalOperator

	case l.last == partNone || l.last == partUnaryNot || l.last == partLogicalOperator:
		field, ok := l.p.schema.Lookup(tok)
		if !ok {
			return apierr.InvalidFilter("Unrecognized field '%s' in filter at index %d%s: '%s...'",
				tok, l.i, l.p.schema.Suggest(tok), l.upTo())
		}
		l.field = field
		l.last = partField

	case l.last == partCmpOperator:
		return l.finishClause(tok)

	default:
		return l.errorf("Unexpected token '%s' in filter", tok)
	}
	return nil
}

func (l *lexer) finishClause(operand string) error {
	c, err := l.p.clause(l.field, l.op, operand)
	if err != nil {
		return l.errorf("%s", err.Error())
	}
	l.tokens = append(l.tokens, token{kind: tokClause, clause: c})
	l.last = partOperand
	return nil
}
