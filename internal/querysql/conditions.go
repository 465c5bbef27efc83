package querysql

import (
	"strings"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/filter"
	"github.com/roach88/bandmap/internal/queryir"
)

var sqlOps = map[string]string{
	"=":        "=",
	"!=":       "!=",
	">":        ">",
	">=":       ">=",
	"<":        "<",
	"<=":       "<=",
	"like":     "LIKE",
	"not like": "NOT LIKE",
}

// conditions renders the WHERE terms of a step. String columns compare
// in lower case on both sides.
func (b *build) conditions(cur *step) ([]string, error) {
	var terms []string
	for _, cond := range cur.link.Conditions {
		var term string
		var err error
		switch c := cond.(type) {
		case queryir.Match:
			if c.Tree == nil {
				continue
			}
			term, err = b.match(cur, c.Tree)
		case queryir.Equal:
			var expr string
			var lower bool
			if expr, lower, err = b.field(cur, c.Field); err == nil {
				term = expr + " = " + b.bind(lowered(c.Value, lower))
			}
		case queryir.AnyOf:
			term, err = b.anyOf(cur, c)
		default:
			err = apierr.ServerError("Unsupported query condition %T.", cond)
		}
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func (b *build) anyOf(cur *step, c queryir.AnyOf) (string, error) {
	expr, lower, err := b.field(cur, c.Field)
	if err != nil {
		return "", err
	}
	if len(c.Values) == 0 {
		return "1 = 0", nil
	}
	ph := make([]string, len(c.Values))
	for i, v := range c.Values {
		ph[i] = b.bind(lowered(v, lower))
	}
	return expr + " IN (" + strings.Join(ph, ", ") + ")", nil
}

// match renders a filter tree with explicit parentheses.
func (b *build) match(cur *step, n filter.Node) (string, error) {
	switch n := n.(type) {
	case *filter.Objects:
		return b.match(cur, n.Child)
	case *filter.LogicOp:
		parts := make([]string, len(n.Children))
		for i, child := range n.Children {
			s, err := b.match(cur, child)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		if n.Op == filter.OpNot {
			return "NOT (" + parts[0] + ")", nil
		}
		return "(" + strings.Join(parts, ") "+strings.ToUpper(n.Op)+" (") + ")", nil
	case *filter.Clause:
		op, ok := sqlOps[n.Op]
		if !ok {
			return "", apierr.ServerError("Unsupported filter operator '%s'.", n.Op)
		}
		expr, lower, err := b.clauseField(cur, n)
		if err != nil {
			return "", err
		}
		return expr + " " + op + " " + b.bind(lowered(n.Value, lower)), nil
	default:
		return "", apierr.ServerError("Unsupported filter node %T.", n)
	}
}

// clauseField resolves a clause on the step's own entity, or on a column
// carried from an earlier link.
func (b *build) clauseField(cur *step, c *filter.Clause) (string, bool, error) {
	if catalog.ParentPath(c.Field) == cur.link.Path {
		return b.field(cur, catalog.LastPart(c.Field))
	}
	if b.prev == nil {
		return "", false, apierr.ServerError("Filter field '%s' is not available on object '%s'.", c.Field, cur.link.Path)
	}
	expr := b.prev.alias + "." + b.c.cat.OutputName(c.Field)
	if c.Type == "string" {
		return "LOWER(" + expr + ")", true, nil
	}
	return expr, false, nil
}

// field resolves an entity field of the step to its column expression.
func (b *build) field(cur *step, name string) (string, bool, error) {
	f, ok := cur.obj.Fields[name]
	if !ok {
		return "", false, apierr.ServerError("Object '%s' has no field '%s'.", cur.link.Path, name)
	}
	tableAlias := f.TableAlias
	if tableAlias == "" {
		tableAlias = cur.alias
	}
	expr := tableAlias + "." + f.Column
	if f.Type == "string" {
		return "LOWER(" + expr + ")", true, nil
	}
	return expr, false, nil
}

func lowered(v any, lower bool) any {
	if s, ok := v.(string); ok && lower {
		return strings.ToLower(s)
	}
	return v
}
