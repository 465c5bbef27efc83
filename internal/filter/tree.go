package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is a filter tree node: *LogicOp, *Objects or *Clause.
type Node interface {
	node()
}

// Logical operators.
const (
	OpAnd = "and"
	OpOr  = "or"
	OpNot = "not"
)

// LogicOp combines its children with and/or, or negates its only child.
type LogicOp struct {
	Op       string
	Children []Node
}

// Objects records the entity scopes and storage fields needed below it.
type Objects struct {
	Scopes []string
	Fields []string
	Child  Node
}

// Clause is one comparison.
type Clause struct {
	// APIField is the field as addressed in the request ("bands.name").
	APIField string

	// Field is the storage path ("bands.name" or "bands.people.name").
	Field string

	// Scope is the entity path that owns Field. For count fields it is
	// the counted entity ("bands.people" for "bands.peopleCount").
	Scope string

	// Type is the schema type of the field.
	Type string

	// Op is the SQL comparison operator: = != > >= < <= like "not like".
	Op string

	// Value is the bound operand: string, int64 or float64.
	Value any
}

func (*LogicOp) node() {}
func (*Objects) node() {}
func (*Clause) node() {}

// Scopes returns the entity scopes needed to evaluate n, in first-seen
// order.
func Scopes(n Node) []string {
	if o, ok := n.(*Objects); ok {
		return o.Scopes
	}
	scopes, _ := collect(n)
	return scopes
}

// Fields returns the storage fields referenced below n, in first-seen
// order.
func Fields(n Node) []string {
	if o, ok := n.(*Objects); ok {
		return o.Fields
	}
	_, fields := collect(n)
	return fields
}

// Clauses returns every clause below n in left-to-right order.
func Clauses(n Node) []*Clause {
	var out []*Clause
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Clause:
			out = append(out, n)
		case *LogicOp:
			for _, c := range n.Children {
				walk(c)
			}
		case *Objects:
			walk(n.Child)
		}
	}
	walk(n)
	return out
}

func collect(n Node) (scopes, fields []string) {
	for _, c := range Clauses(n) {
		fields = appendUnique(fields, c.Field)
		scopes = appendUnique(scopes, c.Scope)
	}
	return scopes, fields
}

func appendUnique(set []string, v string) []string {
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}

// Print renders n fully parenthesized, using API field names.
func Print(n Node) string {
	var b strings.Builder
	render(&b, n, false)
	return b.String()
}

func render(b *strings.Builder, n Node, nested bool) {
	switch n := n.(type) {
	case *Objects:
		render(b, n.Child, nested)
	case *Clause:
		fmt.Fprintf(b, "%s %s %s", n.APIField, n.Op, formatValue(n.Value))
	case *LogicOp:
		if nested {
			b.WriteByte('(')
		}
		if n.Op == OpNot {
			b.WriteString("not ")
			render(b, n.Children[0], true)
		} else {
			for i, c := range n.Children {
				if i > 0 {
					fmt.Fprintf(b, " %s ", n.Op)
				}
				render(b, c, true)
			}
		}
		if nested {
			b.WriteByte(')')
		}
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Dump returns a nested, YAML-friendly rendering of n that shows Objects
// nodes and bound values.
func Dump(n Node) any {
	switch n := n.(type) {
	case *Objects:
		return []any{strings.Join(n.Scopes, " "), Dump(n.Child)}
	case *LogicOp:
		children := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			children = append(children, Dump(c))
		}
		return []any{n.Op, children}
	case *Clause:
		return []any{fmt.Sprintf("%s %s {bind: %s}", n.Field, n.Op, formatValue(n.Value))}
	default:
		return nil
	}
}
