// Package filter parses the filter query argument into a filter tree.
//
// GRAMMAR:
//
//	expr    = or
//	or      = and { "or" and }
//	and     = not { "and" not }
//	not     = "not" not | primary
//	primary = "(" expr ")" | clause
//	clause  = field op operand
//
// Operators are = != > >= < <= like "not like" and the aliases eq ne gt ge
// lt le ct "not ct". ct wraps its operand in % wildcards. Operands are bare
// words or single/double quoted strings; inside quotes \n and \t are
// newline and tab and \x is x.
//
// The whole filter string is lowercased before tokenizing, so string
// comparisons are caseless (the SQL compiler lowers string columns to
// match).
//
// TREE:
//
// A tree is made of LogicOp, Objects and Clause nodes. The root is always
// an Objects node naming every entity scope the filter touches. Below a
// LogicOp, a child whose scopes are a strict subset of its parent's is
// wrapped in its own Objects node, so a planner can tell single-entity
// subtrees from ones that need a multi-entity join.
package filter
