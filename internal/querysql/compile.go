// Package querysql compiles query chains into one SQL statement: a WITH
// pipeline holding one named table expression per link.
//
// Every value is bound, never interpolated. Placeholders are numbered
// across the whole statement, so a step that is repeated for counting
// reuses the numbers of the step it copies.
package querysql

import (
	"strings"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/queryir"
)

// Pipeline is a compiled statement.
type Pipeline struct {
	SQL  string
	Args []any

	// Columns lists the output columns of the final SELECT in order.
	Columns []string
}

// Compiler builds pipelines from the catalog's join and count templates.
// Safe for concurrent use.
type Compiler struct {
	cat     *catalog.Catalog
	dialect Dialect
}

// NewCompiler creates a compiler for dialect.
func NewCompiler(cat *catalog.Catalog, dialect Dialect) *Compiler {
	return &Compiler{cat: cat, dialect: dialect}
}

// Dialect returns the placeholder dialect.
func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// column is one output column of a step: expr AS name.
type column struct {
	expr string
	name string
}

func (col column) String() string {
	return col.expr + " AS " + col.name
}

// step is the compiled state of one link, kept so later links can join
// to it.
type step struct {
	link   *queryir.Link
	obj    *catalog.Object
	alias  string
	prefix string
}

type build struct {
	c     *Compiler
	chain []queryir.Link

	args    []any
	withs   []string
	columns []string
	sorts   []string
	prev    *step
}

// Compile turns chain into one pipeline. The chain is not modified.
func (c *Compiler) Compile(chain []queryir.Link) (*Pipeline, error) {
	if err := queryir.Validate(chain); err != nil {
		return nil, err
	}
	b := &build{c: c, chain: queryir.Clone(chain)}

	for i := range b.chain {
		l := &b.chain[i]
		if l.IsTerminal() {
			return b.grouped(l)
		}
		if err := b.link(i); err != nil {
			return nil, err
		}
	}
	return b.final()
}

func (b *build) bind(v any) string {
	b.args = append(b.args, v)
	return b.c.dialect.Placeholder(len(b.args))
}

// link emits the step for chain[i], plus its count steps when counted.
func (b *build) link(i int) error {
	l := &b.chain[i]
	obj, err := b.c.cat.ObjectForPath(l.Path)
	if err != nil {
		return err
	}
	alias, err := b.c.cat.AliasFor(strings.Split(l.Path, "."))
	if err != nil {
		return err
	}
	cur := &step{link: l, obj: obj, alias: alias, prefix: catalog.ColumnPrefix(l.Path)}

	// Columns of earlier links pass through unchanged.
	cols := make([]column, 0, len(b.columns)+len(l.Fields)+1)
	if b.prev != nil {
		for _, name := range b.columns {
			cols = append(cols, column{expr: b.prev.alias + "." + name, name: name})
		}
		cols = b.insertCount(cols)
	}

	cols = append(cols, b.ownColumns(i, cur)...)

	var joins []string
	if parent := catalog.ParentPath(l.Path); parent != "" {
		if b.prev == nil {
			return apierr.ServerError("Object '%s' needs its container '%s' earlier in the query chain.", l.Path, parent)
		}
		tmpl, err := b.c.cat.Join(obj, parent)
		if err != nil {
			return err
		}
		r := strings.NewReplacer("{{alias}}", alias, "{{prevAlias}}", b.prev.alias, "{{joinType}}", "RIGHT")
		joins = append(joins, r.Replace(tmpl))
	}
	if join := b.countJoin(); join != "" {
		joins = append(joins, join)
	}

	wheres, err := b.conditions(cur)
	if err != nil {
		return err
	}

	names := columnNames(cols)
	var order []string
	for _, k := range l.Sort {
		name, err := b.sortColumn(cur, k)
		if err != nil {
			return err
		}
		entry := name + " " + direction(k.Desc) + " NULLS LAST"
		if !contains(b.sorts, entry) {
			b.sorts = append(b.sorts, entry)
		}
		if !l.HasPaging() {
			continue
		}
		if !contains(names, name) {
			return apierr.ServerError("Sort field '%s' is not available on object '%s'.", k.Field, l.Path)
		}
		order = append(order, entry)
	}

	var paging []string
	if l.Limit != nil {
		paging = append(paging, "LIMIT "+b.bind(*l.Limit))
	}
	if l.Offset != nil {
		paging = append(paging, "OFFSET "+b.bind(*l.Offset))
	}

	tail := append([]string(nil), joins...)
	if len(wheres) > 0 {
		tail = append(tail, "WHERE "+strings.Join(wheres, " AND\n"))
	}
	if len(order) > 0 {
		tail = append(tail, "ORDER BY "+strings.Join(order, ",\n"))
	}
	tail = append(tail, paging...)
	b.withs = append(b.withs, cteBlock(alias, body(cur, cols, tail)))

	if l.Count != queryir.CountNone {
		b.count(cur, cols, joins, wheres)
	}

	b.columns = names
	b.prev = cur
	return nil
}

// ownColumns selects the link's entity fields, primary identifier first.
// Count fields flag the counted link further down the chain.
func (b *build) ownColumns(i int, cur *step) []column {
	l := cur.link
	var cols []column
	seen := make(map[string]bool)
	add := func(field string) {
		f, ok := cur.obj.Fields[field]
		if !ok {
			return
		}
		name := cur.prefix + strings.ToLower(field)
		if seen[name] {
			return
		}
		seen[name] = true
		tableAlias := f.TableAlias
		if tableAlias == "" {
			tableAlias = cur.alias
		}
		cols = append(cols, column{expr: tableAlias + "." + f.Column, name: name})
	}

	add(cur.obj.PrimaryID)
	for _, f := range l.Fields {
		if b.c.cat.IsCountField(f) {
			b.flagCount(i, f)
			continue
		}
		add(f)
	}
	for _, k := range l.Sort {
		if catalog.ParentPath(k.Field) == l.Path {
			add(catalog.LastPart(k.Field))
		}
	}
	return cols
}

// flagCount marks the next link of the entity counted by field.
func (b *build) flagCount(i int, field string) {
	target := b.c.cat.Canonical(b.chain[i].Path + "." + b.c.cat.CountedObject(field))
	for j := i + 1; j < len(b.chain); j++ {
		if b.chain[j].Path == target {
			if b.chain[j].Count == queryir.CountNone {
				b.chain[j].Count = queryir.CountUnfiltered
			}
			return
		}
	}
}

// count emits <alias>_count, and <alias>_all first when the step's own
// paging or conditions would undercount.
func (b *build) count(cur *step, cols []column, joins, wheres []string) {
	l := cur.link
	tmpl, ok := b.c.cat.CountTemplate(cur.obj, requester(l.Path))
	if !ok {
		// Nothing to join; later links must not look for this count.
		l.Count = queryir.CountNone
		return
	}

	filtered := l.Count == queryir.CountFiltered
	target := cur.alias
	if l.HasPaging() || (len(wheres) > 0 && !filtered) {
		tail := append([]string(nil), joins...)
		if filtered && len(wheres) > 0 {
			tail = append(tail, "WHERE "+strings.Join(wheres, " AND\n"))
		}
		target = cur.alias + "_all"
		b.withs = append(b.withs, cteBlock(target, body(cur, cols, tail)))
	}

	sel := strings.ReplaceAll(tmpl.Select, "{{alias}}", target)
	b.withs = append(b.withs, cteBlock(cur.alias+"_count", sel))
}

// insertCount adds the previous link's count column in front of its own
// columns.
func (b *build) insertCount(cols []column) []column {
	if b.prev == nil || b.prev.link.Count == queryir.CountNone {
		return cols
	}
	countCol := column{expr: b.prev.alias + "_count.count", name: b.prev.prefix + "count"}
	for i, col := range cols {
		if col.name == countCol.name {
			return cols
		}
		if strings.HasPrefix(col.name, b.prev.prefix) {
			cols = append(cols[:i], append([]column{countCol}, cols[i:]...)...)
			return cols
		}
	}
	return append(cols, countCol)
}

// countJoin joins the previous link's count step.
func (b *build) countJoin() string {
	if b.prev == nil || b.prev.link.Count == queryir.CountNone {
		return ""
	}
	tmpl, ok := b.c.cat.CountTemplate(b.prev.obj, requester(b.prev.link.Path))
	if !ok {
		return ""
	}
	return strings.ReplaceAll(tmpl.Join, "{{alias}}", b.prev.alias)
}

// sortColumn returns the output column ordering by k.
func (b *build) sortColumn(cur *step, k queryir.SortKey) (string, error) {
	name := catalog.LastPart(k.Field)
	if catalog.ParentPath(k.Field) == cur.link.Path {
		if _, ok := cur.obj.Fields[name]; !ok && !b.c.cat.IsCountField(name) {
			return "", apierr.ServerError("Object '%s' has no field '%s' to sort on.", cur.link.Path, name)
		}
	}
	return b.c.cat.OutputName(k.Field), nil
}

// final emits the closing SELECT of a regular pipeline.
func (b *build) final() (*Pipeline, error) {
	last := b.prev
	cols := make([]column, 0, len(b.columns)+1)
	for _, name := range b.columns {
		cols = append(cols, column{expr: last.alias + "." + name, name: name})
	}
	cols = b.insertCount(cols)
	names := columnNames(cols)

	for _, s := range b.sorts {
		if !contains(names, sortName(s)) {
			return nil, apierr.ServerError("Sort field '%s' is not available in the query results.", sortName(s))
		}
	}

	lines := []string{"SELECT", joinColumns(cols), "FROM " + last.alias}
	if join := b.countJoin(); join != "" {
		lines = append(lines, join)
	}
	if len(b.sorts) > 0 {
		lines = append(lines, "ORDER BY", strings.Join(b.sorts, ",\n"))
	}
	return b.pipeline(strings.Join(lines, "\n"), names), nil
}

// grouped emits the filtered, grouped and ordered steps that page root
// identifiers independently of deeper fan-out.
func (b *build) grouped(term *queryir.Link) (*Pipeline, error) {
	last := b.prev
	cols := make([]column, 0, len(b.columns)+1)
	for _, name := range b.columns {
		cols = append(cols, column{expr: last.alias + "." + name, name: name})
	}
	cols = b.insertCount(cols)
	names := columnNames(cols)

	filtered := []string{"SELECT", joinColumns(cols), "FROM " + last.alias}
	if join := b.countJoin(); join != "" {
		filtered = append(filtered, join)
	}
	b.withs = append(b.withs, cteBlock("filtered", strings.Join(filtered, "\n")))

	pid := b.c.cat.OutputName(term.GroupBy)
	if !contains(names, pid) {
		return nil, apierr.ServerError("Group by field '%s' is not in the query results.", term.GroupBy)
	}

	desc := make(map[string]bool, len(term.Sort))
	var order []string
	for _, k := range term.Sort {
		name := b.c.cat.OutputName(k.Field)
		if !contains(names, name) {
			return nil, apierr.ServerError("Sort field '%s' is not available in the query results.", k.Field)
		}
		desc[name] = k.Desc
		entry := name + " " + direction(k.Desc) + " NULLS LAST"
		if !contains(order, entry) {
			order = append(order, entry)
		}
	}

	// One row per root identifier; other columns take the value that
	// sorts first in their requested direction.
	aggregated := make([]column, len(names))
	for i, name := range names {
		switch {
		case name == pid:
			aggregated[i] = column{expr: "filtered." + name, name: name}
		case desc[name]:
			aggregated[i] = column{expr: "MAX(filtered." + name + ")", name: name}
		default:
			aggregated[i] = column{expr: "MIN(filtered." + name + ")", name: name}
		}
	}
	b.withs = append(b.withs, cteBlock("grouped", strings.Join([]string{
		"SELECT", joinColumns(aggregated), "FROM filtered", "GROUP BY filtered." + pid,
	}, "\n")))

	ordered := []string{"SELECT", joinColumns(passThrough("grouped", names)), "FROM grouped"}
	if len(order) > 0 {
		ordered = append(ordered, "ORDER BY "+strings.Join(order, ",\n"))
	}
	if term.Limit != nil {
		ordered = append(ordered, "LIMIT "+b.bind(*term.Limit))
	}
	if term.Offset != nil {
		ordered = append(ordered, "OFFSET "+b.bind(*term.Offset))
	}
	b.withs = append(b.withs, cteBlock("ordered", strings.Join(ordered, "\n")))

	lines := []string{"SELECT", joinColumns(passThrough("ordered", names)), "FROM ordered"}
	if len(order) > 0 {
		lines = append(lines, "ORDER BY", strings.Join(order, ",\n"))
	}
	return b.pipeline(strings.Join(lines, "\n"), names), nil
}

func (b *build) pipeline(final string, names []string) *Pipeline {
	sql := "WITH\n" + strings.Join(b.withs, ",\n") + "\n" + final
	return &Pipeline{SQL: sql, Args: b.args, Columns: names}
}

// body renders a step's SELECT from its object's template.
func body(cur *step, cols []column, tail []string) string {
	tmpl := cur.obj.WithClause
	if tmpl == "" {
		tmpl = "SELECT DISTINCT\n{{fields}}\nFROM " + cur.obj.Table + " AS {{alias}}\n{{wheres}}"
	}
	tmpl = strings.ReplaceAll(tmpl, "{{alias}}", cur.alias)
	tmpl = strings.Replace(tmpl, "{{fields}}", joinColumns(cols), 1)
	return strings.Replace(tmpl, "{{wheres}}", strings.Join(tail, "\n"), 1)
}

// cteBlock renders "name AS (body)" with blank lines dropped.
func cteBlock(name, body string) string {
	lines := []string{name + " AS ("}
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(append(lines, ")"), "\n")
}

func requester(path string) string {
	if parent := catalog.ParentPath(path); parent != "" {
		return parent
	}
	return catalog.RootRequester
}

func passThrough(alias string, names []string) []column {
	cols := make([]column, len(names))
	for i, name := range names {
		cols[i] = column{expr: alias + "." + name, name: name}
	}
	return cols
}

func joinColumns(cols []column) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = col.String()
	}
	return strings.Join(parts, ",\n")
}

func columnNames(cols []column) []string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.name
	}
	return names
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

func sortName(entry string) string {
	name, _, _ := strings.Cut(entry, " ")
	return name
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
