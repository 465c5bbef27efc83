package engine

import (
	"strings"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/queryir"
	"github.com/roach88/bandmap/internal/store"
)

// node is one object of the result tree, keyed in its collection by
// primary id.
type node struct {
	fields   map[string]any
	children map[string]*collection
}

func newNode() *node {
	return &node{fields: map[string]any{}, children: map[string]*collection{}}
}

// collection holds child objects in first-seen order.
type collection struct {
	order []any
	nodes map[any]*node
}

func newCollection() *collection {
	return &collection{nodes: map[any]*node{}}
}

func (c *collection) get(key any) *node {
	n, ok := c.nodes[key]
	if !ok {
		n = newNode()
		c.nodes[key] = n
		c.order = append(c.order, key)
	}
	return n
}

// reorder puts keys first in the given order. Keys not listed follow in
// their current order; listed keys that are absent are skipped.
func (c *collection) reorder(keys []any) {
	out := make([]any, 0, len(c.order))
	placed := make(map[any]bool, len(keys))
	for _, k := range keys {
		if _, ok := c.nodes[k]; ok && !placed[k] {
			placed[k] = true
			out = append(out, k)
		}
	}
	for _, k := range c.order {
		if !placed[k] {
			out = append(out, k)
		}
	}
	c.order = out
}

// tree is the folded result of one or more leaf statements.
type tree struct {
	root *node
}

func newTree() *tree {
	return &tree{root: newNode()}
}

// target places one output column in the tree: the entities to descend
// through, and the field name on the last one.
type target struct {
	column   int
	entities []string
	pids     []string
	field    string
}

// columnMap maps output column names to their tree location. Every
// known storage field and the primary id of each entity on the way is
// mapped; the collection count of the requested root maps to the
// "total" field of its container.
func (r *run) columnMap() map[string][]string {
	d := r.d
	cols := make(map[string][]string, len(d.Resolution.Keys))
	for _, key := range d.Resolution.Keys {
		cols[r.e.cat.OutputName(key)] = strings.Split(key, ".")
	}

	paths := []string{d.RootPath}
	for _, c := range d.Containers {
		paths = append(paths, c.Path)
	}
	et := r.entities()
	for _, kids := range et.children {
		paths = append(paths, kids...)
	}
	for _, p := range paths {
		obj, err := r.e.cat.ObjectForPath(p)
		if err != nil {
			continue
		}
		key := p + "." + obj.PrimaryID
		cols[r.e.cat.OutputName(key)] = strings.Split(key, ".")
	}

	total := []string{"total"}
	if parent := catalog.ParentPath(d.RootPath); parent != "" {
		total = append(strings.Split(parent, "."), "total")
	}
	cols[catalog.CountColumn(d.RootPath)] = total
	return cols
}

// targets resolves every column of a statement against cols. Unknown
// columns are dropped.
func (r *run) targets(columns []string, cols map[string][]string) ([]target, error) {
	out := make([]target, 0, len(columns))
	for i, name := range columns {
		parts, ok := cols[name]
		if !ok {
			continue
		}
		t := target{column: i, field: parts[len(parts)-1]}
		for j := 1; j < len(parts); j++ {
			path := strings.Join(parts[:j], ".")
			obj, err := r.e.cat.ObjectForPath(path)
			if err != nil {
				return nil, err
			}
			t.entities = append(t.entities, parts[j-1])
			t.pids = append(t.pids, r.e.cat.OutputName(path+"."+obj.PrimaryID))
		}
		out = append(out, t)
	}
	return out, nil
}

// fold folds the rows of one statement into t.
func (r *run) fold(t *tree, columns []string, rows []store.Row, cols map[string][]string) error {
	targets, err := r.targets(columns, cols)
	if err != nil {
		return err
	}
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}

	for _, row := range rows {
		for _, tg := range targets {
			value := row.Values[tg.column]
			if value == nil {
				continue
			}
			n := t.root
			for j, entity := range tg.entities {
				pos, ok := index[tg.pids[j]]
				if !ok {
					return apierr.ServerError("Expected primary id '%s' but found '%s' while scanning rows returned from database.",
						tg.pids[j], strings.Join(columns, ", "))
				}
				key := row.Values[pos]
				if key == nil {
					n = nil
					break
				}
				c, ok := n.children[entity]
				if !ok {
					c = newCollection()
					n.children[entity] = c
				}
				n = c.get(key)
			}
			if n != nil {
				n.fields[tg.field] = value
			}
		}
	}
	return nil
}

// merge folds o into t. Fields are unioned; children keep t's order with
// o's new keys appended.
func (t *tree) merge(o *tree) {
	mergeNode(t.root, o.root)
}

func mergeNode(dst, src *node) {
	for k, v := range src.fields {
		if _, ok := dst.fields[k]; !ok {
			dst.fields[k] = v
		}
	}
	for name, sc := range src.children {
		dc, ok := dst.children[name]
		if !ok {
			dst.children[name] = sc
			continue
		}
		for _, key := range sc.order {
			mergeNode(dc.get(key), sc.nodes[key])
		}
	}
}

// at descends through the container links to the node holding the
// requested objects.
func (t *tree) at(above []queryir.Link) *node {
	n := t.root
	for _, l := range above {
		c, ok := n.children[catalog.LastPart(l.Path)]
		if !ok {
			return nil
		}
		key := containerKey(l)
		if n, ok = c.nodes[key]; !ok {
			return nil
		}
	}
	return n
}

// collectionAt returns the collection of entity path beneath above.
func (t *tree) collectionAt(above []queryir.Link, path string) *collection {
	n := t.at(above)
	if n == nil {
		return nil
	}
	return n.children[catalog.LastPart(path)]
}

// total returns the folded collection count beneath above.
func (t *tree) total(above []queryir.Link) (int64, bool) {
	n := t.at(above)
	if n == nil {
		return 0, false
	}
	return toInt64(n.fields["total"])
}

// containerKey returns the primary id a resolved container link is
// restricted to.
func containerKey(l queryir.Link) any {
	for _, c := range l.Conditions {
		if eq, ok := c.(queryir.Equal); ok {
			return eq.Value
		}
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
