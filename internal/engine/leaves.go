package engine

import (
	"sort"
	"strings"

	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/queryir"
	"github.com/roach88/bandmap/internal/schema"
	"github.com/roach88/bandmap/internal/sortspec"
)

// entityTree lists the requested entities beneath the root and the data
// fields each one selects.
type entityTree struct {
	children map[string][]string
	fields   map[string][]string
}

// entities builds the tree of entities the requested fields reach.
// Count fields pull in the entity they count.
func (r *run) entities() *entityTree {
	d := r.d
	et := &entityTree{children: map[string][]string{}, fields: map[string][]string{}}
	seen := map[string]bool{d.RootPath: true}

	var add func(path string)
	add = func(path string) {
		if seen[path] || !strings.HasPrefix(path, d.RootPath+".") {
			return
		}
		if _, err := r.e.cat.ObjectForPath(path); err != nil {
			return
		}
		seen[path] = true
		parent := catalog.ParentPath(path)
		add(parent)
		et.children[parent] = append(et.children[parent], path)
	}

	for _, f := range d.Resolution.Requested {
		holder, name := catalog.ParentPath(f), catalog.LastPart(f)
		if holder != d.RootPath && !strings.HasPrefix(holder, d.RootPath+".") {
			continue
		}
		if schema.IsContainer(d.Resolution.Type(f)) {
			continue
		}
		add(holder)
		if !seen[holder] {
			continue
		}
		if r.e.cat.IsCountField(name) {
			add(r.counted(holder, name))
		}
		if name != "link" {
			et.fields[holder] = appendUnique(et.fields[holder], name)
		}
	}

	for parent, kids := range et.children {
		et.children[parent] = r.schemaOrder(kids)
	}
	return et
}

// leaves returns every root-to-leaf entity path of the tree, in depth
// first schema order.
func (et *entityTree) leaves(root string) [][]string {
	var out [][]string
	var walk func(path []string)
	walk = func(path []string) {
		kids := et.children[path[len(path)-1]]
		if len(kids) == 0 {
			out = append(out, append([]string(nil), path...))
			return
		}
		for _, k := range kids {
			walk(append(path, k))
		}
	}
	walk([]string{root})
	return out
}

// leafChains builds one chain per leaf. root is the first link of every
// chain; only the first chain counts it.
func (r *run) leafChains(root queryir.Link, keys []sortspec.Key) [][]queryir.Link {
	et := r.entities()
	drained := map[string]bool{}

	var chains [][]queryir.Link
	for i, leaf := range et.leaves(r.d.RootPath) {
		chain := queryir.Clone(r.above)
		for j, path := range leaf {
			next := ""
			if j+1 < len(leaf) {
				next = leaf[j+1]
			}
			var link queryir.Link
			if j == 0 {
				link = queryir.Clone([]queryir.Link{root})[0]
				if i > 0 {
					link.Count = queryir.CountNone
				}
			} else {
				link = queryir.Link{Path: path, Sort: r.linkSort(keys, path, next)}
			}
			link.Fields = append(link.Fields, r.drain(et, drained, path, next)...)
			link.Fields = append(link.Fields, r.sortFields(link.Sort, path)...)
			chain = append(chain, link)
		}
		chains = append(chains, chain)
	}
	return chains
}

// drain hands out the fields of path not yet selected by an earlier leaf.
// A count field waits for the leaf that follows path with the counted
// entity.
func (r *run) drain(et *entityTree, drained map[string]bool, path, next string) []string {
	var out []string
	for _, name := range et.fields[path] {
		key := path + "." + name
		if drained[key] {
			continue
		}
		if r.e.cat.IsCountField(name) && r.counted(path, name) != next {
			continue
		}
		drained[key] = true
		out = append(out, name)
	}
	return out
}

// linkSort picks the keys held by path. Count keys need the counted
// entity as the next link. Nested links fall back to their primary id.
func (r *run) linkSort(keys []sortspec.Key, path, next string) []queryir.SortKey {
	var out []queryir.SortKey
	for _, k := range keys {
		holder, name := catalog.ParentPath(k.Field), catalog.LastPart(k.Field)
		if holder != path {
			continue
		}
		if r.e.cat.IsCountField(name) && r.counted(holder, name) != next {
			continue
		}
		out = append(out, queryir.SortKey{Field: k.Field, Desc: k.Desc})
	}
	if path == r.d.RootPath {
		return out
	}
	obj, err := r.e.cat.ObjectForPath(path)
	if err != nil {
		return out
	}
	pid := path + "." + obj.PrimaryID
	for _, k := range out {
		if k.Field == pid {
			return out
		}
	}
	return append(out, queryir.SortKey{Field: pid})
}

// sortFields lists the count fields a link sorts on, so the counted link
// is flagged.
func (r *run) sortFields(keys []queryir.SortKey, path string) []string {
	var out []string
	for _, k := range keys {
		if catalog.ParentPath(k.Field) == path && r.e.cat.IsCountField(catalog.LastPart(k.Field)) {
			out = append(out, catalog.LastPart(k.Field))
		}
	}
	return out
}

// schemaOrder sorts entity paths by their position in the field set.
// Unknown paths go last in their given order.
func (r *run) schemaOrder(paths []string) []string {
	index := make(map[string]int, len(r.d.Resolution.Keys))
	for i, k := range r.d.Resolution.Keys {
		if _, ok := index[k]; !ok {
			index[k] = i
		}
	}
	pos := func(p string) int {
		if i, ok := index[p]; ok {
			return i
		}
		return len(index)
	}
	out := append([]string(nil), paths...)
	sort.SliceStable(out, func(i, j int) bool { return pos(out[i]) < pos(out[j]) })
	return out
}
