package engine

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/filter"
	"github.com/roach88/bandmap/internal/ir"
	"github.com/roach88/bandmap/internal/metrics"
	"github.com/roach88/bandmap/internal/queryir"
	"github.com/roach88/bandmap/internal/sortspec"
)

// collection fetches a page of root objects.
func (r *run) collection(ctx context.Context) (*Result, error) {
	d := r.d
	if err := r.checkFilter(); err != nil {
		return nil, err
	}
	keys := r.sortable()

	root := queryir.Link{
		Path:   d.RootPath,
		Limit:  queryir.IntPtr(d.Params.Limit),
		Offset: queryir.IntPtr(d.Params.Offset),
	}
	if d.Filter != nil {
		root.Conditions = []queryir.Condition{queryir.Match{Tree: d.Filter}}
	}
	if d.WantTotal {
		root.Count = queryir.CountFiltered
	}

	if d.Params.Limit == 0 {
		return r.empty(ctx, root)
	}
	r.above = r.prefix

	var order []any
	var total *int64
	if r.nestedSort(keys) {
		ids, n, err := r.fsl(ctx, root, keys)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 && !r.planOnly {
			return nil, r.noneFound()
		}
		order, total = ids, n
		root.Conditions = []queryir.Condition{queryir.AnyOf{Field: d.RootObject.PrimaryID, Values: ids}}
		root.Sort, root.Limit, root.Offset, root.Count = nil, nil, nil, queryir.CountNone
		root.RootOrder = ids
	} else {
		root.Sort = r.linkSort(keys, d.RootPath, "")
	}

	t, err := r.runLeaves(ctx, r.leafChains(root, keys))
	if err != nil {
		return nil, err
	}
	if r.planOnly {
		return &Result{}, nil
	}

	roots := t.collectionAt(r.above, d.RootPath)
	if roots == nil || len(roots.order) == 0 {
		return nil, r.noneFound()
	}
	if order != nil {
		roots.reorder(order)
	}
	objects, err := r.assemble(roots, d.RootPath)
	if err != nil {
		return nil, err
	}

	res := &Result{Total: int64(len(objects)), Objects: objects}
	if total != nil {
		res.Total = *total
	} else if n, ok := t.total(r.above); ok {
		res.Total = n
	}
	return res, nil
}

// checkFilter rejects filters on anything but the root entity's columns.
func (r *run) checkFilter() error {
	d := r.d
	if d.Filter == nil {
		return nil
	}
	for _, scope := range filter.Scopes(d.Filter) {
		if scope != d.RootPath {
			return apierr.NotImplemented("Sorry, filtering collections by fields in their subcollections is not implemented yet.")
		}
	}
	for _, c := range filter.Clauses(d.Filter) {
		if _, ok := d.RootObject.Fields[catalog.LastPart(c.Field)]; !ok {
			return apierr.InvalidFilter("Filtering on field '%s' is not supported.", c.APIField)
		}
	}
	return nil
}

// sortable drops sort keys that cannot order the root collection:
// envelope fields and fields without a storage column.
func (r *run) sortable() []sortspec.Key {
	d := r.d
	var keys []sortspec.Key
	var dropped []string
	for _, k := range d.Sort {
		if !strings.HasPrefix(k.Field, d.RootPath+".") || !r.sortColumn(k.Field) {
			dropped = append(dropped, "'"+k.API+"'")
			continue
		}
		keys = append(keys, k)
	}
	if len(dropped) > 0 {
		d.Issues.Warn(http.StatusBadRequest, apierr.CodeInvalidArguments,
			"Ignoring %d 'sort' argument(s) on fields that cannot be sorted: %s",
			len(dropped), strings.Join(dropped, ", "))
	}
	return keys
}

// sortColumn reports whether a storage field is a column or a count of
// its holder.
func (r *run) sortColumn(field string) bool {
	name := catalog.LastPart(field)
	if r.e.cat.IsCountField(name) {
		return true
	}
	obj, err := r.e.cat.ObjectForPath(catalog.ParentPath(field))
	if err != nil {
		return false
	}
	_, ok := obj.Fields[name]
	return ok
}

// nestedSort reports whether any key orders by a nested entity's field.
func (r *run) nestedSort(keys []sortspec.Key) bool {
	for _, k := range keys {
		if r.d.Resolution.Scope(k.Field) != r.d.RootPath {
			return true
		}
	}
	return false
}

// fsl runs the flatten/group/order query and returns the page of root
// ids in order, and the filtered total when requested.
func (r *run) fsl(ctx context.Context, root queryir.Link, keys []sortspec.Key) ([]any, *int64, error) {
	d := r.d
	pid := d.RootObject.PrimaryID

	// Every entity a key reaches joins in, in schema order.
	fields := map[string][]string{d.RootPath: {pid}}
	var entities []string
	need := func(path string) {
		for p := path; p != d.RootPath && strings.HasPrefix(p, d.RootPath+"."); p = catalog.ParentPath(p) {
			if _, ok := fields[p]; !ok {
				obj, err := r.e.cat.ObjectForPath(p)
				if err != nil {
					continue
				}
				fields[p] = []string{obj.PrimaryID}
				entities = append(entities, p)
			}
		}
	}
	for _, k := range keys {
		holder, name := catalog.ParentPath(k.Field), catalog.LastPart(k.Field)
		need(holder)
		if r.e.cat.IsCountField(name) {
			need(r.counted(holder, name))
		}
		fields[holder] = appendUnique(fields[holder], name)
	}

	link := root
	link.Fields = fields[d.RootPath]
	link.Limit, link.Offset = nil, nil
	chain := append(queryir.Clone(r.prefix), link)
	for _, p := range r.schemaOrder(entities) {
		chain = append(chain, queryir.Link{Path: p, Fields: fields[p]})
	}
	chain = append(chain, queryir.Link{
		GroupBy: d.RootPath + "." + pid,
		Sort:    linkKeys(keys),
		Limit:   root.Limit,
		Offset:  root.Offset,
	})

	_, rows, err := r.query(ctx, metrics.PhaseFSL, chain, true)
	if err != nil {
		return nil, nil, err
	}

	pidCol := r.e.cat.OutputName(d.RootPath + "." + pid)
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		if v := row.Get(pidCol); v != nil {
			ids = append(ids, v)
		}
	}
	if !d.WantTotal || len(rows) == 0 {
		return ids, nil, nil
	}
	n, ok := toInt64(rows[0].Get(catalog.CountColumn(d.RootPath)))
	if !ok {
		return ids, nil, nil
	}
	return ids, &n, nil
}

// empty answers a zero-limit page: no objects, and the total when asked.
func (r *run) empty(ctx context.Context, root queryir.Link) (*Result, error) {
	res := &Result{Objects: ir.Array{}}
	if !r.d.WantTotal {
		return res, nil
	}
	root.Fields = []string{r.d.RootObject.PrimaryID}
	root.Limit, root.Offset = queryir.IntPtr(1), nil
	_, rows, err := r.query(ctx, metrics.PhaseCount, append(queryir.Clone(r.prefix), root), true)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		if n, ok := toInt64(rows[0].Get(catalog.CountColumn(r.d.RootPath))); ok {
			res.Total = n
		}
	}
	return res, nil
}

func (r *run) noneFound() error {
	d := r.d
	suggestion := ""
	if d.Params.Offset > 0 {
		suggestion = "  An offset of " + strconv.Itoa(d.Params.Offset) + " was specified.  There may be no more " +
			d.RootObject.Plural + " at this offset and a smaller offset may still work."
	}
	return apierr.NotFound("No %s found.%s", d.RootObject.Plural, suggestion)
}

// counted returns the storage path of the entity counted by a count
// field of holder.
func (r *run) counted(holder, name string) string {
	return r.e.cat.Canonical(holder + "." + r.e.cat.CountedObject(name))
}

func linkKeys(keys []sortspec.Key) []queryir.SortKey {
	out := make([]queryir.SortKey, len(keys))
	for i, k := range keys {
		out[i] = queryir.SortKey{Field: k.Field, Desc: k.Desc}
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
