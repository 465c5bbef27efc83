package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/fieldpath"
	"github.com/roach88/bandmap/internal/ir"
	"github.com/roach88/bandmap/internal/schema"
)

// item fetches the single object addressed by the last container.
func (r *run) item(ctx context.Context) (*Result, error) {
	d := r.d
	if d.Filter != nil {
		d.Issues.Warn(http.StatusBadRequest, apierr.CodeInvalidArguments,
			"Ignoring 'filter' argument: filters only apply to collections.")
	}
	if len(r.prefix) == 0 {
		return nil, apierr.ServerError("Item request for '%s' has no container.", d.Path)
	}
	n := len(r.prefix)
	root, above := r.prefix[n-1], r.prefix[:n-1]
	r.above = above
	keys := r.sortable()

	t, err := r.runLeaves(ctx, r.leafChains(root, keys))
	if err != nil {
		return nil, err
	}
	if r.planOnly {
		return &Result{}, nil
	}

	objs := t.collectionAt(above, root.Path)
	if objs == nil || len(objs.order) == 0 {
		return nil, apierr.NotFound("Requested %s '%s' not found.", d.RootObject.Singular, d.Containers[n-1].Target)
	}
	objects, err := r.assemble(objs, d.RootPath)
	if err != nil {
		return nil, err
	}
	return &Result{Total: int64(len(objects)), Objects: objects}, nil
}

// assemble renders the objects of c, an entity collection at path, in
// order with the requested fields in schema order.
func (r *run) assemble(c *collection, path string) (ir.Array, error) {
	groups := fieldpath.Map(r.d.Resolution.Requested)
	return r.render(c, path, groups)
}

func (r *run) render(c *collection, path string, groups map[string][]string) (ir.Array, error) {
	obj, err := r.e.cat.ObjectForPath(path)
	if err != nil {
		return nil, err
	}
	out := make(ir.Array, 0, len(c.order))
	for _, key := range c.order {
		n := c.nodes[key]
		o := ir.NewObject()
		for _, f := range groups[path] {
			name := catalog.LastPart(r.d.Resolution.API(f))
			if name == "" {
				name = catalog.LastPart(f)
			}
			typ := r.d.Resolution.Type(f)

			switch {
			case schema.IsContainer(typ):
				value, keep, err := r.child(n, f, groups)
				if err != nil {
					return nil, err
				}
				if keep {
					o.Set(name, value)
				}
			case catalog.LastPart(f) == "link":
				o.Set(name, ir.String(r.link(obj, key)))
			default:
				o.Set(name, scalar(n.fields[catalog.LastPart(f)], typ))
			}
		}
		out = append(out, o)
	}
	return out, nil
}

// child renders the nested collection f of n. Empty collections of
// entities marked exclude-if-empty are left out.
func (r *run) child(n *node, f string, groups map[string][]string) (ir.Value, bool, error) {
	obj, err := r.e.cat.ObjectForPath(f)
	if err != nil {
		return nil, false, err
	}
	c := n.children[catalog.LastPart(f)]
	if c == nil || len(c.order) == 0 {
		if obj.ExcludeIfEmpty {
			return nil, false, nil
		}
		return ir.Array{}, true, nil
	}
	arr, err := r.render(c, f, groups)
	if err != nil {
		return nil, false, err
	}
	return arr, true, nil
}

// link is the resource URL of an object.
func (r *run) link(obj *catalog.Object, pid any) string {
	return strings.TrimRight(r.d.BaseURL, "/") + obj.ResourcePath + "/" + fmt.Sprint(pid)
}

// scalar types a stored value by its schema type. Absent values are null.
func scalar(v any, typ string) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	switch typ {
	case schema.TypeInteger:
		if n, ok := toInt64(v); ok {
			return ir.Int(n)
		}
	case schema.TypeNumber:
		switch f := v.(type) {
		case float64:
			return ir.Float(f)
		case int64:
			return ir.Float(float64(f))
		}
	}
	return ir.FromScalar(v)
}
