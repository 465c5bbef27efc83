package engine

import (
	"context"
	"strconv"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/metrics"
	"github.com/roach88/bandmap/internal/queryir"
	"github.com/roach88/bandmap/internal/request"
)

// ancestors resolves every URL container to a link restricted to its
// primary id. Each lookup runs beneath the containers already resolved.
func (r *run) ancestors(ctx context.Context) error {
	for _, c := range r.d.Containers {
		link, err := r.resolve(ctx, c)
		if err != nil {
			return err
		}
		r.prefix = append(r.prefix, link)
	}
	return nil
}

// resolve tries the container target against the entity's identifiers in
// order and returns the link of the first one that matches.
func (r *run) resolve(ctx context.Context, c request.Container) (queryir.Link, error) {
	pid := c.Object.PrimaryID
	for _, id := range lookupOrder(c) {
		value, ok := lookupValue(c.Object, id, c.Target)
		if !ok {
			continue
		}
		chain := append(queryir.Clone(r.prefix), queryir.Link{
			Path:       c.Path,
			Fields:     []string{pid},
			Conditions: []queryir.Condition{queryir.Equal{Field: id, Value: value}},
			Limit:      queryir.IntPtr(1),
		})
		_, rows, err := r.query(ctx, metrics.PhaseAncestor, chain, true)
		if err != nil {
			return queryir.Link{}, err
		}
		if len(rows) == 0 {
			continue
		}
		found := rows[0].Get(r.e.cat.OutputName(c.Path + "." + pid))
		if found == nil {
			continue
		}
		return queryir.Link{
			Path:       c.Path,
			Fields:     []string{pid},
			Conditions: []queryir.Condition{queryir.Equal{Field: pid, Value: found}},
		}, nil
	}
	return queryir.Link{}, apierr.NotFound("Requested %s '%s' not found.", c.Object.Singular, c.Target)
}

// lookupOrder lists the identifiers to try: the primary id first for
// numeric targets, the secondary id first otherwise.
func lookupOrder(c request.Container) []string {
	pid, sid := c.Object.PrimaryID, c.Object.SecondaryID
	if sid == "" || sid == pid {
		return []string{pid}
	}
	if _, err := strconv.ParseFloat(c.Target, 64); err == nil {
		return []string{pid, sid}
	}
	return []string{sid, pid}
}

// lookupValue converts target to the bind value of field id. Integer ids
// never match a non-integer target.
func lookupValue(obj *catalog.Object, id, target string) (any, bool) {
	switch obj.Fields[id].Type {
	case "integer":
		n, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case "number":
		f, err := strconv.ParseFloat(target, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	default:
		return target, true
	}
}
