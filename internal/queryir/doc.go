// Package queryir describes a query plan as a chain of object links.
//
// A chain lists the entities of one path through the object graph,
// outermost first:
//
//	[bands] → [bands.people] → [bands.people.roles]
//
// Each Link names the entity's storage path, the entity fields it needs,
// its conditions and its sort keys. The SQL backend (package querysql)
// turns each link into one named table expression that carries every
// column of the link before it, so the last expression holds the whole
// path as flat rows.
//
// CONDITIONS:
//
// Condition is a sealed interface. Only Match, Equal and AnyOf implement
// it, so backends switch over the full set:
//
//	switch c := cond.(type) {
//	case Match:
//	    // filter tree scoped to this link
//	case Equal:
//	    // field = value
//	case AnyOf:
//	    // field IN (values...)
//	}
//
// COUNTS:
//
// A link may ask for the size of its own collection, grouped by its
// containing entity. CountFiltered counts what survives the link's
// conditions; CountUnfiltered counts every child. A "<child>Count" field
// on a link flags the next link of the counted entity as CountUnfiltered.
//
// PAGINATION:
//
// At most one link carries a limit or offset. A chain may end with a
// terminal link that has GroupBy set and no Path: it reduces the flat
// rows to one row per root identifier before ordering and paging, which
// keeps pages correct when deeper entities fan rows out.
package queryir
