// Package catalog holds the static entity metadata of the bandmap object
// graph.
//
// The catalog is defined in CUE (bandmap.cue, embedded) and validated
// against the #Object definition at load time. Each entity entry declares
// its identifiers, storage table or custom WITH body, short alias token,
// per-field storage columns, join templates keyed by the parent path they
// attach to, and count side-query templates keyed by the requesting parent
// path ("root" for top-level collections).
//
// NAMING:
//
// Entity paths are dot-separated API collection names ("bands.people").
// The step alias of a path joins the entity alias tokens with "_"
// ("b_p"). Output column names flatten a storage path into
// "path_to_obj__field", lowercased; "*Count" fields move one level down
// ("bands.peopleCount" becomes "bands_people__count") and "total" becomes
// "__count".
//
// A loaded *Catalog is immutable and safe for concurrent use.
package catalog
