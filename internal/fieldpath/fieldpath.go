// Package fieldpath translates API field paths into storage paths and
// groups storage paths by the entity that owns them.
//
// An API path is relative to the requested resource ("bands.people.name"
// on /bands, "people.name" on /bands/{band}). Its storage path is rooted at
// the top-level entity of the URL ("bands.people.name" in both cases) with
// collection aliases rewritten by the catalog.
package fieldpath

import (
	"strings"

	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/schema"
)

// RootKey groups top-level fields in Map.
const RootKey = "root"

// Prefixes locate a resource inside the entity graph.
type Prefixes struct {
	// API is the prefix of item fields in the API field set: "bands." for
	// the /bands collection, "" for items.
	API string

	// DB is the storage path prefix of item fields: "bands." for /bands,
	// "bands.people." for /bands/{band}/people.
	DB string
}

// Resolution is the field translation of one request.
type Resolution struct {
	APIToDB map[string]string
	DBToAPI map[string]string

	// Types maps storage paths to schema types, including identifier
	// columns that only exist in storage.
	Types map[string]string

	// Keys lists every storage path of Types in schema order.
	Keys []string

	// Requested lists the requested storage paths in schema order.
	Requested []string

	cat *catalog.Catalog
}

// Resolve translates every field of fs. requested are API paths.
func Resolve(fs *schema.FieldSet, requested []string, p Prefixes, cat *catalog.Catalog) *Resolution {
	r := &Resolution{
		APIToDB: make(map[string]string, len(fs.Keys)),
		DBToAPI: make(map[string]string, len(fs.Keys)),
		Types:   make(map[string]string, len(fs.Keys)),
		cat:     cat,
	}

	parentOfRoot := ""
	if dbParts := strings.Split(p.DB, "."); len(dbParts) > 2 {
		parentOfRoot = strings.Join(dbParts[:len(dbParts)-2], ".") + "."
	}

	for _, api := range fs.Keys {
		parts := strings.Split(api, ".")
		isRootField := p.API != "" && len(parts) == 1

		var db string
		switch {
		case isRootField:
			db = parentOfRoot + api
		case p.API != "":
			db = p.DB + strings.Join(parts[1:], ".")
		default:
			db = p.DB + api
		}
		db = cat.Canonical(db)

		r.APIToDB[api] = db
		r.DBToAPI[db] = api
		r.add(db, fs.Types[api])
		r.addStorageIDs(db)
	}

	wanted := make(map[string]bool, len(requested))
	for _, api := range requested {
		wanted[api] = true
	}
	for _, api := range fs.Keys {
		if wanted[api] {
			r.Requested = append(r.Requested, r.APIToDB[api])
		}
	}
	return r
}

func (r *Resolution) add(db, typ string) {
	if _, ok := r.Types[db]; ok {
		return
	}
	r.Types[db] = typ
	r.Keys = append(r.Keys, db)
}

// addStorageIDs adds the identifier columns of the entity at db when the
// schema does not expose them. Their type is guessed: "id" is an integer,
// anything else a string.
func (r *Resolution) addStorageIDs(db string) {
	name := catalog.LastPart(db)
	if !r.cat.HasObject(name) {
		return
	}
	obj, err := r.cat.Object(name)
	if err != nil {
		return
	}
	for _, id := range []string{obj.PrimaryID, obj.SecondaryID} {
		if id == "" {
			continue
		}
		typ := "string"
		if id == "id" {
			typ = "integer"
		}
		r.add(db+"."+id, typ)
	}
}

// DB returns the storage path of an API field, or "" if unknown.
func (r *Resolution) DB(api string) string {
	return r.APIToDB[api]
}

// API returns the API path of a storage field, or "" if unknown.
func (r *Resolution) API(db string) string {
	return r.DBToAPI[db]
}

// Type returns the type of a storage field.
func (r *Resolution) Type(db string) string {
	return r.Types[db]
}

// Scope returns the entity path owning a storage field. A count field is
// owned by the entity it counts: "bands.peopleCount" belongs to
// "bands.people".
func (r *Resolution) Scope(db string) string {
	name := catalog.LastPart(db)
	parent := catalog.ParentPath(db)
	if r.cat.IsCountField(name) {
		counted := r.cat.CountedObject(name)
		if parent == "" {
			return counted
		}
		return parent + "." + counted
	}
	return parent
}

// Map groups paths by their immediate containing entity path, preserving
// order. Top-level paths are grouped under RootKey.
func Map(paths []string) map[string][]string {
	m := make(map[string][]string)
	for _, p := range paths {
		parent := catalog.ParentPath(p)
		if parent == "" {
			parent = RootKey
		}
		m[parent] = append(m[parent], p)
	}
	return m
}
