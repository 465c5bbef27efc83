package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/bandmap/internal/apierr"
)

//go:embed bandmap.cue
var source []byte

// CountSuffix marks a field that reports the size of a sibling collection.
const CountSuffix = "Count"

// RootRequester keys the count template used by top-level collections.
const RootRequester = "root"

// Field describes the storage column behind one entity field.
type Field struct {
	Column     string `json:"column"`
	Type       string `json:"type"`
	TableAlias string `json:"tableAlias,omitempty"`
}

// Count is a count side-query template pair.
type Count struct {
	Select string `json:"select"`
	Join   string `json:"join"`
}

// Object is one entity entry.
type Object struct {
	Name           string            `json:"name"`
	Singular       string            `json:"singular"`
	Plural         string            `json:"plural"`
	URLPlural      string            `json:"urlPlural"`
	Alias          string            `json:"alias"`
	Table          string            `json:"table,omitempty"`
	WithClause     string            `json:"withClause,omitempty"`
	PrimaryID      string            `json:"primaryId"`
	SecondaryID    string            `json:"secondaryId,omitempty"`
	ResourcePath   string            `json:"resourcePath,omitempty"`
	ExcludeIfEmpty bool              `json:"excludeIfEmpty"`
	Fields         map[string]Field  `json:"fields"`
	Joins          map[string]string `json:"joins"`
	Counts         map[string]Count  `json:"counts"`
}

// PathAlias rewrites an API path prefix onto a storage entity path.
type PathAlias struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Catalog is the loaded entity metadata.
type Catalog struct {
	objects     map[string]*Object
	urlNames    map[string]string
	pathAliases []PathAlias
	countable   map[string]bool
}

type document struct {
	Objects     map[string]*Object `json:"objects"`
	URLNames    map[string]string  `json:"urlNames"`
	PathAliases []PathAlias        `json:"pathAliases"`
}

// LoadError reports an invalid catalog definition.
type LoadError struct {
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: catalog: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return "catalog: " + e.Message
}

// Load compiles the embedded catalog definition.
func Load() (*Catalog, error) {
	return LoadSource(source)
}

// LoadSource compiles a catalog definition from CUE source.
func LoadSource(src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename("bandmap.cue"))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var doc document
	if err := value.Decode(&doc); err != nil {
		return nil, formatCUEError(err)
	}
	return build(doc)
}

func build(doc document) (*Catalog, error) {
	c := &Catalog{
		objects:     doc.Objects,
		urlNames:    doc.URLNames,
		pathAliases: doc.PathAliases,
		countable:   make(map[string]bool),
	}
	if c.objects == nil {
		c.objects = map[string]*Object{}
	}
	if c.urlNames == nil {
		c.urlNames = map[string]string{}
	}

	for name, obj := range c.objects {
		if obj.Table == "" && obj.WithClause == "" {
			return nil, &LoadError{Message: fmt.Sprintf("object %q needs a table or a withClause", name)}
		}
		if _, ok := obj.Fields[obj.PrimaryID]; !ok {
			return nil, &LoadError{Message: fmt.Sprintf("object %q primary id %q is not a field", name, obj.PrimaryID)}
		}
		c.countable[name] = true
	}

	// Aliased collection names ("cities") are countable as well.
	for _, a := range c.pathAliases {
		from := lastPart(a.From)
		to := lastPart(a.To)
		if _, ok := c.objects[to]; !ok {
			return nil, &LoadError{Message: fmt.Sprintf("path alias %q points at unknown object %q", a.From, to)}
		}
		c.countable[from] = true
	}
	for seg, name := range c.urlNames {
		if _, ok := c.objects[c.Canonical(name)]; !ok && !c.countable[name] {
			return nil, &LoadError{Message: fmt.Sprintf("url segment %q names unknown collection %q", seg, name)}
		}
	}
	return c, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Message: err.Error()}
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &LoadError{Message: first.Error(), Pos: positions[0]}
	}
	return &LoadError{Message: first.Error()}
}

// Names returns the entity names in lexical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.objects))
	for n := range c.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Object returns the entity named name. Collection names that are path
// aliases ("cities", "webLinks") resolve to their storage entity.
func (c *Catalog) Object(name string) (*Object, error) {
	if obj, ok := c.objects[name]; ok {
		return obj, nil
	}
	for _, a := range c.pathAliases {
		if lastPart(a.From) == name {
			return c.objects[lastPart(a.To)], nil
		}
	}
	return nil, apierr.ServerError("Object catalog has no entry for '%s'.", name)
}

// ObjectForPath returns the entity at the end of a dot-separated path.
func (c *Catalog) ObjectForPath(path string) (*Object, error) {
	return c.Object(lastPart(path))
}

// HasObject reports whether name is a catalog entity or aliased
// collection name.
func (c *Catalog) HasObject(name string) bool {
	return c.countable[name]
}

// ByURLPlural resolves a URL segment ("connected-bands") to its API
// collection name ("connectedBands"). Matching is case-insensitive.
func (c *Catalog) ByURLPlural(segment string) (string, bool) {
	name, ok := c.urlNames[strings.ToLower(segment)]
	return name, ok
}

// Canonical rewrites aliased path prefixes onto storage paths:
// "bands.cities.name" becomes "bands.cityStateCountries.name".
func (c *Catalog) Canonical(path string) string {
	for _, a := range c.pathAliases {
		if path == a.From || strings.HasPrefix(path, a.From) {
			path = a.To + strings.TrimPrefix(path, a.From)
		}
	}
	return path
}

// AliasFor joins the alias tokens of every entity on the path.
func (c *Catalog) AliasFor(parts []string) (string, error) {
	aliases := make([]string, len(parts))
	for i, p := range parts {
		obj, err := c.Object(p)
		if err != nil {
			return "", err
		}
		aliases[i] = obj.Alias
	}
	return strings.Join(aliases, "_"), nil
}

// IsCountField reports whether a field name is "<collection>Count" for a
// known collection.
func (c *Catalog) IsCountField(name string) bool {
	if !strings.HasSuffix(name, CountSuffix) {
		return false
	}
	return c.countable[strings.TrimSuffix(name, CountSuffix)]
}

// CountedObject returns the collection counted by a count field.
func (c *Catalog) CountedObject(name string) string {
	return strings.TrimSuffix(name, CountSuffix)
}

// OutputName converts a storage field path to its output column name.
func (c *Catalog) OutputName(dbPath string) string {
	parts := strings.Split(dbPath, ".")
	first := parts[:len(parts)-1]
	last := parts[len(parts)-1]

	switch {
	case last == "total":
		last = "count"
	case c.IsCountField(last):
		first = append(append([]string(nil), first...), c.CountedObject(last))
		last = "count"
	}
	return strings.ToLower(strings.Join(first, "_") + "__" + last)
}

// CountColumn returns the output column carrying the count of the
// collection at objectPath.
func CountColumn(objectPath string) string {
	return ColumnPrefix(objectPath) + "count"
}

// ColumnPrefix returns the output column prefix of an entity path.
func ColumnPrefix(objectPath string) string {
	return strings.ToLower(strings.ReplaceAll(objectPath, ".", "_")) + "__"
}

// Join returns the join template attaching obj beneath parentPath.
func (c *Catalog) Join(obj *Object, parentPath string) (string, error) {
	tmpl, ok := obj.Joins[parentPath]
	if !ok {
		return "", apierr.ServerError("Object catalog has no join for '%s' beneath '%s'.", obj.Name, parentPath)
	}
	return tmpl, nil
}

// CountTemplate returns the count template for obj requested by
// requester, or false when none is declared.
func (c *Catalog) CountTemplate(obj *Object, requester string) (Count, bool) {
	if requester == "" {
		requester = RootRequester
	}
	tmpl, ok := obj.Counts[requester]
	return tmpl, ok
}

func lastPart(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// LastPart returns the final segment of a dot-separated path.
func LastPart(path string) string { return lastPart(path) }

// ParentPath returns everything before the final segment of a path.
func ParentPath(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return ""
}
