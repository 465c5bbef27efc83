package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/cache"
)

//go:embed resources.cue
var source []byte

// Kind distinguishes collection from single-item resources.
type Kind int

const (
	Collection Kind = iota
	Item
)

func (k Kind) String() string {
	if k == Item {
		return "item"
	}
	return "collection"
}

// Type names.
const (
	TypeInteger  = "integer"
	TypeNumber   = "number"
	TypeString   = "string"
	TypeDate     = "date"
	TypeDateTime = "dateTime"
	TypeArray    = "array"
	TypeObject   = "object"
)

// IsContainer reports whether t is an array or object type.
func IsContainer(t string) bool {
	return t == TypeArray || t == TypeObject
}

// IsNumeric reports whether t is an integer or number type.
func IsNumeric(t string) bool {
	return t == TypeInteger || t == TypeNumber
}

var knownTypes = map[string]bool{
	TypeInteger: true, TypeNumber: true, TypeString: true,
	TypeDate: true, TypeDateTime: true, TypeArray: true, TypeObject: true,
}

// FieldSet is an ordered mapping of API field paths to types.
type FieldSet struct {
	Keys  []string
	Types map[string]string
}

// Type returns the type of path.
func (fs *FieldSet) Type(path string) (string, bool) {
	t, ok := fs.Types[path]
	return t, ok
}

// Has reports whether path is addressable.
func (fs *FieldSet) Has(path string) bool {
	_, ok := fs.Types[path]
	return ok
}

func (fs *FieldSet) add(path, typ string) {
	if _, ok := fs.Types[path]; ok {
		return
	}
	fs.Keys = append(fs.Keys, path)
	fs.Types[path] = typ
}

type node struct {
	name     string
	typ      string
	children []*node
}

// Option configures a Provider.
type Option func(*Provider)

// WithCache shares a field set cache between providers.
func WithCache(c *cache.Scalars[*FieldSet]) Option {
	return func(p *Provider) { p.cache = c }
}

// Provider serves field sets for the embedded resource definitions.
// Safe for concurrent use.
type Provider struct {
	roots map[string]*node
	cache *cache.Scalars[*FieldSet]
}

// Load compiles the embedded resource definitions.
func Load(opts ...Option) (*Provider, error) {
	return LoadSource(source, opts...)
}

// LoadSource compiles resource definitions from CUE source.
func LoadSource(src []byte, opts ...Option) (*Provider, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename("resources.cue"))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("schema: compiling resources: %w", err)
	}

	p := &Provider{roots: make(map[string]*node)}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache == nil {
		p.cache = cache.New[*FieldSet](64, 0)
	}

	iter, err := value.LookupPath(cue.ParsePath("resources")).Fields()
	if err != nil {
		return nil, fmt.Errorf("schema: iterating resources: %w", err)
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		item := iter.Value().LookupPath(cue.ParsePath("item"))
		if !item.Exists() {
			return nil, fmt.Errorf("schema: resource %q has no item", name)
		}
		root := &node{name: name, typ: TypeArray}
		root.children, err = parseFields(item)
		if err != nil {
			return nil, fmt.Errorf("schema: resource %q: %w", name, err)
		}
		p.roots[name] = root
	}
	return p, nil
}

func parseFields(v cue.Value) ([]*node, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, err
	}
	var nodes []*node
	for iter.Next() {
		n := &node{name: iter.Selector().Unquoted()}
		fv := iter.Value()

		if s, err := fv.String(); err == nil {
			n.typ = s
			nodes = append(nodes, n)
			continue
		}

		typ, err := fv.LookupPath(cue.ParsePath("type")).String()
		if err != nil {
			// Left untyped; reported when a field set is built.
			nodes = append(nodes, n)
			continue
		}
		n.typ = typ
		if sub := fv.LookupPath(cue.ParsePath("fields")); sub.Exists() {
			n.children, err = parseFields(sub)
			if err != nil {
				return nil, err
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Resources lists top-level resource names.
func (p *Provider) Resources() []string {
	names := make([]string, 0, len(p.roots))
	for n := range p.roots {
		names = append(names, n)
	}
	return names
}

// HasResource reports whether name is a top-level resource.
func (p *Provider) HasResource(name string) bool {
	_, ok := p.roots[name]
	return ok
}

// Fields returns the field set of the resource reached by following
// collections from a top-level resource: ["bands"] for /bands,
// ["bands", "people"] for /bands/{band}/people.
func (p *Provider) Fields(kind Kind, collections []string) (*FieldSet, error) {
	if len(collections) == 0 {
		return nil, apierr.ServerError("Schema provider was asked for an empty resource path.")
	}
	key := kind.String() + ":" + strings.Join(collections, "/")
	return p.cache.Get(key, func() (*FieldSet, error) {
		return p.build(kind, collections)
	})
}

func (p *Provider) build(kind Kind, collections []string) (*FieldSet, error) {
	current, ok := p.roots[collections[0]]
	if !ok {
		return nil, apierr.ServerError("Schema provider has no resource '%s'.", collections[0])
	}
	for _, c := range collections[1:] {
		var next *node
		for _, child := range current.children {
			if child.name == c && child.typ == TypeArray {
				next = child
				break
			}
		}
		if next == nil {
			return nil, apierr.ServerError("Schema provider has no subcollection '%s' beneath '%s'.", c, current.name)
		}
		current = next
	}

	fs := &FieldSet{Types: make(map[string]string)}
	plural := collections[len(collections)-1]
	prefix := ""
	if kind == Collection {
		for _, f := range envelope(plural) {
			fs.add(f.path, f.typ)
		}
		prefix = plural + "."
	}
	if err := flatten(fs, current.children, prefix); err != nil {
		return nil, err
	}
	return fs, nil
}

type envelopeField struct{ path, typ string }

func envelope(plural string) []envelopeField {
	return []envelopeField{
		{"link", TypeString},
		{"offset", TypeInteger},
		{"limit", TypeInteger},
		{"total", TypeInteger},
		{plural, TypeArray},
		{plural + "Count", TypeInteger},
		{"first", TypeString},
		{"prev", TypeString},
		{"next", TypeString},
		{"last", TypeString},
	}
}

func flatten(fs *FieldSet, nodes []*node, prefix string) error {
	for _, n := range nodes {
		path := prefix + n.name
		if !knownTypes[n.typ] {
			return apierr.ServerError("Schema parser encountered an unknown field type at '%s'.", path)
		}
		fs.add(path, n.typ)
		if IsContainer(n.typ) {
			if err := flatten(fs, n.children, path+"."); err != nil {
				return err
			}
		}
	}
	return nil
}
