// Package request turns a resource URL and its query arguments into a
// request descriptor: the resource addressed, its container chain, and the
// resolved fields, sort keys and filter tree.
package request

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/fieldpath"
	"github.com/roach88/bandmap/internal/filter"
	"github.com/roach88/bandmap/internal/params"
	"github.com/roach88/bandmap/internal/schema"
	"github.com/roach88/bandmap/internal/sortspec"
)

// Container is an ancestor addressed by a URL path value, as in the
// {band} of /bands/{band}/people.
type Container struct {
	// Path is the storage entity path ("bands", "bands.people").
	Path string

	// Target is the raw identifier from the URL.
	Target string

	Object *catalog.Object
}

// Descriptor is a fully parsed resource request.
type Descriptor struct {
	ID      string
	Path    string
	BaseURL string

	Kind schema.Kind

	// Collections is the API collection chain used to look up the field
	// set: ["bands", "people"] for /bands/{band}/people.
	Collections []string

	// Root is the API name of the requested collection ("people").
	Root string

	// RootPath is the storage path of the requested entity
	// ("bands.people"). For items it is the path of the last container.
	RootPath   string
	RootObject *catalog.Object

	Containers []Container
	Prefixes   fieldpath.Prefixes

	Params     *params.Params
	Fields     *schema.FieldSet
	Names      *params.Names
	Resolution *fieldpath.Resolution

	// Requested lists the requested API fields in field set order.
	Requested []string

	Sort   []sortspec.Key
	Filter filter.Node

	// WantTotal is set when the response needs the collection total.
	WantTotal bool

	Issues *apierr.Issues
}

// URL is the absolute resource URL without query arguments.
func (d *Descriptor) URL() string {
	return strings.TrimRight(d.BaseURL, "/") + d.Path
}

// IsRequested reports whether the API field was requested.
func (d *Descriptor) IsRequested(api string) bool {
	for _, r := range d.Requested {
		if r == api {
			return true
		}
	}
	return false
}

// Option configures a Parser.
type Option func(*Parser)

// WithBaseURL sets the server URL used in links and messages.
func WithBaseURL(base string) Option {
	return func(p *Parser) { p.baseURL = strings.TrimRight(base, "/") }
}

// WithDefaultLimit sets the page size used when no limit is given.
func WithDefaultLimit(n int) Option {
	return func(p *Parser) { p.defaultLimit = n }
}

// WithClock sets the clock used for bare time filter operands.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// WithIDGenerator sets the request id generator.
func WithIDGenerator(gen func() string) Option {
	return func(p *Parser) { p.newID = gen }
}

// Parser builds descriptors. Safe for concurrent use.
type Parser struct {
	cat          *catalog.Catalog
	schemas      *schema.Provider
	baseURL      string
	defaultLimit int
	now          func() time.Time
	newID        func() string
}

// NewParser creates a parser over the catalog and schema provider.
func NewParser(cat *catalog.Catalog, schemas *schema.Provider, opts ...Option) *Parser {
	p := &Parser{
		cat:          cat,
		schemas:      schemas,
		defaultLimit: params.DefaultLimit,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds the descriptor for path (relative to the API root, such as
// "/bands/12/people") and query q. Warnings and raised errors are recorded
// on the returned descriptor's Issues; on failure issues is still returned
// so the caller can render every queued message.
func (p *Parser) Parse(path string, q url.Values) (*Descriptor, *apierr.Issues, error) {
	issues := apierr.NewIssues()
	d := &Descriptor{
		ID:      p.newID(),
		Path:    "/api" + normalizePath(path),
		BaseURL: p.baseURL,
		Issues:  issues,
	}

	if err := p.route(d); err != nil {
		return nil, issues, issues.Raise(err)
	}

	var err error
	if d.Params, err = params.Parse(q, p.defaultLimit); err != nil {
		return nil, issues, issues.Raise(err)
	}

	if d.Fields, err = p.schemas.Fields(d.Kind, d.Collections); err != nil {
		return nil, issues, issues.Raise(err)
	}
	d.Names = params.NewNames(d.Fields.Keys, d.Prefixes.API)

	if d.Requested, err = params.Select(d.Fields, d.Names, d.Params, issues); err != nil {
		return nil, issues, err
	}
	d.Resolution = fieldpath.Resolve(d.Fields, d.Requested, d.Prefixes, p.cat)

	sorter := &sortspec.Resolver{
		Fields:     d.Fields,
		Names:      d.Names,
		Resolution: d.Resolution,
		Default:    d.Prefixes.API + d.RootObject.PrimaryID,
	}
	d.Sort = sorter.Resolve(d.Params.Sort, issues)

	fp := filter.NewParser(&filterSchema{d: d}, filter.WithClock(p.now))
	if d.Filter, err = fp.Parse(d.Params.Filter); err != nil {
		return nil, issues, issues.Raise(err)
	}

	if d.Kind == schema.Collection {
		for _, f := range []string{"total", "first", "prev", "next", "last"} {
			if d.IsRequested(f) {
				d.WantTotal = true
				break
			}
		}
	}
	return d, issues, nil
}

func normalizePath(path string) string {
	path = "/" + strings.Trim(path, "/")
	if path == "/" {
		return ""
	}
	return path
}

// route scans URL segments left to right: a collection segment followed
// by a value addresses an item, which becomes a container of anything
// after it.
func (p *Parser) route(d *Descriptor) error {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(d.Path, "/api"), "/"), "/")
	var collection, endpoint string
	var chain []string
	lastWasColl := false
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		endpoint = seg
		switch {
		case !lastWasColl:
			name, ok := p.cat.ByURLPlural(seg)
			if !ok || (len(chain) == 0 && !p.schemas.HasResource(name)) {
				return p.notFound(d, endpoint)
			}
			collection = name
			d.Kind = schema.Collection
			lastWasColl = true
		default:
			chain = append(chain, collection)
			objectPath := p.cat.Canonical(strings.Join(chain, "."))
			obj, err := p.cat.ObjectForPath(objectPath)
			if err != nil {
				return p.notFound(d, endpoint)
			}
			d.Containers = append(d.Containers, Container{Path: objectPath, Target: seg, Object: obj})
			d.Kind = schema.Item
			lastWasColl = false
		}
	}
	if collection == "" {
		return p.notFound(d, endpoint)
	}

	d.Root = collection
	if d.Kind == schema.Collection {
		d.Collections = append(append([]string(nil), chain...), collection)
	} else {
		d.Collections = chain
	}
	if _, err := p.schemas.Fields(d.Kind, d.Collections); err != nil {
		return p.notFound(d, endpoint)
	}

	dbPrefix := ""
	if n := len(d.Containers); n > 0 {
		dbPrefix = d.Containers[n-1].Path
	}
	if d.Kind == schema.Collection {
		if dbPrefix != "" {
			dbPrefix += "."
		}
		dbPrefix = p.cat.Canonical(dbPrefix + collection)
		d.Prefixes.API = collection + "."
	}
	d.RootPath = dbPrefix
	d.Prefixes.DB = dbPrefix + "."

	obj, err := p.cat.ObjectForPath(d.RootPath)
	if err != nil {
		return err
	}
	d.RootObject = obj
	return nil
}

func (p *Parser) notFound(d *Descriptor, endpoint string) error {
	suggestion := ""
	if name, ok := p.cat.ByURLPlural(endpoint); ok && p.schemas.HasResource(name) {
		suggestion = "  Did you mean '" + p.baseURL + "/api/" + strings.ToLower(endpoint) + "'?"
	}
	return apierr.NotFound("No resource found for URL '%s'.%s", d.URL(), suggestion)
}

// filterSchema resolves filter fields through the descriptor.
type filterSchema struct {
	d *Descriptor
}

func (s *filterSchema) Lookup(name string) (string, bool) { return s.d.Names.Lookup(name) }
func (s *filterSchema) Suggest(name string) string { return s.d.Names.Suggest(name) }
func (s *filterSchema) Type(api string) string { return s.d.Fields.Types[api] }
func (s *filterSchema) DBField(api string) string { return s.d.Resolution.DB(api) }
func (s *filterSchema) Scope(db string) string { return s.d.Resolution.Scope(db) }
