package queryir

import "github.com/roach88/bandmap/internal/filter"

// CountMode selects the count side query attached to a link.
type CountMode int

const (
	// CountNone attaches no count.
	CountNone CountMode = iota

	// CountFiltered counts the rows that pass the link's conditions.
	CountFiltered

	// CountUnfiltered counts every row of the entity beneath its
	// container, ignoring conditions and paging.
	CountUnfiltered
)

func (m CountMode) String() string {
	switch m {
	case CountFiltered:
		return "filtered"
	case CountUnfiltered:
		return "unfiltered"
	default:
		return "none"
	}
}

// Link is one entity of a query chain.
type Link struct {
	// Path is the storage path of the entity ("bands.people"). Empty on a
	// GroupBy terminal.
	Path string

	// Fields are entity field names ("id", "name", "rolesCount"). The
	// primary identifier is always selected first whether listed or not.
	Fields []string

	Conditions []Condition

	// Sort keys order the pipeline output. On a limited link they also
	// order the link itself before paging.
	Sort []SortKey

	Count CountMode

	Limit  *int
	Offset *int

	// GroupBy is the storage path of the root identifier ("bands.id").
	// Only the last link of a chain may set it.
	GroupBy string

	// RootOrder holds root identifiers in page order once a paging query
	// has computed them. Backends ignore it.
	RootOrder []any
}

// IsTerminal reports whether l is a GroupBy terminal.
func (l *Link) IsTerminal() bool {
	return l.GroupBy != ""
}

// HasPaging reports whether l carries a limit or offset.
func (l *Link) HasPaging() bool {
	return l.Limit != nil || l.Offset != nil
}

// SortKey orders by a storage path.
type SortKey struct {
	// Field is a storage path: "bands.name", "bands.peopleCount".
	Field string
	Desc  bool
}

// Condition restricts the rows of a link.
//
// This is a sealed interface: Match, Equal and AnyOf are the only
// implementations.
type Condition interface {
	condition()
}

// Match applies a parsed filter tree. Every clause must name a field of
// the link's own entity.
type Match struct {
	Tree filter.Node
}

// Equal compares an entity field with one value.
type Equal struct {
	Field string
	Value any
}

// AnyOf restricts an entity field to a set of values. An empty set
// matches nothing.
type AnyOf struct {
	Field  string
	Values []any
}

func (Match) condition() {}
func (Equal) condition() {}
func (AnyOf) condition() {}

// IntPtr returns a pointer to n, for Limit and Offset literals.
func IntPtr(n int) *int {
	return &n
}

// Clone returns a copy of chain that shares no slices with it.
func Clone(chain []Link) []Link {
	out := make([]Link, len(chain))
	for i, l := range chain {
		l.Fields = append([]string(nil), l.Fields...)
		l.Conditions = append([]Condition(nil), l.Conditions...)
		l.Sort = append([]SortKey(nil), l.Sort...)
		l.RootOrder = append([]any(nil), l.RootOrder...)
		out[i] = l
	}
	return out
}
