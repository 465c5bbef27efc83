package params

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the caseless form of a field name.
func Fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Names resolves user-supplied field names against the keys of a field
// set. Matching is caseless. A name that is not itself a key is also tried
// relative to the root collection prefix, so "name" resolves to
// "bands.name" on /bands when no root field "name" exists.
type Names struct {
	keys   []string
	folded []string
	index  map[string]string
	prefix string
}

// NewNames indexes keys. prefix is the API prefix of root-collection
// fields ("bands." for /bands, "" for items).
func NewNames(keys []string, prefix string) *Names {
	n := &Names{
		keys:   keys,
		folded: make([]string, len(keys)),
		index:  make(map[string]string, len(keys)),
		prefix: Fold(prefix),
	}
	for i, k := range keys {
		f := Fold(k)
		n.folded[i] = f
		if _, ok := n.index[f]; !ok {
			n.index[f] = k
		}
	}
	return n
}

// Keys returns the indexed keys in their original order.
func (n *Names) Keys() []string {
	return n.keys
}

// Lookup returns the key name resolves to.
func (n *Names) Lookup(name string) (string, bool) {
	f := Fold(name)
	if k, ok := n.index[f]; ok {
		return k, true
	}
	if n.prefix != "" {
		if k, ok := n.index[n.prefix+f]; ok {
			return k, true
		}
	}
	return "", false
}

// Suggest returns a " (did you mean 'x'?)" hint for an unresolvable name,
// or "". Adding a prefix of some key is tried first, taking the shortest
// prefix; then removing leading path parts from name.
func (n *Names) Suggest(name string) string {
	parts := strings.Split(Fold(name), ".")

	best := -1
	suggestion := ""
	for _, alt := range n.folded {
		altParts := strings.Split(alt, ".")
		for j := 1; j <= len(altParts); j++ {
			if best != -1 && j >= best {
				break
			}
			candidate := strings.Join(append(append([]string{}, altParts[:j]...), parts...), ".")
			if k, ok := n.index[candidate]; ok {
				best = j
				suggestion = k
				break
			}
		}
	}
	if suggestion == "" {
		for i := 1; i < len(parts); i++ {
			if k, ok := n.index[strings.Join(parts[i:], ".")]; ok {
				suggestion = k
				break
			}
		}
	}
	if suggestion == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean '%s'?)", suggestion)
}
