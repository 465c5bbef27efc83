// Package sortspec validates sort arguments and resolves them to storage
// sort keys.
package sortspec

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/fieldpath"
	"github.com/roach88/bandmap/internal/params"
	"github.com/roach88/bandmap/internal/schema"
)

// Key is one resolved sort key.
type Key struct {
	// API is the field as named in the field set.
	API string

	// Field is the storage path.
	Field string

	Desc bool
}

// Direction renders the SQL direction keyword.
func (k Key) Direction() string {
	if k.Desc {
		return "DESC"
	}
	return "ASC"
}

func (k Key) String() string {
	if k.Desc {
		return k.API + ":desc"
	}
	return k.API + ":asc"
}

// Resolver resolves sort tokens for one resource.
type Resolver struct {
	Fields     *schema.FieldSet
	Names      *params.Names
	Resolution *fieldpath.Resolution

	// Default is the API field sorted ascending when no token names it,
	// normally the root collection's primary id ("bands.id").
	Default string
}

// Resolve validates tokens of the form "field[:asc|desc]" and returns the
// sort keys in token order followed by the default key. Invalid tokens are
// dropped with a warning on issues.
func (r *Resolver) Resolve(tokens []string, issues *apierr.Issues) []Key {
	if r.Default != "" && !r.mentionsDefault(tokens) {
		tokens = append(append([]string(nil), tokens...), r.Default+":asc")
	}

	var keys []Key
	var fieldParts, badFormat, badType []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		parts := strings.Split(tok, ":")
		field := strings.TrimSpace(parts[0])
		fieldParts = append(fieldParts, field)

		dir := "asc"
		if len(parts) == 2 {
			dir = strings.ToLower(strings.TrimSpace(parts[1]))
		}
		if len(parts) > 2 || (dir != "asc" && dir != "desc") {
			badFormat = append(badFormat, fmt.Sprintf("'%s'", tok))
			continue
		}

		api, ok := r.Names.Lookup(field)
		if !ok || seen[api] {
			continue
		}
		if schema.IsContainer(r.Fields.Types[api]) {
			suggestion := ""
			if r.Fields.Has(api + ".id") {
				suggestion = fmt.Sprintf(" (did you mean '%s.id'?)", api)
			}
			badType = append(badType, fmt.Sprintf("'%s'%s", api, suggestion))
			continue
		}
		seen[api] = true
		keys = append(keys, Key{API: api, Field: r.Resolution.DB(api), Desc: dir == "desc"})
	}

	if len(badFormat) > 0 {
		issues.Warn(http.StatusBadRequest, apierr.CodeInvalidArguments,
			"Ignoring %d 'sort' argument(s) with invalid formatting.  "+
				"Sort argument format is '<field-name>:[asc|desc]': %s",
			len(badFormat), strings.Join(badFormat, ", "))
	}
	if len(badType) > 0 {
		issues.Warn(http.StatusBadRequest, apierr.CodeInvalidArguments,
			"Ignoring %d 'sort' argument(s) because sorts cannot be performed "+
				"directly on objects or arrays -- specify ids or specific fields: %s",
			len(badType), strings.Join(badType, ", "))
	}
	params.WarnUnrecognized(issues, r.Names, fieldParts, "sort")
	params.WarnDuplicates(issues, r.Names, fieldParts, "sort")
	return keys
}

func (r *Resolver) mentionsDefault(tokens []string) bool {
	def, ok := r.Names.Lookup(r.Default)
	if !ok {
		def = r.Default
	}
	for _, tok := range tokens {
		field := strings.TrimSpace(strings.Split(tok, ":")[0])
		if api, ok := r.Names.Lookup(field); ok && api == def {
			return true
		}
		if params.Fold(field) == params.Fold(r.Default) {
			return true
		}
	}
	return false
}

// Fields returns the storage paths of keys.
func Fields(keys []Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.Field
	}
	return out
}

// Scopes returns the distinct entity scopes of keys in order.
func Scopes(keys []Key, r *fieldpath.Resolution) []string {
	var out []string
	seen := make(map[string]bool)
	for _, k := range keys {
		s := r.Scope(k.Field)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
