// Package params parses collection and item query arguments and resolves
// field names against a resource field set.
package params

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/bandmap/internal/apierr"
)

// DefaultLimit is the page size used when no limit is configured.
const DefaultLimit = 10000

// Params holds query arguments with defaults applied.
type Params struct {
	Limit    int
	Offset   int
	Sort     []string
	Filter   string
	Fields   []string
	NoFields []string
	Pretty   bool

	// FieldsRaw and NoFieldsRaw keep the unsplit argument text; the *Given
	// flags record whether the argument appeared at all.
	FieldsRaw     string
	NoFieldsRaw   string
	FieldsGiven   bool
	NoFieldsGiven bool
	LimitGiven    bool
}

// Parse applies defaults to q. A non-positive defaultLimit selects
// DefaultLimit. Only malformed numeric or boolean arguments fail.
func Parse(q url.Values, defaultLimit int) (*Params, error) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	p := &Params{Limit: defaultLimit, Pretty: true}

	var err error
	if raw, ok := first(q, "limit"); ok {
		p.LimitGiven = true
		if p.Limit, err = nonNegative("limit", raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := first(q, "offset"); ok {
		if p.Offset, err = nonNegative("offset", raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := first(q, "pretty"); ok && raw != "" {
		if p.Pretty, err = strconv.ParseBool(raw); err != nil {
			return nil, apierr.InvalidArguments("Invalid 'pretty' argument '%s': expected true or false.", raw)
		}
	}

	p.Sort = List(strings.Join(q["sort"], ","))

	if vals, ok := q["fields"]; ok {
		p.FieldsGiven = true
		p.FieldsRaw = strings.Join(vals, ",")
		p.Fields = List(p.FieldsRaw)
	}
	if vals, ok := q["no-fields"]; ok {
		p.NoFieldsGiven = true
		p.NoFieldsRaw = strings.Join(vals, ",")
		p.NoFields = List(p.NoFieldsRaw)
	}

	p.Filter = CombineFilters(q["filter"])
	return p, nil
}

func first(q url.Values, key string) (string, bool) {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return strings.TrimSpace(vals[0]), true
}

func nonNegative(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.InvalidArguments("Invalid '%s' argument '%s': must be an integer.", name, raw)
	}
	return max(n, 0), nil
}

// List splits a comma-delimited argument, trimming entries and dropping
// empty ones.
func List(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CombineFilters joins repeated filter arguments and treats every
// top-level comma as "and": "a,b" becomes "(a) and (b)". Commas inside
// quoted operands are not separators.
func CombineFilters(values []string) string {
	var parts []string
	for _, part := range splitUnquoted(strings.Join(values, ",")) {
		parts = append(parts, strings.TrimSpace(part))
	}
	if len(parts) > 1 {
		return strings.TrimSpace("(" + strings.Join(parts, ") and (") + ")")
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return ""
}

func splitUnquoted(s string) []string {
	var (
		parts []string
		quote rune
		start int
	)
	escaped := false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case quote != 0 && r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote == 0 && r == ',':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
