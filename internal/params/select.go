package params

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/schema"
)

// Select returns the requested API field paths in field set order after
// applying the fields (whitelist) or no-fields (blacklist) arguments.
// Warnings are queued on issues; an empty selection is a nothing-requested
// error.
func Select(fs *schema.FieldSet, names *Names, p *Params, issues *apierr.Issues) ([]string, error) {
	if p.FieldsGiven && p.NoFieldsGiven {
		issues.Warn(http.StatusBadRequest, apierr.CodeIncompatibleArguments,
			"Both 'fields' and 'no-fields' arguments were specified.  "+
				"Either one or the other should be used.  Ignoring 'no-fields'.")
	}

	selected := fs.Keys
	switch {
	case p.FieldsRaw != "":
		selected = whitelist(fs, names, p.Fields)
		WarnUnrecognized(issues, names, p.Fields, "fields")
		WarnDuplicates(issues, names, p.Fields, "fields")
	case !p.FieldsGiven && p.NoFieldsRaw != "":
		selected = blacklist(fs, names, p.NoFields)
		WarnUnrecognized(issues, names, p.NoFields, "no-fields")
		WarnDuplicates(issues, names, p.NoFields, "no-fields")
	}

	if len(selected) == 0 {
		hint := ""
		if p.FieldsGiven || p.NoFieldsGiven {
			hint = "  Check your 'fields' or 'no-fields' arguments to make sure " +
				"you request at least one field."
		}
		return nil, issues.Raise(apierr.NothingRequested("No valid fields were requested.%s", hint))
	}
	return selected, nil
}

func whitelist(fs *schema.FieldSet, names *Names, requested []string) []string {
	wanted := make(map[string]bool)
	for _, r := range requested {
		if k, ok := names.Lookup(r); ok {
			wanted[k] = true
		}
	}

	keep := make(map[string]bool)
	for _, k := range fs.Keys {
		if !wanted[k] {
			continue
		}
		for _, path := range containingPaths(k) {
			keep[path] = true
		}
		if !schema.IsContainer(fs.Types[k]) {
			continue
		}
		subs := subfields(fs, k)
		specific := false
		for _, s := range subs {
			if wanted[s] {
				specific = true
				break
			}
		}
		if !specific {
			for _, s := range subs {
				keep[s] = true
			}
		}
	}
	return inOrder(fs, keep)
}

func blacklist(fs *schema.FieldSet, names *Names, requested []string) []string {
	var drop []string
	for _, r := range requested {
		if k, ok := names.Lookup(r); ok {
			drop = append(drop, k)
		}
	}

	keep := make(map[string]bool)
	for _, k := range fs.Keys {
		keep[k] = true
		for _, d := range drop {
			if k == d || strings.HasPrefix(k, d+".") {
				keep[k] = false
				break
			}
		}
	}
	return inOrder(fs, keep)
}

func inOrder(fs *schema.FieldSet, keep map[string]bool) []string {
	var out []string
	for _, k := range fs.Keys {
		if keep[k] {
			out = append(out, k)
		}
	}
	return out
}

// containingPaths returns "a", "a.b", "a.b.c" for "a.b.c".
func containingPaths(field string) []string {
	parts := strings.Split(field, ".")
	paths := make([]string, 0, len(parts))
	for i := 1; i <= len(parts); i++ {
		paths = append(paths, strings.Join(parts[:i], "."))
	}
	return paths
}

func subfields(fs *schema.FieldSet, container string) []string {
	var out []string
	for _, k := range fs.Keys {
		if strings.HasPrefix(k, container+".") {
			out = append(out, k)
		}
	}
	return out
}

// WarnUnrecognized queues one unrecognized-fields warning listing every
// name in requested that does not resolve.
func WarnUnrecognized(issues *apierr.Issues, names *Names, requested []string, arg string) {
	seen := make(map[string]bool)
	var entries []string
	for _, r := range requested {
		if _, ok := names.Lookup(r); ok {
			continue
		}
		f := Fold(r)
		if seen[f] {
			continue
		}
		seen[f] = true
		entries = append(entries, fmt.Sprintf("'%s'%s", r, names.Suggest(r)))
	}
	if len(entries) > 0 {
		issues.Warn(http.StatusBadRequest, apierr.CodeUnrecognizedFields,
			"Ignoring %d unrecognized field(s) in '%s' argument: %s",
			len(entries), arg, strings.Join(entries, ", "))
	}
}

// WarnDuplicates queues one duplicate-arguments warning listing every name
// given more than once. Names resolving to the same field count as
// duplicates.
func WarnDuplicates(issues *apierr.Issues, names *Names, requested []string, arg string) {
	counts := make(map[string]int)
	var order []string
	firstSpelling := make(map[string]string)
	for _, r := range requested {
		key := Fold(r)
		if k, ok := names.Lookup(r); ok {
			key = k
		}
		if counts[key] == 0 {
			order = append(order, key)
			firstSpelling[key] = r
		}
		counts[key]++
	}
	var dups []string
	for _, key := range order {
		if counts[key] > 1 {
			dups = append(dups, firstSpelling[key])
		}
	}
	if len(dups) > 0 {
		issues.Warn(http.StatusBadRequest, apierr.CodeDuplicateArguments,
			"Found %d field(s) specified multiple times in '%s' argument.  Ignoring duplicates: %s",
			len(dups), arg, strings.Join(dups, ","))
	}
}
