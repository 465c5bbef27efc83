package harness

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Path     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s", e.Type)
	if e.Path != "" {
		fmt.Fprintf(&buf, " %s", e.Path)
	}
	fmt.Fprintf(&buf, ": expected %s, got %s", e.Expected, e.Actual)
	return buf.String()
}

func evaluate(a Assertion, body any) error {
	switch a.Type {
	case AssertField:
		got, ok := lookup(body, a.Path)
		if !ok {
			return &AssertionError{Type: a.Type, Path: a.Path, Expected: fmt.Sprint(a.Value), Actual: "nothing"}
		}
		if !valuesEqual(got, a.Value) {
			return &AssertionError{Type: a.Type, Path: a.Path, Expected: fmt.Sprint(a.Value), Actual: fmt.Sprint(got)}
		}
	case AssertAbsent:
		if got, ok := lookup(body, a.Path); ok {
			return &AssertionError{Type: a.Type, Path: a.Path, Expected: "nothing", Actual: fmt.Sprint(got)}
		}
	case AssertLength:
		got, ok := lookup(body, a.Path)
		arr, isArr := got.([]any)
		if !ok || !isArr {
			return &AssertionError{Type: a.Type, Path: a.Path, Expected: "an array", Actual: fmt.Sprint(got)}
		}
		if len(arr) != a.Count {
			return &AssertionError{Type: a.Type, Path: a.Path, Expected: strconv.Itoa(a.Count), Actual: strconv.Itoa(len(arr))}
		}
	case AssertErrorCode:
		codes := issueCodes(body, "errors")
		if len(codes) == 0 || codes[0] != a.Code {
			return &AssertionError{Type: a.Type, Expected: a.Code, Actual: fmt.Sprint(codes)}
		}
	case AssertWarningCode:
		codes := issueCodes(body, "warnings")
		for _, c := range codes {
			if c == a.Code {
				return nil
			}
		}
		return &AssertionError{Type: a.Type, Expected: a.Code, Actual: fmt.Sprint(codes)}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// lookup follows a dotted path through decoded JSON. Numeric parts
// index arrays.
func lookup(v any, path string) (any, bool) {
	for _, part := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			v = node[i]
		default:
			return nil, false
		}
	}
	return v, true
}

func issueCodes(body any, key string) []string {
	list, _ := lookup(body, key)
	entries, _ := list.([]any)
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		if m, ok := e.(map[string]any); ok {
			if c, ok := m["code"].(string); ok {
				codes = append(codes, c)
			}
		}
	}
	return codes
}

// valuesEqual compares decoded JSON with YAML scenario values. Numbers
// compare by value regardless of their Go type.
func valuesEqual(actual, expected any) bool {
	return reflect.DeepEqual(normalize(actual), normalize(expected))
}

func normalize(v any) any {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case int:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n)
	case []any:
		out := make([]any, len(n))
		for i, el := range n {
			out[i] = normalize(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, el := range n {
			out[k] = normalize(el)
		}
		return out
	default:
		return v
	}
}
