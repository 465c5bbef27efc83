package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
)

// Run issues the scenario's request against h and checks the response.
// An error is returned only when the request cannot be made or the body
// is not JSON; failed expectations are reported on the Result.
func Run(ctx context.Context, h http.Handler, s *Scenario) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: building request: %w", s.Name, err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	result := NewResult(s.Name)
	result.Status = rec.Code
	result.Body = json.RawMessage(rec.Body.Bytes())

	var body any
	if err := json.Unmarshal(result.Body, &body); err != nil {
		return nil, fmt.Errorf("scenario %s: response is not JSON: %w", s.Name, err)
	}

	checkExpect(result, s.Expect, body)
	for i, a := range s.Assertions {
		if err := evaluate(a, body); err != nil {
			result.AddError("assertions[%d]: %v", i, err)
		}
	}
	return result, nil
}

// RunAll runs scenarios in order.
func RunAll(ctx context.Context, h http.Handler, scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, 0, len(scenarios))
	for _, s := range scenarios {
		r, err := Run(ctx, h, s)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

func checkExpect(result *Result, want Expect, body any) {
	if result.Status != want.Status {
		result.AddError("expected status %d, got %d", want.Status, result.Status)
	}

	obj, _ := body.(map[string]any)
	if want.Total != nil {
		got, ok := obj["total"]
		if !ok {
			result.AddError("expected total %d, but the response has no total", *want.Total)
		} else if !valuesEqual(got, *want.Total) {
			result.AddError("expected total %d, got %v", *want.Total, got)
		}
	}

	if want.IDs != nil {
		got := rootIDs(obj)
		if !valuesEqual(got, want.IDs) {
			result.AddError("expected ids %v, got %v", want.IDs, got)
		}
	}
}

// rootIDs returns the id of an item, or the ids of the elements of a
// collection envelope's object array.
func rootIDs(obj map[string]any) []any {
	if id, ok := obj["id"]; ok {
		return []any{id}
	}
	ids := []any{}
	for key, v := range obj {
		arr, ok := v.([]any)
		if !ok || key == "warnings" || key == "errors" {
			continue
		}
		for _, el := range arr {
			if m, ok := el.(map[string]any); ok {
				ids = append(ids, m["id"])
			}
		}
		break
	}
	return ids
}
