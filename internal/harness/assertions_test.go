package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestEvaluate(t *testing.T) {
	body := decodeBody(t, `{
		"total": 2,
		"bands": [{"id": 4, "name": "Green River", "people": []}, {"id": 1, "name": "Love Battery"}],
		"warnings": [{"code": "duplicate-arguments", "message": "dup"}]
	}`)
	errBody := decodeBody(t, `{"errors": [{"code": "not-found", "message": "x"}, {"code": "invalid-filter", "message": "y"}]}`)

	tests := []struct {
		name   string
		a      Assertion
		body   any
		passes bool
	}{
		{name: "field int", a: Assertion{Type: AssertField, Path: "bands.0.id", Value: 4}, body: body, passes: true},
		{name: "field string", a: Assertion{Type: AssertField, Path: "bands.1.name", Value: "Love Battery"}, body: body, passes: true},
		{name: "field mismatch", a: Assertion{Type: AssertField, Path: "bands.1.name", Value: "Nirvana"}, body: body},
		{name: "field missing", a: Assertion{Type: AssertField, Path: "bands.5.name", Value: "x"}, body: body},
		{name: "absent", a: Assertion{Type: AssertAbsent, Path: "bands.1.people"}, body: body, passes: true},
		{name: "absent present", a: Assertion{Type: AssertAbsent, Path: "bands.0.people"}, body: body},
		{name: "length", a: Assertion{Type: AssertLength, Path: "bands", Count: 2}, body: body, passes: true},
		{name: "length empty", a: Assertion{Type: AssertLength, Path: "bands.0.people", Count: 0}, body: body, passes: true},
		{name: "length not array", a: Assertion{Type: AssertLength, Path: "total", Count: 2}, body: body},
		{name: "error code first", a: Assertion{Type: AssertErrorCode, Code: "not-found"}, body: errBody, passes: true},
		{name: "error code not first", a: Assertion{Type: AssertErrorCode, Code: "invalid-filter"}, body: errBody},
		{name: "warning code", a: Assertion{Type: AssertWarningCode, Code: "duplicate-arguments"}, body: body, passes: true},
		{name: "warning code missing", a: Assertion{Type: AssertWarningCode, Code: "unrecognized-fields"}, body: body},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evaluate(tt.a, tt.body)
			if tt.passes {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{Type: AssertLength, Path: "bands", Expected: "3", Actual: "2"}
	assert.Equal(t, "length bands: expected 3, got 2", err.Error())
}

func TestValuesEqual_Numbers(t *testing.T) {
	assert.True(t, valuesEqual(float64(5), 5))
	assert.True(t, valuesEqual(float64(5), int64(5)))
	assert.True(t, valuesEqual([]any{float64(1), "a"}, []any{1, "a"}))
	assert.False(t, valuesEqual(float64(1.5), 1))
	assert.True(t, valuesEqual(map[string]any{"n": float64(2)}, map[string]any{"n": 2}))
}

func TestRootIDs(t *testing.T) {
	collection := decodeBody(t, `{"total": 2, "bands": [{"id": 4}, {"id": 1}], "warnings": []}`)
	assert.True(t, valuesEqual(rootIDs(collection.(map[string]any)), []any{4, 1}))

	item := decodeBody(t, `{"id": 2, "people": [{"id": 3}]}`)
	assert.True(t, valuesEqual(rootIDs(item.(map[string]any)), []any{2}))
}
