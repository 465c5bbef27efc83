package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_IndentsBody(t *testing.T) {
	r := &Result{Name: "x", Status: 200, Body: json.RawMessage(`{"name":"Nirvana","people":[]}`)}
	out, err := Snapshot(r)
	require.NoError(t, err)
	assert.Equal(t, `{
  "scenario": "x",
  "status": 200,
  "body": {
    "name": "Nirvana",
    "people": []
  }
}
`, string(out))
}

func TestSnapshot_DeterministicAcrossRuns(t *testing.T) {
	h := newHandler(t)
	s := &Scenario{Name: "repeat", URL: "/api/bands?fields=id,name,people.name&sort=name", Expect: Expect{Status: 200}}

	first, err := RunAll(t.Context(), h, []*Scenario{s, s})
	require.NoError(t, err)
	a, err := Snapshot(first[0])
	require.NoError(t, err)
	b, err := Snapshot(first[1])
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
