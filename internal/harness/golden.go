package harness

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// snapshot is the golden form of a response.
type snapshot struct {
	Scenario string          `json:"scenario"`
	Status   int             `json:"status"`
	Body     json.RawMessage `json:"body"`
}

// Snapshot renders r as indented JSON with a trailing newline.
func Snapshot(r *Result) ([]byte, error) {
	out, err := json.MarshalIndent(snapshot{Scenario: r.Name, Status: r.Status, Body: r.Body}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// RunWithGolden runs s against h, fails t on unmet expectations, and
// compares the response with testdata/golden/{s.Name}.golden.
func RunWithGolden(t *testing.T, h http.Handler, s *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), h, s)
	if err != nil {
		return nil, err
	}
	for _, e := range result.Errors {
		t.Errorf("scenario %s: %s", s.Name, e)
	}
	if err := AssertGolden(t, s.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
