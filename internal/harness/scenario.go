package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one API request with its expected outcome.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// URL is the request path and query, such as "/api/bands?limit=2".
	URL string `yaml:"url"`

	Expect Expect `yaml:"expect"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect is the expected response summary.
type Expect struct {
	Status int `yaml:"status"`

	// Total, when set, must equal the envelope total.
	Total *int64 `yaml:"total,omitempty"`

	// IDs, when set, must equal the ids of the returned root objects in
	// order. For an item it holds the one item id.
	IDs []any `yaml:"ids,omitempty"`
}

// Assertion checks one detail of the response body.
type Assertion struct {
	Type  string `yaml:"type"`
	Path  string `yaml:"path,omitempty"`
	Value any    `yaml:"value,omitempty"`
	Count int    `yaml:"count,omitempty"`
	Code  string `yaml:"code,omitempty"`
}

// Assertion types.
const (
	AssertField       = "field"
	AssertAbsent      = "absent"
	AssertLength      = "length"
	AssertErrorCode   = "error_code"
	AssertWarningCode = "warning_code"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir whose name matches pattern
// (a filepath.Match glob; empty matches all), sorted by file name.
func LoadDir(dir, pattern string) ([]*Scenario, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var out []*Scenario
	for _, f := range files {
		s, err := LoadScenario(f)
		if err != nil {
			return nil, err
		}
		if pattern != "" {
			ok, err := filepath.Match(pattern, s.Name)
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.URL == "" {
		return fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(s.URL, "/") {
		return fmt.Errorf("url must be a path starting with '/', got %q", s.URL)
	}
	if s.Expect.Status == 0 {
		return fmt.Errorf("expect.status is required")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertField, AssertAbsent:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertLength:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for length", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for length", index)
		}
	case AssertErrorCode, AssertWarningCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
