package harness

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of one scenario.
type Result struct {
	Name string `json:"name" yaml:"name"`

	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass" yaml:"pass"`

	Status int `json:"status" yaml:"status"`

	// Body is the raw response body.
	Body json.RawMessage `json:"-" yaml:"-"`

	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewResult creates a passing result for the named scenario.
func NewResult(name string) *Result {
	return &Result{Name: name, Pass: true, Errors: []string{}}
}

// AddError records a failed check and marks the result failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
