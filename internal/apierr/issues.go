package apierr

import "sync"

// Entry is the serialized form of an error or warning.
type Entry struct {
	Code    Code   `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Issues queues the warnings and raised errors of a single request.
//
// Thread-safety: all methods are safe for concurrent use so concurrent
// leaf queries may report into the same queue.
type Issues struct {
	mu       sync.Mutex
	errors   []*Error
	warnings []*Error
}

// NewIssues creates an empty queue.
func NewIssues() *Issues {
	return &Issues{}
}

// Warn queues a non-fatal warning.
func (i *Issues) Warn(status int, code Code, format string, args ...any) {
	w := New(status, code, format, args...)
	i.mu.Lock()
	defer i.mu.Unlock()
	i.warnings = append(i.warnings, w)
}

// Raise records err and returns it unchanged, so callers can write
// `return issues.Raise(err)`. Non-API errors are recorded as server errors.
func (i *Issues) Raise(err error) error {
	if err == nil {
		return nil
	}
	ae := As(err)
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, e := range i.errors {
		if e == ae {
			return err
		}
	}
	i.errors = append(i.errors, ae)
	return err
}

// Warnings returns a copy of the queued warnings.
func (i *Issues) Warnings() []*Error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*Error(nil), i.warnings...)
}

// Errors returns a copy of the raised errors in the order they were raised.
func (i *Issues) Errors() []*Error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*Error(nil), i.errors...)
}

// Body is the error/warning portion of a response.
type Body struct {
	Errors   []Entry `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings []Entry `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Envelope renders the response body for a failed (err != nil) or
// successful (err == nil) request. The error that determined the status is
// listed first, followed by any other raised errors. It returns the status
// code to respond with (200 on success).
func Envelope(err error, issues *Issues) (int, Body) {
	var body Body
	status := 200
	if issues == nil {
		issues = NewIssues()
	}

	if err != nil {
		deciding := As(err)
		status = deciding.Status
		body.Errors = append(body.Errors, Entry{Code: deciding.Code, Message: deciding.Message})
		for _, e := range issues.Errors() {
			if e == deciding || (e.Code == deciding.Code && e.Message == deciding.Message) {
				continue
			}
			body.Errors = append(body.Errors, Entry{Code: e.Code, Message: e.Message})
		}
	}

	for _, w := range issues.Warnings() {
		body.Warnings = append(body.Warnings, Entry{Code: w.Code, Message: w.Message})
	}
	return status, body
}
