package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Request failed (API error status, failed scenarios)
	ExitCommandError = 2 // Command error (bad flags, configuration, unreachable store)
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Texter is implemented by results with a human-readable form.
type Texter interface {
	Text() string
}

// OutputFormatter renders command results as text, JSON or YAML.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the structured (json/yaml) response envelope.
type CLIResponse struct {
	Status  string    `json:"status" yaml:"status"` // "ok" or "error"
	Data    any       `json:"data,omitempty" yaml:"data,omitempty"`
	Error   *CLIError `json:"error,omitempty" yaml:"error,omitempty"`
	TraceID string    `json:"trace_id,omitempty" yaml:"trace_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	Details any    `json:"details,omitempty" yaml:"details,omitempty"`
}

// Success outputs a successful result. traceID may be empty.
func (f *OutputFormatter) Success(data any, traceID string) error {
	return f.emit(CLIResponse{Status: "ok", Data: data, TraceID: traceID}, func() {
		if t, ok := data.(Texter); ok {
			fmt.Fprintln(f.Writer, t.Text())
			return
		}
		fmt.Fprintln(f.Writer, data)
	})
}

// Error outputs an error result.
func (f *OutputFormatter) Error(code, message string, details any, traceID string) error {
	resp := CLIResponse{
		Status:  "error",
		Error:   &CLIError{Code: code, Message: message, Details: details},
		TraceID: traceID,
	}
	return f.emit(resp, func() {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
		if f.Verbose && details != nil {
			if t, ok := details.(Texter); ok {
				fmt.Fprintf(f.Writer, "Details:\n%s\n", t.Text())
			} else {
				fmt.Fprintf(f.Writer, "Details: %v\n", details)
			}
		}
	})
}

func (f *OutputFormatter) emit(resp CLIResponse, text func()) error {
	switch f.Format {
	case "json":
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "yaml":
		enc := yaml.NewEncoder(f.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return enc.Close()
	default:
		text()
		return nil
	}
}

// VerboseLog outputs a message only if verbose mode is enabled. Verbose
// logs go to ErrWriter so structured output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
