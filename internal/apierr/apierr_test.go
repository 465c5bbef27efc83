package apierr

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsMapStatus(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
		code   Code
	}{
		{NotFound("Requested band '%s' not found.", "9"), http.StatusNotFound, CodeNotFound},
		{InvalidFilter("bad"), http.StatusBadRequest, CodeInvalidFilter},
		{InvalidArguments("bad"), http.StatusBadRequest, CodeInvalidArguments},
		{NothingRequested("none"), http.StatusBadRequest, CodeNothingRequested},
		{NotImplemented("later"), http.StatusNotImplemented, CodeNotImplemented},
		{ServerError("boom"), http.StatusInternalServerError, CodeServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
	assert.Equal(t, "Requested band '9' not found.", tests[0].err.Message)
}

func TestAsWrapsForeignErrors(t *testing.T) {
	assert.Nil(t, As(nil))

	wrapped := fmt.Errorf("fetching: %w", NotImplemented("nope"))
	assert.Equal(t, CodeNotImplemented, As(wrapped).Code)
	assert.True(t, IsNotImplemented(wrapped))

	foreign := As(context.Canceled)
	assert.Equal(t, CodeServerError, foreign.Code)
	assert.Equal(t, "context canceled", foreign.Message)
	assert.False(t, IsNotFound(context.Canceled))
}

func TestEnvelopeFirstErrorDecides(t *testing.T) {
	issues := NewIssues()
	issues.Warn(http.StatusBadRequest, CodeUnrecognizedFields, "Ignoring %d unrecognized field(s)", 1)

	first := issues.Raise(InvalidFilter("first"))
	_ = issues.Raise(NotImplemented("second"))

	status, body := Envelope(first, issues)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, body.Errors, 2)
	assert.Equal(t, "first", body.Errors[0].Message)
	assert.Equal(t, CodeNotImplemented, body.Errors[1].Code)
	require.Len(t, body.Warnings, 1)
	assert.Equal(t, "Ignoring 1 unrecognized field(s)", body.Warnings[0].Message)
}

func TestEnvelopeSuccessCarriesWarnings(t *testing.T) {
	issues := NewIssues()
	issues.Warn(http.StatusBadRequest, CodeDuplicateArguments, "dup")

	status, body := Envelope(nil, issues)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Errors)
	assert.Len(t, body.Warnings, 1)

	status, body = Envelope(nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Warnings)
}

func TestEnvelopeForeignErrorNotDuplicated(t *testing.T) {
	issues := NewIssues()
	err := issues.Raise(context.DeadlineExceeded)

	status, body := Envelope(err, issues)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Len(t, body.Errors, 1)
}

func TestRaiseDeduplicates(t *testing.T) {
	issues := NewIssues()
	e := ServerError("once")
	_ = issues.Raise(e)
	_ = issues.Raise(e)
	assert.Nil(t, issues.Raise(nil))
	assert.Len(t, issues.Errors(), 1)
}

func TestIssuesConcurrentWarn(t *testing.T) {
	issues := NewIssues()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			issues.Warn(http.StatusBadRequest, CodeInvalidArguments, "w%d", i)
		}(i)
	}
	wg.Wait()
	assert.Len(t, issues.Warnings(), 32)
}
