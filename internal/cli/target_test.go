package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name     string
		arg      string
		wantPath string
		wantURI  string
	}{
		{"full_url", "http://localhost:8080/api/bands?limit=2", "/bands", "/api/bands?limit=2"},
		{"api_path", "/api/bands/2/people", "/bands/2/people", "/api/bands/2/people"},
		{"bare_path", "bands/Nirvana", "/bands/Nirvana", "/api/bands/Nirvana"},
		{"escaped_name", "bands/Pearl%20Jam", "/bands/Pearl Jam", "/api/bands/Pearl%20Jam"},
		{"api_root", "/api", "/", "/api/"},
		{"apiary_is_a_resource", "/apiary", "/apiary", "/api/apiary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := parseTarget(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, target.Path)
			assert.Equal(t, tt.wantURI, target.RequestURI())
		})
	}
}

func TestParseTarget_Invalid(t *testing.T) {
	_, err := parseTarget("http://[::1")
	assert.Error(t, err)
}
