package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

// seededDB initializes a demo database in a temp dir.
func seededDB(t *testing.T) string {
	t.Helper()
	t.Setenv("BANDMAP_BASE_URL", "http://localhost:8080")
	path := filepath.Join(t.TempDir(), "bandmap.db")
	_, err := execute(t, "init", "--seed", "--db", path)
	require.NoError(t, err)
	return path
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "query", "bands")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRoot_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "query", "plan", "filter", "init", "test"})
}

func TestInit_SeedsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bandmap.db")

	out, err := execute(t, "init", "--seed", "--db", path)
	require.NoError(t, err)
	assert.Equal(t, "Initialized sqlite database "+path+" (loaded demo data): 5 bands\n", out)

	out, err = execute(t, "init", "--seed", "--db", path)
	require.NoError(t, err)
	assert.Equal(t, "Initialized sqlite database "+path+": 5 bands\n", out)
}

func TestInit_WithoutSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bandmap.db")

	out, err := execute(t, "--format", "json", "init", "--db", path)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   initResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Data.Seeded)
	assert.Equal(t, int64(0), resp.Data.Bands)
}

func TestQuery_Collection(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "query", "--db", db, "/api/bands?fields=total,name&sort=name&limit=2")
	require.NoError(t, err)

	var body struct {
		Total int64 `json:"total"`
		Bands []struct {
			Name string `json:"name"`
		} `json:"bands"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, int64(5), body.Total)
	require.Len(t, body.Bands, 2)
	assert.Equal(t, "Green River", body.Bands[0].Name)
	assert.Equal(t, "Love Battery", body.Bands[1].Name)
}

func TestQuery_NotFound(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "query", "--db", db, "bands/Pearl%20Jam")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Requested band 'Pearl Jam' not found.")
}

func TestQuery_StructuredError(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "--format", "json", "query", "--db", db, "bands?filter=name%20%3D")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid-filter", resp.Error.Code)
	assert.NotNil(t, resp.Error.Details)
}

func TestQuery_YAML(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "--format", "yaml", "query", "--db", db, "bands/Nirvana?fields=id,name")
	require.NoError(t, err)
	assert.Equal(t, "status: ok\ndata:\n  id: 2\n  name: Nirvana\n", out)
}

func TestPlan_Text(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "plan", "--db", db, "bands?fields=name,people.name")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan for http://localhost:8080/api/bands")
	assert.Contains(t, out, "SELECT")
}

func TestPlan_JSON(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "--format", "json", "plan", "--db", db, "bands/2/people")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   planResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.Statements)
	for _, st := range resp.Data.Statements {
		assert.NotEmpty(t, st.Phase)
		assert.NotEmpty(t, st.SQL)
	}
}

func TestPlan_UnknownResource(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "plan", "--db", db, "albums")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [not-found]")
}

func TestFilter_Print(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "filter", "--db", db, "bands", "name = 'Nirvana' or name = 'Mudhoney'")
	require.NoError(t, err)
	assert.Equal(t, `bands.name = "nirvana" or bands.name = "mudhoney"`+"\n", out)
}

func TestFilter_Invalid(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "filter", "--db", db, "bands", "name =")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [invalid-filter]")
}

func TestFilter_Empty(t *testing.T) {
	db := seededDB(t)

	_, err := execute(t, "filter", "--db", db, "bands", "  ")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func writeScenario(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func TestTest_Scenarios(t *testing.T) {
	db := seededDB(t)
	dir := t.TempDir()
	writeScenario(t, dir, "a_nirvana", `name: nirvana
url: /api/bands/Nirvana?fields=id,name
expect:
  status: 200
  ids: [2]
`)
	writeScenario(t, dir, "b_missing", `name: missing
url: /api/bands/Pearl%20Jam
expect:
  status: 404
assertions:
  - type: error_code
    code: not-found
`)

	out, err := execute(t, "test", "--db", db, dir)
	require.NoError(t, err)
	assert.Equal(t, "PASS nirvana (status 200)\nPASS missing (status 404)\n2 passed, 0 failed\n", out)

	out, err = execute(t, "test", "--db", db, "--filter", "miss*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestTest_Failure(t *testing.T) {
	db := seededDB(t)
	dir := t.TempDir()
	writeScenario(t, dir, "wrong", `name: wrong
url: /api/bands/Nirvana?fields=id
expect:
  status: 200
  ids: [3]
`)

	out, err := execute(t, "test", "--db", db, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL wrong (status 200)")
	assert.Contains(t, out, "0 passed, 1 failed")
}

func TestTest_EmptyDir(t *testing.T) {
	_, err := execute(t, "test", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServe_HealthzAndShutdown(t *testing.T) {
	db := seededDB(t)
	s, err := openStack(t.Context(), &RootOptions{Format: "text", Database: db})
	require.NoError(t, err)
	defer s.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, s, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
