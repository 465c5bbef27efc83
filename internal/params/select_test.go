package params

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/schema"
)

func bandsCollection(t *testing.T) (*schema.FieldSet, *Names) {
	t.Helper()
	p, err := schema.Load()
	require.NoError(t, err)
	fs, err := p.Fields(schema.Collection, []string{"bands"})
	require.NoError(t, err)
	return fs, NewNames(fs.Keys, "bands.")
}

func selectFor(t *testing.T, q url.Values) ([]string, *apierr.Issues, error) {
	t.Helper()
	fs, names := bandsCollection(t)
	p, err := Parse(q, 0)
	require.NoError(t, err)
	issues := apierr.NewIssues()
	got, err := Select(fs, names, p, issues)
	return got, issues, err
}

func TestSelect_AllFieldsByDefault(t *testing.T) {
	fs, _ := bandsCollection(t)
	got, issues, err := selectFor(t, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, fs.Keys, got)
	assert.Empty(t, issues.Warnings())
}

func TestSelect_WhitelistAddsContainers(t *testing.T) {
	got, _, err := selectFor(t, url.Values{"fields": {"bands.people.name,total"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"total", "bands", "bands.people", "bands.people.name"}, got)
}

func TestSelect_WhitelistContainerTakesSubfields(t *testing.T) {
	got, _, err := selectFor(t, url.Values{"fields": {"bands.connectedBands"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"bands",
		"bands.connectedBands",
		"bands.connectedBands.id",
		"bands.connectedBands.link",
		"bands.connectedBands.name",
		"bands.connectedBands.description",
	}, got)
}

func TestSelect_BareNamesResolveUnderRoot(t *testing.T) {
	got, issues, err := selectFor(t, url.Values{"fields": {"NAME,webLinks.url"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"bands", "bands.name", "bands.webLinks", "bands.webLinks.url"}, got)
	assert.Empty(t, issues.Warnings())
}

func TestSelect_BlacklistRemovesSubtree(t *testing.T) {
	fs, _ := bandsCollection(t)
	got, _, err := selectFor(t, url.Values{"no-fields": {"bands.people"}})
	require.NoError(t, err)
	assert.NotContains(t, got, "bands.people")
	assert.NotContains(t, got, "bands.people.roles.name")
	assert.Contains(t, got, "bands.peopleCount")
	assert.Less(t, len(got), len(fs.Keys))
}

func TestSelect_Warnings(t *testing.T) {
	_, issues, err := selectFor(t, url.Values{
		"fields":    {"bands.name,bands.nme,name,people.nam"},
		"no-fields": {"bands.id"},
	})
	require.NoError(t, err)

	warnings := issues.Warnings()
	require.Len(t, warnings, 3)
	assert.Equal(t, apierr.CodeIncompatibleArguments, warnings[0].Code)
	assert.Equal(t, apierr.CodeUnrecognizedFields, warnings[1].Code)
	assert.Equal(t,
		"Ignoring 2 unrecognized field(s) in 'fields' argument: 'bands.nme', 'people.nam'",
		warnings[1].Message)
	assert.Equal(t, apierr.CodeDuplicateArguments, warnings[2].Code)
	assert.Equal(t,
		"Found 1 field(s) specified multiple times in 'fields' argument.  Ignoring duplicates: bands.name",
		warnings[2].Message)
}

func TestSelect_NothingRequested(t *testing.T) {
	_, issues, err := selectFor(t, url.Values{"fields": {"tempo"}})
	require.Error(t, err)
	assert.True(t, apierr.HasCode(err, apierr.CodeNothingRequested))
	assert.Contains(t, err.Error(), "Check your 'fields' or 'no-fields' arguments")
	assert.Len(t, issues.Errors(), 1)
}

func TestNames_Suggest(t *testing.T) {
	names := NewNames([]string{"bands", "bands.name", "bands.people", "bands.people.name"}, "")

	assert.Equal(t, " (did you mean 'bands.name'?)", names.Suggest("name"))
	assert.Equal(t, " (did you mean 'bands.people.name'?)", names.Suggest("people.name"))
	assert.Equal(t, " (did you mean 'bands.name'?)", names.Suggest("x.bands.name"))
	assert.Equal(t, "", names.Suggest("tempo"))
}

func TestNames_LookupPrefersExact(t *testing.T) {
	names := NewNames([]string{"link", "bands.link", "bands.id"}, "bands.")

	k, ok := names.Lookup("LINK")
	require.True(t, ok)
	assert.Equal(t, "link", k)

	k, ok = names.Lookup("id")
	require.True(t, ok)
	assert.Equal(t, "bands.id", k)

	_, ok = names.Lookup("people")
	assert.False(t, ok)
}
