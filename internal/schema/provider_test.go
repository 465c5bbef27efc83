package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/cache"
)

func mustLoad(t *testing.T) *Provider {
	t.Helper()
	p, err := Load()
	require.NoError(t, err)
	return p
}

func TestLoadResources(t *testing.T) {
	p := mustLoad(t)
	assert.ElementsMatch(t, []string{"bands", "people", "roles"}, p.Resources())
	assert.True(t, p.HasResource("bands"))
	assert.False(t, p.HasResource("venues"))
}

func TestCollectionFieldsEnvelopeFirst(t *testing.T) {
	p := mustLoad(t)
	fs, err := p.Fields(Collection, []string{"bands"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"link", "offset", "limit", "total", "bands", "bandsCount",
		"first", "prev", "next", "last",
		"bands.id", "bands.link", "bands.name", "bands.clickCount",
		"bands.people", "bands.people.id",
	}, fs.Keys[:16])

	typ, ok := fs.Type("bands.people.roles.activeDates.from")
	require.True(t, ok)
	assert.Equal(t, TypeDate, typ)
	assert.True(t, fs.Has("bands.webLinks.url"))
	assert.False(t, fs.Has("id"))
}

func TestItemFieldsUnprefixed(t *testing.T) {
	p := mustLoad(t)
	fs, err := p.Fields(Item, []string{"people"})
	require.NoError(t, err)

	assert.Equal(t, "id", fs.Keys[0])
	assert.True(t, fs.Has("bands.name"))
	assert.True(t, fs.Has("rolesCount"))
	assert.False(t, fs.Has("total"))
	assert.False(t, fs.Has("people.id"))
}

func TestNestedResourceUsesContainerField(t *testing.T) {
	p := mustLoad(t)
	fs, err := p.Fields(Collection, []string{"bands", "people", "roles"})
	require.NoError(t, err)

	assert.True(t, fs.Has("rolesCount"))
	assert.True(t, fs.Has("roles.activeDates.until"))
	assert.False(t, fs.Has("roles.people"))

	_, err = p.Fields(Collection, []string{"bands", "name"})
	assert.True(t, apierr.IsServerError(err))
}

func TestUnknownResource(t *testing.T) {
	p := mustLoad(t)
	_, err := p.Fields(Item, []string{"venues"})
	assert.True(t, apierr.IsServerError(err))
}

func TestUnknownTypeIsServerError(t *testing.T) {
	src := []byte(`
resources: widgets: item: {
	id:   "integer"
	size: "float"
}
resources: gadgets: item: id: "integer"
`)
	p, err := LoadSource(src)
	require.NoError(t, err)

	_, err = p.Fields(Item, []string{"widgets"})
	require.Error(t, err)
	assert.True(t, apierr.IsServerError(err))
	assert.Contains(t, err.Error(), "unknown field type at 'size'")

	fs, err := p.Fields(Item, []string{"gadgets"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, fs.Keys)
}

func TestFieldsAreCached(t *testing.T) {
	c := cache.New[*FieldSet](8, 0)
	p, err := Load(WithCache(c))
	require.NoError(t, err)

	first, err := p.Fields(Collection, []string{"bands"})
	require.NoError(t, err)
	second, err := p.Fields(Collection, []string{"bands"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestLoadSourceCompileError(t *testing.T) {
	_, err := LoadSource([]byte(`resources: {`))
	assert.Error(t, err)
}
