package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bandmap/internal/apierr"
)

func mustLoad(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	require.NoError(t, err)
	return c
}

func TestLoad_EmbeddedCatalog(t *testing.T) {
	c := mustLoad(t)

	assert.Equal(t, []string{
		"activeDates", "bands", "cityStateCountries", "connectedBands",
		"infoSources", "people", "roles",
	}, c.Names())

	bands, err := c.Object("bands")
	require.NoError(t, err)
	assert.Equal(t, "b", bands.Alias)
	assert.Equal(t, "id", bands.PrimaryID)
	assert.Equal(t, "name", bands.SecondaryID)
	assert.Equal(t, "click_count", bands.Fields["clickCount"].Column)

	ad, err := c.Object("activeDates")
	require.NoError(t, err)
	assert.True(t, ad.ExcludeIfEmpty)
	assert.Equal(t, "id", ad.PrimaryID, "default primary id applies")
}

func TestLoadSource_RejectsInvalidType(t *testing.T) {
	src := append([]byte(nil), source...)
	src = append(src, []byte(`
objects: bogus: {
	singular: "bogus"
	plural: "bogus"
	urlPlural: "bogus"
	alias: "x"
	table: "bogus"
	fields: id: {column: "id", type: "uuid"}
}
`)...)

	_, err := LoadSource(src)
	require.Error(t, err)
	var le *LoadError
	assert.ErrorAs(t, err, &le)
}

func TestLoadSource_RequiresTableOrWithClause(t *testing.T) {
	src := append([]byte(nil), source...)
	src = append(src, []byte(`
objects: floating: {
	singular: "floating"
	plural: "floating"
	urlPlural: "floating"
	alias: "f"
	fields: id: {column: "id", type: "integer"}
}
`)...)

	_, err := LoadSource(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a table or a withClause")
}

func TestObject_AliasedCollectionNames(t *testing.T) {
	c := mustLoad(t)

	cities, err := c.Object("cities")
	require.NoError(t, err)
	assert.Equal(t, "cityStateCountries", cities.Name)

	_, err = c.Object("unicorns")
	require.Error(t, err)
	assert.True(t, apierr.IsServerError(err))
}

func TestCanonical(t *testing.T) {
	c := mustLoad(t)

	assert.Equal(t, "bands.cityStateCountries.name", c.Canonical("bands.cities.name"))
	assert.Equal(t, "bands.cityStateCountriesCount", c.Canonical("bands.citiesCount"))
	assert.Equal(t, "bands.infoSources.url", c.Canonical("bands.webLinks.url"))
	assert.Equal(t, "bands.people.name", c.Canonical("bands.people.name"))
}

func TestAliasFor(t *testing.T) {
	c := mustLoad(t)

	alias, err := c.AliasFor([]string{"bands", "people", "roles", "activeDates"})
	require.NoError(t, err)
	assert.Equal(t, "b_p_r_ad", alias)
}

func TestIsCountField(t *testing.T) {
	c := mustLoad(t)

	assert.True(t, c.IsCountField("peopleCount"))
	assert.True(t, c.IsCountField("citiesCount"))
	assert.True(t, c.IsCountField("bandsCount"))
	assert.False(t, c.IsCountField("clickCount"))
	assert.False(t, c.IsCountField("people"))
}

func TestOutputName(t *testing.T) {
	c := mustLoad(t)

	tests := []struct {
		in   string
		want string
	}{
		{"bands.id", "bands__id"},
		{"bands.clickCount", "bands__clickcount"},
		{"bands.people.name", "bands_people__name"},
		{"bands.peopleCount", "bands_people__count"},
		{"bandsCount", "bands__count"},
		{"bands.total", "bands__count"},
		{"bands.people.roles.activeDates.from", "bands_people_roles_activedates__from"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, c.OutputName(tt.in))
		})
	}
}

func TestJoinAndCountTemplates(t *testing.T) {
	c := mustLoad(t)

	people, err := c.Object("people")
	require.NoError(t, err)

	tmpl, err := c.Join(people, "bands")
	require.NoError(t, err)
	assert.Contains(t, tmpl, "{{prevAlias}}.bands__id = bpr.band_id")

	_, err = c.Join(people, "roles")
	assert.True(t, apierr.IsServerError(err))

	count, ok := c.CountTemplate(people, "bands")
	require.True(t, ok)
	assert.Contains(t, count.Join, "{{alias}}_count.bands__id")

	_, ok = c.CountTemplate(people, "bands.people")
	assert.False(t, ok)

	bands, err := c.Object("bands")
	require.NoError(t, err)
	root, ok := c.CountTemplate(bands, "")
	require.True(t, ok)
	assert.Equal(t, "LEFT JOIN {{alias}}_count ON TRUE", root.Join)
}

func TestByURLPlural(t *testing.T) {
	c := mustLoad(t)

	name, ok := c.ByURLPlural("Connected-Bands")
	require.True(t, ok)
	assert.Equal(t, "connectedBands", name)

	_, ok = c.ByURLPlural("spaceships")
	assert.False(t, ok)
}

func TestColumnHelpers(t *testing.T) {
	assert.Equal(t, "bands_people__", ColumnPrefix("bands.people"))
	assert.Equal(t, "bands_citystatecountries__count", CountColumn("bands.cityStateCountries"))
	assert.Equal(t, "bands.people", ParentPath("bands.people.id"))
	assert.Equal(t, "", ParentPath("bands"))
	assert.Equal(t, "id", LastPart("bands.people.id"))
}
