package querysql

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/filter"
	"github.com/roach88/bandmap/internal/queryir"
)

func newCompiler(t *testing.T, d Dialect) *Compiler {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)
	return NewCompiler(cat, d)
}

func assertGolden(t *testing.T, name string, p *Pipeline) {
	t.Helper()
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, name, []byte(p.SQL+"\n"))
}

func clickCountAbove(n int64) queryir.Match {
	return queryir.Match{Tree: &filter.Objects{
		Scopes: []string{"bands"},
		Fields: []string{"bands.clickCount"},
		Child: &filter.Clause{
			APIField: "bands.clickCount",
			Field:    "bands.clickCount",
			Scope:    "bands",
			Type:     "integer",
			Op:       ">",
			Value:    n,
		},
	}}
}

func TestCompile_RootCollection(t *testing.T) {
	c := newCompiler(t, SQLite)

	p, err := c.Compile([]queryir.Link{{
		Path:       "bands",
		Fields:     []string{"id", "name"},
		Conditions: []queryir.Condition{clickCountAbove(10)},
		Sort:       []queryir.SortKey{{Field: "bands.name"}},
		Count:      queryir.CountFiltered,
		Limit:      queryir.IntPtr(10),
		Offset:     queryir.IntPtr(20),
	}})
	require.NoError(t, err)

	assertGolden(t, "root_collection", p)
	assert.Equal(t, []any{int64(10), 10, 20}, p.Args)
	assert.Equal(t, []string{"bands__count", "bands__id", "bands__name"}, p.Columns)
}

func TestCompile_NestedCount(t *testing.T) {
	c := newCompiler(t, SQLite)

	p, err := c.Compile([]queryir.Link{
		{Path: "bands", Fields: []string{"id", "name", "peopleCount"}},
		{Path: "bands.people", Fields: []string{"id", "name"}},
	})
	require.NoError(t, err)

	assertGolden(t, "nested_count", p)
	assert.Empty(t, p.Args)
	assert.Equal(t, []string{
		"bands__id", "bands__name", "bands_people__count", "bands_people__id", "bands_people__name",
	}, p.Columns)
}

func TestCompile_AncestorLookupPostgres(t *testing.T) {
	c := newCompiler(t, Postgres)

	p, err := c.Compile([]queryir.Link{{
		Path:       "bands",
		Fields:     []string{"id"},
		Conditions: []queryir.Condition{queryir.Equal{Field: "name", Value: "Love Battery"}},
		Limit:      queryir.IntPtr(1),
	}})
	require.NoError(t, err)

	assertGolden(t, "ancestor_lookup_postgres", p)
	assert.Equal(t, []any{"love battery", 1}, p.Args)
}

func TestCompile_PagingTerminal(t *testing.T) {
	c := newCompiler(t, SQLite)

	p, err := c.Compile([]queryir.Link{
		{
			Path:       "bands",
			Fields:     []string{"id", "name"},
			Conditions: []queryir.Condition{clickCountAbove(10)},
			Count:      queryir.CountFiltered,
		},
		{Path: "bands.people", Fields: []string{"id", "name"}},
		{
			GroupBy: "bands.id",
			Sort: []queryir.SortKey{
				{Field: "bands.people.name", Desc: true},
				{Field: "bands.id"},
			},
			Limit:  queryir.IntPtr(5),
			Offset: queryir.IntPtr(0),
		},
	})
	require.NoError(t, err)

	assertGolden(t, "paging_terminal", p)
	assert.Equal(t, []any{int64(10), 5, 0}, p.Args)
}

func TestCompile_WithClauseAndAliasedCount(t *testing.T) {
	c := newCompiler(t, SQLite)

	p, err := c.Compile([]queryir.Link{
		{Path: "bands", Fields: []string{"id", "citiesCount"}},
		{Path: "bands.cityStateCountries", Fields: []string{"id", "name"}},
		{Path: "bands.cityStateCountries.activeDates", Fields: []string{"id", "from", "until"}},
	})
	require.NoError(t, err)

	assertGolden(t, "with_clause_count", p)
	assert.Contains(t, p.Columns, "bands_citystatecountries__count")
}

func TestCompile_UnfilteredCountSkipsConditions(t *testing.T) {
	c := newCompiler(t, SQLite)

	p, err := c.Compile([]queryir.Link{{
		Path:       "bands",
		Fields:     []string{"id"},
		Conditions: []queryir.Condition{clickCountAbove(3)},
		Count:      queryir.CountUnfiltered,
	}})
	require.NoError(t, err)

	assert.Contains(t, p.SQL, "b_all AS (\nSELECT DISTINCT\nb.id AS bands__id\nFROM bands AS b\n),\n")
	assert.Contains(t, p.SQL, "b_count AS (\nSELECT count(*) AS count FROM b_all\n)")
}

func TestCompile_CountWithoutTemplateIsDropped(t *testing.T) {
	c := newCompiler(t, SQLite)

	p, err := c.Compile([]queryir.Link{
		{Path: "bands", Fields: []string{"id", "activeDatesCount"}},
		{Path: "bands.activeDates", Fields: []string{"id"}},
	})
	require.NoError(t, err)

	assert.NotContains(t, p.SQL, "_count")
	assert.Equal(t, []string{"bands__id", "bands_activedates__id"}, p.Columns)
}

func TestCompile_ConditionRendering(t *testing.T) {
	c := newCompiler(t, SQLite)

	tests := []struct {
		name  string
		cond  queryir.Condition
		where string
		args  []any
	}{
		{
			name:  "any of",
			cond:  queryir.AnyOf{Field: "id", Values: []any{int64(3), int64(1)}},
			where: "WHERE b.id IN (?1, ?2)",
			args:  []any{int64(3), int64(1)},
		},
		{
			name:  "empty any of",
			cond:  queryir.AnyOf{Field: "id"},
			where: "WHERE 1 = 0",
		},
		{
			name: "like lowers both sides",
			cond: queryir.Match{Tree: &filter.Clause{
				Field: "bands.name", Scope: "bands", Type: "string", Op: "like", Value: "%Love%",
			}},
			where: "WHERE LOWER(b.name) LIKE ?1",
			args:  []any{"%love%"},
		},
		{
			name: "not and or",
			cond: queryir.Match{Tree: &filter.LogicOp{Op: filter.OpNot, Children: []filter.Node{
				&filter.LogicOp{Op: filter.OpOr, Children: []filter.Node{
					&filter.Clause{Field: "bands.id", Scope: "bands", Type: "integer", Op: "=", Value: int64(1)},
					&filter.Clause{Field: "bands.clickCount", Scope: "bands", Type: "integer", Op: "<=", Value: int64(2)},
				}},
			}}},
			where: "WHERE NOT ((b.id = ?1) OR (b.click_count <= ?2))",
			args:  []any{int64(1), int64(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := c.Compile([]queryir.Link{{
				Path:       "bands",
				Fields:     []string{"id"},
				Conditions: []queryir.Condition{tt.cond},
			}})
			require.NoError(t, err)
			assert.Contains(t, p.SQL, "\n"+tt.where+"\n")
			if tt.args == nil {
				assert.Empty(t, p.Args)
			} else {
				assert.Equal(t, tt.args, p.Args)
			}
		})
	}
}

func TestCompile_CarriedFilterField(t *testing.T) {
	c := newCompiler(t, SQLite)

	p, err := c.Compile([]queryir.Link{
		{Path: "bands", Fields: []string{"id", "name"}},
		{
			Path:   "bands.people",
			Fields: []string{"id"},
			Conditions: []queryir.Condition{queryir.Match{Tree: &filter.Clause{
				Field: "bands.name", Scope: "bands", Type: "string", Op: "=", Value: "X",
			}}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, p.SQL, "WHERE LOWER(b.bands__name) = ?1")
	assert.Equal(t, []any{"x"}, p.Args)
}

func TestCompile_Errors(t *testing.T) {
	c := newCompiler(t, SQLite)

	tests := []struct {
		name    string
		chain   []queryir.Link
		message string
	}{
		{
			name:    "empty chain",
			chain:   nil,
			message: "Query chain is empty.",
		},
		{
			name:    "unknown object",
			chain:   []queryir.Link{{Path: "venues"}},
			message: "Object catalog has no entry for 'venues'.",
		},
		{
			name:    "nested link first",
			chain:   []queryir.Link{{Path: "bands.people"}},
			message: "Object 'bands.people' needs its container 'bands' earlier in the query chain.",
		},
		{
			name:    "missing join",
			chain:   []queryir.Link{{Path: "bands"}, {Path: "bands.roles"}},
			message: "Object catalog has no join for 'roles' beneath 'bands'.",
		},
		{
			name: "unknown sort field",
			chain: []queryir.Link{{
				Path: "bands", Sort: []queryir.SortKey{{Field: "bands.genre"}},
			}},
			message: "Object 'bands' has no field 'genre' to sort on.",
		},
		{
			name: "sort on later link under paging",
			chain: []queryir.Link{
				{Path: "bands", Limit: queryir.IntPtr(2), Sort: []queryir.SortKey{{Field: "bands.people.name"}}},
				{Path: "bands.people", Fields: []string{"name"}},
			},
			message: "Sort field 'bands.people.name' is not available on object 'bands'.",
		},
		{
			name: "unknown condition field",
			chain: []queryir.Link{{
				Path: "bands", Conditions: []queryir.Condition{queryir.Equal{Field: "genre", Value: "rock"}},
			}},
			message: "Object 'bands' has no field 'genre'.",
		},
		{
			name: "unsupported operator",
			chain: []queryir.Link{{
				Path: "bands", Conditions: []queryir.Condition{queryir.Match{Tree: &filter.Clause{
					Field: "bands.id", Scope: "bands", Type: "integer", Op: "~", Value: int64(1),
				}}},
			}},
			message: "Unsupported filter operator '~'.",
		},
		{
			name: "group by outside results",
			chain: []queryir.Link{
				{Path: "bands", Fields: []string{"id"}},
				{GroupBy: "people.id"},
			},
			message: "Group by field 'people.id' is not in the query results.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(tt.chain)
			require.Error(t, err)
			assert.True(t, apierr.IsServerError(err), "want a server error, got %v", err)
			assert.Equal(t, tt.message, apierr.As(err).Message)
		})
	}
}

func TestCompile_DoesNotModifyChain(t *testing.T) {
	c := newCompiler(t, SQLite)
	chain := []queryir.Link{
		{Path: "bands", Fields: []string{"id", "peopleCount"}},
		{Path: "bands.people", Fields: []string{"id"}},
	}

	_, err := c.Compile(chain)
	require.NoError(t, err)
	assert.Equal(t, queryir.CountNone, chain[1].Count)
}

func TestDialect_Placeholder(t *testing.T) {
	assert.Equal(t, "?3", SQLite.Placeholder(3))
	assert.Equal(t, "$3", Postgres.Placeholder(3))
}

func TestParseDialect(t *testing.T) {
	for _, name := range []string{"sqlite", "sqlite3", "SQLite"} {
		d, err := ParseDialect(name)
		require.NoError(t, err, name)
		assert.Equal(t, SQLite, d)
	}
	for _, name := range []string{"postgres", "postgresql", "pgx"} {
		d, err := ParseDialect(name)
		require.NoError(t, err, name)
		assert.Equal(t, Postgres, d)
	}
	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}
