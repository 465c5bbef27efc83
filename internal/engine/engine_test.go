package engine

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/ir"
	"github.com/roach88/bandmap/internal/metrics"
	"github.com/roach88/bandmap/internal/querysql"
	"github.com/roach88/bandmap/internal/request"
	"github.com/roach88/bandmap/internal/schema"
	"github.com/roach88/bandmap/internal/store"
)

type fixture struct {
	engine *Engine
	parser *request.Parser
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bandmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, store.Seed(context.Background(), s))
	return newFixtureOn(t, s, opts...)
}

func newFixtureOn(t *testing.T, q store.Querier, opts ...Option) *fixture {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)
	schemas, err := schema.Load()
	require.NoError(t, err)
	return &fixture{
		engine: New(cat, q, opts...),
		parser: request.NewParser(cat, schemas, request.WithBaseURL("http://localhost:8080")),
	}
}

func (f *fixture) descriptor(t *testing.T, path string, q url.Values) *request.Descriptor {
	t.Helper()
	d, _, err := f.parser.Parse(path, q)
	require.NoError(t, err)
	return d
}

func (f *fixture) fetch(t *testing.T, path string, q url.Values) (*Result, *request.Descriptor, error) {
	t.Helper()
	d := f.descriptor(t, path, q)
	res, err := f.engine.Fetch(context.Background(), d)
	return res, d, err
}

// field returns the value of key on the i-th object.
func field(t *testing.T, objects ir.Array, i int, key string) ir.Value {
	t.Helper()
	require.Greater(t, len(objects), i)
	obj, ok := objects[i].(*ir.Object)
	require.True(t, ok, "object %d is %T", i, objects[i])
	v, ok := obj.Get(key)
	require.True(t, ok, "object %d has no field %q", i, key)
	return v
}

func names(t *testing.T, objects ir.Array) []string {
	t.Helper()
	out := make([]string, len(objects))
	for i := range objects {
		out[i] = string(field(t, objects, i, "name").(ir.String))
	}
	return out
}

func TestFetch_CollectionPage(t *testing.T) {
	f := newFixture(t)
	res, _, err := f.fetch(t, "/bands", url.Values{
		"fields": {"total,name"},
		"sort":   {"name"},
		"limit":  {"2"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Green River", "Love Battery"}, names(t, res.Objects))
	assert.Equal(t, int64(5), res.Total)

	obj := res.Objects[0].(*ir.Object)
	assert.Equal(t, []string{"name"}, obj.Keys())
}

func TestFetch_PageSizeIgnoresFanOut(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantNames []string
	}{
		{
			name: "nested arrays",
			query: url.Values{
				"fields": {"total,id,name,people.name,people.roles.name"},
				"sort":   {"name"},
				"limit":  {"2"},
				"offset": {"1"},
			},
			wantNames: []string{"Love Battery", "Mother Love Bone"},
		},
		{
			name: "nested sort",
			query: url.Values{
				"fields": {"total,id,name,people.name"},
				"sort":   {"people.name:desc"},
				"limit":  {"2"},
				"offset": {"1"},
			},
			wantNames: []string{"Mother Love Bone", "Mudhoney"},
		},
		{
			name:      "last partial page",
			query:     url.Values{"fields": {"total,id,name"}, "limit": {"2"}, "offset": {"4"}},
			wantNames: []string{"Mother Love Bone"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res, d, err := f.fetch(t, "/bands", tt.query)
			require.NoError(t, err)

			assert.Equal(t, tt.wantNames, names(t, res.Objects))
			assert.Equal(t, int64(5), res.Total)
			want := min(d.Params.Limit, max(int(res.Total)-d.Params.Offset, 0))
			assert.Len(t, res.Objects, want)
		})
	}
}

func TestFetch_CollectionWithoutTotalCountsPage(t *testing.T) {
	f := newFixture(t)
	res, d, err := f.fetch(t, "/bands", url.Values{"fields": {"name"}, "limit": {"3"}})
	require.NoError(t, err)

	assert.False(t, d.WantTotal)
	assert.Equal(t, []string{"Love Battery", "Nirvana", "Mudhoney"}, names(t, res.Objects))
	assert.Equal(t, int64(3), res.Total)
}

func TestFetch_Filter(t *testing.T) {
	f := newFixture(t)
	res, _, err := f.fetch(t, "/bands", url.Values{
		"fields": {"total,name,clickCount"},
		"filter": {"bands.clickCount > 100"},
		"sort":   {"name"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Love Battery", "Mudhoney", "Nirvana"}, names(t, res.Objects))
	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, ir.Int(120), field(t, res.Objects, 0, "clickCount"))
}

func TestFetch_NestedSortUsesPagingQuery(t *testing.T) {
	f := newFixture(t)
	res, _, err := f.fetch(t, "/bands", url.Values{
		"fields": {"total,name,peopleCount"},
		"sort":   {"peopleCount:desc"},
		"limit":  {"2"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Green River", "Mother Love Bone"}, names(t, res.Objects))
	assert.Equal(t, ir.Int(4), field(t, res.Objects, 0, "peopleCount"))
	assert.Equal(t, ir.Int(3), field(t, res.Objects, 1, "peopleCount"))
	assert.Equal(t, int64(5), res.Total)
}

func TestFetch_TiesOrderByPrimaryID(t *testing.T) {
	f := newFixture(t, WithMaxLeafConcurrency(4))
	q := url.Values{"fields": {"id,peopleCount,people.name"}, "sort": {"peopleCount"}}

	var first []byte
	for i := 0; i < 3; i++ {
		res, _, err := f.fetch(t, "/bands", q)
		require.NoError(t, err)
		got, err := ir.MarshalValue(res.Objects)
		require.NoError(t, err)
		if first == nil {
			first = got
			continue
		}
		assert.Equal(t, string(first), string(got), "run %d", i)
	}
}

func TestFetch_NestedObjects(t *testing.T) {
	f := newFixture(t)
	res, _, err := f.fetch(t, "/bands/Nirvana", url.Values{"fields": {"name,people.name,people.roles.name"}})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)

	assert.Equal(t, ir.String("Nirvana"), field(t, res.Objects, 0, "name"))
	people := field(t, res.Objects, 0, "people").(ir.Array)
	assert.Equal(t, []string{"Kurt Cobain", "Krist Novoselic"}, names(t, people))

	roles := field(t, people, 0, "roles").(ir.Array)
	assert.Equal(t, []string{"Vocals", "Guitar"}, names(t, roles))
	roles = field(t, people, 1, "roles").(ir.Array)
	assert.Equal(t, []string{"Bass"}, names(t, roles))
}

func TestFetch_Subcollection(t *testing.T) {
	f := newFixture(t)
	res, _, err := f.fetch(t, "/bands/2/people", url.Values{"fields": {"total,name,people.link"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Kurt Cobain", "Krist Novoselic"}, names(t, res.Objects))
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, ir.String("http://localhost:8080/api/people/3"), field(t, res.Objects, 0, "link"))
}

func TestFetch_CountFields(t *testing.T) {
	f := newFixture(t)
	res, _, err := f.fetch(t, "/bands/Green River", url.Values{"fields": {"name,peopleCount,citiesCount"}})
	require.NoError(t, err)

	assert.Equal(t, ir.Int(4), field(t, res.Objects, 0, "peopleCount"))
	assert.Equal(t, ir.Int(1), field(t, res.Objects, 0, "citiesCount"))
}

func TestFetch_ZeroCounts(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  string
	}{
		{
			name:  "no children",
			query: url.Values{"fields": {"id,connectedBandsCount,webLinksCount"}, "limit": {"2"}},
			want:  `[{"id":1,"connectedBandsCount":0,"webLinksCount":0},{"id":2,"connectedBandsCount":0,"webLinksCount":2}]`,
		},
		{
			name: "root filter",
			query: url.Values{
				"fields": {"id,connectedBandsCount,peopleCount"},
				"filter": {"bands.name = 'Nirvana'"},
			},
			want: `[{"id":2,"connectedBandsCount":0,"peopleCount":2}]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res, _, err := f.fetch(t, "/bands", tt.query)
			require.NoError(t, err)
			got, err := ir.MarshalValue(res.Objects)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestFetch_EmptyArrays(t *testing.T) {
	f := newFixture(t)
	res, _, err := f.fetch(t, "/bands/Love Battery", url.Values{
		"fields": {"name,webLinks.url,people.roles.name,people.roles.activeDates.from"},
	})
	require.NoError(t, err)

	assert.Equal(t, ir.Array{}, field(t, res.Objects, 0, "webLinks"))

	people := field(t, res.Objects, 0, "people").(ir.Array)
	roles := field(t, people, 0, "roles").(ir.Array)
	assert.Equal(t, []string{"Vocals"}, names(t, roles))
	_, ok := roles[0].(*ir.Object).Get("activeDates")
	assert.False(t, ok, "empty active dates are left out")
}

func TestFetch_ConnectedBands(t *testing.T) {
	f := newFixture(t)
	res, _, err := f.fetch(t, "/bands/3", url.Values{"fields": {"name,connectedBands.name"}})
	require.NoError(t, err)

	connected := field(t, res.Objects, 0, "connectedBands").(ir.Array)
	assert.Equal(t, []string{"Green River"}, names(t, connected))
}

func TestFetch_ZeroLimitReturnsTotalOnly(t *testing.T) {
	f := newFixture(t)
	res, _, err := f.fetch(t, "/bands", url.Values{"fields": {"total,name"}, "limit": {"0"}})
	require.NoError(t, err)

	assert.Empty(t, res.Objects)
	assert.Equal(t, int64(5), res.Total)
}

func TestFetch_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		query   url.Values
		message string
	}{
		{
			name:    "unknown ancestor",
			path:    "/bands/Pearl Jam/people",
			message: "Requested band 'Pearl Jam' not found.",
		},
		{
			name:    "unknown item",
			path:    "/bands/2/people/9",
			message: "Requested person '9' not found.",
		},
		{
			name:    "empty filtered collection",
			path:    "/bands",
			query:   url.Values{"filter": {"bands.clickCount > 100000"}},
			message: "No bands found.",
		},
		{
			name:  "offset past the end",
			path:  "/bands",
			query: url.Values{"offset": {"10"}},
			message: "No bands found.  An offset of 10 was specified.  " +
				"There may be no more bands at this offset and a smaller offset may still work.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, d, err := f.fetch(t, tt.path, tt.query)
			require.Error(t, err)
			assert.True(t, apierr.IsNotFound(err))
			assert.Equal(t, tt.message, apierr.As(err).Message)
			assert.NotEmpty(t, d.Issues.Errors())
		})
	}
}

func TestFetch_NestedFilterNotImplemented(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.fetch(t, "/bands", url.Values{"filter": {"bands.people.name = 'Mark Arm'"}})
	require.Error(t, err)
	assert.True(t, apierr.IsNotImplemented(err))
}

func TestFetch_ItemFilterIgnored(t *testing.T) {
	f := newFixture(t)
	res, d, err := f.fetch(t, "/bands/1", url.Values{
		"fields": {"name"},
		"filter": {"clickCount > 1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Love Battery"}, names(t, res.Objects))
	require.NotEmpty(t, d.Issues.Warnings())
}

func TestFetch_UnsortableKeyWarns(t *testing.T) {
	f := newFixture(t)
	_, d, err := f.fetch(t, "/bands", url.Values{"fields": {"name"}, "sort": {"total"}})
	require.NoError(t, err)

	var found bool
	for _, w := range d.Issues.Warnings() {
		if w.Code == apierr.CodeInvalidArguments {
			found = true
			assert.Contains(t, w.Message, "'total'")
		}
	}
	assert.True(t, found)
}

func TestFetch_MetricsRecorded(t *testing.T) {
	m := metrics.New(nil)
	f := newFixture(t, WithMetrics(m))
	_, _, err := f.fetch(t, "/bands/Nirvana/people", url.Values{"fields": {"name"}})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(metrics.PhaseAncestor, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(metrics.PhaseLeaf, "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.QueryDuration))
}

func TestPlan_CompilesWithoutLeafExecution(t *testing.T) {
	f := newFixture(t)
	d := f.descriptor(t, "/bands/Nirvana/people", url.Values{"fields": {"name,roles.name"}})

	planned, err := f.engine.Plan(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, planned, 2)
	assert.Equal(t, metrics.PhaseAncestor, planned[0].Phase)
	assert.Equal(t, []any{"nirvana", 1}, planned[0].Args)
	assert.Equal(t, metrics.PhaseLeaf, planned[1].Phase)
	assert.Contains(t, planned[1].SQL, "b_p_r AS (")
}

func TestFetch_AncestorLookupOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := newFixtureOn(t, store.New(db, querysql.SQLite))

	// A numeric target tries the primary id first, then the name.
	mock.ExpectQuery(`WHERE b\.id = \?1`).
		WithArgs(int64(7), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"bands__id"}))
	mock.ExpectQuery(`WHERE LOWER\(b\.name\) = \?1`).
		WithArgs("7", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"bands__id"}))

	_, _, err = f.fetch(t, "/bands/7/people", url.Values{"fields": {"name"}})
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))
	assert.Equal(t, "Requested band '7' not found.", apierr.As(err).Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch_AncestorNameFallsBackToID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := newFixtureOn(t, store.New(db, querysql.SQLite))

	mock.ExpectQuery(`WHERE LOWER\(b\.name\) = \?1`).
		WithArgs("nirvana", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"bands__id"}).AddRow(int64(2)))
	mock.ExpectQuery(`FROM b_p`).
		WithArgs(int64(2), int64(10000), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"bands__id", "bands_people__id", "bands_people__name"}).
			AddRow(int64(2), int64(3), "Kurt Cobain").
			AddRow(int64(2), int64(4), "Krist Novoselic"))

	res, _, err := f.fetch(t, "/bands/Nirvana/people", url.Values{"fields": {"name"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Kurt Cobain", "Krist Novoselic"}, names(t, res.Objects))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch_StoreErrorIsRaised(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := newFixtureOn(t, store.New(db, querysql.SQLite))
	mock.ExpectQuery(`FROM b`).WillReturnError(assert.AnError)

	_, d, err := f.fetch(t, "/bands", url.Values{"fields": {"name"}})
	require.Error(t, err)
	assert.True(t, apierr.IsServerError(err))
	assert.Len(t, d.Issues.Errors(), 1)
}
