package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/ir"
	"github.com/roach88/bandmap/internal/metrics"
	"github.com/roach88/bandmap/internal/queryir"
	"github.com/roach88/bandmap/internal/querysql"
	"github.com/roach88/bandmap/internal/request"
	"github.com/roach88/bandmap/internal/schema"
	"github.com/roach88/bandmap/internal/store"
)

// DefaultMaxLeafConcurrency bounds concurrent leaf statements per request.
const DefaultMaxLeafConcurrency = 8

// Engine runs requests. Safe for concurrent use.
type Engine struct {
	cat      *catalog.Catalog
	compiler *querysql.Compiler
	store    store.Querier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	maxLeaf  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the collectors statements are recorded in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithMaxLeafConcurrency bounds concurrent leaf statements. Values below
// one select DefaultMaxLeafConcurrency.
func WithMaxLeafConcurrency(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = DefaultMaxLeafConcurrency
		}
		e.maxLeaf = n
	}
}

// New creates an engine over q. Statements are compiled for q's dialect.
func New(cat *catalog.Catalog, q store.Querier, opts ...Option) *Engine {
	e := &Engine{
		cat:      cat,
		compiler: querysql.NewCompiler(cat, q.Dialect()),
		store:    q,
		logger:   zap.NewNop(),
		maxLeaf:  DefaultMaxLeafConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the data of a resource response.
type Result struct {
	// Total is the number of root objects matching the request before
	// paging. Without a count it is len(Objects).
	Total int64

	// Objects holds the root objects in order; one for an item request.
	Objects ir.Array
}

// Planned is one compiled statement of a request.
type Planned struct {
	Phase string `json:"phase" yaml:"phase"`
	SQL   string `json:"sql" yaml:"sql"`
	Args  []any  `json:"args" yaml:"args"`
}

// Fetch runs d and assembles its objects.
func (e *Engine) Fetch(ctx context.Context, d *request.Descriptor) (*Result, error) {
	started := time.Now()
	r := &run{e: e, d: d}

	res, err := r.fetch(ctx)
	e.logger.Info("request",
		zap.String("request_id", d.ID),
		zap.String("resource", d.Path),
		zap.Int("leaves", r.leafCount),
		zap.Duration("duration", time.Since(started)),
		zap.Bool("ok", err == nil),
	)
	if err != nil {
		return nil, d.Issues.Raise(apierr.As(err))
	}
	return res, nil
}

// Plan compiles the statements Fetch would run for d. Ancestor lookups
// and the FSL query still execute, since the data statements depend on
// their results.
func (e *Engine) Plan(ctx context.Context, d *request.Descriptor) ([]Planned, error) {
	r := &run{e: e, d: d, planOnly: true}
	if _, err := r.fetch(ctx); err != nil {
		return nil, d.Issues.Raise(apierr.As(err))
	}
	return r.planned, nil
}

// run is the state of one request.
type run struct {
	e *Engine
	d *request.Descriptor

	planOnly  bool
	planned   []Planned
	leafCount int

	// prefix holds the resolved container links.
	prefix []queryir.Link

	// above holds the prefix links that contain the requested objects:
	// every container for a collection, all but the last for an item.
	above []queryir.Link
}

func (r *run) fetch(ctx context.Context) (*Result, error) {
	if err := r.ancestors(ctx); err != nil {
		return nil, err
	}
	if r.d.Kind == schema.Item {
		return r.item(ctx)
	}
	return r.collection(ctx)
}

// query compiles chain and runs it unless the run is plan-only.
func (r *run) query(ctx context.Context, phase string, chain []queryir.Link, execute bool) (*querysql.Pipeline, []store.Row, error) {
	p, err := r.e.compiler.Compile(chain)
	if err != nil {
		return nil, nil, err
	}
	r.e.logger.Debug("compiled pipeline",
		zap.String("request_id", r.d.ID),
		zap.String("phase", phase),
		zap.String("sql", p.SQL),
		zap.Int("binds", len(p.Args)),
	)
	if r.planOnly {
		r.planned = append(r.planned, Planned{Phase: phase, SQL: p.SQL, Args: p.Args})
		if !execute {
			return p, nil, nil
		}
	}

	started := time.Now()
	rows, err := r.e.store.Query(ctx, p.SQL, p.Args...)
	r.e.metrics.ObserveQuery(phase, started, err)
	if err != nil {
		return nil, nil, err
	}
	return p, rows, nil
}

// runLeaves executes the leaf chains concurrently and merges their trees
// in leaf order.
func (r *run) runLeaves(ctx context.Context, chains [][]queryir.Link) (*tree, error) {
	r.leafCount = len(chains)
	if r.planOnly {
		for _, chain := range chains {
			if _, _, err := r.query(ctx, metrics.PhaseLeaf, chain, false); err != nil {
				return nil, err
			}
		}
		return newTree(), nil
	}

	cols := r.columnMap()
	slots := make([]*tree, len(chains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.e.maxLeaf)
	for i, chain := range chains {
		g.Go(func() error {
			p, rows, err := r.query(gctx, metrics.PhaseLeaf, chain, true)
			if err != nil {
				return err
			}
			t := newTree()
			if err := r.fold(t, p.Columns, rows, cols); err != nil {
				return err
			}
			slots[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := slots[0]
	for _, t := range slots[1:] {
		merged.merge(t)
	}
	return merged, nil
}
