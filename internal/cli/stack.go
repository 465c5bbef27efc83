package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/bandmap/internal/cache"
	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/config"
	"github.com/roach88/bandmap/internal/engine"
	"github.com/roach88/bandmap/internal/httpapi"
	"github.com/roach88/bandmap/internal/logging"
	"github.com/roach88/bandmap/internal/metrics"
	"github.com/roach88/bandmap/internal/request"
	"github.com/roach88/bandmap/internal/schema"
	"github.com/roach88/bandmap/internal/store"
)

// database is the storage surface the commands need from either driver.
type database interface {
	store.Querier
	store.Execer
	Close() error
}

// stack is the fully wired query service for one command invocation.
type stack struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      database
	catalog *catalog.Catalog
	schemas *schema.Provider
	parser  *request.Parser
	engine  *engine.Engine
	server  *httpapi.Server
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.Database != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = opts.Database
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// openDatabase opens the configured store. SQLite applies its schema on
// open; PostgreSQL expects "bandmap init" to have run its migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (database, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return store.OpenPostgres(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	default:
		return store.Open(cfg.Database.Path)
	}
}

// openStack loads configuration and wires store, catalog, parser, engine
// and HTTP adapter. The caller must close the stack.
func openStack(ctx context.Context, opts *RootOptions) (*stack, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open %s database", cfg.Database.Driver), err)
	}

	cat, err := catalog.Load()
	if err != nil {
		db.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load resource catalog", err)
	}
	schemas, err := schema.Load(schema.WithCache(cache.New[*schema.FieldSet](cfg.Cache.Size, cfg.Cache.TTL)))
	if err != nil {
		db.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load resource schemas", err)
	}

	m := metrics.Default()
	parser := request.NewParser(cat, schemas,
		request.WithBaseURL(cfg.Server.BaseURL),
		request.WithDefaultLimit(cfg.Query.DefaultLimit),
	)
	eng := engine.New(cat, db,
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithMaxLeafConcurrency(cfg.Query.MaxLeafConcurrency),
	)
	serverOpts := []httpapi.Option{httpapi.WithMetrics(m)}
	if cfg.Query.StrictContracts {
		serverOpts = append(serverOpts, httpapi.WithStrictContracts(schemas))
	}

	return &stack{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		catalog: cat,
		schemas: schemas,
		parser:  parser,
		engine:  eng,
		server:  httpapi.NewServer(parser, eng, logger, serverOpts...),
	}, nil
}

// Close releases the database and flushes the logger.
func (s *stack) Close() error {
	_ = s.logger.Sync()
	return s.db.Close()
}
