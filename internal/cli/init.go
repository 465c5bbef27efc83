package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bandmap/internal/config"
	"github.com/roach88/bandmap/internal/logging"
	"github.com/roach88/bandmap/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Seed bool
}

// initResult describes what init did.
type initResult struct {
	Driver string `json:"driver" yaml:"driver"`
	Target string `json:"target" yaml:"target"`
	Seeded bool   `json:"seeded" yaml:"seeded"`
	Bands  int64  `json:"bands" yaml:"bands"`
}

// Text summarizes the initialized database.
func (r *initResult) Text() string {
	msg := fmt.Sprintf("Initialized %s database %s", r.Driver, r.Target)
	if r.Seeded {
		msg += " (loaded demo data)"
	}
	return fmt.Sprintf("%s: %d bands", msg, r.Bands)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database schema",
		Long: `Create the band map schema in the configured database. SQLite applies
its embedded schema; PostgreSQL runs the versioned migrations.

With --seed the demo data set is loaded when the bands table is empty.`,
		Example: `  bandmap init --db ./bandmap.db --seed
  BANDMAP_DB_DRIVER=postgres BANDMAP_DB_URL=postgres://... bandmap init`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "load the demo data set into an empty database")
	return cmd
}

func runInit(cmd *cobra.Command, opts *InitOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	result := &initResult{Driver: cfg.Database.Driver, Target: cfg.Database.Path}
	if cfg.Database.Driver == config.DriverPostgres {
		result.Target = "(BANDMAP_DB_URL)"
		logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build logger", err)
		}
		if err := store.MigratePostgres(cfg.Database.URL, logger); err != nil {
			return WrapExitError(ExitFailure, "failed to migrate database", err)
		}
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to open %s database", cfg.Database.Driver), err)
	}
	defer db.Close()

	out := opts.formatter(cmd)
	bands, err := countBands(ctx, db)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to inspect database", err)
	}
	if opts.Seed && bands == 0 {
		out.VerboseLog("Loading demo data set")
		if err := store.Seed(ctx, db); err != nil {
			return WrapExitError(ExitFailure, "failed to seed database", err)
		}
		result.Seeded = true
		if bands, err = countBands(ctx, db); err != nil {
			return WrapExitError(ExitFailure, "failed to inspect database", err)
		}
	}
	result.Bands = bands
	return out.Success(result, "")
}

func countBands(ctx context.Context, db store.Querier) (int64, error) {
	rows, err := db.Query(ctx, "SELECT COUNT(*) AS n FROM bands")
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0].Values) == 0 {
		return 0, fmt.Errorf("count returned no rows")
	}
	switch n := rows[0].Values[0].(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", n)
	}
}
