package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/bandmap/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

//go:embed seed.sql
var seedSQL string

// connParams configures each new SQLite connection.
const connParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

// maxReaders bounds concurrent leaf queries against one SQLite file.
const maxReaders = 8

// Store runs queries through database/sql.
type Store struct {
	db      *sql.DB
	dialect querysql.Dialect
}

// New wraps an open handle. The caller keeps ownership of schema setup.
func New(db *sql.DB, dialect querysql.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open creates or opens the SQLite database at path, checks the
// connection settings and brings the schema up to date. Opening an
// existing database again is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+connParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Every pooled connection gets the pragmas through connParams. An
	// in-memory database exists per connection, so it keeps exactly one.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(maxReaders)
	}
	db.SetMaxIdleConns(1)

	if err := checkPragmas(db, path); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection settings not applied: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, dialect: querysql.SQLite}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the placeholder dialect of the handle.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// Query executes a query and returns every row.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return scanRows(rows)
}

// Exec runs statements that return no rows.
func (s *Store) Exec(ctx context.Context, stmt string) error {
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// requiredPragmas are the connection settings connParams must produce.
var requiredPragmas = []struct{ name, want string }{
	{"journal_mode", "wal"},
	{"foreign_keys", "1"},
	{"busy_timeout", "5000"},
}

// checkPragmas fails when the driver ignored a connection parameter.
// In-memory databases cannot use WAL and report "memory".
func checkPragmas(db *sql.DB, path string) error {
	for _, p := range requiredPragmas {
		want := p.want
		if p.name == "journal_mode" && path == ":memory:" {
			want = "memory"
		}
		if err := pragmaIs(db, p.name, want); err != nil {
			return err
		}
	}
	return nil
}

// applySchema creates missing tables and runs pending migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// migrations[i] upgrades a database at user_version i to i+1.
var migrations = []string{
	// 1: index the child side of the join tables walked by nested person,
	// city and connected band lookups.
	`CREATE INDEX IF NOT EXISTS idx_band_person_roles_person ON band_person_roles(person_id);
	CREATE INDEX IF NOT EXISTS idx_band_cities_city ON band_cities(city_id);
	CREATE INDEX IF NOT EXISTS idx_connections_band_2 ON connections(band_2_id);`,
}

// runMigrations applies every migration above the stored user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version == len(migrations) {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func pragmaIs(db *sql.DB, name, want string) error {
	var value string
	if err := db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if !strings.EqualFold(value, want) {
		return fmt.Errorf("%s = %q, expected %q", name, value, want)
	}
	return nil
}

// verifyPragma checks one pragma on the store's handle.
func (s *Store) verifyPragma(name, expected string) error {
	return pragmaIs(s.db, name, expected)
}
