package querysql

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	// SQLite numbers placeholders ?1, ?2, ...
	SQLite Dialect = iota

	// Postgres numbers placeholders $1, $2, ...
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Placeholder renders the n-th (1-based) bound parameter. A number may
// appear more than once in one statement.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?" + strconv.Itoa(n)
}

// ParseDialect maps a driver name to its dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return SQLite, fmt.Errorf("unknown SQL dialect %q", name)
	}
}
