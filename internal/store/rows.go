package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/bandmap/internal/querysql"
)

// Querier runs one compiled statement.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Dialect() querysql.Dialect
}

// Row is one result row. Columns is shared by every row of a result.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of column name, or nil when absent.
func (r Row) Get(name string) any {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i]
		}
	}
	return nil
}

// scanRows drains rows into Rows and closes them.
func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		normalize(values)
		out = append(out, Row{Columns: columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// normalize rewrites driver-specific value types in place.
func normalize(values []any) {
	for i, v := range values {
		switch v := v.(type) {
		case []byte:
			values[i] = string(v)
		case int32:
			values[i] = int64(v)
		case int:
			values[i] = int64(v)
		case float32:
			values[i] = float64(v)
		case time.Time:
			values[i] = formatTime(v)
		}
	}
}

func formatTime(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}
