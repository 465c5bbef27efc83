package store

import (
	"context"
	"fmt"
)

// Execer runs statements that return no rows.
type Execer interface {
	Exec(ctx context.Context, stmt string) error
}

// Seed loads the embedded demo data set into an empty schema.
func Seed(ctx context.Context, db Execer) error {
	if err := db.Exec(ctx, seedSQL); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}
