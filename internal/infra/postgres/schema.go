package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var Schema string

// ApplySchema creates the tables and functions the repository needs if
// they are missing.
func ApplySchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ApplySchema: %w", err)
	}
	return nil
}
