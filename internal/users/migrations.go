package users

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// RunMigrations creates the users table if it does not exist
func RunMigrations(ctx context.Context, db *bun.DB) error {
	models := []interface{}{
		(*UserSchema)(nil),
	}

	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}
