// Package tests holds end-to-end tests that drive the full router. Store
// integration tests run only when DATABASE_URL or MONGO_URI is set.
package tests

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/imemory/server/internal/db"
	"github.com/imemory/server/internal/repo"
)

// ResetPostgres migrates the database and truncates every table for a clean test state.
func ResetPostgres(ctx context.Context, database *sql.DB) error {
	if err := db.Migrate(database); err != nil {
		return err
	}
	if _, err := database.ExecContext(ctx, "TRUNCATE TABLE notes, users RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

// ResetMongo drops the users and usernotes collections and recreates their indexes.
func ResetMongo(ctx context.Context, database *mongo.Database) error {
	for _, name := range []string{"users", "usernotes"} {
		if err := database.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	if err := repo.EnsureUserIndexes(ctx, database); err != nil {
		return err
	}
	return repo.EnsureNoteIndexes(ctx, database)
}
