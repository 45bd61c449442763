package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Migrate applies pending schema migrations for the named dialect
// ("postgres" or "sqlite").
func Migrate(ctx context.Context, db *sql.DB, dialectName string) error {
	var gd goose.Dialect
	switch dialectName {
	case postgresDialect.name:
		gd = goose.DialectPostgres
	case sqliteDialect.name:
		gd = goose.DialectSQLite3
	default:
		return fmt.Errorf("store: no migrations for dialect %q", dialectName)
	}

	dir, err := fs.Sub(migrations, "migrations/"+dialectName)
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}
	provider, err := goose.NewProvider(gd, db, dir)
	if err != nil {
		return fmt.Errorf("store: migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("store: migrate %s: %w", dialectName, err)
	}
	return nil
}
