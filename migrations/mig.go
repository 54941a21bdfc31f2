package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed files/sqlite/*.sql files/postgres/*.sql
var migrationFS embed.FS

// Up provisions the metadata tables for driver ("sqlite" or "postgres"). Applied versions are
// tracked by goose, so running it again is a no-op.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	gooseDialect, dir, err := resolve(driver)
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func resolve(driver string) (string, string, error) {
	switch driver {
	case "sqlite", "":
		return "sqlite3", "files/sqlite", nil
	case "postgres":
		return "postgres", "files/postgres", nil
	default:
		return "", "", fmt.Errorf("no migrations for driver %q", driver)
	}
}
