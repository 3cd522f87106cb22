package persistence

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the SQL store schema to db.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("goose: failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose: migration failed: %w", err)
	}
	return nil
}

// MigrationStatus prints the applied state of every migration.
func MigrationStatus(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("goose: failed to set dialect: %w", err)
	}
	return goose.Status(db, "migrations")
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("goose: failed to set dialect: %w", err)
	}
	return goose.Down(db, "migrations")
}
