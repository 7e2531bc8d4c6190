package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrations embed.FS

var migrationLog = zerolog.Nop()

// SetMigrationLogger routes goose output to log. Migrations are silent
// until it is called.
func SetMigrationLogger(log zerolog.Logger) {
	migrationLog = log.With().Str("component", "migrations").Logger()
}

// gooseLogger adapts zerolog to goose.Logger.
type gooseLogger struct {
	log zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func setupGoose(driver string) (string, error) {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: migrationLog})

	dialect := goose.DialectMySQL
	if driver == DriverSQLite {
		dialect = goose.DialectSQLite3
	}
	if err := goose.SetDialect(string(dialect)); err != nil {
		return "", fmt.Errorf("goose dialect: %w", err)
	}
	return path.Join("migrations", driver), nil
}

// MigrateUp applies all pending migrations for the driver.
func MigrateUp(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := setupGoose(driver)
	if err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dir)
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := setupGoose(driver)
	if err != nil {
		return err
	}
	return goose.DownContext(ctx, db, dir)
}

// MigrateStatus prints the applied state of every migration through goose's logger.
func MigrateStatus(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := setupGoose(driver)
	if err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, dir)
}
