package main

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/tfinance/tfinance-api/internal/config"
	"github.com/tfinance/tfinance-api/internal/logger"
	"github.com/tfinance/tfinance-api/internal/repository"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrateSubcommand("up", "Apply all pending migrations", repository.MigrateUp),
		migrateSubcommand("down", "Roll back the latest migration", repository.MigrateDown),
		migrateSubcommand("status", "Print migration status", repository.MigrateStatus),
	)
	return cmd
}

func migrateSubcommand(use, short string, run func(context.Context, *sql.DB, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			repository.SetMigrationLogger(logger.New(cfg.Server.Env, cfg.Log.Level))

			ctx := cmd.Context()
			db, err := repository.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			return run(ctx, db, cfg.Database.Driver)
		},
	}
}
