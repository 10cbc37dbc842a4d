package main

import (
	"context"
	"database/sql"

	"github.com/MrEthical07/goIdentity/store/postgres"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

type migrateAction func(ctx context.Context, cmd *cobra.Command, db *sql.DB) error

// openSQL is swapped in tests.
var openSQL = postgres.OpenSQL

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending schema migrations to the PostgreSQL store.`,
		RunE:  a.runMigrate(migrateUp),
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  a.runMigrate(migrateUp),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE:  a.runMigrate(migrateDown),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE:  a.runMigrate(migrateVersion),
	})
	return cmd
}

func (a *app) runMigrate(action migrateAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		dsn := a.settings.Postgres.DSN
		if dsn == "" {
			return oops.Code("CONFIG_INVALID").Errorf("postgres.dsn or DATABASE_URL is required")
		}

		db, err := openSQL(dsn)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		defer func() { _ = db.Close() }()

		return action(cmd.Context(), cmd, db)
	}
}

func migrateUp(ctx context.Context, cmd *cobra.Command, db *sql.DB) error {
	cmd.Println("Running migrations...")
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func migrateDown(ctx context.Context, cmd *cobra.Command, db *sql.DB) error {
	if err := postgres.Rollback(ctx, db); err != nil {
		return err
	}
	cmd.Println("Rolled back one migration")
	return nil
}

func migrateVersion(ctx context.Context, cmd *cobra.Command, db *sql.DB) error {
	v, err := postgres.SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	cmd.Printf("schema version: %d\n", v)
	return nil
}
