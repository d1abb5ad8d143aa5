package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/spf13/cobra"

	"postboard/internal/config"
	"postboard/internal/store"

	_ "modernc.org/sqlite"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()

			if inspect || dryRun {
				plan, err := inspectMigrations(ctx, cfg)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				if *jsonOutput {
					return writeJSON(plan)
				}
				return writeMigrationPlan(plan)
			}

			// Opening a store applies pending migrations, as srv does on start.
			st, err := openPostStore(ctx, cfg, slog.Default().With("component", "migrate"))
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()

			if *jsonOutput {
				migrator, ok := st.(store.Migrator)
				if !ok {
					return fmt.Errorf("store driver %s does not report migrations", cfg.Database.Driver)
				}
				plan, err := migrator.MigrationPlan(ctx)
				if err != nil {
					return err
				}
				return writeJSON(plan)
			}
			return writePlain("Migrations applied successfully.\n")
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status")

	return cmd
}

func inspectMigrations(ctx context.Context, cfg *config.Config) (*store.MigrationStatus, error) {
	if cfg.Database.Driver == config.DriverPostgres {
		st, err := store.OpenPostgres(ctx, cfg.Database.URL, store.PGOptions{MaxConns: 1, SkipMigrations: true})
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.MigrationPlan(ctx)
	}

	db, err := openRawDB(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return store.MigrationPlan(db)
}

func writeMigrationPlan(plan *store.MigrationStatus) error {
	_ = writePlain("Current version: %d\n", plan.CurrentVersion)
	_ = writePlain("Available version: %d\n", plan.AvailableVersion)
	if len(plan.Pending) == 0 {
		return writePlain("No pending migrations.\n")
	}
	_ = writePlain("Pending migrations: %d\n", len(plan.Pending))
	for _, m := range plan.Pending {
		if err := writePlain("  %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}

// openRawDB opens the SQLite file without running migrations.
func openRawDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}
