package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/agentskills/skillkit/pkg/db"
	"github.com/agentskills/skillkit/pkg/db/migrations"
	"github.com/agentskills/skillkit/pkg/presenter"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing the skillkit outcome database (migrations, status, etc.)`,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status",
	Long:  `Shows the current database migration status, including applied and pending migrations.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		sqlDB, path, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		statuses, err := db.NewMigrationRunner(sqlDB).Status(ctx, migrations.All())
		if err != nil {
			return errors.Wrap(err, "failed to get migration status")
		}

		presenter.Section("Database Migration Status")
		presenter.Info(fmt.Sprintf("Database: %s\n", path))

		applied := 0
		for _, s := range statuses {
			mark := "[ ]"
			if s.Applied {
				mark = "[✓]"
				applied++
			}
			presenter.Info(fmt.Sprintf("%s %d - %s", mark, s.Version, s.Description))
		}
		presenter.Separator()
		presenter.Info(fmt.Sprintf("Applied: %d/%d migrations", applied, len(statuses)))

		return nil
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		sqlDB, _, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if err := db.NewMigrationRunner(sqlDB).Run(ctx, migrations.All()); err != nil {
			return errors.Wrap(err, "failed to run migrations")
		}
		presenter.Success("Database is up to date")
		return nil
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback the last database migration",
	Long:  `Rolls back the most recently applied database migration. Useful for testing or downgrading skillkit.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		yes, _ := cmd.Flags().GetBool("yes")

		sqlDB, _, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		runner := db.NewMigrationRunner(sqlDB)
		applied, err := runner.GetAppliedVersions(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get migration status")
		}
		if len(applied) == 0 {
			presenter.Warning("No migrations to rollback")
			return nil
		}

		lastVersion := applied[len(applied)-1]
		if !yes {
			answer := presenter.Prompt(fmt.Sprintf("Roll back migration %d?", lastVersion), "y", "N")
			if !strings.EqualFold(answer, "y") {
				presenter.Info("Rollback cancelled")
				return nil
			}
		}

		m, err := runner.Rollback(ctx, migrations.All())
		if err != nil {
			return errors.Wrap(err, "failed to rollback migration")
		}
		presenter.Success(fmt.Sprintf("Successfully rolled back migration %d: %s", m.Version, m.Description))

		return nil
	},
}

// openDatabase opens the configured database without migrating it.
func openDatabase(ctx context.Context) (*sqlx.DB, string, error) {
	path := appConfig.Database.Path
	if path == "" {
		var err error
		if path, err = db.DefaultDBPath(); err != nil {
			return nil, "", err
		}
	}
	sqlDB, err := db.Open(ctx, path)
	if err != nil {
		return nil, "", err
	}
	return sqlDB, path, nil
}

func init() {
	dbRollbackCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbRollbackCmd)
}
