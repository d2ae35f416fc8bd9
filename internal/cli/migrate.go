package cli

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"live-quiz-service/internal/config"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
	"live-quiz-service/internal/logging"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the journal schema to Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runMigrations(cmd.Context(), cfg.Postgres.URL, newLogger(cfg))
		},
	}
}

// runMigrations brings the schema at dsn up to date.
func runMigrations(ctx context.Context, dsn string, log logrus.FieldLogger) error {
	if dsn == "" {
		return errors.New("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("schema is up to date")
		return nil
	}
	log.WithField("group", group.String()).Info("migrations applied")
	return nil
}

func newLogger(cfg config.Config) *logrus.Logger {
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}
