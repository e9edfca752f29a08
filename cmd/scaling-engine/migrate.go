package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/config"
	"github.com/OldStager01/wedding-autoscaler/pkg/database"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return errors.New("database.enabled is false; nothing to migrate")
			}

			db, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			logger.Info("Migrations completed successfully")
			return nil
		},
	}
}

// openDatabase connects and brings the schema up to date.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.MigrationTimeout
	if timeout <= 0 {
		timeout = defaultMigrationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := database.New(ctx, cfg.ToDBConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connection established")

	migrator := database.NewMigrator(db, logger.WithField("component", "migrator"))
	if err := migrator.Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}
