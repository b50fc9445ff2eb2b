package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gpufleet/reviewqueue/internal/config"
	"github.com/gpufleet/reviewqueue/internal/store"
	"github.com/gpufleet/reviewqueue/pkg/log"
	"github.com/gpufleet/reviewqueue/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("failed to initialize data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if cfg.Service.MigrationFolder != "" {
			if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder); err != nil {
				zap.S().Fatalw("failed to apply migrations", "error", err)
			}
			zap.S().Info("Db migrated")
			return nil
		}

		if err := s.InitialMigration(cmd.Context()); err != nil {
			zap.S().Fatalw("failed to run initial migration", "error", err)
		}

		zap.S().Info("Db migrated")
		return nil
	},
}
