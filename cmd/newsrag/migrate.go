package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/newsrag/internal/runtime"
	srv "github.com/mohammad-safakhou/newsrag/internal/server"
)

func migrateCMD(cfgPath *string) *cobra.Command {
	var migDir string
	var direction string
	var steps int

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			dsn, err := runtime.BuildPostgresDSN(cfg)
			if err != nil {
				return err
			}
			if migDir == "" {
				migDir = cfg.Storage.Postgres.MigrationsDir
			}
			if err := srv.Migrate(migDir, dsn, direction, steps); err != nil {
				return err
			}
			log.Info().Str("direction", direction).Int("steps", steps).Msg("migrations done")
			return nil
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "", "migrations directory or source URL (default storage.postgres.migrations_dir)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return migrate
}
