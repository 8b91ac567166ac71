package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/newsrag/internal/runtime"
	srv "github.com/mohammad-safakhou/newsrag/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := runtime.Build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					log.Error().Err(err).Msg("close dependencies")
				}
			}()

			if cfg.Storage.Postgres.AutoMigrate {
				dsn, err := runtime.BuildPostgresDSN(cfg)
				if err != nil {
					return err
				}
				if err := srv.Migrate(cfg.Storage.Postgres.MigrationsDir, dsn, "up", 0); err != nil {
					return err
				}
				log.Info().Msg("migrations applied")
			}

			e, err := srv.New(srv.Options{
				General:  cfg.General,
				Server:   cfg.Server,
				Logger:   log,
				Registry: app.Registry,
			}, app.Ingest, app.Chat)
			if err != nil {
				return err
			}
			return srv.Run(ctx, e, cfg.Server.Address, cfg.Server.ShutdownTimeout, log)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return serve
}
