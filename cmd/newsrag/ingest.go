package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/newsrag/internal/runtime"
)

func ingestCMD(cfgPath *string) *cobra.Command {
	var corpus string
	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Index the news corpus into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if corpus != "" {
				cfg.Ingest.CorpusPath = corpus
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := runtime.BuildIngest(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Ingest.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d documents, stored %d vectors\n", res.Documents, res.Chunks)
			return nil
		},
	}
	ingest.Flags().StringVar(&corpus, "corpus", "", "YAML corpus file (default: built-in articles)")
	return ingest
}
