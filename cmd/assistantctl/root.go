package main

import (
	"errors"
	"fmt"

	"crm_assistant_backend/internal/cache"
	"crm_assistant_backend/internal/ingest"
	"crm_assistant_backend/internal/storage"
	"crm_assistant_backend/internal/tools"
	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/logger"

	"github.com/spf13/cobra"
)

type app struct {
	cache *cache.Cache
	tools *tools.Service
}

func newRootCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		dir     string
		verbose bool
		a       app
	)

	rootCmd := &cobra.Command{
		Use:           "assistantctl",
		Short:         "Inspect the Ferreinox assistant datasets and query tools",
		Long:          "assistantctl loads the configured dataset extracts (object storage or a local directory) and answers the same questions the WhatsApp assistant answers.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dir != "" {
				cfg.DatasetDir = dir
				cfg.MinIOEndpoint = ""
			}

			log := logger.Discard()
			if verbose {
				log = logger.NewWithWriter(cfg.Env, cmd.ErrOrStderr())
			}

			fetcher, err := storage.NewDatasetFetcher(cmd.Context(), cfg, log)
			if err != nil {
				return fmt.Errorf("open dataset source: %w", err)
			}
			if fetcher == nil {
				return errors.New("no dataset source: set MINIO_ENDPOINT, DATASET_DIR or --dir")
			}

			a.cache = cache.New(ingest.New(fetcher, cfg, log), log)
			a.tools = tools.NewService(a.cache, cfg, log)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dir, "dir", "", "read extracts from this directory instead of the configured source")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log ingestion progress to stderr")

	rootCmd.AddCommand(
		newWarmCmd(&a),
		newStatsCmd(&a),
		newVerifyCmd(&a),
		newAccountCmd(&a),
		newStockCmd(&a),
		newPriceCmd(&a),
		newHistoryCmd(&a),
	)

	return rootCmd
}
