package storage

import (
	"context"

	"crm_assistant_backend/internal/ingest"
	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/logger"
)

// FetcherConfig combines the settings needed to pick a dataset source.
type FetcherConfig interface {
	config.StorageConfig
	GetDatasetDir() string
}

// NewDatasetFetcher selects the dataset source: the MinIO bucket when an
// endpoint is configured, else a local directory. It returns nil when neither
// is set; every dataset then loads as unavailable.
//
// An unreachable bucket is only logged. The fetcher is still returned so the
// next scheduled refresh can load once storage recovers.
func NewDatasetFetcher(ctx context.Context, cfg FetcherConfig, log *logger.Logger) (ingest.Fetcher, error) {
	if cfg.IsMinIOEnabled() {
		f, err := NewMinIOFetcher(cfg)
		if err != nil {
			return nil, err
		}
		if err := f.CheckBucket(ctx); err != nil {
			log.Warn("dataset bucket check failed; datasets load on next refresh", "bucket", cfg.GetDatasetBucket(), "error", err)
		} else {
			log.Info("dataset source: object storage", "bucket", cfg.GetDatasetBucket())
		}
		return f, nil
	}

	if dir := cfg.GetDatasetDir(); dir != "" {
		log.Info("dataset source: local directory", "dir", dir)
		return ingest.DirFetcher{Root: dir}, nil
	}

	log.Warn("no dataset source configured; every dataset will be unavailable")
	return nil, nil
}
