package cmd

import (
	"context"
	"fmt"

	"livesync/core/config"
	"livesync/core/logger"
	"livesync/core/storage"
	"livesync/feature/archive"

	"go.uber.org/zap"
)

// loadRuntime loads and validates the configuration and builds the logger.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, l, nil
}

// newArchiver connects to object storage and makes sure the bucket exists.
func newArchiver(ctx context.Context, cfg *config.Config, l *zap.Logger) (*archive.Archiver, error) {
	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
		return nil, err
	}
	return archive.NewArchiver(client, cfg.Storage.Bucket, cfg.Archive, l), nil
}

// feedByName returns the named feed forced to enabled, for single-feed commands.
func feedByName(cfg *config.Config, name string) (config.NamedFeed, error) {
	f, ok := cfg.Feeds.Get(name)
	if !ok {
		return config.NamedFeed{}, fmt.Errorf("unknown feed %q", name)
	}
	f.Enabled = true
	return f, nil
}
