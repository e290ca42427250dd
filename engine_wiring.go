package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dropsync/dropsync/internal/catalog"
	"github.com/dropsync/dropsync/internal/config"
	"github.com/dropsync/dropsync/internal/filesclient"
	"github.com/dropsync/dropsync/internal/syncengine"
)

// wiredEngine bundles the collaborators built from a resolved Config, so
// "serve" and "sync" can share the assembly logic instead of duplicating
// the catalog -> files client -> executor -> engine chain.
type wiredEngine struct {
	cat    *catalog.Catalog
	files  *filesclient.Client
	engine *syncengine.Engine
}

func (w *wiredEngine) Close() error {
	return w.cat.Close()
}

// buildEngine opens the catalog and assembles the files client, executor,
// and engine from cfg. The caller owns the returned wiredEngine and must
// Close it.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*wiredEngine, error) {
	cat, err := catalog.Open(ctx, cfg.Storage.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	files := filesclient.New(cfg.Network.FilesServiceURL, defaultHTTPClient(), cfg.Network.MaxRetries, logger)

	execCfg := syncengine.ExecutorConfig{
		SyncDir:           cfg.Sync.SyncDir,
		ChunkDir:          cfg.Storage.ChunkDir,
		ChunkSize:         cfg.ChunkSizeBytes(),
		UploadConcurrency: cfg.Sync.UploadWorkers,
		DedupeSkipUpload:  cfg.Sync.DedupeSkipPUT,
	}
	exec := syncengine.NewExecutor(cat, files, execCfg, logger)

	engCfg := syncengine.EngineConfig{
		SyncDir:             cfg.Sync.SyncDir,
		DispatchConcurrency: cfg.Sync.UploadWorkers,
		DebounceWindow:      cfg.DebounceDuration(),
		Safety:              *syncengine.DefaultSafetyConfig(),
	}
	engine := syncengine.NewEngine(cat, exec, engCfg, logger)

	return &wiredEngine{cat: cat, files: files, engine: engine}, nil
}
