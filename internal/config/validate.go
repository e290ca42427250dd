package config

import (
	"fmt"
	"net/url"
)

// Validate checks the resolved config for internally consistent,
// usable values. Called once at the end of Load.
func Validate(cfg *Config) error {
	if cfg.Sync.SyncDir == "" {
		return fmt.Errorf("config: sync.sync_dir must not be empty")
	}

	if cfg.Storage.ChunkDir == "" {
		return fmt.Errorf("config: storage.chunk_dir must not be empty")
	}

	if cfg.Storage.DBPath == "" {
		return fmt.Errorf("config: storage.db_path must not be empty")
	}

	if _, err := ParseSize(cfg.Sync.ChunkSize); err != nil {
		return fmt.Errorf("config: sync.chunk_size: %w", err)
	}

	if cfg.Network.FilesServiceURL == "" {
		return fmt.Errorf("config: network.files_service_url must not be empty")
	}

	if _, err := url.Parse(cfg.Network.FilesServiceURL); err != nil {
		return fmt.Errorf("config: network.files_service_url: %w", err)
	}

	if cfg.Network.MaxRetries < 0 {
		return fmt.Errorf("config: network.max_retries must be non-negative")
	}

	if cfg.Sync.UploadWorkers <= 0 {
		return fmt.Errorf("config: sync.upload_workers must be positive")
	}

	if cfg.Sync.DownloadWorkers <= 0 {
		return fmt.Errorf("config: sync.download_workers must be positive")
	}

	return nil
}
