// Package config implements layered configuration loading (defaults, TOML
// file, environment variables) and validation for dropsync.
package config

import "time"

// Config is the top-level process-wide configuration. It is immutable
// after Load returns: every component receives a read-only *Config.
type Config struct {
	Sync    SyncConfig    `toml:"sync"`
	Storage StorageConfig `toml:"storage"`
	Network NetworkConfig `toml:"network"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
}

// SyncConfig controls the sync root and chunking behavior.
type SyncConfig struct {
	SyncDir         string `toml:"sync_dir"`
	ChunkSize       string `toml:"chunk_size"`
	DebounceMillis  int    `toml:"debounce_millis"`
	DedupeSkipPUT   bool   `toml:"dedupe_skip_upload"`
	UploadWorkers   int    `toml:"upload_workers"`
	DownloadWorkers int    `toml:"download_workers"`
}

// StorageConfig controls on-disk persistence paths.
type StorageConfig struct {
	ChunkDir string `toml:"chunk_dir"`
	DBPath   string `toml:"db_path"`
}

// NetworkConfig controls the remote files-service HTTP client.
type NetworkConfig struct {
	FilesServiceURL string `toml:"files_service_url"`
	RequestTimeout  string `toml:"request_timeout"`
	MaxRetries      int    `toml:"max_retries"`
	ClientID        string `toml:"client_id"`
}

// ServerConfig controls dropsync's own local HTTP API, used by "serve".
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "auto", "text", "json"
}

// ChunkSizeBytes resolves the configured chunk size, falling back to the
// package default on parse failure or an empty value.
func (c *Config) ChunkSizeBytes() int64 {
	n, err := ParseSize(c.Sync.ChunkSize)
	if err != nil || n <= 0 {
		return defaultChunkSizeBytes
	}

	return n
}

// RequestTimeoutDuration resolves the configured request timeout.
func (c *Config) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Network.RequestTimeout)
	if err != nil || d <= 0 {
		return defaultRequestTimeout
	}

	return d
}

// DebounceDuration resolves the watcher's debounce window.
func (c *Config) DebounceDuration() time.Duration {
	if c.Sync.DebounceMillis <= 0 {
		return defaultDebounce
	}

	return time.Duration(c.Sync.DebounceMillis) * time.Millisecond
}
