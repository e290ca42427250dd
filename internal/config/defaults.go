package config

import "time"

// Default values for configuration options: the "layer 0" of the
// default -> file -> environment override chain, chosen to work without
// any configuration present at all.
const (
	defaultSyncDir         = "./sync"
	defaultChunkDir        = "./chunks"
	defaultDBPath          = "./dropsync.db"
	defaultChunkSize       = "5MiB"
	defaultChunkSizeBytes  = 5 * 1024 * 1024
	defaultDebounceMillis  = 500
	defaultDebounce        = 500 * time.Millisecond
	defaultUploadWorkers   = 8
	defaultDownloadWorkers = 8
	defaultFilesServiceURL = "http://localhost:8081"
	defaultRequestTimeout  = 30 * time.Second
	defaultMaxRetries      = 3
	defaultListenAddr      = "127.0.0.1:8090"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
)

// DefaultConfig returns a Config populated with all default values. Used
// both as the decode target for the TOML file (so unset fields keep their
// defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			SyncDir:         defaultSyncDir,
			ChunkSize:       defaultChunkSize,
			DebounceMillis:  defaultDebounceMillis,
			DedupeSkipPUT:   true,
			UploadWorkers:   defaultUploadWorkers,
			DownloadWorkers: defaultDownloadWorkers,
		},
		Storage: StorageConfig{
			ChunkDir: defaultChunkDir,
			DBPath:   defaultDBPath,
		},
		Network: NetworkConfig{
			FilesServiceURL: defaultFilesServiceURL,
			RequestTimeout:  "30s",
			MaxRetries:      defaultMaxRetries,
		},
		Server: ServerConfig{
			ListenAddr: defaultListenAddr,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
