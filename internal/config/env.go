package config

import (
	"os"
	"strconv"
)

// Environment variable names, per the external-interface contract: these
// form the highest-priority configuration layer, applied after defaults
// and the TOML file.
const (
	EnvSyncDir         = "SYNC_DIR"
	EnvChunkDir        = "CHUNK_DIR"
	EnvDBPath          = "DB_PATH"
	EnvChunkSize       = "CHUNK_SIZE"
	EnvFilesServiceURL = "FILES_SERVICE_URL"
	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvMaxRetries      = "MAX_RETRIES"
	EnvClientID        = "CLIENT_ID"
	EnvListenAddr      = "LISTEN_ADDR"
	EnvConfigPath      = "DROPSYNC_CONFIG"
)

// ApplyEnvOverrides mutates cfg in place, overriding any field whose
// corresponding environment variable is set and non-empty.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvSyncDir); v != "" {
		cfg.Sync.SyncDir = v
	}

	if v := os.Getenv(EnvChunkSize); v != "" {
		cfg.Sync.ChunkSize = v
	}

	if v := os.Getenv(EnvChunkDir); v != "" {
		cfg.Storage.ChunkDir = v
	}

	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Storage.DBPath = v
	}

	if v := os.Getenv(EnvFilesServiceURL); v != "" {
		cfg.Network.FilesServiceURL = v
	}

	if v := os.Getenv(EnvRequestTimeout); v != "" {
		cfg.Network.RequestTimeout = v
	}

	if v := os.Getenv(EnvMaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Network.MaxRetries = n
		}
	}

	if v := os.Getenv(EnvClientID); v != "" {
		cfg.Network.ClientID = v
	}

	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.Server.ListenAddr = v
	}
}
