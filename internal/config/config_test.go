package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, defaultChunkSize, cfg.Sync.ChunkSize)
	assert.Equal(t, int64(defaultChunkSizeBytes), cfg.ChunkSizeBytes())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	contents := "[sync]\nsync_dir = \"/custom/sync\"\nchunk_size = \"10MiB\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "/custom/sync", cfg.Sync.SyncDir)
	assert.Equal(t, int64(10*1024*1024), cfg.ChunkSizeBytes())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[sync]\nsync_dir = \"/from/file\"\n"), 0o600))

	t.Setenv(EnvSyncDir, "/from/env")

	cfg, err := Load(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Sync.SyncDir)
}

func TestValidate_RejectsBadChunkSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.ChunkSize = "not-a-size"
	require.Error(t, Validate(cfg))
}

func TestValidate_RejectsEmptySyncDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.SyncDir = ""
	require.Error(t, Validate(cfg))
}
