package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropsync/dropsync/internal/config"
)

func TestNewServeCmd_Structure(t *testing.T) {
	cmd := newServeCmd()
	require.Equal(t, "serve", cmd.Name())
	require.NotEmpty(t, cmd.Short)
	require.NotNil(t, cmd.RunE)
}

func TestPidFilePath_SiblingOfDBPath(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{DBPath: "/var/lib/dropsync/catalog.db"}}
	assert.Equal(t, "/var/lib/dropsync/dropsync.pid", pidFilePath(cfg))
}
