package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkChunksSynced(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	fileID, err := c.InsertFile(ctx, RootFolderID, "a.txt", "a.txt", "text/plain",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", makeTestChunks(2))
	require.NoError(t, err)

	chunks, err := c.QueryChunksForFile(ctx, fileID)
	require.NoError(t, err)

	ids := []string{chunks[0].ChunkID, chunks[1].ChunkID}
	require.NoError(t, c.MarkChunksSynced(ctx, fileID, ids))

	updated, err := c.QueryChunksForFile(ctx, fileID)
	require.NoError(t, err)

	for _, ch := range updated {
		assert.True(t, ch.Synced())
		assert.NotNil(t, ch.LastSynced)
	}
}

func TestMarkChunksSynced_UnknownChunk(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	fileID, err := c.InsertFile(ctx, RootFolderID, "a.txt", "a.txt", "text/plain",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", makeTestChunks(1))
	require.NoError(t, err)

	err = c.MarkChunksSynced(ctx, fileID, []string{"not-a-real-chunk"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkChunksSynced_Empty(t *testing.T) {
	c := newTestCatalog(t)

	require.NoError(t, c.MarkChunksSynced(context.Background(), "whatever", nil))
}

func TestFindSyncedChunkByFingerprint(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	fileID, err := c.InsertFile(ctx, RootFolderID, "a.txt", "a.txt", "text/plain",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", makeTestChunks(1))
	require.NoError(t, err)

	chunks, err := c.QueryChunksForFile(ctx, fileID)
	require.NoError(t, err)

	fp := chunks[0].Fingerprint

	none, err := c.FindSyncedChunkByFingerprint(ctx, fp)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, c.MarkChunksSynced(ctx, fileID, []string{chunks[0].ChunkID}))

	found, err := c.FindSyncedChunkByFingerprint(ctx, fp)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, chunks[0].ChunkID, found.ChunkID)
}
