package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir string, size int) string {
	t.Helper()

	path := filepath.Join(dir, "src")
	data := make([]byte, size)

	for i := range data {
		data[i] = byte(i % 251)
	}

	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func TestSplit_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	src := writeTempFile(t, dir, 0)

	result, err := Split(src, filepath.Join(dir, "staging"), DefaultChunkSize)
	require.NoError(t, err)

	require.Len(t, result.Chunks, 1)
	assert.Equal(t, int64(0), result.Chunks[0].Length)
	assert.Equal(t, hex.EncodeToString(sha256.New().Sum(nil)), result.FileHash)
}

func TestSplit_ExactlyOneChunkSize(t *testing.T) {
	dir := t.TempDir()
	src := writeTempFile(t, dir, 16)

	result, err := Split(src, filepath.Join(dir, "staging"), 16)
	require.NoError(t, err)

	require.Len(t, result.Chunks, 1)
	assert.Equal(t, int64(16), result.Chunks[0].Length)
}

func TestSplit_OneByteOverChunkSize(t *testing.T) {
	dir := t.TempDir()
	src := writeTempFile(t, dir, 17)

	result, err := Split(src, filepath.Join(dir, "staging"), 16)
	require.NoError(t, err)

	require.Len(t, result.Chunks, 2)
	assert.Equal(t, int64(16), result.Chunks[0].Length)
	assert.Equal(t, int64(1), result.Chunks[1].Length)
	assert.Equal(t, 1, result.Chunks[0].PartNumber)
	assert.Equal(t, 2, result.Chunks[1].PartNumber)
}

func TestSplit_PartNumbersContiguousAndOffsetsCorrect(t *testing.T) {
	dir := t.TempDir()
	src := writeTempFile(t, dir, 40)

	result, err := Split(src, filepath.Join(dir, "staging"), 16)
	require.NoError(t, err)

	require.Len(t, result.Chunks, 3)

	var offset int64
	for i, c := range result.Chunks {
		assert.Equal(t, i+1, c.PartNumber)
		assert.Equal(t, offset, c.Offset)
		offset += c.Length
		assert.Len(t, c.Fingerprint, 64)
	}
	assert.Equal(t, int64(40), offset)
}

func TestSplit_Deterministic(t *testing.T) {
	dir := t.TempDir()
	src := writeTempFile(t, dir, 100)

	r1, err := Split(src, filepath.Join(dir, "staging1"), 16)
	require.NoError(t, err)

	r2, err := Split(src, filepath.Join(dir, "staging2"), 16)
	require.NoError(t, err)

	require.Equal(t, r1.FileHash, r2.FileHash)
	require.Len(t, r1.Chunks, len(r2.Chunks))

	for i := range r1.Chunks {
		assert.Equal(t, r1.Chunks[i].Fingerprint, r2.Chunks[i].Fingerprint)
		assert.Equal(t, r1.Chunks[i].Offset, r2.Chunks[i].Offset)
		assert.Equal(t, r1.Chunks[i].Length, r2.Chunks[i].Length)
	}
}

func TestSplit_StagingFilesContainChunkBytes(t *testing.T) {
	dir := t.TempDir()
	src := writeTempFile(t, dir, 33)

	result, err := Split(src, filepath.Join(dir, "staging"), 16)
	require.NoError(t, err)

	full, err := os.ReadFile(src)
	require.NoError(t, err)

	var reassembled []byte
	for _, c := range result.Chunks {
		b, err := os.ReadFile(c.StagingPath)
		require.NoError(t, err)
		assert.Equal(t, int(c.Length), len(b))
		reassembled = append(reassembled, b...)
	}

	assert.Equal(t, full, reassembled)
}

func TestSplit_DetectsSourceMutation(t *testing.T) {
	dir := t.TempDir()
	src := writeTempFile(t, dir, 64)

	original := statSize
	defer func() { statSize = original }()

	calls := 0
	statSize = func(path string) (int64, error) {
		calls++
		if calls == 1 {
			return original(path)
		}

		// Simulate the file having grown between the first and second stat.
		size, err := original(path)
		return size + 1, err
	}

	_, err := Split(src, filepath.Join(dir, "staging"), 16)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceMutated)
}

func TestSplit_MissingFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Split(filepath.Join(dir, "nope"), filepath.Join(dir, "staging"), DefaultChunkSize)
	require.Error(t, err)
}
