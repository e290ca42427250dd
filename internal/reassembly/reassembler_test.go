package reassembly

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropsync/dropsync/internal/catalog"
	"github.com/dropsync/dropsync/internal/filesclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fingerprintOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// newFakeDownloadService serves chunk bytes keyed by part number, with
// ranged-GET support, and a /files/download endpoint that returns presigned
// URLs pointing back at itself.
func newFakeDownloadService(t *testing.T, chunkBytes map[int][]byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	var srv *httptest.Server

	mux.HandleFunc("/files/download", func(w http.ResponseWriter, r *http.Request) {
		var req filesclient.DownloadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		urls := make([]filesclient.PresignedDownload, len(req.Chunks))
		for i, c := range req.Chunks {
			urls[i] = filesclient.PresignedDownload{
				ChunkID:      c.ChunkID,
				PartNumber:   c.PartNumber,
				PresignedURL: srv.URL + "/chunk/" + c.ChunkID,
			}
		}

		_ = json.NewEncoder(w).Encode(filesclient.DownloadResponse{Success: true, DownloadURLs: urls})
	})

	mux.HandleFunc("/chunk/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/chunk/"):]

		for part, data := range chunkBytes {
			if chunkIDFor(part) == id {
				_, _ = w.Write(data)
				return
			}
		}

		w.WriteHeader(http.StatusNotFound)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func chunkIDFor(part int) string {
	return "chunk-" + string(rune('0'+part))
}

func TestReassembler_Fetch_SingleChunk(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")
	chunkBytes := map[int][]byte{1: content}

	srv := newFakeDownloadService(t, chunkBytes)
	client := filesclient.New(srv.URL, srv.Client(), 3, testLogger())

	r := New(client, 1<<20, 4, testLogger())

	fileHash := fingerprintOf(content)

	file := &catalog.File{FileID: "f1", FilePath: "a/b.txt", FileHash: fileHash}
	chunks := []*catalog.Chunk{
		{ChunkID: chunkIDFor(1), FileID: "f1", PartNumber: 1, Fingerprint: fingerprintOf(content)},
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b.txt")

	require.NoError(t, r.Fetch(context.Background(), target, file, chunks))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestReassembler_Fetch_MultiChunk(t *testing.T) {
	chunkSize := int64(8)
	part1 := []byte("AAAAAAAA")
	part2 := []byte("BBBB") // shorter final chunk

	chunkBytes := map[int][]byte{1: part1, 2: part2}

	srv := newFakeDownloadService(t, chunkBytes)
	client := filesclient.New(srv.URL, srv.Client(), 3, testLogger())

	r := New(client, chunkSize, 4, testLogger())

	whole := append(append([]byte{}, part1...), part2...)
	fileHash := fingerprintOf(whole)

	file := &catalog.File{FileID: "f2", FilePath: "c.bin", FileHash: fileHash}
	chunks := []*catalog.Chunk{
		{ChunkID: chunkIDFor(2), FileID: "f2", PartNumber: 2, Fingerprint: fingerprintOf(part2)},
		{ChunkID: chunkIDFor(1), FileID: "f2", PartNumber: 1, Fingerprint: fingerprintOf(part1)},
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "c.bin")

	require.NoError(t, r.Fetch(context.Background(), target, file, chunks))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, whole, got)
}

func TestReassembler_Fetch_WholeFileHashMismatchFails(t *testing.T) {
	content := []byte("hello")
	chunkBytes := map[int][]byte{1: content}

	srv := newFakeDownloadService(t, chunkBytes)
	client := filesclient.New(srv.URL, srv.Client(), 3, testLogger())

	r := New(client, 1<<20, 4, testLogger())

	file := &catalog.File{FileID: "f3", FilePath: "d.txt", FileHash: "0000000000000000000000000000000000000000000000000000000000000"}
	chunks := []*catalog.Chunk{
		{ChunkID: chunkIDFor(1), FileID: "f3", PartNumber: 1, Fingerprint: fingerprintOf(content)},
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "d.txt")

	err := r.Fetch(context.Background(), target, file, chunks)
	require.Error(t, err)

	var integrityErr *IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	require.Equal(t, "file", integrityErr.What)

	_, statErr := os.Stat(target)
	require.True(t, os.IsNotExist(statErr), "failed download must not leave a file at the target path")
}

func TestReassembler_Fetch_ChunkFingerprintMismatchFails(t *testing.T) {
	content := []byte("hello")
	chunkBytes := map[int][]byte{1: content}

	srv := newFakeDownloadService(t, chunkBytes)
	client := filesclient.New(srv.URL, srv.Client(), 3, testLogger())

	r := New(client, 1<<20, 4, testLogger())

	file := &catalog.File{FileID: "f4", FilePath: "e.txt", FileHash: fingerprintOf(content)}
	chunks := []*catalog.Chunk{
		{ChunkID: chunkIDFor(1), FileID: "f4", PartNumber: 1, Fingerprint: "wrong-fingerprint-0000000000000000000000000000000000000000000"},
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "e.txt")

	err := r.Fetch(context.Background(), target, file, chunks)
	require.Error(t, err)

	var integrityErr *IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	require.Equal(t, "chunk", integrityErr.What)
}
