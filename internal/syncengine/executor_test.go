package syncengine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropsync/dropsync/internal/catalog"
	"github.com/dropsync/dropsync/internal/filesclient"
	"github.com/dropsync/dropsync/internal/idgen"
	"github.com/dropsync/dropsync/internal/watcher"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFilesService is a minimal in-memory stand-in for the remote files
// service, enough to drive the three-phase upload protocol end to end.
type fakeFilesService struct {
	srv     *httptest.Server
	uploads map[string][]byte // presigned URL path -> uploaded bytes
}

func newFakeFilesService(t *testing.T) *fakeFilesService {
	t.Helper()

	f := &fakeFilesService{uploads: make(map[string][]byte)}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(filesclient.HealthResponse{Status: "ok"})
	})

	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		var req filesclient.PrepareRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		fileID := idgen.New()
		urls := make([]filesclient.PresignedUpload, req.ChunkCount)

		for i := 0; i < req.ChunkCount; i++ {
			urls[i] = filesclient.PresignedUpload{
				ChunkID:      idgen.New(),
				PartNumber:   i + 1,
				PresignedURL: f.srv.URL + "/upload/" + fileID + "/" + strconv.Itoa(i+1),
			}
		}

		_ = json.NewEncoder(w).Encode(filesclient.PrepareResponse{FileID: fileID, PresignedURLs: urls})
	})

	mux.HandleFunc("/files/confirm", func(w http.ResponseWriter, r *http.Request) {
		var req filesclient.ConfirmRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(filesclient.ConfirmResponse{Success: true})
	})

	mux.HandleFunc("/upload/", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		f.uploads[r.URL.Path] = data
		w.Header().Set("ETag", "\"fake-etag\"")
		w.WriteHeader(http.StatusOK)
	})

	f.srv = httptest.NewServer(mux)

	t.Cleanup(f.srv.Close)

	return f
}

func newTestExecutor(t *testing.T, syncDir, chunkDir string, fs *fakeFilesService) (*Executor, *catalog.Catalog) {
	t.Helper()

	cat, err := catalog.Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, cat.Close()) })

	client := filesclient.New(fs.srv.URL, fs.srv.Client(), 3, testLogger())

	exec := NewExecutor(cat, client, ExecutorConfig{
		SyncDir:           syncDir,
		ChunkDir:          chunkDir,
		ChunkSize:         1024,
		UploadConcurrency: 4,
	}, testLogger())

	return exec, cat
}

func TestExecutor_UploadNewFile(t *testing.T) {
	syncDir := t.TempDir()
	chunkDir := t.TempDir()
	fs := newFakeFilesService(t)

	exec, cat := newTestExecutor(t, syncDir, chunkDir, fs)

	require.NoError(t, os.WriteFile(filepath.Join(syncDir, "hello.txt"), []byte("hello world"), 0o644))

	ctx := context.Background()

	err := exec.HandleEvent(ctx, watcher.Event{Type: watcher.Created, Path: "hello.txt"})
	require.NoError(t, err)

	f, err := cat.QueryFileByPath(ctx, "hello.txt")
	require.NoError(t, err)
	require.Equal(t, "hello.txt", f.FileName)

	chunks, err := cat.QueryChunksForFile(ctx, f.FileID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.True(t, chunks[0].Synced())
}

func TestExecutor_UploadModifiedFile_DropsOnUnchangedHash(t *testing.T) {
	syncDir := t.TempDir()
	chunkDir := t.TempDir()
	fs := newFakeFilesService(t)

	exec, cat := newTestExecutor(t, syncDir, chunkDir, fs)

	require.NoError(t, os.WriteFile(filepath.Join(syncDir, "hello.txt"), []byte("hello world"), 0o644))

	ctx := context.Background()
	require.NoError(t, exec.HandleEvent(ctx, watcher.Event{Type: watcher.Created, Path: "hello.txt"}))

	before, err := cat.QueryFileByPath(ctx, "hello.txt")
	require.NoError(t, err)

	// Rewrite identical content: Modified should be a no-op.
	require.NoError(t, os.WriteFile(filepath.Join(syncDir, "hello.txt"), []byte("hello world"), 0o644))
	require.NoError(t, exec.HandleEvent(ctx, watcher.Event{Type: watcher.Modified, Path: "hello.txt"}))

	after, err := cat.QueryFileByPath(ctx, "hello.txt")
	require.NoError(t, err)
	require.Equal(t, before.FileID, after.FileID)
}

func TestExecutor_UploadModifiedFile_ReplacesOnChangedHash(t *testing.T) {
	syncDir := t.TempDir()
	chunkDir := t.TempDir()
	fs := newFakeFilesService(t)

	exec, cat := newTestExecutor(t, syncDir, chunkDir, fs)

	require.NoError(t, os.WriteFile(filepath.Join(syncDir, "hello.txt"), []byte("hello world"), 0o644))

	ctx := context.Background()
	require.NoError(t, exec.HandleEvent(ctx, watcher.Event{Type: watcher.Created, Path: "hello.txt"}))

	before, err := cat.QueryFileByPath(ctx, "hello.txt")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(syncDir, "hello.txt"), []byte("goodbye world, changed"), 0o644))
	require.NoError(t, exec.HandleEvent(ctx, watcher.Event{Type: watcher.Modified, Path: "hello.txt"}))

	after, err := cat.QueryFileByPath(ctx, "hello.txt")
	require.NoError(t, err)
	require.NotEqual(t, before.FileID, after.FileID)
	require.NotEqual(t, before.FileHash, after.FileHash)
}

func TestExecutor_UpsertFolder(t *testing.T) {
	syncDir := t.TempDir()
	chunkDir := t.TempDir()
	fs := newFakeFilesService(t)

	exec, cat := newTestExecutor(t, syncDir, chunkDir, fs)

	ctx := context.Background()
	require.NoError(t, exec.HandleEvent(ctx, watcher.Event{Type: watcher.Created, Path: "docs/reports", IsDir: true}))

	folder, err := cat.GetFolderByPath(ctx, "docs/reports")
	require.NoError(t, err)
	require.Equal(t, "reports", folder.FolderName)
}

func TestExecutor_Delete_IsIdempotent(t *testing.T) {
	syncDir := t.TempDir()
	chunkDir := t.TempDir()
	fs := newFakeFilesService(t)

	exec, _ := newTestExecutor(t, syncDir, chunkDir, fs)

	ctx := context.Background()

	// No such path exists yet; delete must still succeed (already-absent).
	err := exec.HandleEvent(ctx, watcher.Event{Type: watcher.Deleted, Path: "never-existed.txt"})
	require.NoError(t, err)
}

func TestExecutor_Rename(t *testing.T) {
	syncDir := t.TempDir()
	chunkDir := t.TempDir()
	fs := newFakeFilesService(t)

	exec, cat := newTestExecutor(t, syncDir, chunkDir, fs)

	require.NoError(t, os.WriteFile(filepath.Join(syncDir, "a.txt"), []byte("content"), 0o644))

	ctx := context.Background()
	require.NoError(t, exec.HandleEvent(ctx, watcher.Event{Type: watcher.Created, Path: "a.txt"}))
	require.NoError(t, exec.HandleEvent(ctx, watcher.Event{Type: watcher.Renamed, OldPath: "a.txt", Path: "b.txt"}))

	_, err := cat.QueryFileByPath(ctx, "b.txt")
	require.NoError(t, err)
}
