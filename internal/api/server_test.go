package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropsync/dropsync/internal/catalog"
	"github.com/dropsync/dropsync/internal/filesclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	return cat
}

func TestServer_Health(t *testing.T) {
	cat := newTestCatalog(t)
	s := New(cat, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body.Status)
}

func TestServer_ListFiles(t *testing.T) {
	cat := newTestCatalog(t)

	root, err := cat.EnsureFolderPath(context.Background(), "")
	require.NoError(t, err)

	_, err = cat.InsertFile(context.Background(), root.FolderID, "a.txt", "a.txt", "text/plain", "deadbeef", nil)
	require.NoError(t, err)

	s := New(cat, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var files []fileSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 1)
	require.Equal(t, "a.txt", files[0].FileName)
}

func TestServer_GetFile_NotFound(t *testing.T) {
	cat := newTestCatalog(t)
	s := New(cat, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/files/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetFile_IncludesChunks(t *testing.T) {
	cat := newTestCatalog(t)

	root, err := cat.EnsureFolderPath(context.Background(), "")
	require.NoError(t, err)

	fileID, err := cat.InsertFile(context.Background(), root.FolderID, "a.txt", "a.txt", "text/plain", "deadbeef",
		[]*catalog.Chunk{{ChunkID: "chunk-1", PartNumber: 1, Fingerprint: "feedface"}})
	require.NoError(t, err)

	s := New(cat, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/files/"+fileID, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var detail fileDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Equal(t, fileID, detail.FileID)
	require.Len(t, detail.Chunks, 1)
	require.Equal(t, "chunk-1", detail.Chunks[0].ChunkID)
	require.False(t, detail.Chunks[0].Synced)
}

func TestServer_ListFolders(t *testing.T) {
	cat := newTestCatalog(t)

	_, err := cat.EnsureFolderPath(context.Background(), "nested/dir")
	require.NoError(t, err)

	s := New(cat, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var folders []folderSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &folders))
	require.GreaterOrEqual(t, len(folders), 2)
}

func TestServer_TriggerSync_NoTrigger(t *testing.T) {
	cat := newTestCatalog(t)
	s := New(cat, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var body syncTriggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "not supported", body.Status)
}

func TestServer_TriggerSync_Enqueues(t *testing.T) {
	cat := newTestCatalog(t)

	called := false
	trigger := func() error {
		called = true
		return nil
	}

	s := New(cat, nil, trigger, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.True(t, called)

	var body syncTriggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "enqueued", body.Status)
}

func TestServer_DownloadProxy(t *testing.T) {
	cat := newTestCatalog(t)

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(filesclient.DownloadResponse{
			Success: true,
			DownloadURLs: []filesclient.PresignedDownload{
				{ChunkID: "chunk-1", PartNumber: 1, PresignedURL: "https://example.invalid/chunk-1"},
			},
		})
	}))
	defer remote.Close()

	client := filesclient.New(remote.URL, remote.Client(), 1, testLogger())
	s := New(cat, client, nil, testLogger())

	reqBody := filesclient.DownloadRequest{
		FileID: "f1",
		Chunks: []filesclient.DownloadChunkRequest{{ChunkID: "chunk-1", PartNumber: 1, Fingerprint: "feedface"}},
	}

	buf, err := json.Marshal(reqBody)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/files/download", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp filesclient.DownloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.DownloadURLs, 1)
}
