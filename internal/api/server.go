// Package api serves the local read-only HTTP projection over the catalog,
// plus a manual sync trigger and a download proxy, per the Local HTTP API
// surface. Grounded in hazyhaar-chrc's chi.Router-based service chassis,
// since the teacher has no HTTP server of its own to imitate here.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dropsync/dropsync/internal/catalog"
	"github.com/dropsync/dropsync/internal/filesclient"
)

// RescanTrigger enqueues a full catalog/filesystem reconciliation pass.
// Returns immediately; the rescan itself runs on the sync engine's own
// goroutine.
type RescanTrigger func() error

// Server is the local HTTP API's handler set.
type Server struct {
	cat    *catalog.Catalog
	files  *filesclient.Client
	rescan RescanTrigger
	logger *slog.Logger
	router chi.Router
}

// New builds a Server with all routes registered.
func New(cat *catalog.Catalog, files *filesclient.Client, rescan RescanTrigger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cat: cat, files: files, rescan: rescan, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpLogger(logger))

	r.Get("/health", s.handleHealth)
	r.Get("/api/files", s.handleListFiles)
	r.Get("/api/files/{file_id}", s.handleGetFile)
	r.Get("/api/folders", s.handleListFolders)
	r.Post("/api/sync", s.handleTriggerSync)
	r.Post("/api/files/download", s.handleDownloadProxy)

	s.router = r

	return s
}

// ServeHTTP implements http.Handler, so Server can be passed directly to
// http.Server or httptest.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.cat.ListAllFiles(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "listing files", err)
		return
	}

	out := make([]fileSummary, len(files))
	for i, f := range files {
		out[i] = fileSummary{FileID: f.FileID, FileName: f.FileName, FilePath: f.FilePath}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")

	f, err := s.cat.GetFile(r.Context(), fileID)
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "file not found", err)
		return
	}

	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "loading file", err)
		return
	}

	chunks, err := s.cat.QueryChunksForFile(r.Context(), fileID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "loading chunks", err)
		return
	}

	detail := fileDetail{
		FileID:   f.FileID,
		FileName: f.FileName,
		FilePath: f.FilePath,
		FolderID: f.FolderID,
		FileType: f.FileType,
		FileHash: f.FileHash,
		Chunks:   make([]chunkSummary, len(chunks)),
	}

	for i, c := range chunks {
		detail.Chunks[i] = chunkSummary{
			ChunkID:     c.ChunkID,
			PartNumber:  c.PartNumber,
			Fingerprint: c.Fingerprint,
			Synced:      c.Synced(),
		}
	}

	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.cat.ListAllFolders(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "listing folders", err)
		return
	}

	out := make([]folderSummary, len(folders))
	for i, f := range folders {
		out[i] = folderSummary{
			FolderID:       f.FolderID,
			FolderName:     f.FolderName,
			FolderPath:     f.FolderPath,
			ParentFolderID: f.ParentFolderID,
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, _ *http.Request) {
	if s.rescan == nil {
		writeJSON(w, http.StatusAccepted, syncTriggerResponse{Status: "not supported"})
		return
	}

	if err := s.rescan(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "triggering rescan", err)
		return
	}

	writeJSON(w, http.StatusAccepted, syncTriggerResponse{Status: "enqueued"})
}

func (s *Server) handleDownloadProxy(w http.ResponseWriter, r *http.Request) {
	var req filesclient.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "decoding request", err)
		return
	}

	resp, err := s.files.RequestDownload(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "requesting download", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, err error) {
	s.logger.Error(msg, slog.String("error", err.Error()))
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// httpLogger logs each request at Debug level, grounded in chi's own
// middleware.Logger shape but routed through slog instead of chi's
// stdlib-logger default.
func httpLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("http request", slog.String("method", r.Method), slog.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
		})
	}
}
