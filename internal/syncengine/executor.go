package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dropsync/dropsync/internal/catalog"
	"github.com/dropsync/dropsync/internal/chunker"
	"github.com/dropsync/dropsync/internal/filesclient"
	"github.com/dropsync/dropsync/internal/idgen"
	"github.com/dropsync/dropsync/internal/watcher"
)

// Executor turns a single watcher event into catalog and remote-service
// effects, per the event-to-plan mapping table. One Executor is shared by
// every per-path task; all catalog and files-service calls are safe for
// concurrent use, so the only serialization an Executor itself needs is the
// dispatcher's per-path lock around HandleEvent.
type Executor struct {
	cat   *catalog.Catalog
	files *filesclient.Client

	syncDir  string
	chunkDir string

	chunkSize         int64
	uploadConcurrency int
	dedupeSkipUpload  bool

	logger *slog.Logger
}

// ExecutorConfig carries the tunables an Executor needs beyond its
// catalog/files-client collaborators.
type ExecutorConfig struct {
	SyncDir           string
	ChunkDir          string
	ChunkSize         int64
	UploadConcurrency int
	DedupeSkipUpload  bool
}

// NewExecutor constructs an Executor. UploadConcurrency and ChunkSize fall
// back to sane defaults when unset.
func NewExecutor(cat *catalog.Catalog, files *filesclient.Client, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
	}

	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = defaultUploadConcurrency
	}

	return &Executor{
		cat:               cat,
		files:             files,
		syncDir:           cfg.SyncDir,
		chunkDir:          cfg.ChunkDir,
		chunkSize:         cfg.ChunkSize,
		uploadConcurrency: cfg.UploadConcurrency,
		dedupeSkipUpload:  cfg.DedupeSkipUpload,
		logger:            logger,
	}
}

// defaultUploadConcurrency bounds chunk PUT/GET parallelism for a single
// file when the caller does not specify one, per the "bounded, e.g. 8"
// worker pool sizing.
const defaultUploadConcurrency = 8

// HandleEvent executes the plan for a single watcher event. Errors leave
// the catalog in a restart-safe state: chunk rows present with last_synced
// still null, so the file is retried on the next watcher event or rescan.
func (e *Executor) HandleEvent(ctx context.Context, ev watcher.Event) error {
	switch plan(ev) {
	case planUpsertFolder:
		return e.handleUpsertFolder(ctx, ev)
	case planUploadNewFile:
		return e.handleUploadNewFile(ctx, ev)
	case planUploadModifiedFile:
		return e.handleUploadModifiedFile(ctx, ev)
	case planDelete:
		return e.handleDelete(ctx, ev)
	case planRename:
		return e.handleRename(ctx, ev)
	default:
		return fmt.Errorf("syncengine: no plan for event %q on %q", ev.Type, ev.Path)
	}
}

func (e *Executor) handleUpsertFolder(ctx context.Context, ev watcher.Event) error {
	folder, err := e.cat.EnsureFolderPath(ctx, ev.Path)
	if err != nil {
		return fmt.Errorf("syncengine: upsert folder %q: %w", ev.Path, err)
	}

	e.logger.Info("folder synced", slog.String("path", ev.Path), slog.String("folder_id", folder.FolderID))

	return nil
}

func (e *Executor) handleUploadNewFile(ctx context.Context, ev watcher.Event) error {
	parentPath := filepath.Dir(ev.Path)
	if parentPath == "." {
		parentPath = ""
	}

	parent, err := e.cat.EnsureFolderPath(ctx, parentPath)
	if err != nil {
		return fmt.Errorf("syncengine: upload %q: ensure parent folder: %w", ev.Path, err)
	}

	result, err := e.chunkFile(ev.Path)
	if err != nil {
		return fmt.Errorf("syncengine: upload %q: %w", ev.Path, err)
	}

	name := filepath.Base(ev.Path)
	fileType := guessFileType(ev.Path)

	fileID, err := e.upload(ctx, uploadSpec{
		folderID: parent.FolderID,
		path:     ev.Path,
		name:     name,
		fileType: fileType,
		result:   result,
	})
	if err != nil {
		return fmt.Errorf("syncengine: upload %q: %w", ev.Path, err)
	}

	e.logger.Info("file synced", slog.String("path", ev.Path), slog.String("file_id", fileID))

	return nil
}

func (e *Executor) handleUploadModifiedFile(ctx context.Context, ev watcher.Event) error {
	existing, err := e.cat.QueryFileByPath(ctx, ev.Path)
	if errors.Is(err, catalog.ErrNotFound) {
		// A Modified event for a path the catalog doesn't know about is
		// treated like a new upload, matching the Created path.
		return e.handleUploadNewFile(ctx, ev)
	}

	if err != nil {
		return fmt.Errorf("syncengine: modified %q: lookup: %w", ev.Path, err)
	}

	result, err := e.chunkFile(ev.Path)
	if err != nil {
		return fmt.Errorf("syncengine: modified %q: %w", ev.Path, err)
	}

	if result.FileHash == existing.FileHash {
		e.logger.Debug("modified event dropped, content unchanged", slog.String("path", ev.Path))
		return nil
	}

	fileType := guessFileType(ev.Path)

	newFileID, err := e.upload(ctx, uploadSpec{
		folderID:   existing.FolderID,
		path:       ev.Path,
		name:       existing.FileName,
		fileType:   fileType,
		result:     result,
		replacesID: existing.FileID,
	})
	if err != nil {
		return fmt.Errorf("syncengine: modified %q: %w", ev.Path, err)
	}

	e.logger.Info("file content replaced", slog.String("path", ev.Path), slog.String("file_id", newFileID))

	return nil
}

func (e *Executor) handleDelete(ctx context.Context, ev watcher.Event) error {
	err := e.cat.DeleteByPath(ctx, ev.Path)
	if errors.Is(err, catalog.ErrNotFound) {
		// Already absent is success, per the idempotent-delete rule.
		return nil
	}

	if err != nil {
		return fmt.Errorf("syncengine: delete %q: %w", ev.Path, err)
	}

	e.logger.Info("deleted", slog.String("path", ev.Path))

	return nil
}

func (e *Executor) handleRename(ctx context.Context, ev watcher.Event) error {
	if err := e.cat.RenameOrMove(ctx, ev.OldPath, ev.Path); err != nil {
		return fmt.Errorf("syncengine: rename %q -> %q: %w", ev.OldPath, ev.Path, err)
	}

	e.logger.Info("renamed", slog.String("from", ev.OldPath), slog.String("to", ev.Path))

	return nil
}

// chunkFile resolves a catalog-relative path to an absolute path under the
// sync root and splits it, staging chunks under this executor's chunk
// staging directory.
func (e *Executor) chunkFile(relPath string) (*chunker.Result, error) {
	absPath := filepath.Join(e.syncDir, filepath.FromSlash(relPath))

	// Each chunking pass gets its own staging subdirectory so concurrent
	// uploads of different files never collide on chunker's part-NNNNNN
	// staging filenames.
	stagingDir := filepath.Join(e.chunkDir, idgen.New())

	result, err := chunker.Split(absPath, stagingDir, e.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("chunk %q: %w", relPath, err)
	}

	return result, nil
}
