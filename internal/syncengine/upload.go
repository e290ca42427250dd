package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/dropsync/dropsync/internal/catalog"
	"github.com/dropsync/dropsync/internal/chunker"
	"github.com/dropsync/dropsync/internal/filesclient"
)

// uploadSpec describes one file's content to upload: either a brand new
// file (replacesID empty) or a content replacement for an existing file
// (replacesID set to the superseded FileID).
type uploadSpec struct {
	folderID   string
	path       string
	name       string
	fileType   string
	result     *chunker.Result
	replacesID string
}

// upload runs the three-phase upload protocol for one file: Prepare,
// Upload, Confirm. The catalog row (and its chunk rows) is inserted
// between Prepare and Upload, adopting the service-issued file_id, so a
// crash after Prepare never leaves a file record without chunk rows.
func (e *Executor) upload(ctx context.Context, spec uploadSpec) (string, error) {
	chunkCount := len(spec.result.Chunks)

	prepResp, err := e.files.Prepare(ctx, filesclient.PrepareRequest{
		FileName:   spec.name,
		FilePath:   spec.path,
		FileType:   spec.fileType,
		FolderID:   spec.folderID,
		ChunkCount: chunkCount,
		FileHash:   spec.result.FileHash,
	})
	if err != nil {
		return "", fmt.Errorf("prepare: %w", err)
	}

	presignedByPart := make(map[int]filesclient.PresignedUpload, chunkCount)
	for _, pu := range prepResp.PresignedURLs {
		presignedByPart[pu.PartNumber] = pu
	}

	chunks := make([]*catalog.Chunk, 0, chunkCount)

	for _, d := range spec.result.Chunks {
		pu, ok := presignedByPart[d.PartNumber]
		if !ok {
			return "", fmt.Errorf("prepare: response missing presigned URL for part %d", d.PartNumber)
		}

		chunks = append(chunks, &catalog.Chunk{
			ChunkID:     pu.ChunkID,
			PartNumber:  d.PartNumber,
			Fingerprint: d.Fingerprint,
		})
	}

	if spec.replacesID != "" {
		if _, err := e.cat.ReplaceFileContentWithID(
			ctx, prepResp.FileID, spec.replacesID, spec.result.FileHash, spec.fileType, chunks,
		); err != nil {
			return "", fmt.Errorf("replace file content: %w", err)
		}
	} else {
		if _, err := e.cat.InsertFileWithID(
			ctx, prepResp.FileID, spec.folderID, spec.path, spec.name, spec.fileType, spec.result.FileHash, chunks,
		); err != nil {
			return "", fmt.Errorf("insert file: %w", err)
		}
	}

	if err := e.uploadChunks(ctx, prepResp.FileID, spec.result.Chunks, presignedByPart); err != nil {
		return "", fmt.Errorf("upload chunks: %w", err)
	}

	// chunks is already in ascending part_number order: it was built by
	// iterating spec.result.Chunks, which Split produces in that order.
	chunkIDs := make([]string, len(chunks))
	for i, ch := range chunks {
		chunkIDs[i] = ch.ChunkID
	}

	if err := e.files.Confirm(ctx, prepResp.FileID, chunkIDs); err != nil {
		return "", fmt.Errorf("confirm: %w", err)
	}

	if err := e.cat.MarkChunksSynced(ctx, prepResp.FileID, chunkIDs); err != nil {
		return "", fmt.Errorf("mark chunks synced: %w", err)
	}

	for _, d := range spec.result.Chunks {
		if rmErr := os.Remove(d.StagingPath); rmErr != nil && !os.IsNotExist(rmErr) {
			e.logger.Warn("failed to clean up staged chunk", slog.String("path", d.StagingPath), slog.String("error", rmErr.Error()))
		}
	}

	if len(spec.result.Chunks) > 0 {
		stagingDir := filepath.Dir(spec.result.Chunks[0].StagingPath)
		if rmErr := os.Remove(stagingDir); rmErr != nil && !os.IsNotExist(rmErr) {
			e.logger.Warn("failed to clean up staging directory", slog.String("path", stagingDir), slog.String("error", rmErr.Error()))
		}
	}

	return prepResp.FileID, nil
}

// uploadChunks PUTs each chunk's staged bytes to its presigned URL, bounded
// to uploadConcurrency concurrent PUTs. A chunk whose fingerprint is
// already synced under another file is skipped when dedupeSkipUpload is
// set, per the content-deduplication optimization: its chunk_id still goes
// into the Confirm call, relying on the service to materialize it from the
// existing object.
func (e *Executor) uploadChunks(
	ctx context.Context, fileID string, descriptors []chunker.Descriptor, presignedByPart map[int]filesclient.PresignedUpload,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.uploadConcurrency)

	for _, d := range descriptors {
		d := d

		pu, ok := presignedByPart[d.PartNumber]
		if !ok {
			return fmt.Errorf("no presigned URL for part %d", d.PartNumber)
		}

		g.Go(func() error {
			if e.dedupeSkipUpload {
				synced, err := e.cat.FindSyncedChunkByFingerprint(gctx, d.Fingerprint)
				if err != nil {
					return fmt.Errorf("chunk %d: dedup lookup: %w", d.PartNumber, err)
				}

				if synced != nil {
					e.logger.Debug("skipping upload, content already synced",
						slog.Int("part_number", d.PartNumber), slog.String("fingerprint", d.Fingerprint))

					return nil
				}
			}

			data, err := os.ReadFile(d.StagingPath)
			if err != nil {
				return fmt.Errorf("chunk %d: read staged bytes: %w", d.PartNumber, err)
			}

			if _, err := e.files.UploadChunk(gctx, pu.PresignedURL, data); err != nil {
				return fmt.Errorf("chunk %d: %w", d.PartNumber, err)
			}

			e.logger.Debug("chunk uploaded", slog.String("file_id", fileID), slog.Int("part_number", d.PartNumber))

			return nil
		})
	}

	return g.Wait()
}
