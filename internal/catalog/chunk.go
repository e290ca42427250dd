package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func (c *Catalog) prepareChunkStmts(ctx context.Context) error {
	return prepareAll(ctx, c.db, []stmtDef{
		{&c.chunkStmts.insert, `INSERT INTO chunks
			(chunk_id, file_id, part_number, fingerprint, created_at, last_synced)
			VALUES (?, ?, ?, ?, ?, ?)`, "chunk.insert"},
		{&c.chunkStmts.listForFile, `SELECT chunk_id, file_id, part_number, fingerprint, created_at, last_synced
			FROM chunks WHERE file_id = ? ORDER BY part_number`, "chunk.listForFile"},
		{&c.chunkStmts.markSynced, `UPDATE chunks SET last_synced = ? WHERE chunk_id = ? AND file_id = ?`, "chunk.markSynced"},
		{&c.chunkStmts.getByFingerprintSynced, `SELECT chunk_id, file_id, part_number, fingerprint, created_at, last_synced
			FROM chunks WHERE fingerprint = ? AND last_synced IS NOT NULL LIMIT 1`, "chunk.getByFingerprintSynced"},
	})
}

func scanChunk(row interface{ Scan(...any) error }) (*Chunk, error) {
	var ch Chunk
	var lastSynced sql.NullInt64

	if err := row.Scan(&ch.ChunkID, &ch.FileID, &ch.PartNumber, &ch.Fingerprint, &ch.CreatedAt, &lastSynced); err != nil {
		return nil, err
	}

	if lastSynced.Valid {
		v := lastSynced.Int64
		ch.LastSynced = &v
	}

	return &ch, nil
}

func scanChunkRows(rows *sql.Rows) ([]*Chunk, error) {
	defer rows.Close()

	var out []*Chunk

	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, ch)
	}

	return out, rows.Err()
}

// QueryChunksForFile returns a file's chunks ordered by part_number.
func (c *Catalog) QueryChunksForFile(ctx context.Context, fileID string) ([]*Chunk, error) {
	rows, err := c.chunkStmts.listForFile.QueryContext(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("catalog: query chunks for file %q: %w", fileID, err)
	}

	return scanChunkRows(rows)
}

// FindSyncedChunkByFingerprint looks up any already-uploaded chunk sharing
// fingerprint, for content deduplication: if one exists, the sync engine may
// skip re-uploading identical content and instead reuse its remote
// reference.
func (c *Catalog) FindSyncedChunkByFingerprint(ctx context.Context, fingerprint string) (*Chunk, error) {
	ch, err := scanChunk(c.chunkStmts.getByFingerprintSynced.QueryRowContext(ctx, fingerprint))
	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("catalog: find synced chunk by fingerprint %q: %w", fingerprint, err)
	}

	return ch, nil
}

// MarkChunksSynced sets last_synced = now for the given chunk IDs, all
// belonging to fileID. Called after the remote service confirms receipt of
// the corresponding upload.
func (c *Catalog) MarkChunksSynced(ctx context.Context, fileID string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: mark chunks synced for file %q: begin tx: %w", fileID, err)
	}
	defer tx.Rollback()

	now := NowNano()
	stmt := tx.StmtContext(ctx, c.chunkStmts.markSynced)

	var missing []string

	for _, id := range chunkIDs {
		res, err := stmt.ExecContext(ctx, now, id, fileID)
		if err != nil {
			return fmt.Errorf("catalog: mark chunk %q synced: %w", id, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("catalog: mark chunk %q synced: %w", id, err)
		}

		if n == 0 {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("catalog: chunks %s of file %q: %w", strings.Join(missing, ","), fileID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: mark chunks synced for file %q: commit: %w", fileID, err)
	}

	return nil
}
