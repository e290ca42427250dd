package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dropsync/dropsync/internal/idgen"
)

func (c *Catalog) prepareFileStmts(ctx context.Context) error {
	return prepareAll(ctx, c.db, []stmtDef{
		{&c.fileStmts.get, `SELECT file_id, file_name, file_path, folder_id, file_type, file_hash, created_at, updated_at
			FROM files WHERE file_id = ?`, "file.get"},
		{&c.fileStmts.getByPath, `SELECT file_id, file_name, file_path, folder_id, file_type, file_hash, created_at, updated_at
			FROM files WHERE file_path = ?`, "file.getByPath"},
		{&c.fileStmts.insert, `INSERT INTO files
			(file_id, file_name, file_path, folder_id, file_type, file_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, "file.insert"},
		{&c.fileStmts.update, `UPDATE files SET file_name = ?, file_path = ?, folder_id = ?, updated_at = ?
			WHERE file_id = ?`, "file.update"},
		{&c.fileStmts.delete, `DELETE FROM files WHERE file_id = ?`, "file.delete"},
		{&c.fileStmts.listByFolder, `SELECT file_id, file_name, file_path, folder_id, file_type, file_hash, created_at, updated_at
			FROM files WHERE folder_id = ? ORDER BY file_path`, "file.listByFolder"},
		{&c.fileStmts.listAll, `SELECT file_id, file_name, file_path, folder_id, file_type, file_hash, created_at, updated_at
			FROM files ORDER BY file_path`, "file.listAll"},
	})
}

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	var f File

	if err := row.Scan(&f.FileID, &f.FileName, &f.FilePath, &f.FolderID, &f.FileType, &f.FileHash,
		&f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}

	return &f, nil
}

func scanFileRows(rows *sql.Rows) ([]*File, error) {
	defer rows.Close()

	var out []*File

	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, f)
	}

	return out, rows.Err()
}

// InsertFile creates a new file record with a freshly minted FileID, plus
// its chunk rows, in a single transaction. hash is the whole-file SHA-256
// fingerprint; chunks must already carry ascending, contiguous PartNumber
// values starting at 1.
func (c *Catalog) InsertFile(ctx context.Context, folderID, path, name, fileType, hash string, chunks []*Chunk) (string, error) {
	return c.InsertFileWithID(ctx, idgen.New(), folderID, path, name, fileType, hash, chunks)
}

// InsertFileWithID is InsertFile with a caller-supplied FileID, used when the
// remote files service has already issued the authoritative file_id during
// Prepare and the client must adopt it rather than mint its own.
func (c *Catalog) InsertFileWithID(
	ctx context.Context, fileID, folderID, path, name, fileType, hash string, chunks []*Chunk,
) (string, error) {
	now := NowNano()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("catalog: insert file %q: begin tx: %w", path, err)
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, c.fileStmts.insert).ExecContext(ctx,
		fileID, name, path, folderID, fileType, hash, now, now); err != nil {
		if isUniqueConstraintErr(err) {
			return "", fmt.Errorf("catalog: file path %q: %w", path, ErrDuplicatePath)
		}

		if isForeignKeyConstraintErr(err) {
			return "", fmt.Errorf("catalog: file %q folder %q: %w", path, folderID, ErrConsistencyViolation)
		}

		return "", fmt.Errorf("catalog: insert file %q: %w", path, err)
	}

	if err := insertChunksTx(ctx, tx, c.chunkStmts.insert, fileID, chunks); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("catalog: insert file %q: commit: %w", path, err)
	}

	return fileID, nil
}

func insertChunksTx(ctx context.Context, tx *sql.Tx, insertStmt *sql.Stmt, fileID string, chunks []*Chunk) error {
	stmt := tx.StmtContext(ctx, insertStmt)

	for _, ch := range chunks {
		if ch.ChunkID == "" {
			ch.ChunkID = idgen.New()
		}

		ch.FileID = fileID

		if ch.CreatedAt == 0 {
			ch.CreatedAt = NowNano()
		}

		if _, err := stmt.ExecContext(ctx, ch.ChunkID, ch.FileID, ch.PartNumber, ch.Fingerprint, ch.CreatedAt, ch.LastSynced); err != nil {
			return fmt.Errorf("catalog: insert chunk %d of file %q: %w", ch.PartNumber, fileID, err)
		}
	}

	return nil
}

// ReplaceFileContent atomically supersedes the file identified by oldFileID
// with a new content version: a new file row (sharing path/name/folder) and
// its chunk rows are inserted, and the superseded row is deleted, inside one
// transaction. Returns the new file_id.
func (c *Catalog) ReplaceFileContent(ctx context.Context, oldFileID, newHash, newFileType string, chunks []*Chunk) (string, error) {
	return c.ReplaceFileContentWithID(ctx, idgen.New(), oldFileID, newHash, newFileType, chunks)
}

// ReplaceFileContentWithID is ReplaceFileContent with a caller-supplied
// FileID for the new version, used when the remote files service has
// already issued the authoritative file_id during Prepare.
func (c *Catalog) ReplaceFileContentWithID(
	ctx context.Context, newFileID, oldFileID, newHash, newFileType string, chunks []*Chunk,
) (string, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("catalog: replace file content %q: begin tx: %w", oldFileID, err)
	}
	defer tx.Rollback()

	old, err := scanFile(tx.StmtContext(ctx, c.fileStmts.get).QueryRowContext(ctx, oldFileID))
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("catalog: file %q: %w", oldFileID, ErrNotFound)
	}

	if err != nil {
		return "", fmt.Errorf("catalog: replace file content %q: %w", oldFileID, err)
	}

	if _, err := tx.StmtContext(ctx, c.fileStmts.delete).ExecContext(ctx, oldFileID); err != nil {
		return "", fmt.Errorf("catalog: retire file %q: %w", oldFileID, err)
	}

	now := NowNano()

	if _, err := tx.StmtContext(ctx, c.fileStmts.insert).ExecContext(ctx,
		newFileID, old.FileName, old.FilePath, old.FolderID, newFileType, newHash, old.CreatedAt, now); err != nil {
		return "", fmt.Errorf("catalog: replace file content %q: insert new version: %w", oldFileID, err)
	}

	if err := insertChunksTx(ctx, tx, c.chunkStmts.insert, newFileID, chunks); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("catalog: replace file content %q: commit: %w", oldFileID, err)
	}

	return newFileID, nil
}

// QueryFileByPath returns the file at path, or ErrNotFound if absent.
func (c *Catalog) QueryFileByPath(ctx context.Context, path string) (*File, error) {
	f, err := scanFile(c.fileStmts.getByPath.QueryRowContext(ctx, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: file path %q: %w", path, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("catalog: query file by path %q: %w", path, err)
	}

	return f, nil
}

// GetFile returns the file identified by fileID, or ErrNotFound if absent.
func (c *Catalog) GetFile(ctx context.Context, fileID string) (*File, error) {
	f, err := scanFile(c.fileStmts.get.QueryRowContext(ctx, fileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: file %q: %w", fileID, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("catalog: get file %q: %w", fileID, err)
	}

	return f, nil
}

// ListFilesInFolder returns the files directly contained in folderID,
// ordered by path.
func (c *Catalog) ListFilesInFolder(ctx context.Context, folderID string) ([]*File, error) {
	rows, err := c.fileStmts.listByFolder.QueryContext(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list files in folder %q: %w", folderID, err)
	}

	return scanFileRows(rows)
}

// ListAllFiles returns every file in the catalog, ordered by path.
func (c *Catalog) ListAllFiles(ctx context.Context) ([]*File, error) {
	rows, err := c.fileStmts.listAll.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list all files: %w", err)
	}

	return scanFileRows(rows)
}

// ListAllFilePaths returns the set of tracked file paths. Satisfies
// watcher.CatalogView.
func (c *Catalog) ListAllFilePaths(ctx context.Context) (map[string]bool, error) {
	files, err := c.ListAllFiles(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(files))

	for _, f := range files {
		out[f.FilePath] = true
	}

	return out, nil
}

// DeleteByPath removes the file or folder subtree rooted at path. Folder
// deletes cascade: every descendant folder and file is removed, leaves
// first, inside one transaction. Chunk rows are removed automatically via
// ON DELETE CASCADE from the files table.
func (c *Catalog) DeleteByPath(ctx context.Context, path string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: delete %q: begin tx: %w", path, err)
	}
	defer tx.Rollback()

	if f, err := scanFile(tx.StmtContext(ctx, c.fileStmts.getByPath).QueryRowContext(ctx, path)); err == nil {
		if _, err := tx.StmtContext(ctx, c.fileStmts.delete).ExecContext(ctx, f.FileID); err != nil {
			return fmt.Errorf("catalog: delete file %q: %w", path, err)
		}

		return tx.Commit()
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("catalog: delete %q: %w", path, err)
	}

	folder, err := scanFolder(tx.StmtContext(ctx, c.folderStmts.getByPath).QueryRowContext(ctx, path))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("catalog: %q: %w", path, ErrNotFound)
	}

	if err != nil {
		return fmt.Errorf("catalog: delete %q: %w", path, err)
	}

	if err := deleteFolderSubtreeTx(ctx, tx, c, folder); err != nil {
		return fmt.Errorf("catalog: delete %q: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: delete %q: commit: %w", path, err)
	}

	return nil
}

// deleteFolderSubtreeTx removes folder and all its descendants, files first
// then folders leaf-to-root, so no foreign key ever dangles mid-transaction.
func deleteFolderSubtreeTx(ctx context.Context, tx *sql.Tx, c *Catalog, folder *Folder) error {
	childRows, err := tx.StmtContext(ctx, c.folderStmts.listChildren).QueryContext(ctx, folder.FolderID)
	if err != nil {
		return err
	}

	children, err := scanFolderRows(childRows)
	if err != nil {
		return err
	}

	for _, child := range children {
		if err := deleteFolderSubtreeTx(ctx, tx, c, child); err != nil {
			return err
		}
	}

	fileRows, err := tx.StmtContext(ctx, c.fileStmts.listByFolder).QueryContext(ctx, folder.FolderID)
	if err != nil {
		return err
	}

	files, err := scanFileRows(fileRows)
	if err != nil {
		return err
	}

	for _, f := range files {
		if _, err := tx.StmtContext(ctx, c.fileStmts.delete).ExecContext(ctx, f.FileID); err != nil {
			return err
		}
	}

	if _, err := tx.StmtContext(ctx, c.folderStmts.delete).ExecContext(ctx, folder.FolderID); err != nil {
		return err
	}

	return nil
}

// RenameOrMove rewrites file_path or folder_path (and, for folders, every
// descendant's path) from oldPath to newPath in a single transaction,
// preserving file_id/chunk rows. Grounded in the teacher's
// CascadePathUpdate prefix-rewrite pattern.
func (c *Catalog) RenameOrMove(ctx context.Context, oldPath, newPath string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: rename %q -> %q: begin tx: %w", oldPath, newPath, err)
	}
	defer tx.Rollback()

	if f, err := scanFile(tx.StmtContext(ctx, c.fileStmts.getByPath).QueryRowContext(ctx, oldPath)); err == nil {
		newFolderID := f.FolderID

		if parentPath, name := splitParentPath(newPath); parentPath != "" {
			if parent, perr := scanFolder(tx.StmtContext(ctx, c.folderStmts.getByPath).QueryRowContext(ctx, parentPath)); perr == nil {
				newFolderID = parent.FolderID
			} else if !errors.Is(perr, sql.ErrNoRows) {
				return fmt.Errorf("catalog: rename %q -> %q: %w", oldPath, newPath, perr)
			} else {
				return fmt.Errorf("catalog: rename %q -> %q: destination folder %q: %w", oldPath, newPath, parentPath, ErrNotFound)
			}

			_ = name
		}

		now := NowNano()

		if _, err := tx.StmtContext(ctx, c.fileStmts.update).ExecContext(ctx,
			fileNameFromPath(newPath), newPath, newFolderID, now, f.FileID); err != nil {
			if isUniqueConstraintErr(err) {
				return fmt.Errorf("catalog: rename %q -> %q: %w", oldPath, newPath, ErrDuplicatePath)
			}

			return fmt.Errorf("catalog: rename %q -> %q: %w", oldPath, newPath, err)
		}

		return tx.Commit()
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("catalog: rename %q -> %q: %w", oldPath, newPath, err)
	}

	folder, err := scanFolder(tx.StmtContext(ctx, c.folderStmts.getByPath).QueryRowContext(ctx, oldPath))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("catalog: rename %q -> %q: %w", oldPath, newPath, ErrNotFound)
	}

	if err != nil {
		return fmt.Errorf("catalog: rename %q -> %q: %w", oldPath, newPath, err)
	}

	newParentFolderID := folder.ParentFolderID

	if parentPath, _ := splitParentPath(newPath); parentPath != "" {
		parent, perr := scanFolder(tx.StmtContext(ctx, c.folderStmts.getByPath).QueryRowContext(ctx, parentPath))
		if perr == nil {
			newParentFolderID = parent.FolderID
		} else if !errors.Is(perr, sql.ErrNoRows) {
			return fmt.Errorf("catalog: rename %q -> %q: %w", oldPath, newPath, perr)
		} else {
			return fmt.Errorf("catalog: rename %q -> %q: destination folder %q: %w", oldPath, newPath, parentPath, ErrNotFound)
		}
	}

	if err := cascadeRenameFolderTx(ctx, tx, c, folder, oldPath, newPath, newParentFolderID); err != nil {
		return fmt.Errorf("catalog: rename %q -> %q: %w", oldPath, newPath, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: rename %q -> %q: commit: %w", oldPath, newPath, err)
	}

	return nil
}

// cascadeRenameFolderTx rewrites folder.folder_path (and its name), then
// every descendant folder's and file's path, replacing the oldPath prefix
// with newPath — the SUBSTR-rewrite idea generalized to Go-side string
// replacement since paths are handled in application code, not SQL, in this
// catalog. parentFolderID is folder's own new parent (recomputed by the
// caller from newPath's directory when the move changes it); descendants
// keep their existing parent_folder_id, since renaming/moving folder never
// changes which folder is the immediate parent of its children.
func cascadeRenameFolderTx(ctx context.Context, tx *sql.Tx, c *Catalog, folder *Folder, oldPath, newPath, parentFolderID string) error {
	now := NowNano()

	if _, err := tx.StmtContext(ctx, c.folderStmts.update).ExecContext(ctx,
		fileNameFromPath(newPath), newPath, parentFolderID, now, folder.FolderID); err != nil {
		if isUniqueConstraintErr(err) {
			return ErrDuplicatePath
		}

		return err
	}

	childRows, err := tx.StmtContext(ctx, c.folderStmts.listChildren).QueryContext(ctx, folder.FolderID)
	if err != nil {
		return err
	}

	children, err := scanFolderRows(childRows)
	if err != nil {
		return err
	}

	for _, child := range children {
		childNewPath := newPath + child.FolderPath[len(oldPath):]

		if err := cascadeRenameFolderTx(ctx, tx, c, child, child.FolderPath, childNewPath, child.ParentFolderID); err != nil {
			return err
		}
	}

	fileRows, err := tx.StmtContext(ctx, c.fileStmts.listByFolder).QueryContext(ctx, folder.FolderID)
	if err != nil {
		return err
	}

	files, err := scanFileRows(fileRows)
	if err != nil {
		return err
	}

	for _, f := range files {
		fileNewPath := newPath + f.FilePath[len(oldPath):]

		if _, err := tx.StmtContext(ctx, c.fileStmts.update).ExecContext(ctx,
			fileNameFromPath(fileNewPath), fileNewPath, f.FolderID, now, f.FileID); err != nil {
			return err
		}
	}

	return nil
}

func splitParentPath(path string) (parent, name string) {
	idx := -1

	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			idx = i
			break
		}
	}

	if idx <= 0 {
		return "", path
	}

	return path[:idx], path[idx+1:]
}

func fileNameFromPath(path string) string {
	_, name := splitParentPath(path)
	return name
}
