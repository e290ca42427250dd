package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dropsync/dropsync/internal/idgen"
)

// RootFolderID identifies the materialized row standing in for the sync
// root itself. File.folder_id is required by the schema (a NOT NULL foreign
// key), so files living directly at the sync root reference this row rather
// than leaving folder_id empty.
const RootFolderID = "00000000-0000-0000-0000-000000000000"

// ensureRootFolder materializes the sync-root folder row if it does not
// already exist. Idempotent; safe to call on every Open.
func (c *Catalog) ensureRootFolder(ctx context.Context) error {
	_, err := c.GetFolder(ctx, RootFolderID)
	if err == nil {
		return nil
	}

	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("catalog: ensure root folder: %w", err)
	}

	return c.UpsertFolder(ctx, &Folder{
		FolderID:   RootFolderID,
		FolderName: "",
		FolderPath: "",
	})
}

func (c *Catalog) prepareFolderStmts(ctx context.Context) error {
	return prepareAll(ctx, c.db, []stmtDef{
		{&c.folderStmts.get, `SELECT folder_id, folder_name, folder_path, parent_folder_id, created_at, updated_at
			FROM folders WHERE folder_id = ?`, "folder.get"},
		{&c.folderStmts.getByPath, `SELECT folder_id, folder_name, folder_path, parent_folder_id, created_at, updated_at
			FROM folders WHERE folder_path = ?`, "folder.getByPath"},
		{&c.folderStmts.insert, `INSERT INTO folders
			(folder_id, folder_name, folder_path, parent_folder_id, created_at, updated_at)
			VALUES (?, ?, ?, NULLIF(?, ''), ?, ?)`, "folder.insert"},
		{&c.folderStmts.update, `UPDATE folders SET folder_name = ?, folder_path = ?,
			parent_folder_id = NULLIF(?, ''), updated_at = ? WHERE folder_id = ?`, "folder.update"},
		{&c.folderStmts.delete, `DELETE FROM folders WHERE folder_id = ?`, "folder.delete"},
		{&c.folderStmts.listChildren, `SELECT folder_id, folder_name, folder_path, parent_folder_id, created_at, updated_at
			FROM folders WHERE parent_folder_id = ? ORDER BY folder_path`, "folder.listChildren"},
		{&c.folderStmts.listAll, `SELECT folder_id, folder_name, folder_path, parent_folder_id, created_at, updated_at
			FROM folders ORDER BY folder_path`, "folder.listAll"},
	})
}

func scanFolder(row interface{ Scan(...any) error }) (*Folder, error) {
	var f Folder
	var parentID sql.NullString

	if err := row.Scan(&f.FolderID, &f.FolderName, &f.FolderPath, &parentID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}

	f.ParentFolderID = parentID.String

	return &f, nil
}

func scanFolderRows(rows *sql.Rows) ([]*Folder, error) {
	defer rows.Close()

	var out []*Folder

	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, f)
	}

	return out, rows.Err()
}

// UpsertFolder inserts a new folder or updates an existing one identified by
// FolderID. The caller supplies FolderID (typically a freshly minted UUID
// for creates). folder_path must be unique across the catalog.
func (c *Catalog) UpsertFolder(ctx context.Context, f *Folder) error {
	existing, err := c.GetFolder(ctx, f.FolderID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	now := NowNano()

	if existing == nil {
		if f.CreatedAt == 0 {
			f.CreatedAt = now
		}
		f.UpdatedAt = now

		_, err := c.folderStmts.insert.ExecContext(ctx, f.FolderID, f.FolderName, f.FolderPath,
			f.ParentFolderID, f.CreatedAt, f.UpdatedAt)
		if err != nil {
			if isUniqueConstraintErr(err) {
				return fmt.Errorf("catalog: folder path %q: %w", f.FolderPath, ErrDuplicatePath)
			}

			if isForeignKeyConstraintErr(err) {
				return fmt.Errorf("catalog: folder %q parent %q: %w", f.FolderID, f.ParentFolderID, ErrConsistencyViolation)
			}

			return fmt.Errorf("catalog: insert folder %q: %w", f.FolderID, err)
		}

		return nil
	}

	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = now

	_, err = c.folderStmts.update.ExecContext(ctx, f.FolderName, f.FolderPath, f.ParentFolderID, f.UpdatedAt, f.FolderID)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("catalog: folder path %q: %w", f.FolderPath, ErrDuplicatePath)
		}

		if isForeignKeyConstraintErr(err) {
			return fmt.Errorf("catalog: folder %q parent %q: %w", f.FolderID, f.ParentFolderID, ErrConsistencyViolation)
		}

		return fmt.Errorf("catalog: update folder %q: %w", f.FolderID, err)
	}

	return nil
}

// GetFolder looks up a folder by ID, returning ErrNotFound if absent.
func (c *Catalog) GetFolder(ctx context.Context, folderID string) (*Folder, error) {
	f, err := scanFolder(c.folderStmts.get.QueryRowContext(ctx, folderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: folder %q: %w", folderID, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("catalog: get folder %q: %w", folderID, err)
	}

	return f, nil
}

// GetFolderByPath looks up a folder by its canonical path, returning
// ErrNotFound if absent.
func (c *Catalog) GetFolderByPath(ctx context.Context, path string) (*Folder, error) {
	f, err := scanFolder(c.folderStmts.getByPath.QueryRowContext(ctx, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: folder path %q: %w", path, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("catalog: get folder by path %q: %w", path, err)
	}

	return f, nil
}

// ListChildFolders returns the direct subfolders of parentFolderID, ordered
// by path. Top-level folders are the children of RootFolderID; an empty
// parentFolderID matches no folders.
func (c *Catalog) ListChildFolders(ctx context.Context, parentFolderID string) ([]*Folder, error) {
	rows, err := c.folderStmts.listChildren.QueryContext(ctx, parentFolderID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list child folders of %q: %w", parentFolderID, err)
	}

	return scanFolderRows(rows)
}

// ListAllFolders returns every folder in the catalog, ordered by path.
func (c *Catalog) ListAllFolders(ctx context.Context) ([]*Folder, error) {
	rows, err := c.folderStmts.listAll.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list all folders: %w", err)
	}

	return scanFolderRows(rows)
}

// ListAllFolderPaths returns the set of tracked folder paths, excluding the
// materialized sync-root row. Satisfies watcher.CatalogView.
func (c *Catalog) ListAllFolderPaths(ctx context.Context) (map[string]bool, error) {
	folders, err := c.ListAllFolders(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(folders))

	for _, f := range folders {
		if f.FolderID == RootFolderID {
			continue
		}

		out[f.FolderPath] = true
	}

	return out, nil
}

// DeleteFolder removes a folder by ID. The schema does not cascade folder
// deletes onto child folders or files; callers must remove descendants
// first, leaf-first, to respect the foreign key constraint.
func (c *Catalog) DeleteFolder(ctx context.Context, folderID string) error {
	res, err := c.folderStmts.delete.ExecContext(ctx, folderID)
	if err != nil {
		if isForeignKeyConstraintErr(err) {
			return fmt.Errorf("catalog: folder %q has descendants: %w", folderID, ErrConsistencyViolation)
		}

		return fmt.Errorf("catalog: delete folder %q: %w", folderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: delete folder %q: %w", folderID, err)
	}

	if n == 0 {
		return fmt.Errorf("catalog: folder %q: %w", folderID, ErrNotFound)
	}

	return nil
}

// EnsureFolderPath walks path component by component, creating any missing
// ancestor folders, and returns the leaf folder — mirroring the teacher's
// MaterializePath parent-first walk. An empty path returns the materialized
// sync-root folder (RootFolderID).
func (c *Catalog) EnsureFolderPath(ctx context.Context, path string) (*Folder, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return c.GetFolder(ctx, RootFolderID)
	}

	segments := strings.Split(path, "/")

	parentID := RootFolderID
	var built strings.Builder
	var leaf *Folder

	for _, seg := range segments {
		if built.Len() > 0 {
			built.WriteByte('/')
		}
		built.WriteString(seg)

		current := built.String()

		existing, err := c.GetFolderByPath(ctx, current)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("catalog: ensure folder path %q: %w", path, err)
		}

		if existing != nil {
			leaf = existing
			parentID = existing.FolderID

			continue
		}

		f := &Folder{
			FolderID:       idgen.New(),
			FolderName:     seg,
			FolderPath:     current,
			ParentFolderID: parentID,
		}

		if err := c.UpsertFolder(ctx, f); err != nil {
			return nil, fmt.Errorf("catalog: ensure folder path %q: %w", path, err)
		}

		leaf = f
		parentID = f.FolderID
	}

	return leaf, nil
}
