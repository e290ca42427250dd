// Package catalog implements the embedded transactional store holding
// folders, files, and chunks — the client-local metadata catalog described
// by the synchronization engine's data model.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"
)

// walJournalSizeLimit bounds the WAL file before a checkpoint is forced.
const walJournalSizeLimit = 67108864 // 64 MiB

// NowNano returns the current time as Unix nanoseconds, the catalog's
// timestamp representation for created_at/updated_at/last_synced.
func NowNano() int64 {
	return time.Now().UnixNano()
}

// Catalog is the embedded SQLite-backed metadata store. All mutating
// operations are serializable; SQLite's WAL mode allows concurrent readers
// during a writer without deadlock.
type Catalog struct {
	db     *sql.DB
	logger *slog.Logger

	folderStmts folderStatements
	fileStmts   fileStatements
	chunkStmts  chunkStatements
}

type folderStatements struct {
	get, getByPath, insert, update, delete, listChildren, listAll *sql.Stmt
}

type fileStatements struct {
	get, getByPath, insert, update, delete, listByFolder, listAll *sql.Stmt
}

type chunkStatements struct {
	insert, listForFile, markSynced, getByFingerprintSynced *sql.Stmt
}

// Open creates a Catalog backed by the SQLite database at dbPath, applying
// migrations and preparing all repeated statements. Use ":memory:" for
// tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening catalog database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: open sqlite: %w", err)
	}

	if err := setPragmas(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	c := &Catalog{db: db, logger: logger}

	if err := c.prepareAllStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: prepare statements: %w", err)
	}

	if err := c.ensureRootFolder(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("catalog ready", slog.String("path", dbPath))

	return c, nil
}

func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("catalog: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", slog.String("pragma", p.desc))
	}

	return nil
}

type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

func prepareAll(ctx context.Context, db *sql.DB, defs []stmtDef) error {
	for i := range defs {
		stmt, err := db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

func (c *Catalog) prepareAllStatements(ctx context.Context) error {
	if err := c.prepareFolderStmts(ctx); err != nil {
		return err
	}

	if err := c.prepareFileStmts(ctx); err != nil {
		return err
	}

	return c.prepareChunkStmts(ctx)
}

// Checkpoint forces a WAL checkpoint, consolidating the WAL file into the
// main database file.
func (c *Catalog) Checkpoint(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("catalog: wal checkpoint: %w", err)
	}

	return nil
}

// Close closes all prepared statements and the underlying database
// connection.
func (c *Catalog) Close() error {
	c.logger.Info("closing catalog database")

	stmts := []*sql.Stmt{
		c.folderStmts.get, c.folderStmts.getByPath, c.folderStmts.insert,
		c.folderStmts.update, c.folderStmts.delete, c.folderStmts.listChildren,
		c.folderStmts.listAll,
		c.fileStmts.get, c.fileStmts.getByPath, c.fileStmts.insert,
		c.fileStmts.update, c.fileStmts.delete, c.fileStmts.listByFolder,
		c.fileStmts.listAll,
		c.chunkStmts.insert, c.chunkStmts.listForFile, c.chunkStmts.markSynced,
		c.chunkStmts.getByFingerprintSynced,
	}

	for _, stmt := range stmts {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				c.logger.Warn("error closing statement", slog.String("error", err.Error()))
			}
		}
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog: close database: %w", err)
	}

	return nil
}
