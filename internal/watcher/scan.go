package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// CatalogView is the read surface InitialScan needs from the catalog. It is
// satisfied by *catalog.Catalog; declared here to avoid this package
// depending on the catalog's write surface.
type CatalogView interface {
	ListAllFilePaths(ctx context.Context) (map[string]bool, error)
	ListAllFolderPaths(ctx context.Context) (map[string]bool, error)
}

// InitialScan walks syncRoot and diffs it against the catalog's current
// listing: filesystem entries absent from the catalog produce Created
// events, catalog entries with no matching filesystem path produce Deleted
// events. Used both on startup and whenever the watcher transitions to
// RescanRequired.
func InitialScan(ctx context.Context, syncRoot string, cat CatalogView, logger *slog.Logger) ([]Event, error) {
	knownFiles, err := cat.ListAllFilePaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("watcher: initial scan: listing catalog files: %w", err)
	}

	knownFolders, err := cat.ListAllFolderPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("watcher: initial scan: listing catalog folders: %w", err)
	}

	observedFiles := make(map[string]bool)
	observedFolders := make(map[string]bool)

	var events []Event

	walkFn := func(fsPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Warn("walk error during initial scan", slog.String("path", fsPath), slog.String("error", walkErr.Error()))
			return skipEntry(d)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if fsPath == syncRoot {
			return nil
		}

		relPath, err := filepath.Rel(syncRoot, fsPath)
		if err != nil {
			return fmt.Errorf("watcher: relative path for %s: %w", fsPath, err)
		}

		relPath = normalizePath(filepath.ToSlash(relPath))
		name := normalizePath(d.Name())

		if d.Type()&fs.ModeSymlink != 0 {
			return skipEntry(d)
		}

		if isExcluded(name) {
			return skipEntry(d)
		}

		if d.IsDir() {
			observedFolders[relPath] = true

			if !knownFolders[relPath] {
				events = append(events, Event{Type: Created, Path: relPath, IsDir: true})
			}

			return nil
		}

		observedFiles[relPath] = true

		if !knownFiles[relPath] {
			events = append(events, Event{Type: Created, Path: relPath})
		}

		return nil
	}

	if err := filepath.WalkDir(syncRoot, walkFn); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("watcher: initial scan canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("watcher: walking %s: %w", syncRoot, err)
	}

	for p := range knownFiles {
		if !observedFiles[p] {
			events = append(events, Event{Type: Deleted, Path: p})
		}
	}

	for p := range knownFolders {
		if !observedFolders[p] {
			events = append(events, Event{Type: Deleted, Path: p, IsDir: true})
		}
	}

	logger.Info("initial scan complete",
		slog.Int("events", len(events)),
		slog.Int("observed_files", len(observedFiles)),
		slog.Int("observed_folders", len(observedFolders)),
	)

	return events, nil
}

func skipEntry(d fs.DirEntry) error {
	if d != nil && d.IsDir() {
		return filepath.SkipDir
	}

	return nil
}

// hashFile computes the SHA-256 content hash used for move-pairing. This is
// a cheap full read — acceptable here because pairing only needs it for
// freshly created or just-deleted small-to-medium files within a single
// debounce window; the chunker performs the authoritative hash later.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
