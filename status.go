package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dropsync/dropsync/internal/catalog"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog contents and pending-sync counts",
		Long: `Display a summary of the local catalog: how many files and folders are
tracked, and how many chunks are staged but not yet confirmed by the
remote files service.

Reads the catalog database directly — does not contact the remote service
or require a running "dropsync serve" process.`,
		RunE: runStatus,
	}
}

// statusReport is the status command's JSON and text output shape.
type statusReport struct {
	SyncDir       string `json:"sync_dir"`
	DBPath        string `json:"db_path"`
	FolderCount   int    `json:"folder_count"`
	FileCount     int    `json:"file_count"`
	ChunkCount    int    `json:"chunk_count"`
	PendingChunks int    `json:"pending_chunks"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg, logger := cc.Cfg, cc.Logger

	ctx := cmd.Context()

	cat, err := catalog.Open(ctx, cfg.Storage.DBPath, logger)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer cat.Close()

	report, err := buildStatusReport(ctx, cat, cfg.Sync.SyncDir, cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}

	if cc.Flags.JSON {
		return printStatusJSON(report)
	}

	printStatusText(report)

	return nil
}

func buildStatusReport(ctx context.Context, cat *catalog.Catalog, syncDir, dbPath string) (*statusReport, error) {
	folders, err := cat.ListAllFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	files, err := cat.ListAllFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	chunkCount, pendingCount := 0, 0

	for _, f := range files {
		chunks, err := cat.QueryChunksForFile(ctx, f.FileID)
		if err != nil {
			return nil, fmt.Errorf("listing chunks for %q: %w", f.FilePath, err)
		}

		chunkCount += len(chunks)

		for _, c := range chunks {
			if !c.Synced() {
				pendingCount++
			}
		}
	}

	return &statusReport{
		SyncDir:       syncDir,
		DBPath:        dbPath,
		FolderCount:   len(folders),
		FileCount:     len(files),
		ChunkCount:    chunkCount,
		PendingChunks: pendingCount,
	}, nil
}

func printStatusJSON(report *statusReport) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

func printStatusText(report *statusReport) {
	fmt.Printf("Sync dir:  %s\n", report.SyncDir)
	fmt.Printf("Catalog:   %s\n", report.DBPath)
	fmt.Printf("Folders:   %d\n", report.FolderCount)
	fmt.Printf("Files:     %d\n", report.FileCount)
	fmt.Printf("Chunks:    %d (%d pending confirm)\n", report.ChunkCount, report.PendingChunks)
}
