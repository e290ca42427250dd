package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dropsync/dropsync/internal/syncengine"
)

func newSyncCmd() *cobra.Command {
	var flagWatch, flagSignal bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a one-shot reconciliation pass against the sync directory",
		Long: `Scan the sync directory for changes against the local catalog, upload
new and modified files, and confirm remote deletes — then exit.

Use --watch to keep running and react to filesystem events continuously,
equivalent to "dropsync serve" without the local HTTP API. Use --signal
to instead ask an already-running "dropsync serve" process to rescan
immediately, via SIGHUP, rather than running a scan in this process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if flagSignal {
				return signalRunningDaemon(cc)
			}

			return runSync(cmd.Context(), flagWatch)
		},
	}

	cmd.Flags().BoolVar(&flagWatch, "watch", false, "keep running and react to changes continuously")
	cmd.Flags().BoolVar(&flagSignal, "signal", false, "ask a running \"dropsync serve\" to rescan via SIGHUP, instead of scanning here")

	cmd.MarkFlagsMutuallyExclusive("watch", "signal")

	return cmd
}

// signalRunningDaemon sends SIGHUP to an already-running "dropsync serve"
// process, identified by the PID file next to the catalog database.
// Returns an error if no daemon is running (no PID file, or a stale one);
// no scan is run in this process in that case.
func signalRunningDaemon(cc *CLIContext) error {
	if err := sendSIGHUP(pidFilePath(cc.Cfg)); err != nil {
		return fmt.Errorf("signaling running daemon: %w", err)
	}

	cc.Statusf("Notified running daemon to rescan\n")

	return nil
}

func runSync(ctx context.Context, watch bool) error {
	cc := mustCLIContext(ctx)

	we, err := buildEngine(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer we.Close()

	if watch {
		runCtx := shutdownContext(ctx, cc.Logger)
		return we.engine.Run(runCtx)
	}

	summary, err := we.engine.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if cc.Flags.JSON {
		return printSyncJSON(summary)
	}

	printSyncText(cc, summary)

	return nil
}

func printSyncText(cc *CLIContext, summary syncengine.RunSummary) {
	if summary.Total() == 0 {
		cc.Statusf("Already in sync.\n")
		return
	}

	cc.Statusf("Sync complete\n")

	if summary.Created > 0 {
		cc.Statusf("  Created:  %d\n", summary.Created)
	}

	if summary.Modified > 0 {
		cc.Statusf("  Modified: %d\n", summary.Modified)
	}

	if summary.Renamed > 0 {
		cc.Statusf("  Renamed:  %d\n", summary.Renamed)
	}

	if summary.Deleted > 0 {
		cc.Statusf("  Deleted:  %d\n", summary.Deleted)
	}
}

func printSyncJSON(summary syncengine.RunSummary) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(summary)
}
