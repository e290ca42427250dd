package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropsync/dropsync/internal/api"
)

const (
	serverReadHeaderTimeout = 10 * time.Second
	serverIdleTimeout       = 60 * time.Second
	serverShutdownTimeout   = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync engine continuously alongside the local HTTP API",
		Long: `Watch the sync directory for changes, dispatching uploads and downloads
as they happen, while serving the local HTTP API (file/folder listings and a
manual sync trigger) on the configured listen address.

Only one "dropsync serve" may run against a given catalog at a time — a PID
file under the catalog's directory enforces this. Send SIGHUP to a running
serve process to trigger an immediate rescan without waiting for the next
filesystem event.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cc := mustCLIContext(ctx)
	cfg, logger := cc.Cfg, cc.Logger

	cleanup, err := writePIDFile(pidFilePath(cfg))
	if err != nil {
		return fmt.Errorf("starting serve: %w", err)
	}
	defer cleanup()

	we, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer we.Close()

	runCtx := shutdownContext(ctx, logger)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.New(we.cat, we.files, rescanTrigger(runCtx, we, logger), logger),
		ReadHeaderTimeout: serverReadHeaderTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	notifyRescanOnSIGHUP(runCtx, we, logger)

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		logger.Info("local HTTP API listening", slog.String("addr", cfg.Server.ListenAddr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		return we.engine.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown did not complete cleanly", slog.String("error", err.Error()))
		}

		return nil
	})

	return g.Wait()
}

// rescanTrigger adapts Engine.Rescan to the api.RescanTrigger signature the
// local HTTP API's manual sync endpoint calls.
func rescanTrigger(ctx context.Context, we *wiredEngine, logger *slog.Logger) api.RescanTrigger {
	return func() error {
		logger.Info("manual rescan triggered via local HTTP API")
		return we.engine.Rescan(ctx)
	}
}

// notifyRescanOnSIGHUP spawns a goroutine that calls Engine.Rescan every
// time the process receives SIGHUP, until ctx is done. Mirrors the daemon's
// existing signal-driven control pattern (shutdownContext's SIGINT/SIGTERM
// handling) for an operator-triggered rescan that doesn't require the HTTP
// API to be reachable.
func notifyRescanOnSIGHUP(ctx context.Context, we *wiredEngine, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigCh)

		for {
			select {
			case <-sigCh:
				logger.Info("received SIGHUP, triggering rescan")

				if err := we.engine.Rescan(ctx); err != nil {
					logger.Warn("rescan failed", slog.String("error", err.Error()))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
