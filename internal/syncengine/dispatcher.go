package syncengine

import (
	"context"
	"log/slog"

	"github.com/uplo-tech/threadgroup"
	"golang.org/x/sync/errgroup"

	"github.com/dropsync/dropsync/internal/catalog"
	"github.com/dropsync/dropsync/internal/watcher"
)

// Dispatcher is the sync engine's single coordinating goroutine: it drains
// batches of watcher events, resolves per-path locks, and hands each event
// to the Executor on a bounded worker pool. Grounded in the teacher's
// planner/executor split, simplified from a dependency-graph dispatch to
// per-path mutual exclusion since this engine has no bidirectional diffing
// to order.
type Dispatcher struct {
	exec   *Executor
	cat    *catalog.Catalog
	locker *pathLocker
	safety SafetyConfig
	logger *slog.Logger

	concurrency int

	tg threadgroup.ThreadGroup
}

// NewDispatcher constructs a Dispatcher. concurrency bounds the number of
// per-path tasks running at once; 0 uses defaultDispatchConcurrency.
func NewDispatcher(exec *Executor, cat *catalog.Catalog, safety SafetyConfig, concurrency int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}

	return &Dispatcher{
		exec:        exec,
		cat:         cat,
		locker:      newPathLocker(),
		safety:      safety,
		logger:      logger,
		concurrency: concurrency,
	}
}

const defaultDispatchConcurrency = 8

// Run drains events until the channel closes or ctx is canceled, returning
// once every dispatched task has finished (or been abandoned on shutdown).
func (d *Dispatcher) Run(ctx context.Context, events <-chan []watcher.Event) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()

		case batch, ok := <-events:
			if !ok {
				return g.Wait()
			}

			if err := d.checkBatchSafety(gctx, batch); err != nil {
				d.logger.Error("batch rejected by safety check", slog.String("error", err.Error()))
				continue
			}

			for _, ev := range batch {
				ev := ev

				if err := d.tg.Add(); err != nil {
					// Stop has been called; drop remaining events, the next
					// startup rescan will pick up anything unsynced.
					continue
				}

				g.Go(func() error {
					defer d.tg.Done()

					d.dispatchOne(gctx, ev)

					return nil
				})
			}
		}
	}
}

// dispatchOne serializes access to ev's path (and, for renames, its source
// path too) and runs the executor, logging but not propagating failures so
// one file's error never halts the dispatcher.
func (d *Dispatcher) dispatchOne(ctx context.Context, ev watcher.Event) {
	unlock := d.locker.lock(ev.Path)
	defer unlock()

	if ev.Type == watcher.Renamed && ev.OldPath != "" && ev.OldPath != ev.Path {
		unlockOld := d.locker.lock(ev.OldPath)
		defer unlockOld()
	}

	if err := d.exec.HandleEvent(ctx, ev); err != nil {
		d.logger.Error("event handling failed, will retry on next event or rescan",
			slog.String("type", ev.Type.String()),
			slog.String("path", ev.Path),
			slog.String("error", err.Error()),
		)
	}
}

// checkBatchSafety halts processing of a batch whose Deleted events would
// remove an outsized fraction of the tracked tree, per the big-delete
// protection guard.
func (d *Dispatcher) checkBatchSafety(ctx context.Context, batch []watcher.Event) error {
	deleteCount := 0

	for _, ev := range batch {
		if ev.Type == watcher.Deleted {
			deleteCount++
		}
	}

	if deleteCount == 0 {
		return nil
	}

	filePaths, err := d.cat.ListAllFilePaths(ctx)
	if err != nil {
		return err
	}

	folderPaths, err := d.cat.ListAllFolderPaths(ctx)
	if err != nil {
		return err
	}

	catalogCount := len(filePaths) + len(folderPaths)

	if checkBigDelete(deleteCount, catalogCount, &d.safety) {
		return ErrBigDeleteTriggered
	}

	return nil
}

// Stop signals in-flight tasks to wind down and blocks until they finish.
func (d *Dispatcher) Stop() error {
	return d.tg.Stop()
}
