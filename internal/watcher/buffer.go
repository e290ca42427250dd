package watcher

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// pendingEvent is a raw Created/Modified/Deleted observation before the
// rename-pairing pass runs. contentHash is populated lazily (only computed
// for Created/Deleted entries, since pairing needs it) by the caller that
// owns filesystem access; the buffer itself never touches disk.
type pendingEvent struct {
	Event
	contentHash string
}

// buffer collects raw filesystem events and, per debounce window, pairs
// Deleted/Created pairs that share a content hash into a synthetic Renamed
// event before handing the batch to the caller. Grounded in the teacher's
// per-path event buffer, generalized from source-tagged grouping to
// content-hash move pairing.
type buffer struct {
	mu      sync.Mutex
	pending map[string]*pendingEvent // keyed by path
	notify  chan struct{}
	logger  *slog.Logger
}

func newBuffer(logger *slog.Logger) *buffer {
	return &buffer{
		pending: make(map[string]*pendingEvent),
		logger:  logger,
	}
}

// add records ev, superseding any earlier pending entry for the same path
// (only the latest observation within a debounce window matters: e.g. a
// rapid Created-then-Modified collapses to a single Created).
func (b *buffer) add(ev Event, contentHash string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.pending[ev.Path]
	if ok && existing.Type == Created && ev.Type == Modified {
		existing.contentHash = contentHash
	} else {
		b.pending[ev.Path] = &pendingEvent{Event: ev, contentHash: contentHash}
	}

	b.signalNew()
}

func (b *buffer) signalNew() {
	if b.notify == nil {
		return
	}

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// flush pairs Deleted/Created events sharing a content hash into Renamed
// events, sorts the result by path for deterministic downstream ordering,
// and clears the buffer.
func (b *buffer) flush() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil
	}

	result := pairRenames(b.pending)

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })

	b.pending = make(map[string]*pendingEvent)

	return result
}

// pairRenames implements the move-pairing heuristic: an unpaired Deleted at
// path A and a Created at path B carrying an identical content hash, both
// observed within the same debounce window, are merged into one Renamed
// event. Deletes and creates with no match pass through unpaired.
func pairRenames(pending map[string]*pendingEvent) []Event {
	var deletes, creates, rest []*pendingEvent

	for _, pe := range pending {
		switch {
		case pe.Type == Deleted && pe.contentHash != "":
			deletes = append(deletes, pe)
		case pe.Type == Created && pe.contentHash != "":
			creates = append(creates, pe)
		default:
			rest = append(rest, pe)
		}
	}

	usedCreate := make(map[int]bool)
	var out []Event

	for _, del := range deletes {
		paired := -1

		for i, cr := range creates {
			if usedCreate[i] {
				continue
			}

			if cr.contentHash == del.contentHash {
				paired = i
				break
			}
		}

		if paired >= 0 {
			usedCreate[paired] = true

			out = append(out, Event{
				Type:    Renamed,
				Path:    creates[paired].Path,
				OldPath: del.Path,
				IsDir:   del.IsDir,
			})

			continue
		}

		out = append(out, del.Event)
	}

	for i, cr := range creates {
		if !usedCreate[i] {
			out = append(out, cr.Event)
		}
	}

	for _, pe := range rest {
		out = append(out, pe.Event)
	}

	return out
}

// runDebounced drains buffered events into out every time debounce elapses
// with no new activity, until ctx is canceled, at which point any remaining
// events are flushed a final time and out is closed.
func (b *buffer) runDebounced(ctx context.Context, debounce time.Duration, out chan<- []Event) {
	defer close(out)

	b.mu.Lock()
	b.notify = make(chan struct{}, 1)
	b.mu.Unlock()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	active := false

	for {
		select {
		case <-ctx.Done():
			if batch := b.flush(); batch != nil {
				select {
				case out <- batch:
				default:
					b.logger.Warn("final drain discarded, output channel full", slog.Int("events", len(batch)))
				}
			}

			return

		case _, ok := <-b.notify:
			if !ok {
				return
			}

			if !timer.Stop() && active {
				<-timer.C
			}

			timer.Reset(debounce)
			active = true

		case <-timer.C:
			active = false

			if batch := b.flush(); batch != nil {
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
