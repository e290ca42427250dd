// Package syncengine is the long-running coordinator that consumes batches
// of watcher events, computes a plan for each, and executes it against the
// catalog and the remote files service.
package syncengine

import "errors"

// ErrBigDeleteTriggered indicates that a batch of events would delete more
// catalog entries than the configured safety thresholds allow. The batch is
// rejected and logged rather than executed.
var ErrBigDeleteTriggered = errors.New("syncengine: big-delete protection triggered")
