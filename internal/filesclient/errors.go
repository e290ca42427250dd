// Package filesclient is a typed wrapper over the remote files service:
// POST /files, POST /files/confirm, POST /files/download, GET /health.
package filesclient

import (
	"errors"
	"fmt"
)

// ErrRemoteService wraps a {success:false, error_message} response or a
// non-2xx status that is not retryable or whose retries are exhausted.
var ErrRemoteService = errors.New("filesclient: remote service error")

// ErrTransport wraps a network-level failure (timeout, connection reset)
// that survived all retry attempts.
var ErrTransport = errors.New("filesclient: transport error")

// ServiceError carries the message_body and status code of a remote
// failure for diagnostics, while still satisfying errors.Is(err, ErrRemoteService).
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("filesclient: remote service error (HTTP %d): %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("filesclient: remote service error: %s", e.Message)
}

func (e *ServiceError) Unwrap() error { return ErrRemoteService }
