package filesclient

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

const (
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 15 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// calcBackoff computes exponential backoff with +/-25% jitter for the given
// zero-based retry attempt.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}

// sleep waits for d or until ctx is canceled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryableStatus reports whether an HTTP status code should be retried,
// per the <RemoteServiceError> classification: non-retryable unless
// 408/429/5xx.
func isRetryableStatus(code int) bool {
	switch code {
	case 408, 429:
		return true
	default:
		return code >= 500
	}
}
