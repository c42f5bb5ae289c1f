package transfer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/b2kit/b2go/b2"
)

const defaultRetryCount = 5

// RetryStrategy decides how often a failed upload call is retried and how
// long to wait between attempts.
type RetryStrategy struct {
	// Count is the maximum number of retries after the initial attempt.
	Count int

	// Wait returns the pause before retry number attempt (1-based). Nil
	// means the default linear backoff.
	Wait func(attempt int) time.Duration
}

func (r *RetryStrategy) applyDefaults() {
	if r.Count == 0 {
		r.Count = defaultRetryCount
	}
	if r.Wait == nil {
		r.Wait = defaultWait
	}
}

// defaultWait grows linearly: ~1.7s, 3.3s, 5s, 6.7s, 8.3s.
func defaultWait(attempt int) time.Duration {
	return time.Duration(float64(attempt*2) / 1.2 * float64(time.Second))
}

// retryable reports whether an upload call failure is worth retrying with
// a fresh lease. Expired lease tokens come back as 401, an overloaded pod
// as 503, and both are documented as "get a new URL and try again".
func retryable(err error) bool {
	var apiErr *b2.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusRequestTimeout,
			http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusServiceUnavailable:
			return true
		}
		return false
	}
	// Transport-level failures (reset connections, broken pipes) are
	// retryable; context cancellation is not.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
