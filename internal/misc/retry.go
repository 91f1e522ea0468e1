package misc

import (
	"context"
	"time"
)

// DefaultBackoff is used by storage adapters that have no configured retry policy.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// ConstantBackoff returns the waits between tries attempts, all equal to wait.
// tries <= 1 yields no retries.
func ConstantBackoff(tries int, wait time.Duration) []time.Duration {
	if tries <= 1 {
		return nil
	}
	delays := make([]time.Duration, tries-1)
	for i := range delays {
		delays[i] = wait
	}
	return delays
}

// Retry runs op until it succeeds, returns a non-retryable error, or delays are exhausted.
// op receives the 1-based attempt number.
func Retry(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func(attempt int) error) error {
	var err error
	for i := 0; ; i++ {
		if err = op(i + 1); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i >= len(delays) || !isRetryable(err) {
			return err
		}
		if delays[i] <= 0 {
			continue
		}
		t := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
