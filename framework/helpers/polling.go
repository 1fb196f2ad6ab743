package helpers

import (
	"context"
	"time"
)

// PollUntil calls fn at the given interval until it reports done, returns an error, the
// timeout elapses, or ctx is done. The boolean result is false on timeout.
func PollUntil[V any](
	ctx context.Context,
	timeout time.Duration,
	interval time.Duration,
	fn func() (V, bool, error),
) (V, bool, error) {
	var empty V
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		value, done, err := fn()
		if err != nil {
			return empty, false, err
		}
		if done {
			return value, true, nil
		}
		select {
		case <-deadline.C:
			return empty, false, nil
		case <-ctx.Done():
			return empty, false, ctx.Err()
		case <-ticker.C:
		}
	}
}
