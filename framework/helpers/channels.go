package helpers

import (
	"context"
	"time"

	"github.com/testharness/orchestrator/framework/opt"
)

// NonBlockingSend is a shortcut for using select to do a non-blocking send. It returns
// true on success or false if the channel was full.
func NonBlockingSend[V any](ch chan<- V, value V) bool {
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}

// TryReceive waits up to timeout for a value from ch. The result is empty if it timed out
// or if the channel was closed.
func TryReceive[V any](ch <-chan V, timeout time.Duration) opt.Maybe[V] {
	return TryReceiveContext(context.Background(), ch, timeout)
}

// TryReceiveContext is TryReceive that also gives up when ctx is done.
func TryReceiveContext[V any](ctx context.Context, ch <-chan V, timeout time.Duration) opt.Maybe[V] {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			return opt.None[V]()
		}
		return opt.Some(value)
	case <-deadline.C:
		return opt.None[V]()
	case <-ctx.Done():
		return opt.None[V]()
	}
}
