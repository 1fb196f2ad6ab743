package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/message"
)

const defaultMemoryCapacity = 100

var errEndpointClosed = errors.New("endpoint is closed")

// MemoryEndpoint is an in-process queue: whatever is sent is received in the same order.
type MemoryEndpoint struct {
	name    string
	queue   chan message.Message
	closing sync.Once
	closed  chan struct{}
}

// NewMemoryEndpoint creates a queue holding up to capacity unreceived messages; zero means a
// default size. Send fails rather than blocking when the queue is full.
func NewMemoryEndpoint(name string, capacity int) *MemoryEndpoint {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryEndpoint{
		name:   name,
		queue:  make(chan message.Message, capacity),
		closed: make(chan struct{}),
	}
}

func (e *MemoryEndpoint) Send(_ context.Context, msg message.Message) error {
	select {
	case <-e.closed:
		return errEndpointClosed
	default:
	}
	if !helpers.NonBlockingSend(e.queue, msg.Clone()) {
		return errors.New("queue is full")
	}
	return nil
}

func (e *MemoryEndpoint) Receive(ctx context.Context, timeout time.Duration) (message.Message, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.closed:
			cancel()
		case <-ctx.Done():
		}
	}()
	if msg, ok := helpers.TryReceiveContext(ctx, e.queue, timeout).Get(); ok {
		return msg, nil
	}
	select {
	case <-e.closed:
		return message.Message{}, errEndpointClosed
	default:
	}
	return message.Message{}, timeoutError("memory endpoint "+e.name, timeout)
}

func (e *MemoryEndpoint) Close() error {
	e.closing.Do(func() { close(e.closed) })
	return nil
}
