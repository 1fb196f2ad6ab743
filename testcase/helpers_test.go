package testcase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/testharness/orchestrator/framework"
	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/message"
	"github.com/testharness/orchestrator/variables"
)

// echoTransport delivers every sent message to the queue of the same endpoint.
type echoTransport struct {
	queues map[string]chan message.Message
	sent   []string
	lock   sync.Mutex
}

func newEchoTransport() *echoTransport {
	return &echoTransport{queues: make(map[string]chan message.Message)}
}

func (t *echoTransport) queue(endpoint string) chan message.Message {
	t.lock.Lock()
	defer t.lock.Unlock()
	q, ok := t.queues[endpoint]
	if !ok {
		q = make(chan message.Message, 100)
		t.queues[endpoint] = q
	}
	return q
}

func (t *echoTransport) Send(ctx context.Context, endpoint string, msg message.Message) error {
	if endpoint == "broken" {
		return fmt.Errorf("connection refused")
	}
	t.lock.Lock()
	t.sent = append(t.sent, endpoint+":"+msg.Payload)
	t.lock.Unlock()
	t.queue(endpoint) <- msg
	return nil
}

func (t *echoTransport) Receive(ctx context.Context, endpoint string, timeout time.Duration) (message.Message, error) {
	if m, ok := helpers.TryReceiveContext(ctx, t.queue(endpoint), timeout).Get(); ok {
		return m, nil
	}
	return message.Message{}, fmt.Errorf("endpoint %q: %w", endpoint, message.ErrTimeout)
}

func (t *echoTransport) sentMessages() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]string(nil), t.sent...)
}

func newTestExecutor(t *testing.T, transport message.Transport, options ...ExecutorOption) *Executor {
	options = append([]ExecutorOption{
		WithReceiveTimeout(200 * time.Millisecond),
		WithLogger(&framework.CapturingLogger{}),
	}, options...)
	e, err := NewExecutor(transport, options...)
	require.NoError(t, err)
	return e
}

// add appends an action and fails the test on error.
func add(t *testing.T, tree *Tree, owner Owner, action Action) NodeID {
	t.Helper()
	id, err := tree.Append(owner, action)
	require.NoError(t, err)
	return id
}

// recorder is a Custom action body that records that it ran.
type recorder struct {
	ran  []string
	lock sync.Mutex
}

func (r *recorder) action(name string, err error) Custom {
	return Custom{Label: name, Fn: func(context.Context, *variables.Context) error {
		r.lock.Lock()
		r.ran = append(r.ran, name)
		r.lock.Unlock()
		return err
	}}
}

func (r *recorder) names() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.ran...)
}

func resultSummary(o Outcome) []string {
	ret := make([]string, 0, len(o.Results))
	for _, r := range o.Results {
		if r.OK() {
			ret = append(ret, r.Name+":ok")
		} else {
			ret = append(ret, r.Name+":"+string(r.Failure.Kind))
		}
	}
	return ret
}
