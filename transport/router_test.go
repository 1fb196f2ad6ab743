package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testharness/orchestrator/message"
)

type closeRecorder struct {
	*MemoryEndpoint
	err    error
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return c.err
}

func TestRouterSendsAndReceivesByName(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.Register("a", NewMemoryEndpoint("a", 0)))
	require.NoError(t, r.Register("b", NewMemoryEndpoint("b", 0)))
	assert.Equal(t, []string{"a", "b"}, r.Names())

	require.NoError(t, r.Send(context.Background(), "b", message.New("hello", nil)))

	_, err := r.Receive(context.Background(), "a", 10*time.Millisecond)
	assert.ErrorIs(t, err, message.ErrTimeout)

	msg, err := r.Receive(context.Background(), "b", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Payload)
}

func TestRouterUnknownEndpoint(t *testing.T) {
	r := NewRouter(nil)
	err := r.Send(context.Background(), "nope", message.New("x", nil))
	assert.ErrorIs(t, err, message.ErrUnknownEndpoint)
	_, err = r.Receive(context.Background(), "nope", time.Millisecond)
	assert.ErrorIs(t, err, message.ErrUnknownEndpoint)
}

func TestRouterUsesDefaultTimeoutForZero(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.Register("a", NewMemoryEndpoint("a", 0), DefaultTimeout(20*time.Millisecond)))
	start := time.Now()
	_, err := r.Receive(context.Background(), "a", 0)
	assert.ErrorIs(t, err, message.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRouterCloseReportsAllErrors(t *testing.T) {
	r := NewRouter(nil)
	a := &closeRecorder{MemoryEndpoint: NewMemoryEndpoint("a", 0), err: errors.New("bad a")}
	b := &closeRecorder{MemoryEndpoint: NewMemoryEndpoint("b", 0)}
	c := &closeRecorder{MemoryEndpoint: NewMemoryEndpoint("c", 0), err: errors.New("bad c")}
	for name, e := range map[string]Endpoint{"a": a, "b": b, "c": c} {
		require.NoError(t, r.Register(name, e))
	}

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad a")
	assert.Contains(t, err.Error(), "bad c")
	assert.True(t, a.closed && b.closed && c.closed)
	assert.Len(t, r.Names(), 0)
}
