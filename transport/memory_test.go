package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testharness/orchestrator/message"
)

func TestMemoryEndpointIsFIFO(t *testing.T) {
	e := NewMemoryEndpoint("q", 0)
	for _, p := range []string{"1", "2", "3"} {
		require.NoError(t, e.Send(context.Background(), message.New(p, nil)))
	}
	for _, p := range []string{"1", "2", "3"} {
		msg, err := e.Receive(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, p, msg.Payload)
	}
}

func TestMemoryEndpointCopiesHeaders(t *testing.T) {
	e := NewMemoryEndpoint("q", 0)
	headers := map[string]string{"k": "v"}
	require.NoError(t, e.Send(context.Background(), message.New("x", headers)))
	headers["k"] = "changed"
	msg, err := e.Receive(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "v", msg.Header("k"))
}

func TestMemoryEndpointFull(t *testing.T) {
	e := NewMemoryEndpoint("q", 1)
	require.NoError(t, e.Send(context.Background(), message.New("1", nil)))
	assert.Error(t, e.Send(context.Background(), message.New("2", nil)))
}

func TestMemoryEndpointClose(t *testing.T) {
	e := NewMemoryEndpoint("q", 0)
	done := make(chan error, 1)
	go func() {
		_, err := e.Receive(context.Background(), 5*time.Second)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, e.Close())
	select {
	case err := <-done:
		assert.Equal(t, errEndpointClosed, err)
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after Close")
	}
	assert.Equal(t, errEndpointClosed, e.Send(context.Background(), message.New("x", nil)))
}

func TestMemoryEndpointContextCancel(t *testing.T) {
	e := NewMemoryEndpoint("q", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Receive(ctx, time.Second)
	assert.Error(t, err)
}
