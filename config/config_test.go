package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testharness/orchestrator/message"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("endpoints:\n  q:\n    kind: memory\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, c.HTTP.Port)
	assert.Equal(t, DefaultHost, c.HTTP.Host)
	assert.Equal(t, time.Duration(0), c.ReceiveTimeout())
	assert.False(t, c.NeedsListener())
}

func TestParseFullConfiguration(t *testing.T) {
	c, err := Parse([]byte(`---
http:
  port: 9000
  host: harness
receiveTimeoutMs: 1500
maxParallel: 4
endpoints:
  inbound:
    kind: http-server
    replyTimeoutMs: 100
  api:
    kind: http-client
    url: http://service:8080
  events:
    kind: sse
  cache:
    kind: redis
    address: localhost:6379
    key: jobs
`))
	require.NoError(t, err)
	assert.Equal(t, 9000, c.HTTP.Port)
	assert.Equal(t, 1500*time.Millisecond, c.ReceiveTimeout())
	assert.Equal(t, 4, c.MaxParallel)
	assert.True(t, c.NeedsListener())
	assert.Equal(t, "jobs", c.Endpoints["cache"].Key)
}

func TestParseErrors(t *testing.T) {
	for _, params := range []struct {
		desc, input string
	}{
		{"unknown property", "endpoint: {}\n"},
		{"missing kind", "endpoints:\n  q: {}\n"},
		{"unknown kind", "endpoints:\n  q:\n    kind: carrier-pigeon\n"},
		{"client without url", "endpoints:\n  q:\n    kind: http-client\n"},
		{"redis without address", "endpoints:\n  q:\n    kind: redis\n"},
		{"dynamodb without table", "endpoints:\n  q:\n    kind: dynamodb\n    region: us-east-1\n"},
		{"file without dir", "endpoints:\n  q:\n    kind: file\n"},
		{"negative timeout", "receiveTimeoutMs: -1\n"},
	} {
		t.Run(params.desc, func(t *testing.T) {
			_, err := Parse([]byte(params.input))
			assert.Error(t, err)
		})
	}
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_QUEUE_DIR", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoints:\n  drop:\n    kind: file\n    dir: ${TEST_QUEUE_DIR}\n"), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getenv("TEST_QUEUE_DIR"), c.Endpoints["drop"].Dir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewEnvironmentRegistersEndpoints(t *testing.T) {
	c, err := Parse([]byte(`---
endpoints:
  q:
    kind: memory
    timeoutMs: 20
  drop:
    kind: file
    dir: ` + t.TempDir() + `
  api:
    kind: http-client
    url: http://localhost:1
`))
	require.NoError(t, err)
	env, err := NewEnvironment(context.Background(), c, nil)
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Server)
	require.NoError(t, env.Start())
	assert.Equal(t, []string{"api", "drop", "q"}, env.Router.Names())

	require.NoError(t, env.Router.Send(context.Background(), "drop", message.New("x", nil)))
	msg, err := env.Router.Receive(context.Background(), "drop", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "x", msg.Payload)

	_, err = env.Router.Receive(context.Background(), "q", 0)
	assert.ErrorIs(t, err, message.ErrTimeout)
}

func TestNewEnvironmentCreatesListenerForInboundEndpoints(t *testing.T) {
	c, err := Parse([]byte("http:\n  host: harness\n  port: 9999\nendpoints:\n  in:\n    kind: http-server\n  s:\n    kind: sse\n"))
	require.NoError(t, err)
	env, err := NewEnvironment(context.Background(), c, nil)
	require.NoError(t, err)
	defer env.Close()
	require.NotNil(t, env.Server)
	assert.Equal(t, "http://harness:9999", env.Server.BaseURL())

	endpoint, ok := env.Router.Endpoint("in")
	require.True(t, ok)
	assert.Equal(t, "http://harness:9999/endpoints/in", endpoint.(interface{ BaseURL() string }).BaseURL())
}
