package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/testharness/orchestrator/message"
)

// RedisEndpoint uses a Redis list as a queue. Send pushes the JSON-encoded message at the
// head of the list and Receive blocks popping from its tail.
type RedisEndpoint struct {
	name  string
	key   string
	redis *redis.Client
}

// NewRedisEndpoint creates an endpoint for the list with the given key.
func NewRedisEndpoint(name string, client *redis.Client, key string) *RedisEndpoint {
	if key == "" {
		key = name
	}
	return &RedisEndpoint{name: name, key: key, redis: client}
}

// NewRedisClient connects to a Redis server given its host:port address.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (e *RedisEndpoint) Send(ctx context.Context, msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return e.redis.LPush(ctx, e.key, data).Err()
}

func (e *RedisEndpoint) Receive(ctx context.Context, timeout time.Duration) (message.Message, error) {
	result, err := e.redis.BRPop(ctx, timeout, e.key).Result()
	if errors.Is(err, redis.Nil) {
		return message.Message{}, timeoutError("Redis endpoint "+e.name, timeout)
	}
	if err != nil {
		return message.Message{}, err
	}
	// BRPOP returns the key followed by the value
	if len(result) != 2 {
		return message.Message{}, fmt.Errorf("unexpected reply from BRPOP: %v", result)
	}
	return decodeMessage([]byte(result[1]))
}

// Reset removes anything still queued.
func (e *RedisEndpoint) Reset(ctx context.Context) error {
	return e.redis.Del(ctx, e.key).Err()
}

func (e *RedisEndpoint) Close() error { return nil }

func decodeMessage(data []byte) (message.Message, error) {
	var msg message.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return message.Message{}, fmt.Errorf("stored message was not valid: %w", err)
	}
	return msg, nil
}
