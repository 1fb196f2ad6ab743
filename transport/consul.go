package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	consul "github.com/hashicorp/consul/api"

	"github.com/testharness/orchestrator/message"
)

// ConsulEndpoint uses a Consul KV prefix as a queue. Each sent message is stored under a
// key that sorts after every earlier one; Receive claims the lowest key by deleting it with a
// check-and-set, so that concurrent receivers never get the same message.
type ConsulEndpoint struct {
	name    string
	prefix  string
	consul  *consul.Client
	counter atomic.Uint64
}

// NewConsulEndpoint creates an endpoint storing messages under prefix.
func NewConsulEndpoint(name string, client *consul.Client, prefix string) *ConsulEndpoint {
	if prefix == "" {
		prefix = name
	}
	return &ConsulEndpoint{name: name, prefix: prefix, consul: client}
}

// NewConsulClient connects to a Consul agent. An empty address uses the client defaults,
// which honor CONSUL_HTTP_ADDR.
func NewConsulClient(address string) (*consul.Client, error) {
	config := consul.DefaultConfig()
	if address != "" {
		config.Address = address
	}
	return consul.NewClient(config)
}

func (e *ConsulEndpoint) Send(ctx context.Context, msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s/%020d-%06d", e.prefix, time.Now().UnixNano(), e.counter.Add(1)%1000000)
	_, err = e.consul.KV().Put(&consul.KVPair{Key: key, Value: data}, (&consul.WriteOptions{}).WithContext(ctx))
	return err
}

func (e *ConsulEndpoint) Receive(ctx context.Context, timeout time.Duration) (message.Message, error) {
	kv := e.consul.KV()
	deadline := time.Now().Add(timeout)
	var waitIndex uint64
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return message.Message{}, timeoutError("Consul endpoint "+e.name, timeout)
		}
		query := &consul.QueryOptions{WaitIndex: waitIndex, WaitTime: remaining}
		pairs, meta, err := kv.List(e.prefix+"/", query.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return message.Message{}, ctx.Err()
			}
			return message.Message{}, fmt.Errorf("list failed for %s: %w", e.prefix, err)
		}
		// List returns keys in lexical order, which is the order they were sent in
		for _, pair := range pairs {
			claimed, _, err := kv.DeleteCAS(pair, (&consul.WriteOptions{}).WithContext(ctx))
			if err != nil {
				return message.Message{}, err
			}
			if claimed {
				return decodeMessage(pair.Value)
			}
		}
		if meta != nil {
			waitIndex = meta.LastIndex
		}
	}
}

// Reset removes anything still queued.
func (e *ConsulEndpoint) Reset() error {
	_, err := e.consul.KV().DeleteTree(e.prefix+"/", nil)
	return err
}

func (e *ConsulEndpoint) Close() error { return nil }
