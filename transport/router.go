// Package transport provides the endpoint adapters that carry test messages, and a Router
// that presents a set of named endpoints as a message.Transport.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/testharness/orchestrator/framework"
	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/message"
)

// Endpoint is one place that messages can be sent to and received from.
//
// Receive returns an error wrapping message.ErrTimeout if nothing arrives within the
// timeout. Implementations must be safe for concurrent use, since Parallel branches may
// share an endpoint.
type Endpoint interface {
	Send(ctx context.Context, msg message.Message) error
	Receive(ctx context.Context, timeout time.Duration) (message.Message, error)
	Close() error
}

type route struct {
	endpoint Endpoint
	timeout  time.Duration
}

// Router dispatches messages to endpoints by name.
type Router struct {
	routes map[string]route
	logger framework.Logger
	lock   sync.RWMutex
}

// RouteOption configures an endpoint registration.
type RouteOption = helpers.ConfigOption[route]

// DefaultTimeout sets the receive timeout used for this endpoint when the caller passes a
// zero timeout.
func DefaultTimeout(d time.Duration) RouteOption {
	return helpers.OptionFunc[route](func(r *route) error {
		r.timeout = d
		return nil
	})
}

// NewRouter creates an empty Router.
func NewRouter(logger framework.Logger) *Router {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Router{routes: make(map[string]route), logger: logger}
}

// Register adds an endpoint under a name, replacing any earlier one.
func (r *Router) Register(name string, endpoint Endpoint, options ...RouteOption) error {
	rt := route{endpoint: endpoint}
	if err := helpers.ApplyOptions(&rt, options...); err != nil {
		return err
	}
	r.lock.Lock()
	r.routes[name] = rt
	r.lock.Unlock()
	return nil
}

// Names returns the registered endpoint names in order.
func (r *Router) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return helpers.SortedKeys(r.routes)
}

// Endpoint returns a registered endpoint.
func (r *Router) Endpoint(name string) (Endpoint, bool) {
	rt, ok := r.lookup(name)
	return rt.endpoint, ok
}

func (r *Router) lookup(name string) (route, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	rt, ok := r.routes[name]
	return rt, ok
}

func (r *Router) Send(ctx context.Context, endpoint string, msg message.Message) error {
	rt, ok := r.lookup(endpoint)
	if !ok {
		return fmt.Errorf("%w: %q", message.ErrUnknownEndpoint, endpoint)
	}
	r.logger.Printf("Sending to %s: %s", endpoint, msg.Payload)
	if err := rt.endpoint.Send(ctx, msg); err != nil {
		return fmt.Errorf("send to %q: %w", endpoint, err)
	}
	return nil
}

func (r *Router) Receive(ctx context.Context, endpoint string, timeout time.Duration) (message.Message, error) {
	rt, ok := r.lookup(endpoint)
	if !ok {
		return message.Message{}, fmt.Errorf("%w: %q", message.ErrUnknownEndpoint, endpoint)
	}
	if timeout <= 0 {
		timeout = rt.timeout
	}
	msg, err := rt.endpoint.Receive(ctx, timeout)
	if err != nil {
		return message.Message{}, fmt.Errorf("receive from %q: %w", endpoint, err)
	}
	r.logger.Printf("Received from %s: %s", endpoint, msg.Payload)
	return msg, nil
}

// Close closes every endpoint, returning all of the errors.
func (r *Router) Close() error {
	r.lock.Lock()
	routes := r.routes
	r.routes = make(map[string]route)
	r.lock.Unlock()
	var result *multierror.Error
	for _, name := range helpers.SortedKeys(routes) {
		if err := routes[name].endpoint.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing %q: %w", name, err))
		}
	}
	return result.ErrorOrNil()
}

func timeoutError(what string, timeout time.Duration) error {
	return fmt.Errorf("%w after %s on %s", message.ErrTimeout, timeout, what)
}
