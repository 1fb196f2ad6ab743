package config

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/testharness/orchestrator/framework"
	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/transport"
)

// Environment is the set of endpoints created from a Config.
type Environment struct {
	Router *transport.Router
	// Server is nil if no endpoint needs the HTTP listener.
	Server *transport.HTTPServer
	port   int
}

// NewEnvironment creates every configured endpoint. It does not start the HTTP listener;
// call Start for that.
func NewEnvironment(ctx context.Context, c Config, logger framework.Logger) (*Environment, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	env := &Environment{Router: transport.NewRouter(logger), port: c.HTTP.Port}
	if c.NeedsListener() {
		env.Server = transport.NewHTTPServer(fmt.Sprintf("http://%s:%d", c.HTTP.Host, c.HTTP.Port), logger)
	}
	for _, name := range helpers.SortedKeys(c.Endpoints) {
		ec := c.Endpoints[name]
		endpoint, err := env.newEndpoint(ctx, name, ec)
		if err != nil {
			_ = env.Close()
			return nil, fmt.Errorf("endpoint %q: %w", name, err)
		}
		var options []transport.RouteOption
		if ec.TimeoutMs > 0 {
			options = append(options, transport.DefaultTimeout(millis(ec.TimeoutMs)))
		}
		if err := env.Router.Register(name, endpoint, options...); err != nil {
			_ = env.Close()
			return nil, err
		}
	}
	return env, nil
}

func (env *Environment) newEndpoint(ctx context.Context, name string, ec EndpointConfig) (transport.Endpoint, error) {
	switch ec.Kind {
	case KindMemory:
		return transport.NewMemoryEndpoint(name, ec.Capacity), nil
	case KindHTTPServer:
		var options []transport.HTTPServerEndpointOption
		if ec.ReplyTimeoutMs > 0 {
			options = append(options, transport.ReplyTimeout(millis(ec.ReplyTimeoutMs)))
		}
		return env.Server.NewEndpoint(name, options...)
	case KindHTTPClient:
		var options []transport.HTTPClientEndpointOption
		if ec.RequestTimeoutMs > 0 {
			options = append(options, transport.RequestTimeout(millis(ec.RequestTimeoutMs)))
		}
		return transport.NewHTTPClientEndpoint(name, ec.URL, options...)
	case KindSSE:
		return env.Server.NewSSEEndpoint(name, ec.URL)
	case KindRedis:
		return transport.NewRedisEndpoint(name, transport.NewRedisClient(ec.Address, ec.Password, ec.DB), ec.Key), nil
	case KindConsul:
		client, err := transport.NewConsulClient(ec.Address)
		if err != nil {
			return nil, err
		}
		return transport.NewConsulEndpoint(name, client, ec.Key), nil
	case KindDynamoDB:
		client, err := transport.NewDynamoDBClient(ec.Region, ec.URL)
		if err != nil {
			return nil, err
		}
		e := transport.NewDynamoDBEndpoint(name, client, ec.Table, ec.Key)
		if ec.CreateTable {
			if err := e.CreateTable(ctx); err != nil {
				return nil, fmt.Errorf("could not create table %q: %w", ec.Table, err)
			}
		}
		return e, nil
	case KindFile:
		return transport.NewFileEndpoint(name, ec.Dir)
	default:
		return nil, fmt.Errorf("unknown kind %q", ec.Kind)
	}
}

// Start starts the HTTP listener, if one is needed.
func (env *Environment) Start() error {
	if env.Server == nil {
		return nil
	}
	return env.Server.Start(env.port)
}

// Close closes every endpoint and stops the listener.
func (env *Environment) Close() error {
	var result *multierror.Error
	if err := env.Router.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if env.Server != nil {
		if err := env.Server.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
