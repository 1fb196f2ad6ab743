// Package config reads the harness configuration file and creates the endpoints it
// describes.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/testharness/orchestrator/data"
	"github.com/testharness/orchestrator/framework/helpers"
)

// Endpoint kinds.
const (
	KindMemory     = "memory"
	KindHTTPServer = "http-server"
	KindHTTPClient = "http-client"
	KindSSE        = "sse"
	KindRedis      = "redis"
	KindConsul     = "consul"
	KindDynamoDB   = "dynamodb"
	KindFile       = "file"
)

const (
	DefaultPort = 8111
	DefaultHost = "localhost"
)

// Config is the content of the configuration file.
type Config struct {
	HTTP             HTTPConfig                `json:"http"`
	ReceiveTimeoutMs int                       `json:"receiveTimeoutMs,omitempty"`
	MaxParallel      int                       `json:"maxParallel,omitempty"`
	Endpoints        map[string]EndpointConfig `json:"endpoints"`
}

// HTTPConfig controls the listener used by http-server and sse endpoints. Host is the name
// by which the systems under test reach the harness.
type HTTPConfig struct {
	Port int    `json:"port,omitempty"`
	Host string `json:"host,omitempty"`
}

// EndpointConfig describes one endpoint. Which fields apply depends on Kind:
//
//   - memory: Capacity
//   - http-server: ReplyTimeoutMs
//   - http-client: URL, RequestTimeoutMs
//   - sse: URL (optional; the stream to subscribe to for Receive)
//   - redis: Address, Password, DB, Key
//   - consul: Address, Key
//   - dynamodb: Region, URL (optional), Table, Key, CreateTable
//   - file: Dir
//
// TimeoutMs applies to every kind, as the receive timeout used when an action does not set
// its own.
type EndpointConfig struct {
	Kind             string `json:"kind"`
	TimeoutMs        int    `json:"timeoutMs,omitempty"`
	Capacity         int    `json:"capacity,omitempty"`
	ReplyTimeoutMs   int    `json:"replyTimeoutMs,omitempty"`
	RequestTimeoutMs int    `json:"requestTimeoutMs,omitempty"`
	URL              string `json:"url,omitempty"`
	Address          string `json:"address,omitempty"`
	Password         string `json:"password,omitempty"`
	DB               int    `json:"db,omitempty"`
	Key              string `json:"key,omitempty"`
	Region           string `json:"region,omitempty"`
	Table            string `json:"table,omitempty"`
	CreateTable      bool   `json:"createTable,omitempty"`
	Dir              string `json:"dir,omitempty"`
}

// Load reads a JSON or YAML configuration file. Environment variable references such as
// ${REDIS_ADDR} in the file are expanded before parsing.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read configuration: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(raw))))
}

// Parse parses configuration data and fills in defaults.
func Parse(raw []byte) (Config, error) {
	var c Config
	if err := data.ParseJSONOrYAMLStrict(raw, &c); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultPort
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = DefaultHost
	}
	return c, c.Validate()
}

// Validate checks the settings that can be checked without connecting to anything.
func (c Config) Validate() error {
	if c.ReceiveTimeoutMs < 0 || c.MaxParallel < 0 {
		return errors.New("receiveTimeoutMs and maxParallel cannot be negative")
	}
	for _, name := range helpers.SortedKeys(c.Endpoints) {
		if err := c.Endpoints[name].validate(); err != nil {
			return fmt.Errorf("endpoint %q: %w", name, err)
		}
	}
	return nil
}

func (e EndpointConfig) validate() error {
	if e.TimeoutMs < 0 {
		return errors.New("timeoutMs cannot be negative")
	}
	switch e.Kind {
	case KindMemory, KindHTTPServer, KindSSE, KindConsul:
	case KindHTTPClient:
		if e.URL == "" {
			return errors.New("url is required")
		}
	case KindRedis:
		if e.Address == "" {
			return errors.New("address is required")
		}
	case KindDynamoDB:
		if e.Table == "" || e.Region == "" {
			return errors.New("table and region are required")
		}
	case KindFile:
		if e.Dir == "" {
			return errors.New("dir is required")
		}
	case "":
		return errors.New("kind is required")
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}

// ReceiveTimeout returns the configured default receive timeout, or zero if not set.
func (c Config) ReceiveTimeout() time.Duration {
	return time.Duration(c.ReceiveTimeoutMs) * time.Millisecond
}

// NeedsListener reports whether any endpoint requires the HTTP listener.
func (c Config) NeedsListener() bool {
	for _, e := range c.Endpoints {
		if e.Kind == KindHTTPServer || e.Kind == KindSSE {
			return true
		}
	}
	return false
}
