// Package message defines the message type exchanged with endpoints and the Transport
// interface through which test actions reach them.
package message

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Header names set by HTTP-based endpoints.
const (
	HeaderHTTPMethod      = "http_method"
	HeaderHTTPRequestURI  = "http_request_uri"
	HeaderHTTPQueryParams = "http_query_params"
	HeaderHTTPStatusCode  = "http_status_code"
	HeaderContentType     = "content_type"
)

var (
	// ErrTimeout is returned by Receive when no message arrived within the timeout.
	ErrTimeout = errors.New("timed out waiting for a message")

	// ErrUnknownEndpoint is returned for an endpoint name that is not configured.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// Message is an opaque payload plus a header mapping.
type Message struct {
	ID      string            `json:"id,omitempty"`
	Payload string            `json:"payload"`
	Headers map[string]string `json:"headers,omitempty"`
}

// New creates a Message with a fresh ID.
func New(payload string, headers map[string]string) Message {
	return Message{ID: uuid.NewString(), Payload: payload, Headers: headers}
}

// Header returns a header value, or "" if it is not present.
func (m Message) Header(name string) string { return m.Headers[name] }

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	ret := m
	if m.Headers != nil {
		ret.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			ret.Headers[k] = v
		}
	}
	return ret
}

// Transport sends and receives messages on named endpoints.
//
// Receive must return an error wrapping ErrTimeout if nothing arrives in time; the caller
// treats that as an ordinary test failure.
type Transport interface {
	Send(ctx context.Context, endpoint string, msg Message) error
	Receive(ctx context.Context, endpoint string, timeout time.Duration) (Message, error)
}
