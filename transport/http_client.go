package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/message"
)

// HTTPClientEndpoint sends each message as an HTTP request to a base URL, and queues the
// response so that a later Receive returns it.
//
// The http_method header selects the method (POST by default), http_request_uri is appended
// to the base URL, and http_query_params is used as the query string. Other headers become
// request headers. The queued response carries http_status_code, content_type and the
// response headers.
type HTTPClientEndpoint struct {
	name      string
	baseURL   string
	client    *http.Client
	responses chan message.Message
}

// HTTPClientEndpointOption configures an HTTPClientEndpoint.
type HTTPClientEndpointOption = helpers.ConfigOption[HTTPClientEndpoint]

// RequestTimeout limits how long each request may take.
func RequestTimeout(d time.Duration) HTTPClientEndpointOption {
	return helpers.OptionFunc[HTTPClientEndpoint](func(e *HTTPClientEndpoint) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		e.client = &http.Client{Timeout: d}
		return nil
	})
}

// NewHTTPClientEndpoint creates a client endpoint for the given base URL.
func NewHTTPClientEndpoint(name, baseURL string, options ...HTTPClientEndpointOption) (*HTTPClientEndpoint, error) {
	e := &HTTPClientEndpoint{
		name:      name,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    http.DefaultClient,
		responses: make(chan message.Message, incomingRequestBufferSize),
	}
	if err := helpers.ApplyOptions(e, options...); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *HTTPClientEndpoint) Send(ctx context.Context, msg message.Message) error {
	method := msg.Headers[message.HeaderHTTPMethod]
	if method == "" {
		method = "POST"
	}
	url := e.baseURL
	if uri := msg.Headers[message.HeaderHTTPRequestURI]; uri != "" {
		url += "/" + strings.TrimPrefix(uri, "/")
	}
	if query := msg.Headers[message.HeaderHTTPQueryParams]; query != "" {
		url += "?" + strings.TrimPrefix(query, "?")
	}
	var body io.Reader
	if msg.Payload != "" {
		body = bytes.NewBufferString(msg.Payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	for key, value := range msg.Headers {
		switch key {
		case message.HeaderHTTPMethod, message.HeaderHTTPRequestURI, message.HeaderHTTPQueryParams,
			message.HeaderHTTPStatusCode:
		case message.HeaderContentType:
			req.Header.Set("Content-Type", value)
		default:
			req.Header.Set(key, value)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response body: %w", err)
	}

	headers := map[string]string{message.HeaderHTTPStatusCode: strconv.Itoa(resp.StatusCode)}
	for key, values := range resp.Header {
		headers[key] = strings.Join(values, ",")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		headers[message.HeaderContentType] = ct
	}
	if !helpers.NonBlockingSend(e.responses, message.New(string(respBody), headers)) {
		return errors.New("too many unreceived responses")
	}
	return nil
}

func (e *HTTPClientEndpoint) Receive(ctx context.Context, timeout time.Duration) (message.Message, error) {
	if msg, ok := helpers.TryReceiveContext(ctx, e.responses, timeout).Get(); ok {
		return msg, nil
	}
	return message.Message{}, timeoutError("HTTP client endpoint "+e.name, timeout)
}

func (e *HTTPClientEndpoint) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
