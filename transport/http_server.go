package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/testharness/orchestrator/framework"
	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/message"
)

const (
	endpointPathPrefix = "/endpoints/"
	streamPathPrefix   = "/streams/"

	httpListenerTimeout = time.Second * 10

	// Incoming requests that no Receive has taken yet are queued up to this limit; beyond it
	// the server answers 503 rather than blocking.
	incomingRequestBufferSize = 100

	// DefaultReplyTimeout is how long an inbound HTTP request waits for a Send to provide
	// its response before the server answers with an empty 200.
	DefaultReplyTimeout = 5 * time.Second
)

// HTTPServer is the listener for inbound HTTP endpoints and SSE streams. A request to
// /endpoints/{name}/any/subpath is delivered to the HTTPServerEndpoint with that name, and
// /streams/{name} connects to the stream published by the SSEEndpoint with that name.
type HTTPServer struct {
	externalBaseURL string
	router          *mux.Router
	endpoints       map[string]*HTTPServerEndpoint
	streams         map[string]http.Handler
	server          *http.Server
	logger          framework.Logger
	lock            sync.Mutex
}

// NewHTTPServer creates a server. externalBaseURL is the address at which the systems
// under test can reach it, such as http://localhost:8111.
func NewHTTPServer(externalBaseURL string, logger framework.Logger) *HTTPServer {
	if logger == nil {
		logger = framework.NullLogger()
	}
	s := &HTTPServer{
		externalBaseURL: strings.TrimSuffix(externalBaseURL, "/"),
		router:          mux.NewRouter(),
		endpoints:       make(map[string]*HTTPServerEndpoint),
		streams:         make(map[string]http.Handler),
		logger:          logger,
	}
	s.router.PathPrefix(endpointPathPrefix + "{name}").HandlerFunc(s.serveEndpoint)
	s.router.HandleFunc(streamPathPrefix+"{name}", s.serveStream).Methods("GET")
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == "HEAD" && r.URL.Path == "/" {
		w.WriteHeader(200) // we use this to test whether our own listener is active yet
		return
	}
	s.router.ServeHTTP(w, r)
}

// BaseURL returns the external base URL of the server.
func (s *HTTPServer) BaseURL() string { return s.externalBaseURL }

// Start listens on the given port and waits until the listener is accepting requests.
func (s *HTTPServer) Start(port int) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second, // arbitrary but non-infinite timeout to avoid Slowloris Attack
	}
	s.lock.Lock()
	s.server = server
	s.lock.Unlock()

	listenErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// Wait till the server is definitely listening for requests before we run any tests
	_, ok, err := helpers.PollUntil(context.Background(), httpListenerTimeout, 10*time.Millisecond,
		func() (struct{}, bool, error) {
			select {
			case err := <-listenErr:
				return struct{}{}, false, err
			default:
			}
			req, _ := http.NewRequest("HEAD", fmt.Sprintf("http://localhost:%d/", port), nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return struct{}{}, false, nil
			}
			_ = resp.Body.Close()
			return struct{}{}, true, nil
		})
	if err != nil {
		return fmt.Errorf("could not start listener on port %d: %w", port, err)
	}
	if !ok {
		return fmt.Errorf("could not detect own listener at %s", server.Addr)
	}
	s.logger.Printf("Listening for inbound endpoints on port %d", port)
	return nil
}

// Close stops the listener, if it was started.
func (s *HTTPServer) Close() error {
	s.lock.Lock()
	server := s.server
	s.server = nil
	s.lock.Unlock()
	if server == nil {
		return nil
	}
	return server.Close()
}

// HTTPServerEndpoint receives the HTTP requests sent to its path on an HTTPServer.
//
// Receive returns the next request as a message with the http_method, http_request_uri,
// http_query_params and content_type headers, plus the request's own headers. A Send
// afterward answers the oldest received request that has not been answered: its payload is
// the response body, the http_status_code header sets the status, and other headers are
// copied to the response. A request that gets no answer within the reply timeout is
// answered with an empty 200. It can still be received, but a Send never answers it.
type HTTPServerEndpoint struct {
	owner        *HTTPServer
	name         string
	replyTimeout time.Duration
	requests     chan *exchange
	awaiting     []*exchange
	closed       bool
	lock         sync.Mutex
	closing      sync.Once
}

type exchange struct {
	request message.Message
	reply   chan message.Message
	// abandoned is guarded by the endpoint lock
	abandoned bool
}

// HTTPServerEndpointOption configures an HTTPServerEndpoint.
type HTTPServerEndpointOption = helpers.ConfigOption[HTTPServerEndpoint]

// ReplyTimeout sets how long an inbound request waits for its response.
func ReplyTimeout(d time.Duration) HTTPServerEndpointOption {
	return helpers.OptionFunc[HTTPServerEndpoint](func(e *HTTPServerEndpoint) error {
		if d <= 0 {
			return errors.New("reply timeout must be positive")
		}
		e.replyTimeout = d
		return nil
	})
}

// NewEndpoint adds an inbound endpoint.
func (s *HTTPServer) NewEndpoint(name string, options ...HTTPServerEndpointOption) (*HTTPServerEndpoint, error) {
	e := &HTTPServerEndpoint{
		owner:        s,
		name:         name,
		replyTimeout: DefaultReplyTimeout,
		requests:     make(chan *exchange, incomingRequestBufferSize),
	}
	if err := helpers.ApplyOptions(e, options...); err != nil {
		return nil, err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, exists := s.endpoints[name]; exists {
		return nil, fmt.Errorf("an HTTP endpoint named %q already exists", name)
	}
	s.endpoints[name] = e
	return e, nil
}

// BaseURL returns the URL that requests for this endpoint should be sent to.
func (e *HTTPServerEndpoint) BaseURL() string {
	return e.owner.externalBaseURL + endpointPathPrefix + e.name
}

func (s *HTTPServer) serveEndpoint(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.lock.Lock()
	e := s.endpoints[name]
	s.lock.Unlock()
	if e == nil {
		s.logger.Printf("Received request for unrecognized endpoint %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			s.logger.Printf("Unexpected error trying to read request body: %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body = data
	}

	subpath := strings.TrimPrefix(r.URL.Path, endpointPathPrefix+name)
	if subpath == "" {
		subpath = "/"
	}
	headers := map[string]string{
		message.HeaderHTTPMethod:      r.Method,
		message.HeaderHTTPRequestURI:  subpath,
		message.HeaderHTTPQueryParams: r.URL.RawQuery,
	}
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[key] = strings.Join(values, ",")
		}
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		headers[message.HeaderContentType] = ct
	}
	ex := &exchange{request: message.New(string(body), headers), reply: make(chan message.Message, 1)}

	e.lock.Lock()
	closed := e.closed
	e.lock.Unlock()
	if closed {
		s.logger.Printf("Received request to already-closed endpoint %s", name)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !helpers.NonBlockingSend(e.requests, ex) {
		s.logger.Printf("Incoming request queue was full for endpoint %s", name)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	ww := &wrappedResponseWriter{w: w}
	reply, ok := helpers.TryReceiveContext(r.Context(), ex.reply, e.replyTimeout).Get()
	if !ok {
		e.abandon(ex)
		// Send hands over the reply while holding the lock, so one may have arrived just now
		select {
		case reply, ok = <-ex.reply:
		default:
		}
	}
	if ok {
		writeReply(ww, reply)
	} else {
		ww.WriteHeader(http.StatusOK)
	}
	s.logger.Printf("Endpoint %s answered %s %s with status %d", name, r.Method, subpath, ww.status)
}

func writeReply(w http.ResponseWriter, reply message.Message) {
	status := http.StatusOK
	if s := reply.Headers[message.HeaderHTTPStatusCode]; s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			status = n
		}
	}
	for key, value := range reply.Headers {
		switch key {
		case message.HeaderHTTPStatusCode, message.HeaderHTTPMethod, message.HeaderHTTPRequestURI,
			message.HeaderHTTPQueryParams:
		case message.HeaderContentType:
			w.Header().Set("Content-Type", value)
		default:
			w.Header().Set(key, value)
		}
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(reply.Payload))
}

// abandon marks a request that was already answered by default, so that no Send tries to
// answer it again.
func (e *HTTPServerEndpoint) abandon(ex *exchange) {
	e.lock.Lock()
	defer e.lock.Unlock()
	ex.abandoned = true
	for i, a := range e.awaiting {
		if a == ex {
			e.awaiting = append(e.awaiting[:i], e.awaiting[i+1:]...)
			return
		}
	}
}

func (e *HTTPServerEndpoint) Receive(ctx context.Context, timeout time.Duration) (message.Message, error) {
	ex, ok := helpers.TryReceiveContext(ctx, e.requests, timeout).Get()
	if !ok {
		return message.Message{}, timeoutError("HTTP endpoint "+e.name, timeout)
	}
	e.lock.Lock()
	if !ex.abandoned {
		e.awaiting = append(e.awaiting, ex)
	}
	e.lock.Unlock()
	return ex.request, nil
}

func (e *HTTPServerEndpoint) Send(_ context.Context, msg message.Message) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if len(e.awaiting) == 0 {
		return fmt.Errorf("no received request on %s is waiting for a reply", e.name)
	}
	ex := e.awaiting[0]
	e.awaiting = e.awaiting[1:]
	if !helpers.NonBlockingSend(ex.reply, msg.Clone()) {
		return errors.New("request was already answered")
	}
	return nil
}

// Close unregisters the endpoint. Later requests to it get a 404.
func (e *HTTPServerEndpoint) Close() error {
	e.closing.Do(func() {
		e.owner.lock.Lock()
		delete(e.owner.endpoints, e.name)
		e.owner.lock.Unlock()
		e.lock.Lock()
		e.closed = true
		e.lock.Unlock()
	})
	return nil
}

// wrappedResponseWriter records the status that was written, for logging.
type wrappedResponseWriter struct {
	w      http.ResponseWriter
	status int
}

func (ww *wrappedResponseWriter) Header() http.Header { return ww.w.Header() }

func (ww *wrappedResponseWriter) WriteHeader(status int) {
	ww.status = status
	ww.w.WriteHeader(status)
}

func (ww *wrappedResponseWriter) Write(data []byte) (int, error) { return ww.w.Write(data) }

func (ww *wrappedResponseWriter) Flush() {
	if f, ok := ww.w.(http.Flusher); ok {
		f.Flush()
	}
}
