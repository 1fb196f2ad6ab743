package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/launchdarkly/eventsource"

	"github.com/testharness/orchestrator/framework"
	"github.com/testharness/orchestrator/message"
)

// Header names used by SSE endpoints.
const (
	HeaderSSEEvent = "sse_event"
	HeaderSSEID    = "sse_id"
)

const defaultSSEEventName = "message"

type eventSourceDebugLogger struct {
	logger framework.Logger
}

func (l eventSourceDebugLogger) Println(args ...interface{}) {
	l.logger.Printf("%s", fmt.Sprintln(args...))
}

func (l eventSourceDebugLogger) Printf(format string, args ...interface{}) {
	l.logger.Printf(format, args...)
}

// SSEEndpoint publishes and consumes Server-Sent Events.
//
// Send publishes the message as an event on the owning HTTPServer at /streams/{name}; the
// sse_event header sets the event name. Every subscriber receives all events published so
// far, then new ones as they are sent.
//
// Receive reads the next event from the subscribed stream: the SubscribeURL if one was
// given, otherwise the endpoint's own published stream. The subscription is opened on the
// first Receive.
type SSEEndpoint struct {
	owner        *HTTPServer
	name         string
	subscribeURL string
	streams      *eventsource.Server
	history      []eventsource.Event
	subscription *eventsource.Stream
	logger       framework.Logger
	lock         sync.Mutex
	closing      sync.Once
}

type sseEvent struct {
	id   string
	name string
	data string
}

func (e sseEvent) Event() string { return e.name }
func (e sseEvent) Id() string    { return e.id } //nolint:stylecheck
func (e sseEvent) Data() string  { return e.data }

// NewSSEEndpoint adds a stream to the server. subscribeURL may be empty.
func (s *HTTPServer) NewSSEEndpoint(name, subscribeURL string) (*SSEEndpoint, error) {
	logger := framework.LoggerWithPrefix(s.logger, "[sse:"+name+"] ")
	streams := eventsource.NewServer()
	streams.ReplayAll = true
	streams.Logger = eventSourceDebugLogger{logger}
	e := &SSEEndpoint{
		owner:        s,
		name:         name,
		subscribeURL: subscribeURL,
		streams:      streams,
		logger:       logger,
	}
	streams.Register(name, e)

	s.lock.Lock()
	defer s.lock.Unlock()
	if _, exists := s.streams[name]; exists {
		streams.Close()
		return nil, fmt.Errorf("a stream named %q already exists", name)
	}
	s.streams[name] = e
	return e, nil
}

func (s *HTTPServer) serveStream(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.lock.Lock()
	handler := s.streams[name]
	s.lock.Unlock()
	if handler == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	handler.ServeHTTP(w, r)
	s.logger.Printf("End of stream request for %s", name)
}

func (e *SSEEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.streams.Handler(e.name)(w, r)
}

// StreamURL returns the URL of the stream this endpoint publishes.
func (e *SSEEndpoint) StreamURL() string {
	return e.owner.externalBaseURL + streamPathPrefix + e.name
}

// Replay is called by the eventsource server for each new subscriber.
func (e *SSEEndpoint) Replay(channel, id string) chan eventsource.Event {
	e.lock.Lock()
	history := append([]eventsource.Event(nil), e.history...)
	e.lock.Unlock()
	ch := make(chan eventsource.Event, len(history))
	for _, ev := range history {
		ch <- ev
	}
	close(ch)
	return ch
}

func (e *SSEEndpoint) Send(_ context.Context, msg message.Message) error {
	ev := sseEvent{id: msg.Headers[HeaderSSEID], name: msg.Headers[HeaderSSEEvent], data: msg.Payload}
	if ev.name == "" {
		ev.name = defaultSSEEventName
	}
	if ev.id == "" {
		ev.id = msg.ID
	}
	e.lock.Lock()
	e.history = append(e.history, ev)
	e.lock.Unlock()
	e.logger.Printf("sending %s event with data: %s", ev.name, ev.data)
	e.streams.Publish([]string{e.name}, ev)
	return nil
}

func (e *SSEEndpoint) subscribe() (*eventsource.Stream, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.subscription != nil {
		return e.subscription, nil
	}
	url := e.subscribeURL
	if url == "" {
		url = e.StreamURL()
	}
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	stream, err := eventsource.SubscribeWithRequest("", req)
	if err != nil {
		return nil, fmt.Errorf("could not subscribe to %s: %w", url, err)
	}
	e.subscription = stream
	return stream, nil
}

func (e *SSEEndpoint) Receive(ctx context.Context, timeout time.Duration) (message.Message, error) {
	stream, err := e.subscribe()
	if err != nil {
		return message.Message{}, err
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ev, ok := <-stream.Events:
			if !ok {
				return message.Message{}, errors.New("stream was closed")
			}
			headers := map[string]string{HeaderSSEEvent: ev.Event()}
			if ev.Id() != "" {
				headers[HeaderSSEID] = ev.Id()
			}
			return message.New(ev.Data(), headers), nil
		case err := <-stream.Errors:
			// the stream reconnects by itself; just note it
			e.logger.Printf("Error on stream: %s", err)
		case <-deadline.C:
			return message.Message{}, timeoutError("SSE endpoint "+e.name, timeout)
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		}
	}
}

func (e *SSEEndpoint) Close() error {
	e.closing.Do(func() {
		e.owner.lock.Lock()
		delete(e.owner.streams, e.name)
		e.owner.lock.Unlock()
		e.lock.Lock()
		if e.subscription != nil {
			e.subscription.Close()
		}
		e.lock.Unlock()
		e.streams.Close()
	})
	return nil
}
