package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jmespath/go-jmespath"

	"github.com/testharness/orchestrator/framework/matchers"
	"github.com/testharness/orchestrator/message"
)

// Validator checks one message against a validation context whose templates have already
// been resolved. It returns *Error when the message fails its checks, or an error wrapping
// ErrConfiguration when the context cannot be applied. It must not modify the message.
type Validator interface {
	Validate(msg message.Message, ctx Context) error
}

// Registry selects a Validator by message format.
type Registry struct {
	validators map[string]Validator
	matchers   *MatcherRegistry
	lock       sync.RWMutex
}

// NewRegistry returns a registry with the text and JSON validators, sharing one set of
// named matchers.
func NewRegistry() *Registry {
	named := NewMatcherRegistry()
	r := &Registry{
		validators: make(map[string]Validator),
		matchers:   named,
	}
	r.Register(FormatText, TextValidator{Matchers: named})
	r.Register(FormatJSON, JSONValidator{Matchers: named})
	return r
}

// Matchers returns the named matchers used by the built-in validators.
func (r *Registry) Matchers() *MatcherRegistry { return r.matchers }

// Register adds or replaces the validator for a format.
func (r *Registry) Register(format string, v Validator) {
	r.lock.Lock()
	r.validators[format] = v
	r.lock.Unlock()
}

// Validate dispatches to the validator for ctx's format.
func (r *Registry) Validate(msg message.Message, ctx Context) error {
	r.lock.RLock()
	v, ok := r.validators[ctx.FormatOrDefault()]
	r.lock.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no validator for format %q", ErrConfiguration, ctx.FormatOrDefault())
	}
	return v.Validate(msg.Clone(), ctx)
}

// checkHeadersAndPaths applies the header and path expectations, which work the same way
// for every format. The payload is parsed as JSON only if there are path expectations.
func checkHeadersAndPaths(msg message.Message, ctx Context, named *MatcherRegistry, ps *problems) error {
	for _, h := range ctx.Headers {
		m, err := h.Predicate.Build(named)
		if err != nil {
			return err
		}
		value, present := msg.Headers[h.Name]
		if !present {
			ps.add(fmt.Sprintf("header %q is missing", h.Name))
			continue
		}
		if pass, _ := m.Test(value); !pass {
			ps.add(fmt.Sprintf("header %q: expected %s but was %q", h.Name, m.Describe(value), value))
		}
	}
	if len(ctx.Paths) == 0 {
		return nil
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
		ps.add(fmt.Sprintf("payload is not valid JSON, so path expectations cannot be checked: %s", err))
		return nil
	}
	for _, pe := range ctx.Paths {
		m, err := pe.Predicate.Build(named)
		if err != nil {
			return err
		}
		result, err := jmespath.Search(pe.Path, doc)
		if err != nil {
			return fmt.Errorf("%w: invalid path %q: %s", ErrConfiguration, pe.Path, err)
		}
		if result == nil {
			ps.add(fmt.Sprintf("path %q: no value found", pe.Path))
			continue
		}
		if pass, _ := m.Test(result); !pass {
			ps.add(fmt.Sprintf("path %q: expected %s but was %s", pe.Path, m.Describe(result),
				matchers.JSONDescription(result)))
		}
	}
	return nil
}

// TextValidator compares payloads as plain text.
type TextValidator struct {
	Matchers *MatcherRegistry
}

func (v TextValidator) Validate(msg message.Message, ctx Context) error {
	var ps problems
	if expected, ok := ctx.ControlPayload.Get(); ok {
		actual := msg.Payload
		if ctx.IgnoreWhitespace {
			expected, actual = normalizeWhitespace(expected), normalizeWhitespace(actual)
		}
		if actual != expected {
			ps.add(fmt.Sprintf("payload: expected %q but was %q", expected, actual))
		}
	}
	if err := checkHeadersAndPaths(msg, ctx, v.Matchers, &ps); err != nil {
		return err
	}
	return ps.err()
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
