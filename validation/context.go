// Package validation checks received messages against the expectations attached to a
// Receive action. Validators are pluggable per message format.
package validation

import (
	"fmt"
	"regexp"

	"github.com/testharness/orchestrator/framework/matchers"
	"github.com/testharness/orchestrator/framework/opt"
)

// Message formats with a built-in Validator.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// PredicateKind says how a Predicate compares a value.
type PredicateKind string

const (
	// Exact requires the value to equal Predicate.Value.
	Exact PredicateKind = "exact"
	// Pattern requires the whole value to match the regular expression in Predicate.Value.
	Pattern PredicateKind = "pattern"
	// Named applies the named custom matcher in Predicate.Matcher with Predicate.Args.
	Named PredicateKind = "matcher"
)

// Predicate is one expectation about a single value.
type Predicate struct {
	Kind    PredicateKind
	Value   string
	Matcher string
	Args    []string
}

// ExactValue returns an Exact predicate.
func ExactValue(value string) Predicate { return Predicate{Kind: Exact, Value: value} }

// PatternValue returns a Pattern predicate.
func PatternValue(pattern string) Predicate { return Predicate{Kind: Pattern, Value: pattern} }

// NamedMatcher returns a Named predicate.
func NamedMatcher(name string, args ...string) Predicate {
	return Predicate{Kind: Named, Matcher: name, Args: args}
}

// HeaderExpectation applies a Predicate to one message header.
type HeaderExpectation struct {
	Name string
	Predicate
}

// PathExpectation applies a Predicate to the result of a JMESPath query over a JSON payload.
type PathExpectation struct {
	Path string
	Predicate
}

// Extraction copies a header, or the result of a JMESPath query, into a variable once the
// message has passed validation. Exactly one of Header and Path is set.
type Extraction struct {
	Variable string
	Header   string
	Path     string
}

// Context describes how a received message is checked.
type Context struct {
	Format           string
	ControlPayload   opt.Maybe[string]
	IgnoreWhitespace bool
	Headers          []HeaderExpectation
	Paths            []PathExpectation
	Extract          []Extraction
}

// FormatOrDefault returns Format, or FormatText if none was given.
func (c Context) FormatOrDefault() string {
	if c.Format == "" {
		return FormatText
	}
	return c.Format
}

// Resolve returns a copy of the context with resolve applied to every template: the control
// payload and the values and arguments of all predicates.
func (c Context) Resolve(resolve func(string) (string, error)) (Context, error) {
	ret := c
	if payload, ok := c.ControlPayload.Get(); ok {
		resolved, err := resolve(payload)
		if err != nil {
			return Context{}, err
		}
		ret.ControlPayload = opt.Some(resolved)
	}
	ret.Headers = make([]HeaderExpectation, 0, len(c.Headers))
	for _, h := range c.Headers {
		p, err := h.Predicate.resolve(resolve)
		if err != nil {
			return Context{}, err
		}
		ret.Headers = append(ret.Headers, HeaderExpectation{Name: h.Name, Predicate: p})
	}
	ret.Paths = make([]PathExpectation, 0, len(c.Paths))
	for _, pe := range c.Paths {
		p, err := pe.Predicate.resolve(resolve)
		if err != nil {
			return Context{}, err
		}
		ret.Paths = append(ret.Paths, PathExpectation{Path: pe.Path, Predicate: p})
	}
	return ret, nil
}

func (p Predicate) resolve(resolve func(string) (string, error)) (Predicate, error) {
	ret := p
	var err error
	if ret.Value, err = resolve(p.Value); err != nil {
		return Predicate{}, err
	}
	if p.Args != nil {
		ret.Args = make([]string, len(p.Args))
		for i, a := range p.Args {
			if ret.Args[i], err = resolve(a); err != nil {
				return Predicate{}, err
			}
		}
	}
	return ret, nil
}

// Build converts the predicate into a Matcher.
func (p Predicate) Build(named *MatcherRegistry) (matchers.Matcher, error) {
	switch p.Kind {
	case Exact, "":
		return matchers.EqualString(p.Value), nil
	case Pattern:
		rx, err := regexp.Compile(p.Value)
		if err != nil {
			return matchers.Matcher{}, fmt.Errorf("%w: invalid pattern %q: %s", ErrConfiguration, p.Value, err)
		}
		return matchers.MatchesPattern(rx), nil
	case Named:
		return named.Build(p.Matcher, p.Args)
	default:
		return matchers.Matcher{}, fmt.Errorf("%w: unknown predicate kind %q", ErrConfiguration, p.Kind)
	}
}
