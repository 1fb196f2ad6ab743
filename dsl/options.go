// Package dsl provides the two ways of writing a test case: a Builder that assembles the
// whole action tree before anything runs, and a Runner that executes each action as soon
// as it is defined. Both produce the same testcase.TestCase structure and Outcome.
package dsl

import (
	"errors"
	"time"

	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/framework/opt"
	"github.com/testharness/orchestrator/testcase"
	"github.com/testharness/orchestrator/validation"
)

// Definition holds a test case's metadata and variable definitions.
type Definition struct {
	Meta      testcase.Meta
	Variables []testcase.Variable
}

// DefinitionOption configures a Definition.
type DefinitionOption = helpers.ConfigOption[Definition]

func definitionOption(fn func(*Definition)) DefinitionOption {
	return helpers.OptionFunc[Definition](func(d *Definition) error {
		fn(d)
		return nil
	})
}

// Package sets the owning package of the test case.
func Package(name string) DefinitionOption {
	return definitionOption(func(d *Definition) { d.Meta.Package = name })
}

// Description sets the test case description.
func Description(text string) DefinitionOption {
	return definitionOption(func(d *Definition) { d.Meta.Description = text })
}

// Author sets the test case author.
func Author(name string) DefinitionOption {
	return definitionOption(func(d *Definition) { d.Meta.Author = name })
}

// WithStatus sets the review status. A disabled test case is skipped.
func WithStatus(status testcase.Status) DefinitionOption {
	return helpers.OptionFunc[Definition](func(d *Definition) error {
		switch status {
		case testcase.StatusDraft, testcase.StatusReviewed, testcase.StatusFinal, testcase.StatusDisabled:
			d.Meta.Status = status
			return nil
		default:
			return errors.New("unknown test case status " + string(status))
		}
	})
}

// CreatedOn sets the creation date.
func CreatedOn(date time.Time) DefinitionOption {
	return definitionOption(func(d *Definition) { d.Meta.CreationDate = date })
}

// Var adds a variable definition. The value is a template, resolved when execution starts.
func Var(name, value string) DefinitionOption {
	return definitionOption(func(d *Definition) {
		d.Variables = append(d.Variables, testcase.Variable{Name: name, Value: value})
	})
}

// Settings collects the optional parts of a Send or Receive action.
type Settings struct {
	Label      string
	Payload    string
	Headers    map[string]string
	Timeout    time.Duration
	Validation validation.Context
}

// Option configures a Send or Receive action. The same options are used in both modes.
type Option = helpers.ConfigOption[Settings]

func option(fn func(*Settings)) Option {
	return helpers.OptionFunc[Settings](func(s *Settings) error {
		fn(s)
		return nil
	})
}

// Named sets the display name of the action.
func Named(label string) Option { return option(func(s *Settings) { s.Label = label }) }

// Payload sets the payload template of a Send.
func Payload(template string) Option { return option(func(s *Settings) { s.Payload = template }) }

// Header adds a header template to a Send.
func Header(name, value string) Option {
	return option(func(s *Settings) {
		if s.Headers == nil {
			s.Headers = make(map[string]string)
		}
		s.Headers[name] = value
	})
}

// Timeout sets how long a Receive waits for a message.
func Timeout(d time.Duration) Option {
	return helpers.OptionFunc[Settings](func(s *Settings) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		s.Timeout = d
		return nil
	})
}

// Format selects the validator for a Receive, such as validation.FormatJSON.
func Format(format string) Option {
	return option(func(s *Settings) { s.Validation.Format = format })
}

// ExpectPayload sets the expected payload template of a Receive.
func ExpectPayload(template string) Option {
	return option(func(s *Settings) { s.Validation.ControlPayload = opt.Some(template) })
}

// IgnoreWhitespace makes a text payload comparison treat runs of whitespace as equal.
func IgnoreWhitespace() Option {
	return option(func(s *Settings) { s.Validation.IgnoreWhitespace = true })
}

// ExpectHeader requires a header to equal a value.
func ExpectHeader(name, value string) Option {
	return expectHeader(name, validation.ExactValue(value))
}

// ExpectHeaderPattern requires a header to match a regular expression in full.
func ExpectHeaderPattern(name, pattern string) Option {
	return expectHeader(name, validation.PatternValue(pattern))
}

// ExpectHeaderMatching applies a named matcher to a header.
func ExpectHeaderMatching(name, matcher string, args ...string) Option {
	return expectHeader(name, validation.NamedMatcher(matcher, args...))
}

func expectHeader(name string, p validation.Predicate) Option {
	return option(func(s *Settings) {
		s.Validation.Headers = append(s.Validation.Headers, validation.HeaderExpectation{Name: name, Predicate: p})
	})
}

// ExpectPath requires a JMESPath query over the JSON payload to produce a value.
func ExpectPath(path, value string) Option {
	return expectPath(path, validation.ExactValue(value))
}

// ExpectPathPattern requires the result of a JMESPath query to match a regular expression
// in full.
func ExpectPathPattern(path, pattern string) Option {
	return expectPath(path, validation.PatternValue(pattern))
}

// ExpectPathMatching applies a named matcher to the result of a JMESPath query.
func ExpectPathMatching(path, matcher string, args ...string) Option {
	return expectPath(path, validation.NamedMatcher(matcher, args...))
}

func expectPath(path string, p validation.Predicate) Option {
	return option(func(s *Settings) {
		s.Validation.Paths = append(s.Validation.Paths, validation.PathExpectation{Path: path, Predicate: p})
	})
}

// ExtractHeader stores a header of the received message in a variable.
func ExtractHeader(variable, header string) Option {
	return option(func(s *Settings) {
		s.Validation.Extract = append(s.Validation.Extract, validation.Extraction{Variable: variable, Header: header})
	})
}

// ExtractPath stores the result of a JMESPath query over the received payload in a variable.
func ExtractPath(variable, path string) Option {
	return option(func(s *Settings) {
		s.Validation.Extract = append(s.Validation.Extract, validation.Extraction{Variable: variable, Path: path})
	})
}

var (
	errExpectationOnSend = errors.New("expectation options only apply to Receive")
	errPayloadOnReceive  = errors.New("payload and header options only apply to Send")
)

func hasExpectations(v validation.Context) bool {
	return v.Format != "" || v.ControlPayload.IsDefined() || v.IgnoreWhitespace ||
		len(v.Headers) > 0 || len(v.Paths) > 0 || len(v.Extract) > 0
}

func sendAction(endpoint string, options []Option) (testcase.Send, error) {
	var s Settings
	if err := helpers.ApplyOptions(&s, options...); err != nil {
		return testcase.Send{}, err
	}
	if hasExpectations(s.Validation) || s.Timeout != 0 {
		return testcase.Send{}, errExpectationOnSend
	}
	return testcase.Send{Label: s.Label, Endpoint: endpoint, Payload: s.Payload, Headers: s.Headers}, nil
}

func receiveAction(endpoint string, options []Option) (testcase.Receive, error) {
	var s Settings
	if err := helpers.ApplyOptions(&s, options...); err != nil {
		return testcase.Receive{}, err
	}
	if s.Payload != "" || len(s.Headers) > 0 {
		return testcase.Receive{}, errPayloadOnReceive
	}
	return testcase.Receive{Label: s.Label, Endpoint: endpoint, Timeout: s.Timeout, Validation: s.Validation}, nil
}

// Vars is shorthand for building the variable list of a SetVariables action from
// name/value pairs. It panics if given an odd number of strings.
func Vars(nameValuePairs ...string) []testcase.Variable {
	if len(nameValuePairs)%2 != 0 {
		panic("dsl.Vars needs name/value pairs")
	}
	ret := make([]testcase.Variable, 0, len(nameValuePairs)/2)
	for i := 0; i < len(nameValuePairs); i += 2 {
		ret = append(ret, testcase.Variable{Name: nameValuePairs[i], Value: nameValuePairs[i+1]})
	}
	return ret
}
