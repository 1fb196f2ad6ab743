// Package matchers provides self-describing predicates in the style of Java's Hamcrest.
// A Matcher is built separately from the value it tests, can be negated or combined, and
// produces a readable explanation when a value does not match.
//
// The validation package uses matchers for header and path expectations, and tests use
// them through Assert and Require.
package matchers

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFunc returns true if the value satisfies the matcher.
type TestFunc func(value interface{}) bool

// DescribeFailureFunc describes the expectation that a value failed. The description of
// the actual value is appended automatically, so simple matchers can return something
// like "equal to 3".
type DescribeFailureFunc func(value interface{}, describeValue DescribeValueFunc) string

// DescribeValueFunc renders a value for a failure message.
type DescribeValueFunc func(value interface{}) string

// Matcher is an expectation about a value.
type Matcher struct {
	test            TestFunc
	describeFailure DescribeFailureFunc
	describeValue   DescribeValueFunc
}

// New creates a Matcher.
func New(test TestFunc, describeFailure DescribeFailureFunc) Matcher {
	return Matcher{test: test, describeFailure: describeFailure}
}

// Test applies the matcher. On failure the string explains both the expectation and the
// actual value.
func (m Matcher) Test(value interface{}) (pass bool, failDescription string) {
	if m.matches(value) {
		return true, ""
	}
	return false, fmt.Sprintf("expected: %s\nactual value was: %s", m.describe(value), m.valueString(value))
}

// Describe returns just the expectation text for a value that failed, without the
// "expected:" prefix or the actual value.
func (m Matcher) Describe(value interface{}) string { return m.describe(value) }

func (m Matcher) matches(value interface{}) bool {
	return m.test == nil || m.test(value)
}

func (m Matcher) describe(value interface{}) string {
	if m.describeFailure == nil {
		return "no test description given"
	}
	return m.describeFailure(value, m.valueString)
}

func (m Matcher) valueString(value interface{}) string {
	if m.describeValue != nil {
		return m.describeValue(value)
	}
	return DefaultDescription(value)
}

// Assert tests the value and reports a testify assertion failure if it does not match.
func (m Matcher) Assert(t assert.TestingT, value interface{}) bool {
	if pass, desc := m.Test(value); !pass {
		return assert.Fail(t, desc)
	}
	return true
}

// Require is like Assert but stops the test on failure.
func (m Matcher) Require(t require.TestingT, value interface{}) {
	if pass, desc := m.Test(value); !pass {
		require.Fail(t, desc)
	}
}

// EnsureType makes the matcher fail, rather than panic, when the value is not of the same
// type as valueOfType. A nil valueOfType disables the check.
func (m Matcher) EnsureType(valueOfType interface{}) Matcher {
	wrongType := func(value interface{}) bool {
		return valueOfType != nil && reflect.TypeOf(value) != reflect.TypeOf(valueOfType)
	}
	ret := New(
		func(value interface{}) bool {
			return !wrongType(value) && m.matches(value)
		},
		func(value interface{}, desc DescribeValueFunc) string {
			if wrongType(value) {
				return fmt.Sprintf("value of type %T, was %T", valueOfType, value)
			}
			return m.describe(value)
		},
	)
	ret.describeValue = m.describeValue
	return ret
}

// WithValueDescription overrides how values are rendered in failure messages.
func (m Matcher) WithValueDescription(describeValue DescribeValueFunc) Matcher {
	m.describeValue = describeValue
	return m
}

// DefaultDescription uses the value's String method if it has one, or %+v otherwise.
func DefaultDescription(value interface{}) string {
	if s, ok := value.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%+v", value)
}

// JSONDescription renders a value as JSON.
func JSONDescription(value interface{}) string {
	data, _ := json.Marshal(value)
	return string(data)
}
