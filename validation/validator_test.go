package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testharness/orchestrator/framework/opt"
	"github.com/testharness/orchestrator/message"
)

func requireProblems(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	var verr *Error
	require.True(t, errors.As(err, &verr), "expected *validation.Error, got %T: %s", err, err)
	return verr.Problems
}

func TestTextValidatorExactPayload(t *testing.T) {
	r := NewRegistry()
	ctx := Context{ControlPayload: opt.Some("42")}

	assert.NoError(t, r.Validate(message.New("42", nil), ctx))

	problems := requireProblems(t, r.Validate(message.New("41", nil), ctx))
	assert.Equal(t, []string{`payload: expected "42" but was "41"`}, problems)
}

func TestTextValidatorIgnoreWhitespace(t *testing.T) {
	r := NewRegistry()
	ctx := Context{ControlPayload: opt.Some("hello  world\n"), IgnoreWhitespace: true}
	assert.NoError(t, r.Validate(message.New(" hello\tworld", nil), ctx))

	ctx.IgnoreWhitespace = false
	requireProblems(t, r.Validate(message.New(" hello\tworld", nil), ctx))
}

func TestTextValidatorWithoutControlPayloadAcceptsAnything(t *testing.T) {
	assert.NoError(t, NewRegistry().Validate(message.New("whatever", nil), Context{}))
}

func TestHeaderExpectations(t *testing.T) {
	r := NewRegistry()
	msg := message.New("", map[string]string{"operation": "greeting", "id": "abc-123"})

	t.Run("exact", func(t *testing.T) {
		ctx := Context{Headers: []HeaderExpectation{{Name: "operation", Predicate: ExactValue("greeting")}}}
		assert.NoError(t, r.Validate(msg, ctx))
	})

	t.Run("pattern", func(t *testing.T) {
		ctx := Context{Headers: []HeaderExpectation{{Name: "id", Predicate: PatternValue("[a-z]+-[0-9]+")}}}
		assert.NoError(t, r.Validate(msg, ctx))
		ctx = Context{Headers: []HeaderExpectation{{Name: "id", Predicate: PatternValue("[a-z]+")}}}
		requireProblems(t, r.Validate(msg, ctx))
	})

	t.Run("named matcher", func(t *testing.T) {
		ctx := Context{Headers: []HeaderExpectation{{Name: "operation", Predicate: NamedMatcher("startsWith", "greet")}}}
		assert.NoError(t, r.Validate(msg, ctx))
	})

	t.Run("missing header", func(t *testing.T) {
		ctx := Context{Headers: []HeaderExpectation{{Name: "absent", Predicate: ExactValue("x")}}}
		assert.Equal(t, []string{`header "absent" is missing`}, requireProblems(t, r.Validate(msg, ctx)))
	})

	t.Run("all failures are reported", func(t *testing.T) {
		ctx := Context{Headers: []HeaderExpectation{
			{Name: "operation", Predicate: ExactValue("farewell")},
			{Name: "absent", Predicate: ExactValue("x")},
		}}
		assert.Len(t, requireProblems(t, r.Validate(msg, ctx)), 2)
	})
}

func TestUnknownMatcherIsConfigurationError(t *testing.T) {
	ctx := Context{Headers: []HeaderExpectation{{Name: "a", Predicate: NamedMatcher("noSuchMatcher")}}}
	err := NewRegistry().Validate(message.New("", map[string]string{"a": "b"}), ctx)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestUnknownFormatIsConfigurationError(t *testing.T) {
	err := NewRegistry().Validate(message.New("", nil), Context{Format: "xml"})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCustomValidator(t *testing.T) {
	r := NewRegistry()
	var seen message.Message
	r.Register("custom", validatorFunc(func(msg message.Message, ctx Context) error {
		seen = msg
		return nil
	}))
	msg := message.New("payload", map[string]string{"a": "b"})
	require.NoError(t, r.Validate(msg, Context{Format: "custom"}))
	assert.Equal(t, msg, seen)
}

func TestValidatorDoesNotModifyMessage(t *testing.T) {
	r := NewRegistry()
	r.Register("mutating", validatorFunc(func(msg message.Message, ctx Context) error {
		msg.Headers["a"] = "changed"
		return nil
	}))
	msg := message.New("payload", map[string]string{"a": "b"})
	require.NoError(t, r.Validate(msg, Context{Format: "mutating"}))
	assert.Equal(t, "b", msg.Headers["a"])
}

func TestContextResolve(t *testing.T) {
	ctx := Context{
		ControlPayload: opt.Some("${x}"),
		Headers:        []HeaderExpectation{{Name: "h", Predicate: NamedMatcher("contains", "${x}")}},
		Paths:          []PathExpectation{{Path: "a", Predicate: ExactValue("${x}")}},
	}
	resolved, err := ctx.Resolve(func(s string) (string, error) {
		if s == "${x}" {
			return "1", nil
		}
		return s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, opt.Some("1"), resolved.ControlPayload)
	assert.Equal(t, []string{"1"}, resolved.Headers[0].Args)
	assert.Equal(t, "1", resolved.Paths[0].Value)
	assert.Equal(t, "${x}", ctx.Headers[0].Args[0], "original context must be unchanged")

	_, err = ctx.Resolve(func(string) (string, error) { return "", errors.New("sorry") })
	assert.Error(t, err)
}

type validatorFunc func(message.Message, Context) error

func (f validatorFunc) Validate(msg message.Message, ctx Context) error { return f(msg, ctx) }
