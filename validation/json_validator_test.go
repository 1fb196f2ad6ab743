package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testharness/orchestrator/framework/opt"
	"github.com/testharness/orchestrator/message"
)

func jsonContext(control string) Context {
	return Context{Format: FormatJSON, ControlPayload: opt.Some(control)}
}

func TestJSONValidatorIgnoresKeyOrderAndFormatting(t *testing.T) {
	err := NewRegistry().Validate(
		message.New(`{ "b": [1, 2],   "a": {"x": true} }`, nil),
		jsonContext(`{"a":{"x":true},"b":[1,2]}`),
	)
	assert.NoError(t, err)
}

func TestJSONValidatorReportsPathQualifiedProblems(t *testing.T) {
	err := NewRegistry().Validate(
		message.New(`{"a":{"x":false},"b":[1],"c":"extra"}`, nil),
		jsonContext(`{"a":{"x":true,"y":1},"b":[1,2]}`),
	)
	assert.Equal(t, []string{
		"$.a.x: expected true but was false",
		"$.a.y: missing",
		"$.b: expected 2 elements but there were 1",
		"$.c: unexpected key",
	}, requireProblems(t, err))
}

func TestJSONValidatorIgnorePlaceholder(t *testing.T) {
	r := NewRegistry()
	ctx := jsonContext(`{"id":"@ignore@","name":"x"}`)
	assert.NoError(t, r.Validate(message.New(`{"id":{"nested":1},"name":"x"}`, nil), ctx))
	assert.Equal(t, []string{"$.id: missing"},
		requireProblems(t, r.Validate(message.New(`{"name":"x"}`, nil), ctx)))
}

func TestJSONValidatorTypeMismatch(t *testing.T) {
	err := NewRegistry().Validate(message.New(`[1]`, nil), jsonContext(`{"a":1}`))
	assert.Equal(t, []string{"$: expected an object but was [1]"}, requireProblems(t, err))
}

func TestJSONValidatorInvalidPayload(t *testing.T) {
	r := NewRegistry()
	requireProblems(t, r.Validate(message.New(`not json`, nil), jsonContext(`{}`)))
	assert.ErrorIs(t, r.Validate(message.New(`{}`, nil), jsonContext(`{`)), ErrConfiguration)
}

func TestPathExpectations(t *testing.T) {
	r := NewRegistry()
	msg := message.New(`{"order":{"id":"A-1","items":[{"qty":3},{"qty":5}]}}`, nil)

	ok := Context{Paths: []PathExpectation{
		{Path: "order.id", Predicate: ExactValue("A-1")},
		{Path: "order.items[1].qty", Predicate: NamedMatcher("greaterThan", "4")},
		{Path: "length(order.items)", Predicate: ExactValue("2")},
	}}
	assert.NoError(t, r.Validate(msg, ok))

	bad := Context{Paths: []PathExpectation{
		{Path: "order.missing", Predicate: ExactValue("x")},
		{Path: "order.items[0].qty", Predicate: ExactValue("4")},
	}}
	assert.Equal(t, []string{
		`path "order.missing": no value found`,
		`path "order.items[0].qty": expected equal to "4" but was 3`,
	}, requireProblems(t, r.Validate(msg, bad)))

	invalid := Context{Paths: []PathExpectation{{Path: "order[", Predicate: ExactValue("x")}}}
	assert.ErrorIs(t, r.Validate(msg, invalid), ErrConfiguration)
}

func TestJSONValidatorErrorShowsReceivedPayload(t *testing.T) {
	err := NewRegistry().Validate(message.New(`{"b":2, "a":1}`, nil), jsonContext(`{"a":1,"b":3}`))
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, `{"a":1,"b":2}`, verr.Received)
	assert.Contains(t, err.Error(), `received: {"a":1,"b":2}`)
}
