package variables

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveVariable(t *testing.T) {
	c := NewContext(nil)
	c.SetString("x", "42")
	c.SetString("greeting", "hi")

	s, err := c.Resolve("value=${x}, ${greeting}!")
	require.NoError(t, err)
	assert.Equal(t, "value=42, hi!", s)
}

func TestResolveWithoutPlaceholders(t *testing.T) {
	s, err := NewContext(nil).Resolve("plain text {not a placeholder}")
	require.NoError(t, err)
	assert.Equal(t, "plain text {not a placeholder}", s)
}

func TestResolveUnknownVariableIsAnError(t *testing.T) {
	c := NewContext(nil)
	s, err := c.Resolve("${x}")
	require.Error(t, err)
	assert.Equal(t, "", s)
	assert.True(t, errors.Is(err, ErrUnresolved))

	var ee *ExpressionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "${x}", ee.Expression)
}

func TestResolveSeesLaterWrites(t *testing.T) {
	c := NewContext(nil)
	_, err := c.Resolve("${x}")
	assert.Error(t, err)
	c.SetString("x", "42")
	s, err := c.Resolve("${x}")
	require.NoError(t, err)
	assert.Equal(t, "42", s)
}

func TestResolveNestedPlaceholder(t *testing.T) {
	c := NewContext(nil)
	c.SetString("len", "5")
	c.SetString("name", "len")
	s, err := c.Resolve("${randomString(${len})}")
	require.NoError(t, err)
	assert.Len(t, s, 5)

	s, err = c.Resolve("${${name}}")
	require.NoError(t, err)
	assert.Equal(t, "5", s)
}

func TestResolveFunctionCall(t *testing.T) {
	c := NewContext(nil)
	c.SetString("who", "World")
	s, err := c.Resolve("${concat('Hello, ', ${who})}")
	require.NoError(t, err)
	assert.Equal(t, "Hello, World", s)

	s, err = c.Resolve(`${upperCase("abc")}`)
	require.NoError(t, err)
	assert.Equal(t, "ABC", s)
}

func TestResolveUnknownFunction(t *testing.T) {
	_, err := NewContext(nil).Resolve("${noSuchThing(1)}")
	assert.True(t, errors.Is(err, ErrUnknownFunction))
}

func TestResolveEscapedPlaceholder(t *testing.T) {
	s, err := NewContext(nil).Resolve(`literal \${x}`)
	require.NoError(t, err)
	assert.Equal(t, "literal ${x}", s)
}

func TestResolveSyntaxErrors(t *testing.T) {
	c := NewContext(nil)
	for _, template := range []string{"${x", "${}", "${concat('a)}"} {
		t.Run(template, func(t *testing.T) {
			_, err := c.Resolve(template)
			assert.True(t, errors.Is(err, ErrSyntax), "error was: %v", err)
		})
	}
}

func TestResolveAll(t *testing.T) {
	c := NewContext(nil)
	c.SetString("id", "7")
	m, err := c.ResolveAll(map[string]string{"a": "${id}", "b": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "7", "b": "x"}, m)

	_, err = c.ResolveAll(map[string]string{"a": "${missing}"})
	assert.Error(t, err)
}

func TestResolveFunctionArgumentsKeepVariableValues(t *testing.T) {
	c := NewContext(nil)
	c.SetString("name", "Doe, John")
	c.SetString("quoted", "it's")
	c.SetString("paren", "a) b")

	s, err := c.Resolve("${upperCase(${name})}")
	require.NoError(t, err)
	assert.Equal(t, "DOE, JOHN", s)

	s, err = c.Resolve("${upperCase(${quoted})}")
	require.NoError(t, err)
	assert.Equal(t, "IT'S", s)

	s, err = c.Resolve("${concat(${paren}, '-', ${name})}")
	require.NoError(t, err)
	assert.Equal(t, "a) b-Doe, John", s)

	s, err = c.Resolve("${concat('<', ${quoted}, '>')}")
	require.NoError(t, err)
	assert.Equal(t, "<it's>", s)
}

func TestResolveEscapedPlaceholderInsideFunctionCall(t *testing.T) {
	c := NewContext(nil)
	c.SetString("x", "value")

	s, err := c.Resolve(`${concat('\${', ${x})}`)
	require.NoError(t, err)
	assert.Equal(t, "${value", s)

	s, err = c.Resolve(`${upperCase(\${)} and \${x}`)
	require.NoError(t, err)
	assert.Equal(t, "${ and ${x}", s)
}
