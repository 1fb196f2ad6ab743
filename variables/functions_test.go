package variables

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, name string, args ...string) string {
	t.Helper()
	s, err := NewFunctionRegistry().Call(name, args)
	require.NoError(t, err)
	return s
}

func TestRandomString(t *testing.T) {
	assert.Regexp(t, `^[A-Za-z0-9]{10}$`, call(t, "randomString", "10"))
	assert.Regexp(t, `^[A-Z]{4}$`, call(t, "randomString", "4", "UPPERCASE"))
	assert.Regexp(t, `^[a-z]{4}$`, call(t, "randomString", "4", "lowercase"))
}

func TestRandomNumber(t *testing.T) {
	s := call(t, "randomNumber", "6")
	assert.Regexp(t, `^[1-9][0-9]{5}$`, s)
}

func TestRandomUUID(t *testing.T) {
	_, err := uuid.Parse(call(t, "randomUUID"))
	assert.NoError(t, err)
}

func TestRandomPattern(t *testing.T) {
	for _, pattern := range []string{`[A-F]{3}-[0-9]{2,4}`, `(foo|bar)baz?`, `\d+x*`} {
		rx := regexp.MustCompile(`^(?:` + pattern + `)$`)
		for i := 0; i < 20; i++ {
			s := call(t, "randomPattern", pattern)
			assert.True(t, rx.MatchString(s), "%q does not match %q", s, pattern)
		}
	}
}

func TestCurrentDate(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	s := call(t, "currentDate", "2006-01-02")
	tomorrow := time.Now().Add(24 * time.Hour).Format("2006-01-02")
	assert.Contains(t, []string{today, tomorrow}, s)
	assert.Equal(t, time.Now().Add(48*time.Hour).Format("2006"), call(t, "currentDate", "2006", "48h")[:4])
}

func TestStringFunctions(t *testing.T) {
	assert.Equal(t, "ABC", call(t, "upperCase", "abc"))
	assert.Equal(t, "abc", call(t, "lowerCase", "ABC"))
	assert.Equal(t, "aGk=", call(t, "encodeBase64", "hi"))
	assert.Equal(t, "hi", call(t, "decodeBase64", "aGk="))
	assert.Equal(t, "3", call(t, "stringLength", "héé"))
	assert.Equal(t, "ell", call(t, "substring", "hello", "1", "4"))
	assert.Equal(t, "llo", call(t, "substring", "hello", "2"))
	assert.Equal(t, "abc", call(t, "concat", "a", "b", "c"))
	assert.Equal(t, 64, len(call(t, "sha256", "x")))
}

func TestFunctionArgumentErrors(t *testing.T) {
	r := NewFunctionRegistry()
	_, err := r.Call("randomString", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "expected 1 to 2 arguments"))

	_, err = r.Call("substring", []string{"abc", "2", "9"})
	assert.Error(t, err)
}

func TestRegisterCustomFunction(t *testing.T) {
	r := NewFunctionRegistry()
	assert.False(t, r.Has("answer"))
	r.Register("answer", func([]string) (string, error) { return "42", nil })
	assert.True(t, r.Has("answer"))

	c := NewContext(r)
	s, err := c.Resolve("${answer()}")
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	r.Register("broken", func([]string) (string, error) { return "", errors.New("boom") })
	_, err = c.Resolve("${broken()}")
	assert.ErrorContains(t, err, "boom")
}
