package opt

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type endpointRef struct {
	Name string `json:"name"`
}

func TestNoneAndSome(t *testing.T) {
	assert.False(t, None[string]().IsDefined())
	assert.Equal(t, "", None[string]().Value())
	assert.Equal(t, endpointRef{}, None[endpointRef]().Value())

	assert.True(t, Some("").IsDefined())
	assert.Equal(t, "x", Some("x").Value())
}

func TestGet(t *testing.T) {
	v, ok := Some(3).Get()
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = None[int]().Get()
	assert.False(t, ok)
}

func TestOrElse(t *testing.T) {
	assert.Equal(t, time.Second, None[time.Duration]().OrElse(time.Second))
	assert.Equal(t, time.Minute, Some(time.Minute).OrElse(time.Second))
}

func TestFromPtr(t *testing.T) {
	assert.Equal(t, None[string](), FromPtr((*string)(nil)))
	s := "x"
	assert.Equal(t, Some(s), FromPtr(&s))
}

func TestMap(t *testing.T) {
	assert.Equal(t, Some("4"), Map(Some(4), strconv.Itoa))
	assert.Equal(t, None[string](), Map(None[int](), strconv.Itoa))
}

func TestString(t *testing.T) {
	assert.Equal(t, "[none]", None[int]().String())
	assert.Equal(t, "3", Some(3).String())
	assert.Equal(t, "1s", Some(time.Second).String())
}

func TestMarshalUnmarshal(t *testing.T) {
	testMarshalUnmarshal(t, None[int](), "null")
	testMarshalUnmarshal(t, Some(3), "3")
	testMarshalUnmarshal(t, Some(endpointRef{Name: "E1"}), `{"name": "E1"}`)

	var m Maybe[endpointRef]
	assert.Error(t, m.UnmarshalJSON([]byte(`malformed json`)))
	assert.Error(t, m.UnmarshalJSON([]byte(`{"name": true}`)))
}

func testMarshalUnmarshal[V any](t *testing.T, expected Maybe[V], expectedJSON string) {
	data, err := json.Marshal(expected)
	require.NoError(t, err)
	assert.JSONEq(t, expectedJSON, string(data))

	var actual Maybe[V]
	require.NoError(t, json.Unmarshal([]byte(expectedJSON), &actual))
	assert.Equal(t, expected, actual)
}
