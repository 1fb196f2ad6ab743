package matchers

import "testing"

type header struct {
	name, value string
}

func TestTransform(t *testing.T) {
	value := Transform("header value", func(v interface{}) interface{} { return v.(header).value })
	m := value.Should(Contains("json"))
	assertPasses(t, header{"content_type", "application/json"}, m)
	assertFails(t, header{"content_type", "text/plain"}, m,
		"expected: header value containing \"json\"\nactual value was: {name:content_type value:text/plain}")
}
