package helpers

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizedJSONString(t *testing.T) {
	v := ldvalue.Parse([]byte(`{"b":[3,{"y":1,"x":2}],"a":"s"}`))
	assert.Equal(t, `{"a":"s","b":[3,{"x":2,"y":1}]}`, CanonicalizedJSONString(v))
	assert.Equal(t, `null`, CanonicalizedJSONString(ldvalue.Null()))
}
