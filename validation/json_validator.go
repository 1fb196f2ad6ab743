package validation

import (
	"encoding/json"
	"fmt"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/framework/matchers"
	"github.com/testharness/orchestrator/message"
)

// IgnorePlaceholder, used as a value in a JSON control payload, accepts any value at that
// position, as long as the key exists.
const IgnorePlaceholder = "@ignore@"

// JSONValidator compares payloads as JSON documents. Object key order and formatting do not
// matter; array order does.
type JSONValidator struct {
	Matchers *MatcherRegistry
}

func (v JSONValidator) Validate(msg message.Message, ctx Context) error {
	var ps problems
	if control, ok := ctx.ControlPayload.Get(); ok {
		var expected interface{}
		if err := json.Unmarshal([]byte(control), &expected); err != nil {
			return fmt.Errorf("%w: control payload is not valid JSON: %s", ErrConfiguration, err)
		}
		var actual interface{}
		if err := json.Unmarshal([]byte(msg.Payload), &actual); err != nil {
			ps.add(fmt.Sprintf("payload is not valid JSON: %s", err))
		} else {
			compareJSON("$", expected, actual, &ps)
		}
	}
	if err := checkHeadersAndPaths(msg, ctx, v.Matchers, &ps); err != nil {
		return err
	}
	if err := ps.err(); err != nil {
		if received := ldvalue.Parse([]byte(msg.Payload)); !received.IsNull() {
			err.(*Error).Received = helpers.CanonicalizedJSONString(received)
		}
		return err
	}
	return nil
}

func compareJSON(path string, expected, actual interface{}, ps *problems) {
	if s, ok := expected.(string); ok && s == IgnorePlaceholder {
		return
	}
	switch e := expected.(type) {
	case map[string]interface{}:
		a, ok := actual.(map[string]interface{})
		if !ok {
			ps.add(fmt.Sprintf("%s: expected an object but was %s", path, matchers.JSONDescription(actual)))
			return
		}
		for _, key := range helpers.SortedKeys(e) {
			av, present := a[key]
			if !present {
				ps.add(fmt.Sprintf("%s.%s: missing", path, key))
				continue
			}
			compareJSON(path+"."+key, e[key], av, ps)
		}
		for _, key := range helpers.SortedKeys(a) {
			if _, expectedKey := e[key]; !expectedKey {
				ps.add(fmt.Sprintf("%s.%s: unexpected key", path, key))
			}
		}
	case []interface{}:
		a, ok := actual.([]interface{})
		if !ok {
			ps.add(fmt.Sprintf("%s: expected an array but was %s", path, matchers.JSONDescription(actual)))
			return
		}
		if len(a) != len(e) {
			ps.add(fmt.Sprintf("%s: expected %d elements but there were %d", path, len(e), len(a)))
			return
		}
		for i := range e {
			compareJSON(fmt.Sprintf("%s[%d]", path, i), e[i], a[i], ps)
		}
	default:
		if expected != actual {
			ps.add(fmt.Sprintf("%s: expected %s but was %s", path,
				matchers.JSONDescription(expected), matchers.JSONDescription(actual)))
		}
	}
}
