package validation

import (
	"encoding/json"
	"fmt"

	"github.com/jmespath/go-jmespath"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/testharness/orchestrator/message"
)

// Extract evaluates the extractions against a message. Each header or path must produce a
// value; a missing one is reported as a validation Error naming the variable.
func Extract(msg message.Message, extractions []Extraction) (map[string]ldvalue.Value, error) {
	if len(extractions) == 0 {
		return nil, nil
	}
	ret := make(map[string]ldvalue.Value, len(extractions))
	var ps problems
	var doc interface{}
	parsed := false
	for _, x := range extractions {
		switch {
		case x.Header != "":
			value, ok := msg.Headers[x.Header]
			if !ok {
				ps.add(fmt.Sprintf("cannot set %q: header %q is missing", x.Variable, x.Header))
				continue
			}
			ret[x.Variable] = ldvalue.String(value)
		case x.Path != "":
			if !parsed {
				if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
					ps.add(fmt.Sprintf("cannot set %q: payload is not valid JSON", x.Variable))
					continue
				}
				parsed = true
			}
			result, err := jmespath.Search(x.Path, doc)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid path %q: %s", ErrConfiguration, x.Path, err)
			}
			if result == nil {
				ps.add(fmt.Sprintf("cannot set %q: path %q has no value", x.Variable, x.Path))
				continue
			}
			ret[x.Variable] = ldvalue.CopyArbitraryValue(result)
		default:
			return nil, fmt.Errorf("%w: extraction for %q names neither a header nor a path", ErrConfiguration, x.Variable)
		}
	}
	if err := ps.err(); err != nil {
		return nil, err
	}
	return ret, nil
}
