package data

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/testharness/orchestrator/framework/helpers"
)

// Substitutions maps a placeholder name to its value. Within a file, "<NAME>" as a whole
// JSON string is replaced by the value's JSON form, so it can stand for a number or an
// object; anywhere else, <NAME> is replaced by the value's text.
type Substitutions map[string]ldvalue.Value

type substitutionHeader struct {
	Constants  Substitutions     `json:"constants"`
	Parameters []json.RawMessage `json:"parameters"`
}

// expandSubstitutions returns one copy of the data per parameter set, with constants and
// parameters replaced; data without parameters produces a single copy.
func expandSubstitutions(original []byte) ([]Source, error) {
	var header substitutionHeader
	if err := ParseJSONOrYAML(original, &header); err != nil {
		return nil, err
	}
	if len(header.Constants) == 0 && len(header.Parameters) == 0 {
		return []Source{{Data: original}}, nil
	}
	paramSets, err := parameterSets(header.Parameters)
	if err != nil {
		return nil, err
	}
	if len(paramSets) == 0 {
		return []Source{{Data: header.Constants.apply(original)}}, nil
	}
	sources := make([]Source, 0, len(paramSets))
	for _, params := range paramSets {
		// constants may refer to parameters and the other way around
		data := header.Constants.apply(original)
		data = params.apply(data)
		data = header.Constants.apply(data)
		sources = append(sources, Source{Data: data, Params: params})
	}
	return sources, nil
}

// parameterSets accepts either a list of objects, each being one parameter set, or a list of
// lists of objects, in which case every combination of one object from each list is a set.
// The first list varies fastest.
func parameterSets(raw []json.RawMessage) ([]Substitutions, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	all, _ := json.Marshal(raw)
	switch ldvalue.Parse(raw[0]).Type() {
	case ldvalue.ObjectType:
		var sets []Substitutions
		if err := json.Unmarshal(all, &sets); err != nil {
			return nil, err
		}
		return sets, nil
	case ldvalue.ArrayType:
		var dimensions [][]Substitutions
		if err := json.Unmarshal(all, &dimensions); err != nil {
			return nil, err
		}
		return combinations(dimensions), nil
	default:
		return nil, errors.New("parameters must be an array of objects or an array of arrays of objects")
	}
}

func combinations(dimensions [][]Substitutions) []Substitutions {
	for _, d := range dimensions {
		if len(d) == 0 {
			return nil
		}
	}
	positions := make([]int, len(dimensions))
	var result []Substitutions
	for {
		merged := make(Substitutions)
		for i, d := range dimensions {
			for k, v := range d[positions[i]] {
				merged[k] = v
			}
		}
		result = append(result, merged)

		i := 0
		for ; i < len(dimensions); i++ {
			positions[i]++
			if positions[i] < len(dimensions[i]) {
				break
			}
			positions[i] = 0
		}
		if i == len(dimensions) {
			return result
		}
	}
}

func (s Substitutions) apply(data []byte) []byte {
	text := string(data)
	// json.Marshal escapes angle brackets
	text = strings.ReplaceAll(text, `\u003c`, "<")
	text = strings.ReplaceAll(text, `\u003e`, ">")
	for _, name := range helpers.SortedKeys(s) {
		value := s[name]
		asJSON := value.JSONString()
		text = strings.ReplaceAll(text, `"<`+name+`>"`, asJSON)
		asText := asJSON
		if value.IsString() {
			asText = value.StringValue()
		}
		text = strings.ReplaceAll(text, "<"+name+">", asText)
	}
	return []byte(text)
}

// String describes the substitutions in a stable order, as "(a=1,b=x)".
func (s Substitutions) String() string {
	if len(s) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s))
	for _, name := range helpers.SortedKeys(s) {
		value := s[name]
		if value.IsString() {
			parts = append(parts, name+"="+value.StringValue())
		} else {
			parts = append(parts, name+"="+value.JSONString())
		}
	}
	return "(" + strings.Join(parts, ",") + ")"
}
