package servicedef

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	o "github.com/testharness/orchestrator/framework/opt"
)

const (
	StatusDraft    = "DRAFT"
	StatusReviewed = "REVIEWED"
	StatusFinal    = "FINAL"
	StatusDisabled = "DISABLED"
)

// CreationDateLayout is the format of TestCaseDefinition.CreationDate.
const CreationDateLayout = "2006-01-02"

// TestCaseDefinition is the top level of a definition file. Constants and Parameters are
// consumed by the loader before the rest of the file is parsed; they are declared here only
// so that strict parsing accepts them.
type TestCaseDefinition struct {
	Constants    ldvalue.Value        `json:"constants,omitempty"`
	Parameters   ldvalue.Value        `json:"parameters,omitempty"`
	Name         string               `json:"name"`
	Package      string               `json:"package,omitempty"`
	Description  string               `json:"description,omitempty"`
	Author       string               `json:"author,omitempty"`
	Status       string               `json:"status,omitempty"`
	CreationDate string               `json:"creationDate,omitempty"`
	Variables    []VariableDefinition `json:"variables,omitempty"`
	Actions      []ActionDefinition   `json:"actions"`
	Finally      []ActionDefinition   `json:"finally,omitempty"`
}

type VariableDefinition struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ActionDefinition describes one action. Exactly one of the action fields must be set.
// Name overrides the reported action name of send, receive and container actions.
type ActionDefinition struct {
	Name         string                     `json:"name,omitempty"`
	Send         o.Maybe[SendDefinition]    `json:"send,omitempty"`
	Receive      o.Maybe[ReceiveDefinition] `json:"receive,omitempty"`
	Wait         o.Maybe[string]            `json:"wait,omitempty"`
	Log          o.Maybe[string]            `json:"log,omitempty"`
	SetVariables []VariableDefinition       `json:"setVariables,omitempty"`
	Fail         o.Maybe[string]            `json:"fail,omitempty"`
	Sequence     []ActionDefinition         `json:"sequence,omitempty"`
	Parallel     []ActionDefinition         `json:"parallel,omitempty"`
	Iterate      o.Maybe[IterateDefinition] `json:"iterate,omitempty"`
}

type SendDefinition struct {
	Endpoint string            `json:"endpoint"`
	Payload  string            `json:"payload,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

type ReceiveDefinition struct {
	Endpoint         string                  `json:"endpoint"`
	TimeoutMillis    o.Maybe[int]            `json:"timeoutMs,omitempty"`
	Format           string                  `json:"format,omitempty"`
	Payload          o.Maybe[string]         `json:"payload,omitempty"`
	IgnoreWhitespace bool                    `json:"ignoreWhitespace,omitempty"`
	Headers          []ExpectationDefinition `json:"headers,omitempty"`
	Paths            []ExpectationDefinition `json:"paths,omitempty"`
	Extract          []ExtractionDefinition  `json:"extract,omitempty"`
}

// ExpectationDefinition checks one header (for ReceiveDefinition.Headers) or one JMESPath
// query result (for ReceiveDefinition.Paths). Exactly one of Value, Pattern and Matcher is
// set.
type ExpectationDefinition struct {
	Header  string          `json:"header,omitempty"`
	Path    string          `json:"path,omitempty"`
	Value   o.Maybe[string] `json:"value,omitempty"`
	Pattern string          `json:"pattern,omitempty"`
	Matcher string          `json:"matcher,omitempty"`
	Args    []string        `json:"args,omitempty"`
}

// ExtractionDefinition stores a header or a JMESPath query result in a variable.
type ExtractionDefinition struct {
	Variable string `json:"variable"`
	Header   string `json:"header,omitempty"`
	Path     string `json:"path,omitempty"`
}

type IterateDefinition struct {
	Index         string             `json:"index,omitempty"`
	Start         int                `json:"start,omitempty"`
	Step          int                `json:"step,omitempty"`
	Condition     string             `json:"condition,omitempty"`
	MaxIterations int                `json:"maxIterations,omitempty"`
	Actions       []ActionDefinition `json:"actions"`
}
