package testcase

import (
	"context"
	"fmt"
	"time"

	"github.com/testharness/orchestrator/validation"
	"github.com/testharness/orchestrator/variables"
)

// Action is one node of a test case's action tree. The set of implementations is closed:
// the leaves Send, Receive, Wait, Log, Custom, SetVariables and Fail, and the containers
// Sequence, Parallel and Iterate. Containers do not hold their children; the Tree does.
//
// String fields of leaf actions are templates. They are resolved against the variable
// context when the action executes, never when it is constructed.
type Action interface {
	// Name is the display name used in results and outlines.
	Name() string
	isAction()
}

// Container is implemented by the actions that can own children in a Tree.
type Container interface {
	Action
	isContainer()
}

// Variable is a named value template.
type Variable struct {
	Name  string
	Value string
}

// Send delivers a message to an endpoint through the transport.
type Send struct {
	Label    string
	Endpoint string
	Payload  string
	Headers  map[string]string
}

// Receive takes the next message from an endpoint and validates it. If Timeout is zero,
// the executor's default receive timeout applies.
type Receive struct {
	Label      string
	Endpoint   string
	Timeout    time.Duration
	Validation validation.Context
}

// Wait pauses its own branch. Expression, if set, is resolved against the variable context
// and parsed as a Go duration or a whole number of milliseconds; otherwise Duration is used.
type Wait struct {
	Label      string
	Duration   time.Duration
	Expression string
}

// Log writes a line to the executor's logger.
type Log struct {
	Message string
}

// CustomFunc is user logic run by a Custom action.
type CustomFunc func(ctx context.Context, vars *variables.Context) error

// Custom runs arbitrary logic. An error returned by Fn fails the action.
type Custom struct {
	Label string
	Fn    CustomFunc
}

// SetVariables resolves each value template in order and stores the result.
type SetVariables struct {
	Label     string
	Variables []Variable
}

// Fail always fails, with the resolved Message.
type Fail struct {
	Message string
}

// Sequence runs its children in order and stops at the first failure.
type Sequence struct {
	Label string
}

// Parallel runs all of its children concurrently and waits for every one of them.
type Parallel struct {
	Label string
}

// Iterate runs its single child repeatedly while a condition holds.
//
// Before each iteration, the first one included, the index variable is bound and then the
// condition is checked. Condition is a variables condition expression; While, if set, is
// used instead. MaxIterations, if positive, is a safety bound: needing more iterations than
// that is an IterationBoundExceeded failure. An Iterate with neither a condition nor a bound
// is a configuration error.
type Iterate struct {
	Label         string
	Index         string
	Start         int
	Step          int
	Condition     string
	While         func(vars *variables.Context) (bool, error)
	MaxIterations int
}

// DefaultIndexVariable is the index variable name used when Iterate.Index is empty.
const DefaultIndexVariable = "i"

func (a Iterate) indexName() string {
	if a.Index == "" {
		return DefaultIndexVariable
	}
	return a.Index
}

func (a Iterate) step() int {
	if a.Step == 0 {
		return 1
	}
	return a.Step
}

func labelOr(label, fallback string) string {
	if label != "" {
		return label
	}
	return fallback
}

func (a Send) Name() string { return labelOr(a.Label, fmt.Sprintf("send(%s)", a.Endpoint)) }
func (a Receive) Name() string {
	return labelOr(a.Label, fmt.Sprintf("receive(%s)", a.Endpoint))
}
func (a Wait) Name() string {
	if a.Expression != "" {
		return labelOr(a.Label, fmt.Sprintf("wait(%s)", a.Expression))
	}
	return labelOr(a.Label, fmt.Sprintf("wait(%s)", a.Duration))
}
func (a Log) Name() string          { return "log" }
func (a Custom) Name() string       { return labelOr(a.Label, "custom") }
func (a SetVariables) Name() string { return labelOr(a.Label, "set-variables") }
func (a Fail) Name() string         { return "fail" }
func (a Sequence) Name() string     { return labelOr(a.Label, "sequence") }
func (a Parallel) Name() string     { return labelOr(a.Label, "parallel") }
func (a Iterate) Name() string {
	if a.Condition != "" {
		return labelOr(a.Label, fmt.Sprintf("iterate(%s)", a.Condition))
	}
	return labelOr(a.Label, "iterate")
}

func (Send) isAction()         {}
func (Receive) isAction()      {}
func (Wait) isAction()         {}
func (Log) isAction()          {}
func (Custom) isAction()       {}
func (SetVariables) isAction() {}
func (Fail) isAction()         {}
func (Sequence) isAction()     {}
func (Parallel) isAction()     {}
func (Iterate) isAction()      {}

func (Sequence) isContainer() {}
func (Parallel) isContainer() {}
func (Iterate) isContainer()  {}

// IsContainer returns true if the action can own children.
func IsContainer(a Action) bool {
	_, ok := a.(Container)
	return ok
}
