package dsl

import (
	"context"
	"errors"
	"time"

	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/testcase"
)

var errFinished = errors.New("action added after Finish")

// Runner defines a test case imperatively: each action executes as soon as it is added.
//
// Containers take a function that defines their children. Actions added inside it are
// recorded in the flat root list without executing; when the function returns they are
// moved under the container node, and then the container executes as a whole. An action
// therefore never executes before it reaches its final place in the tree, and never
// appears both in the root list and inside its container.
//
// Once an action has failed, later actions are still added to the tree but are not
// executed, just as a Sequence stops at its first failure. Finish runs the finally chain
// and returns the Outcome.
type Runner struct {
	tc       *testcase.TestCase
	run      *testcase.Run
	scope    *[]testcase.NodeID
	finished *bool
}

// NewRunner starts executing a new test case.
func NewRunner(ctx context.Context, executor *testcase.Executor, name string, options ...DefinitionOption) *Runner {
	def := Definition{Meta: testcase.Meta{Name: name, Status: testcase.StatusDraft}}
	optionErr := helpers.ApplyOptions(&def, options...)
	tc := testcase.New(def.Meta)
	tc.Variables = def.Variables
	r := &Runner{tc: tc, run: executor.Start(ctx, tc), finished: new(bool)}
	if optionErr != nil {
		r.abort(optionErr)
	}
	return r
}

// TestCase returns the test case as defined so far.
func (r *Runner) TestCase() *testcase.TestCase { return r.tc }

// Failed returns true if any action has failed so far.
func (r *Runner) Failed() bool { return r.run.Failure() != nil }

// Variable sets a variable immediately. The value is a template.
func (r *Runner) Variable(name, value string) {
	resolved, err := r.run.Vars().Resolve(value)
	if err != nil {
		r.abort(err)
		return
	}
	r.run.Vars().SetString(name, resolved)
	r.tc.Variables = append(r.tc.Variables, testcase.Variable{Name: name, Value: value})
}

// Send sends a message.
func (r *Runner) Send(endpoint string, options ...Option) {
	a, err := sendAction(endpoint, options)
	if err != nil {
		r.abort(err)
	}
	r.add(a)
}

// Receive receives and validates a message.
func (r *Runner) Receive(endpoint string, options ...Option) {
	a, err := receiveAction(endpoint, options)
	if err != nil {
		r.abort(err)
	}
	r.add(a)
}

// Wait pauses for a fixed duration.
func (r *Runner) Wait(d time.Duration) { r.add(testcase.Wait{Duration: d}) }

// WaitFor pauses for a duration computed from an expression.
func (r *Runner) WaitFor(expression string) { r.add(testcase.Wait{Expression: expression}) }

// Log writes a log line.
func (r *Runner) Log(message string) { r.add(testcase.Log{Message: message}) }

// Custom runs fn.
func (r *Runner) Custom(label string, fn testcase.CustomFunc) {
	r.add(testcase.Custom{Label: label, Fn: fn})
}

// SetVariables sets variables.
func (r *Runner) SetVariables(vars ...testcase.Variable) {
	r.add(testcase.SetVariables{Variables: vars})
}

// Fail fails the test case.
func (r *Runner) Fail(message string) { r.add(testcase.Fail{Message: message}) }

// Sequential runs the actions defined by body as a Sequence.
func (r *Runner) Sequential(body func(*Runner)) {
	r.container(testcase.Sequence{}, body)
}

// Parallel runs the actions defined by body concurrently.
func (r *Runner) Parallel(body func(*Runner)) {
	r.container(testcase.Parallel{}, body)
}

// Iterate runs the actions defined by body in a loop. More than one action is wrapped in a
// Sequence.
func (r *Runner) Iterate(loop testcase.Iterate, body func(*Runner)) {
	r.container(loop, body)
}

// Finally defines actions that run when the test case finishes, whatever the result.
func (r *Runner) Finally(body func(*Runner)) {
	for _, id := range r.capture(body) {
		if err := r.tc.Tree.Move(id, testcase.Finally()); err != nil {
			r.abort(err)
		}
	}
}

// Finish runs the finally chain and returns the Outcome. Calling it again returns the same
// Outcome.
func (r *Runner) Finish() testcase.Outcome {
	*r.finished = true
	return r.run.Finish()
}

func (r *Runner) add(a testcase.Action) {
	id, err := r.tc.Tree.Append(testcase.Root(), a)
	if err != nil {
		r.abort(err)
		return
	}
	r.place(id)
}

// place executes a node that is complete, or records it if this Runner is defining the
// children of a container.
func (r *Runner) place(id testcase.NodeID) {
	if r.scope != nil {
		*r.scope = append(*r.scope, id)
		return
	}
	if *r.finished {
		r.abort(errFinished)
		return
	}
	r.run.ExecuteNode(id)
}

func (r *Runner) capture(body func(*Runner)) []testcase.NodeID {
	var captured []testcase.NodeID
	body(&Runner{tc: r.tc, run: r.run, scope: &captured, finished: r.finished})
	return captured
}

func (r *Runner) container(container testcase.Container, body func(*Runner)) {
	captured := r.capture(body)
	id, err := r.tc.Tree.Append(testcase.Root(), container)
	if err != nil {
		r.abort(err)
		return
	}
	target := testcase.In(id)
	if _, isLoop := container.(testcase.Iterate); isLoop && len(captured) > 1 {
		seq, err := r.tc.Tree.Append(target, testcase.Sequence{})
		if err != nil {
			r.abort(err)
			return
		}
		target = testcase.In(seq)
	}
	for _, c := range captured {
		if err := r.tc.Tree.Move(c, target); err != nil {
			r.abort(err)
			return
		}
	}
	r.place(id)
}

func (r *Runner) abort(err error) {
	r.run.Abort(testcase.AsFailure(err, testcase.ConfigurationError, "", ""))
}
