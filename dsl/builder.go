package dsl

import (
	"fmt"
	"time"

	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/testcase"
)

// Handle refers to an action added to a Builder.
type Handle struct {
	id testcase.NodeID
}

// ID returns the action's node in the test case tree.
func (h Handle) ID() testcase.NodeID { return h.id }

// Builder assembles a test case as data. Nothing executes until the built test case is
// given to an Executor.
//
// Leaf methods append to the root list. Sequential, Parallel and Iterate move the actions
// they are given out of wherever they are into a new container, which is appended to the
// root list; so a container must be created after its children, as in
//
//	b.Parallel(b.Send("a", ...), b.Send("b", ...))
//
// The first error, such as an invalid option or a bad move, is reported by Build.
type Builder struct {
	tc  *testcase.TestCase
	err error
}

// NewBuilder starts a test case definition.
func NewBuilder(name string, options ...DefinitionOption) *Builder {
	def := Definition{Meta: testcase.Meta{Name: name, Status: testcase.StatusDraft}}
	b := &Builder{}
	if err := helpers.ApplyOptions(&def, options...); err != nil {
		b.err = err
	}
	b.tc = testcase.New(def.Meta)
	b.tc.Variables = def.Variables
	return b
}

// Variable adds a variable definition, resolved when execution starts.
func (b *Builder) Variable(name, value string) *Builder {
	b.tc.Variables = append(b.tc.Variables, testcase.Variable{Name: name, Value: value})
	return b
}

// Send adds a Send action.
func (b *Builder) Send(endpoint string, options ...Option) Handle {
	a, err := sendAction(endpoint, options)
	b.fail(err)
	return b.add(a)
}

// Receive adds a Receive action.
func (b *Builder) Receive(endpoint string, options ...Option) Handle {
	a, err := receiveAction(endpoint, options)
	b.fail(err)
	return b.add(a)
}

// Wait adds a fixed pause.
func (b *Builder) Wait(d time.Duration) Handle { return b.add(testcase.Wait{Duration: d}) }

// WaitFor adds a pause whose length is computed from an expression at run time.
func (b *Builder) WaitFor(expression string) Handle {
	return b.add(testcase.Wait{Expression: expression})
}

// Log adds a log line.
func (b *Builder) Log(message string) Handle { return b.add(testcase.Log{Message: message}) }

// Custom adds an action that runs fn.
func (b *Builder) Custom(label string, fn testcase.CustomFunc) Handle {
	return b.add(testcase.Custom{Label: label, Fn: fn})
}

// SetVariables adds an action that sets variables.
func (b *Builder) SetVariables(vars ...testcase.Variable) Handle {
	return b.add(testcase.SetVariables{Variables: vars})
}

// Fail adds an action that always fails.
func (b *Builder) Fail(message string) Handle { return b.add(testcase.Fail{Message: message}) }

// Sequential groups actions into a Sequence.
func (b *Builder) Sequential(handles ...Handle) Handle {
	return b.group(testcase.Sequence{}, handles)
}

// Parallel groups actions into a Parallel container.
func (b *Builder) Parallel(handles ...Handle) Handle {
	return b.group(testcase.Parallel{}, handles)
}

// Iterate puts actions inside a loop. More than one action is wrapped in a Sequence, so that
// the loop has a single child.
func (b *Builder) Iterate(loop testcase.Iterate, handles ...Handle) Handle {
	if len(handles) <= 1 {
		return b.group(loop, handles)
	}
	h := b.add(loop)
	if b.err != nil {
		return h
	}
	seq, err := b.tc.Tree.Append(testcase.In(h.id), testcase.Sequence{})
	b.fail(err)
	b.moveAll(handles, testcase.In(seq))
	return h
}

// Group puts actions inside any container, which can carry its own label.
func (b *Builder) Group(container testcase.Container, handles ...Handle) Handle {
	if loop, ok := container.(testcase.Iterate); ok {
		return b.Iterate(loop, handles...)
	}
	return b.group(container, handles)
}

// Finally moves actions into the finally chain.
func (b *Builder) Finally(handles ...Handle) *Builder {
	b.moveAll(handles, testcase.Finally())
	return b
}

// Build returns the test case, or the first definition error.
func (b *Builder) Build() (*testcase.TestCase, error) {
	if b.err != nil {
		return nil, fmt.Errorf("test case %q: %w", b.tc.Name, b.err)
	}
	return b.tc, nil
}

func (b *Builder) add(a testcase.Action) Handle {
	id, err := b.tc.Tree.Append(testcase.Root(), a)
	b.fail(err)
	return Handle{id: id}
}

func (b *Builder) group(container testcase.Container, handles []Handle) Handle {
	h := b.add(container)
	b.moveAll(handles, testcase.In(h.id))
	return h
}

func (b *Builder) moveAll(handles []Handle, owner testcase.Owner) {
	for _, h := range handles {
		b.fail(b.tc.Tree.Move(h.id, owner))
	}
}

func (b *Builder) fail(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}
