package dsl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/message"
	"github.com/testharness/orchestrator/testcase"
	"github.com/testharness/orchestrator/validation"
	"github.com/testharness/orchestrator/variables"
)

type echoTransport struct {
	queues map[string]chan message.Message
	lock   sync.Mutex
}

func (t *echoTransport) queue(endpoint string) chan message.Message {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.queues == nil {
		t.queues = make(map[string]chan message.Message)
	}
	if _, ok := t.queues[endpoint]; !ok {
		t.queues[endpoint] = make(chan message.Message, 100)
	}
	return t.queues[endpoint]
}

func (t *echoTransport) Send(_ context.Context, endpoint string, msg message.Message) error {
	t.queue(endpoint) <- msg
	return nil
}

func (t *echoTransport) Receive(ctx context.Context, endpoint string, timeout time.Duration) (message.Message, error) {
	if m, ok := helpers.TryReceiveContext(ctx, t.queue(endpoint), timeout).Get(); ok {
		return m, nil
	}
	return message.Message{}, message.ErrTimeout
}

func newExecutor(t *testing.T) *testcase.Executor {
	e, err := testcase.NewExecutor(&echoTransport{}, testcase.WithReceiveTimeout(100*time.Millisecond))
	require.NoError(t, err)
	return e
}

func summary(o testcase.Outcome) []string {
	var ret []string
	for _, r := range o.Results {
		s := r.Path + " " + r.Name + ":ok"
		if !r.OK() {
			s = r.Path + " " + r.Name + ":" + string(r.Failure.Kind)
		}
		ret = append(ret, s)
	}
	return ret
}

func TestBuilderEchoScenario(t *testing.T) {
	b := NewBuilder("echo", Var("greeting", "hi"))
	b.Send("E1", Payload("${greeting}"))
	b.Receive("E1", ExpectPayload("42"))
	b.Finally(b.Log("done"))
	tc, err := b.Build()
	require.NoError(t, err)

	o := newExecutor(t).Execute(context.Background(), tc)

	assert.Equal(t, testcase.Failed, o.Status)
	assert.Equal(t, testcase.ValidationFailure, o.Cause.Kind)
	assert.Equal(t, []string{
		"root/0 send(E1):ok",
		"root/1 receive(E1):ValidationFailure",
		"finally/0 log:ok",
	}, summary(o))
}

func TestRunnerEchoScenario(t *testing.T) {
	r := NewRunner(context.Background(), newExecutor(t), "echo", Var("greeting", "hi"))
	r.Send("E1", Payload("${greeting}"))
	assert.False(t, r.Failed())
	r.Receive("E1", ExpectPayload("42"))
	assert.True(t, r.Failed())
	r.Finally(func(r *Runner) { r.Log("done") })
	o := r.Finish()

	assert.Equal(t, testcase.ValidationFailure, o.Cause.Kind)
	assert.Equal(t, []string{
		"root/0 send(E1):ok",
		"root/1 receive(E1):ValidationFailure",
		"finally/0 log:ok",
	}, summary(o))
}

func TestBuilderMovesActionsIntoContainers(t *testing.T) {
	b := NewBuilder("nesting")
	first := b.Log("first")
	b.Parallel(
		b.Send("a", Payload("1")),
		b.Sequential(b.Send("b", Payload("2")), b.Receive("b")),
	)
	b.Iterate(testcase.Iterate{Condition: "i < 2"}, b.Log("x"), b.Log("y"))
	b.Finally(first)
	tc, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, `root
  parallel
    send(a)
    sequence
      send(b)
      receive(b)
  iterate(i < 2)
    sequence
      log
      log
finally
  log
`, tc.Tree.Outline())
}

func TestBuilderReportsFirstError(t *testing.T) {
	b := NewBuilder("bad")
	b.Send("a", ExpectPayload("x"))
	b.Receive("a", Payload("y"))
	_, err := b.Build()
	assert.ErrorIs(t, err, errExpectationOnSend)

	b = NewBuilder("bad", WithStatus("SHIPPED"))
	_, err = b.Build()
	assert.Error(t, err)

	b = NewBuilder("bad")
	leaf := b.Log("a")
	b.Sequential(leaf)
	b.Parallel(b.Log("b"), Handle{id: leaf.ID() + 100})
	_, err = b.Build()
	assert.Error(t, err)
}

func TestRunnerExecutesLeavesImmediately(t *testing.T) {
	r := NewRunner(context.Background(), newExecutor(t), "immediate")
	ran := false
	r.Custom("flag", func(context.Context, *variables.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)
	assert.True(t, r.TestCase().Tree.Executed(r.TestCase().Tree.Children(testcase.Root())[0]))
	assert.Equal(t, testcase.Success, r.Finish().Status)
}

func TestRunnerCapturesContainerChildrenBeforeExecuting(t *testing.T) {
	r := NewRunner(context.Background(), newExecutor(t), "capture")
	var executedDuringBody bool
	r.Parallel(func(p *Runner) {
		p.Custom("a", func(context.Context, *variables.Context) error { return nil })
		tree := r.TestCase().Tree
		executedDuringBody = tree.Executed(tree.Children(testcase.Root())[0])
		p.Custom("b", func(context.Context, *variables.Context) error { return nil })
	})
	assert.False(t, executedDuringBody)

	tree := r.TestCase().Tree
	root := tree.Children(testcase.Root())
	require.Len(t, root, 1, "captured actions must leave the root list")
	children := tree.Children(testcase.In(root[0]))
	require.Len(t, children, 2)
	for _, c := range children {
		assert.True(t, tree.Executed(c))
	}
	assert.Equal(t, testcase.Success, r.Finish().Status)
}

func TestRunnerStopsExecutingAfterFailure(t *testing.T) {
	r := NewRunner(context.Background(), newExecutor(t), "stop")
	calls := 0
	count := func(context.Context, *variables.Context) error {
		calls++
		return nil
	}
	r.Custom("before", count)
	r.Fail("stop here")
	r.Custom("after", count)
	r.Sequential(func(s *Runner) { s.Custom("nested", count) })
	r.Finally(func(f *Runner) { f.Custom("cleanup", count) })
	o := r.Finish()

	assert.Equal(t, 2, calls)
	assert.Equal(t, "stop here", o.Cause.Message)
	assert.Equal(t, "root\n  before\n  fail\n  after\n  sequence\n    nested\nfinally\n  cleanup\n", o.Outline)
}

func TestRunnerOptionErrorFailsTheRun(t *testing.T) {
	r := NewRunner(context.Background(), newExecutor(t), "bad")
	r.Receive("x", Payload("not allowed"))
	o := r.Finish()
	require.NotNil(t, o.Cause)
	assert.Equal(t, testcase.ConfigurationError, o.Cause.Kind)
}

func TestRunnerVariable(t *testing.T) {
	r := NewRunner(context.Background(), newExecutor(t), "vars")
	r.Variable("a", "1")
	r.Variable("b", "${a}2")
	r.Fail("${b}")
	assert.Equal(t, "12", r.Finish().Cause.Message)

	r = NewRunner(context.Background(), newExecutor(t), "vars")
	r.Variable("a", "${missing}")
	o := r.Finish()
	assert.Equal(t, testcase.ExpressionFailure, o.Cause.Kind)
}

// definition writes the same test case once for each mode.
type definition struct {
	name    string
	builder func(b *Builder)
	runner  func(r *Runner)
}

func TestBuilderAndRunnerAreEquivalent(t *testing.T) {
	failing := errors.New("branch failed")
	failIf := func(cond bool) testcase.CustomFunc {
		return func(context.Context, *variables.Context) error {
			if cond {
				return failing
			}
			return nil
		}
	}
	loop := testcase.Iterate{Condition: "i lt 3"}

	for _, d := range []definition{
		{
			name: "exchange with extraction",
			builder: func(b *Builder) {
				b.Send("orders", Payload(`{"id":"${orderId}"}`), Header("op", "create"))
				b.Receive("orders", Format(validation.FormatJSON), ExpectHeader("op", "create"),
					ExpectPath("id", "A1"), ExtractPath("seen", "id"))
				b.Send("audit", Payload("${seen}"))
				b.Receive("audit", ExpectPayload("A1"))
			},
			runner: func(r *Runner) {
				r.Send("orders", Payload(`{"id":"${orderId}"}`), Header("op", "create"))
				r.Receive("orders", Format(validation.FormatJSON), ExpectHeader("op", "create"),
					ExpectPath("id", "A1"), ExtractPath("seen", "id"))
				r.Send("audit", Payload("${seen}"))
				r.Receive("audit", ExpectPayload("A1"))
			},
		},
		{
			name: "parallel with failures and finally",
			builder: func(b *Builder) {
				b.Parallel(
					b.Custom("p0", failIf(true)),
					b.Sequential(b.Custom("p1", failIf(false)), b.Custom("p2", failIf(true))),
					b.Custom("p3", failIf(false)),
				)
				b.Log("not reached")
				b.Finally(b.Custom("f0", failIf(true)), b.Log("f1"))
			},
			runner: func(r *Runner) {
				r.Parallel(func(p *Runner) {
					p.Custom("p0", failIf(true))
					p.Sequential(func(s *Runner) {
						s.Custom("p1", failIf(false))
						s.Custom("p2", failIf(true))
					})
					p.Custom("p3", failIf(false))
				})
				r.Log("not reached")
				r.Finally(func(f *Runner) {
					f.Custom("f0", failIf(true))
					f.Log("f1")
				})
			},
		},
		{
			name: "loop with two actions",
			builder: func(b *Builder) {
				b.Iterate(loop, b.Send("q", Payload("${i}")), b.Receive("q", ExpectPayload("${i}")))
				b.Send("q", Payload("after"))
			},
			runner: func(r *Runner) {
				r.Iterate(loop, func(l *Runner) {
					l.Send("q", Payload("${i}"))
					l.Receive("q", ExpectPayload("${i}"))
				})
				r.Send("q", Payload("after"))
			},
		},
	} {
		t.Run(d.name, func(t *testing.T) {
			b := NewBuilder(d.name, Var("orderId", "A1"))
			d.builder(b)
			tc, err := b.Build()
			require.NoError(t, err)
			built := newExecutor(t).Execute(context.Background(), tc)

			r := NewRunner(context.Background(), newExecutor(t), d.name, Var("orderId", "A1"))
			d.runner(r)
			ran := r.Finish()

			assert.Equal(t, built.Outline, ran.Outline)
			assert.Equal(t, built.Status, ran.Status)
			assert.Equal(t, summary(built), summary(ran))
			assert.Equal(t, fmt.Sprint(built.Cause), fmt.Sprint(ran.Cause))
		})
	}
}
