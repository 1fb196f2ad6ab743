package testcase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/sync/errgroup"

	"github.com/testharness/orchestrator/framework"
	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/message"
	"github.com/testharness/orchestrator/validation"
	"github.com/testharness/orchestrator/variables"
)

// DefaultReceiveTimeout applies to Receive actions that do not set a timeout, unless the
// executor is configured otherwise.
const DefaultReceiveTimeout = 5 * time.Second

// Executor runs test cases against a transport.
type Executor struct {
	transport      message.Transport
	validators     *validation.Registry
	functions      *variables.FunctionRegistry
	logger         framework.Logger
	maxParallel    int
	receiveTimeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption = helpers.ConfigOption[Executor]

// WithValidators sets the validator registry used by Receive actions.
func WithValidators(registry *validation.Registry) ExecutorOption {
	return helpers.OptionFunc[Executor](func(e *Executor) error {
		e.validators = registry
		return nil
	})
}

// WithFunctions sets the functions available to ${fn(...)} placeholders.
func WithFunctions(functions *variables.FunctionRegistry) ExecutorOption {
	return helpers.OptionFunc[Executor](func(e *Executor) error {
		e.functions = functions
		return nil
	})
}

// WithLogger sets the logger that actions and the executor write to.
func WithLogger(logger framework.Logger) ExecutorOption {
	return helpers.OptionFunc[Executor](func(e *Executor) error {
		e.logger = logger
		return nil
	})
}

// WithMaxParallel limits how many branches of one Parallel container run at once. Zero
// means no limit.
func WithMaxParallel(n int) ExecutorOption {
	return helpers.OptionFunc[Executor](func(e *Executor) error {
		if n < 0 {
			return fmt.Errorf("max parallel branches cannot be negative (got %d)", n)
		}
		e.maxParallel = n
		return nil
	})
}

// WithReceiveTimeout sets the timeout for Receive actions that do not specify one.
func WithReceiveTimeout(timeout time.Duration) ExecutorOption {
	return helpers.OptionFunc[Executor](func(e *Executor) error {
		if timeout <= 0 {
			return fmt.Errorf("receive timeout must be positive (got %s)", timeout)
		}
		e.receiveTimeout = timeout
		return nil
	})
}

// NewExecutor creates an Executor.
func NewExecutor(transport message.Transport, options ...ExecutorOption) (*Executor, error) {
	e := &Executor{
		transport:      transport,
		logger:         framework.NullLogger(),
		receiveTimeout: DefaultReceiveTimeout,
	}
	if err := helpers.ApplyOptions(e, options...); err != nil {
		return nil, err
	}
	if e.validators == nil {
		e.validators = validation.NewRegistry()
	}
	if e.functions == nil {
		e.functions = variables.NewFunctionRegistry()
	}
	if e.logger == nil {
		e.logger = framework.NullLogger()
	}
	return e, nil
}

// Execute runs a test case to completion and returns exactly one Outcome. The root list
// runs as a Sequence, then the finally chain runs regardless of the result.
func (e *Executor) Execute(ctx context.Context, tc *TestCase) Outcome {
	run := e.Start(ctx, tc)
	for _, id := range tc.Tree.Children(Root()) {
		if run.ExecuteNode(id) != nil {
			break
		}
	}
	return run.Finish()
}

// Run is a test case execution in progress. Nodes of the root list are executed one at a
// time with ExecuteNode, and Finish runs the finally chain and produces the Outcome. This
// is what lets actions execute as soon as they are defined.
type Run struct {
	exec    *Executor
	tc      *TestCase
	ctx     context.Context
	vars    *variables.Context
	started time.Time
	skipped bool
	results []Result
	cause   *Failure
	outcome *Outcome
	lock    sync.Mutex
}

// Start begins executing a test case. The test case's variable definitions are resolved
// immediately; if one fails, the run is already failed and no root action will execute.
func (e *Executor) Start(ctx context.Context, tc *TestCase) *Run {
	r := &Run{
		exec:    e,
		tc:      tc,
		ctx:     ctx,
		vars:    variables.NewContext(e.functions),
		started: time.Now(),
		skipped: tc.Status == StatusDisabled,
	}
	if r.skipped {
		e.logger.Printf("Skipping disabled test case %s", tc.QualifiedName())
		return r
	}
	for _, v := range tc.Variables {
		value, err := r.vars.Resolve(v.Value)
		if err != nil {
			r.cause = AsFailure(err, ExpressionFailure, "variable "+v.Name, "variables")
			break
		}
		r.vars.SetString(v.Name, value)
	}
	return r
}

// Vars returns the run's variable context.
func (r *Run) Vars() *variables.Context { return r.vars }

// Failure returns the failure that stopped the root list, or nil.
func (r *Run) Failure() *Failure {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.cause
}

// Abort fails the run with f unless it has already failed. No further root actions execute,
// but Finish still runs the finally chain.
func (r *Run) Abort(f *Failure) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.cause == nil && r.outcome == nil && !r.skipped {
		r.cause = f
	}
}

// ExecuteNode executes one node of the root list, with its subtree, and returns its
// failure. If the run has already failed or finished, or the test case is disabled, the
// node is not executed and nil is returned.
func (r *Run) ExecuteNode(id NodeID) *Failure {
	r.lock.Lock()
	if r.cause != nil || r.outcome != nil || r.skipped {
		r.lock.Unlock()
		return nil
	}
	r.lock.Unlock()

	path := "root/?"
	for i, c := range r.tc.Tree.Children(Root()) {
		if c == id {
			path = fmt.Sprintf("root/%d", i)
		}
	}
	results, failure := r.execute(id, path)

	r.lock.Lock()
	defer r.lock.Unlock()
	r.results = append(r.results, results...)
	if failure != nil {
		r.cause = failure
	}
	return failure
}

// Finish runs the finally chain and returns the Outcome. Calling it again returns the
// same Outcome.
func (r *Run) Finish() Outcome {
	r.lock.Lock()
	if r.outcome != nil {
		defer r.lock.Unlock()
		return *r.outcome
	}
	r.lock.Unlock()

	tree := r.tc.Tree
	o := Outcome{Meta: r.tc.Meta, Started: r.started}
	if r.skipped {
		o.Status = Skipped
	} else {
		var finallyFailures []*Failure
		var finallyResults []Result
		for i, id := range tree.Children(Finally()) {
			results, failure := r.execute(id, fmt.Sprintf("finally/%d", i))
			finallyResults = append(finallyResults, results...)
			if failure != nil {
				finallyFailures = append(finallyFailures, failure)
			}
		}
		r.lock.Lock()
		o.Results = append(r.results, finallyResults...)
		o.Cause = r.cause
		r.lock.Unlock()
		if o.Cause == nil && len(finallyFailures) > 0 {
			o.Cause, finallyFailures = finallyFailures[0], finallyFailures[1:]
		}
		o.Secondary = finallyFailures
		o.Status = Success
		if o.Cause != nil {
			o.Status = Failed
		}
	}
	o.Outline = tree.Outline()
	o.Duration = time.Since(r.started)

	r.lock.Lock()
	defer r.lock.Unlock()
	if r.outcome == nil {
		r.outcome = &o
	}
	return *r.outcome
}

func (r *Run) execute(id NodeID, path string) ([]Result, *Failure) {
	tree := r.tc.Tree
	action := tree.Action(id)
	tree.MarkExecuted(id)
	switch a := action.(type) {
	case Sequence:
		tree.Seal(id)
		return r.executeSequence(tree.Children(In(id)), path)
	case Parallel:
		tree.Seal(id)
		return r.executeParallel(a, tree.Children(In(id)), path)
	case Iterate:
		tree.Seal(id)
		return r.executeIterate(a, tree.Children(In(id)), path)
	default:
		started := time.Now()
		r.exec.logger.Printf("[%s] %s", path, action.Name())
		failure := r.executeLeaf(action, path)
		result := Result{
			Node:     id,
			Path:     path,
			Name:     action.Name(),
			Status:   ResultOK,
			Duration: time.Since(started),
		}
		if failure != nil {
			r.exec.logger.Printf("[%s] %s failed: %s", path, action.Name(), failure.Message)
			result.Status = ResultFailed
			result.Failure = failure
		}
		return []Result{result}, failure
	}
}

func (r *Run) executeSequence(children []NodeID, path string) ([]Result, *Failure) {
	var results []Result
	for i, c := range children {
		childResults, failure := r.execute(c, fmt.Sprintf("%s/%d", path, i))
		results = append(results, childResults...)
		if failure != nil {
			return results, failure
		}
	}
	return results, nil
}

func (r *Run) executeParallel(a Parallel, children []NodeID, path string) ([]Result, *Failure) {
	branchResults := make([][]Result, len(children))
	branchFailures := make([]*Failure, len(children))
	var g errgroup.Group
	if r.exec.maxParallel > 0 {
		g.SetLimit(r.exec.maxParallel)
	}
	for i, c := range children {
		i, c := i, c
		g.Go(func() error {
			branchResults[i], branchFailures[i] = r.execute(c, fmt.Sprintf("%s/%d", path, i))
			return nil
		})
	}
	_ = g.Wait()

	var results []Result
	var failed []*Failure
	for i := range children {
		results = append(results, branchResults[i]...)
		if branchFailures[i] != nil {
			failed = append(failed, branchFailures[i])
		}
	}
	if len(failed) == 0 {
		return results, nil
	}
	return results, aggregate(a.Name(), path, failed)
}

func (r *Run) executeIterate(a Iterate, children []NodeID, path string) ([]Result, *Failure) {
	hasPredicate := a.While != nil || a.Condition != ""
	switch {
	case len(children) == 0:
		return nil, &Failure{Kind: ConfigurationError, Action: a.Name(), Path: path, Message: "iterate has no child action"}
	case !hasPredicate && a.MaxIterations <= 0:
		return nil, &Failure{Kind: ConfigurationError, Action: a.Name(), Path: path,
			Message: "iterate needs a condition or a maximum number of iterations"}
	}
	var results []Result
	index := a.Start
	for n := 0; ; n++ {
		r.vars.Set(a.indexName(), ldvalue.Int(index))
		if hasPredicate {
			proceed, err := r.checkPredicate(a)
			if err != nil {
				return results, AsFailure(err, ExpressionFailure, a.Name(), path)
			}
			if !proceed {
				return results, nil
			}
			if a.MaxIterations > 0 && n >= a.MaxIterations {
				return results, &Failure{Kind: IterationBoundExceeded, Action: a.Name(), Path: path,
					Message: fmt.Sprintf("condition was still true after %d iterations", a.MaxIterations)}
			}
		} else if n >= a.MaxIterations {
			return results, nil
		}
		iterationResults, failure := r.executeSequence(children, fmt.Sprintf("%s/#%d", path, n))
		results = append(results, iterationResults...)
		if failure != nil {
			return results, failure
		}
		index += a.step()
	}
}

func (r *Run) checkPredicate(a Iterate) (bool, error) {
	if a.While != nil {
		return a.While(r.vars)
	}
	return r.vars.EvaluateCondition(a.Condition)
}

func (r *Run) executeLeaf(action Action, path string) *Failure {
	name := action.Name()
	fail := func(err error, kind Kind) *Failure { return AsFailure(err, kind, name, path) }

	switch a := action.(type) {
	case Send:
		endpoint, err := r.vars.Resolve(a.Endpoint)
		if err != nil {
			return fail(err, ExpressionFailure)
		}
		payload, err := r.vars.Resolve(a.Payload)
		if err != nil {
			return fail(err, ExpressionFailure)
		}
		headers, err := r.vars.ResolveAll(a.Headers)
		if err != nil {
			return fail(err, ExpressionFailure)
		}
		if err := r.exec.transport.Send(r.ctx, endpoint, message.New(payload, headers)); err != nil {
			return fail(err, TransportFailure)
		}

	case Receive:
		endpoint, err := r.vars.Resolve(a.Endpoint)
		if err != nil {
			return fail(err, ExpressionFailure)
		}
		expectations, err := a.Validation.Resolve(r.vars.Resolve)
		if err != nil {
			return fail(err, ExpressionFailure)
		}
		timeout := a.Timeout
		if timeout <= 0 {
			timeout = r.exec.receiveTimeout
		}
		msg, err := r.exec.transport.Receive(r.ctx, endpoint, timeout)
		if err != nil {
			return fail(err, TransportFailure)
		}
		r.exec.logger.Printf("[%s] received %q", path, truncate(msg.Payload, 200))
		if err := r.exec.validators.Validate(msg, expectations); err != nil {
			return fail(err, ValidationFailure)
		}
		values, err := validation.Extract(msg, expectations.Extract)
		if err != nil {
			return fail(err, ValidationFailure)
		}
		for _, name := range helpers.SortedKeys(values) {
			r.vars.Set(name, values[name])
		}

	case Wait:
		d := a.Duration
		if a.Expression != "" {
			s, err := r.vars.Resolve(a.Expression)
			if err != nil {
				return fail(err, ExpressionFailure)
			}
			if d, err = parseWaitDuration(s); err != nil {
				return fail(&variables.ExpressionError{Expression: a.Expression, Reason: err.Error(), Err: variables.ErrSyntax},
					ExpressionFailure)
			}
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-r.ctx.Done():
			return fail(fmt.Errorf("wait interrupted: %w", r.ctx.Err()), ActionFailure)
		}

	case Log:
		text, err := r.vars.Resolve(a.Message)
		if err != nil {
			return fail(err, ExpressionFailure)
		}
		r.exec.logger.Println(text)

	case Custom:
		if a.Fn == nil {
			return &Failure{Kind: ConfigurationError, Action: name, Path: path, Message: "custom action has no function"}
		}
		if err := r.runCustom(a.Fn); err != nil {
			return fail(err, ActionFailure)
		}

	case SetVariables:
		for _, v := range a.Variables {
			value, err := r.vars.Resolve(v.Value)
			if err != nil {
				return fail(err, ExpressionFailure)
			}
			r.vars.SetString(v.Name, value)
		}

	case Fail:
		text, err := r.vars.Resolve(a.Message)
		if err != nil {
			return fail(err, ExpressionFailure)
		}
		return &Failure{Kind: ActionFailure, Action: name, Path: path, Message: text}

	default:
		return &Failure{Kind: ConfigurationError, Action: name, Path: path,
			Message: fmt.Sprintf("unsupported action type %T", action)}
	}
	return nil
}

func (r *Run) runCustom(fn CustomFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(r.ctx, r.vars)
}

func parseWaitDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative wait time %d", ms)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a duration nor a number of milliseconds", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative wait time %s", d)
	}
	return d, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
