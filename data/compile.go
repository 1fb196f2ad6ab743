package data

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/testharness/orchestrator/dsl"
	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/servicedef"
	"github.com/testharness/orchestrator/testcase"
)

// Compile turns a parsed definition into a test case.
func Compile(def servicedef.TestCaseDefinition) (*testcase.TestCase, error) {
	if def.Name == "" {
		return nil, errors.New("test case has no name")
	}
	options := []dsl.DefinitionOption{
		dsl.Package(def.Package),
		dsl.Description(def.Description),
		dsl.Author(def.Author),
	}
	if def.Status != "" {
		options = append(options, dsl.WithStatus(testcase.Status(strings.ToUpper(def.Status))))
	}
	if def.CreationDate != "" {
		date, err := time.Parse(servicedef.CreationDateLayout, def.CreationDate)
		if err != nil {
			return nil, fmt.Errorf("test case %q: invalid creation date: %w", def.Name, err)
		}
		options = append(options, dsl.CreatedOn(date))
	}
	for _, v := range def.Variables {
		options = append(options, dsl.Var(v.Name, v.Value))
	}

	c := compiler{builder: dsl.NewBuilder(def.Name, options...)}
	if _, err := c.actions(def.Actions, "actions"); err != nil {
		return nil, fmt.Errorf("test case %q: %w", def.Name, err)
	}
	finally, err := c.actions(def.Finally, "finally")
	if err != nil {
		return nil, fmt.Errorf("test case %q: %w", def.Name, err)
	}
	c.builder.Finally(finally...)
	return c.builder.Build()
}

// LoadTestCases loads, parses and compiles every definition file under a directory. A
// parameterized definition produces one test case per parameter set, with the parameters
// appended to its name.
func LoadTestCases(fsys fs.FS, dir string) ([]*testcase.TestCase, error) {
	sources, err := LoadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	ret := make([]*testcase.TestCase, 0, len(sources))
	for _, source := range sources {
		var def servicedef.TestCaseDefinition
		if err := source.ParseInto(&def); err != nil {
			return nil, err
		}
		if len(source.Params) != 0 {
			def.Name += " " + source.Params.String()
		}
		tc, err := Compile(def)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source.FilePath, err)
		}
		ret = append(ret, tc)
	}
	return ret, nil
}

type compiler struct {
	builder *dsl.Builder
}

func (c compiler) actions(defs []servicedef.ActionDefinition, where string) ([]dsl.Handle, error) {
	handles := make([]dsl.Handle, 0, len(defs))
	for i, def := range defs {
		h, err := c.action(def, fmt.Sprintf("%s[%d]", where, i))
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (c compiler) action(def servicedef.ActionDefinition, where string) (dsl.Handle, error) {
	if n := countKinds(def); n != 1 {
		return dsl.Handle{}, fmt.Errorf("%s: an action must have exactly one of send, receive, wait, log,"+
			" setVariables, fail, sequence, parallel or iterate, but had %d", where, n)
	}
	b := c.builder
	switch {
	case def.Send.IsDefined():
		return c.send(def.Name, def.Send.Value(), where)
	case def.Receive.IsDefined():
		return c.receive(def.Name, def.Receive.Value(), where)
	case def.Wait.IsDefined():
		return b.WaitFor(def.Wait.Value()), nil
	case def.Log.IsDefined():
		return b.Log(def.Log.Value()), nil
	case def.SetVariables != nil:
		vars := make([]testcase.Variable, 0, len(def.SetVariables))
		for _, v := range def.SetVariables {
			vars = append(vars, testcase.Variable{Name: v.Name, Value: v.Value})
		}
		return b.SetVariables(vars...), nil
	case def.Fail.IsDefined():
		return b.Fail(def.Fail.Value()), nil
	case def.Sequence != nil:
		children, err := c.actions(def.Sequence, where+".sequence")
		if err != nil {
			return dsl.Handle{}, err
		}
		return b.Group(testcase.Sequence{Label: def.Name}, children...), nil
	case def.Parallel != nil:
		children, err := c.actions(def.Parallel, where+".parallel")
		if err != nil {
			return dsl.Handle{}, err
		}
		return b.Group(testcase.Parallel{Label: def.Name}, children...), nil
	default:
		loop := def.Iterate.Value()
		children, err := c.actions(loop.Actions, where+".iterate")
		if err != nil {
			return dsl.Handle{}, err
		}
		return b.Iterate(testcase.Iterate{
			Label:         def.Name,
			Index:         loop.Index,
			Start:         loop.Start,
			Step:          loop.Step,
			Condition:     loop.Condition,
			MaxIterations: loop.MaxIterations,
		}, children...), nil
	}
}

func countKinds(def servicedef.ActionDefinition) int {
	n := 0
	for _, set := range []bool{
		def.Send.IsDefined(), def.Receive.IsDefined(), def.Wait.IsDefined(), def.Log.IsDefined(),
		def.SetVariables != nil, def.Fail.IsDefined(), def.Sequence != nil, def.Parallel != nil,
		def.Iterate.IsDefined(),
	} {
		if set {
			n++
		}
	}
	return n
}

func (c compiler) send(label string, def servicedef.SendDefinition, where string) (dsl.Handle, error) {
	if def.Endpoint == "" {
		return dsl.Handle{}, fmt.Errorf("%s: send has no endpoint", where)
	}
	options := []dsl.Option{dsl.Named(label), dsl.Payload(def.Payload)}
	for _, name := range helpers.SortedKeys(def.Headers) {
		options = append(options, dsl.Header(name, def.Headers[name]))
	}
	return c.builder.Send(def.Endpoint, options...), nil
}

func (c compiler) receive(label string, def servicedef.ReceiveDefinition, where string) (dsl.Handle, error) {
	if def.Endpoint == "" {
		return dsl.Handle{}, fmt.Errorf("%s: receive has no endpoint", where)
	}
	options := []dsl.Option{dsl.Named(label)}
	if ms, ok := def.TimeoutMillis.Get(); ok {
		options = append(options, dsl.Timeout(time.Duration(ms)*time.Millisecond))
	}
	if def.Format != "" {
		options = append(options, dsl.Format(def.Format))
	}
	if payload, ok := def.Payload.Get(); ok {
		options = append(options, dsl.ExpectPayload(payload))
	}
	if def.IgnoreWhitespace {
		options = append(options, dsl.IgnoreWhitespace())
	}
	for i, e := range def.Headers {
		if e.Header == "" || e.Path != "" {
			return dsl.Handle{}, fmt.Errorf("%s: headers[%d] must name a header and no path", where, i)
		}
		o, err := expectation(e, dsl.ExpectHeader, dsl.ExpectHeaderPattern, dsl.ExpectHeaderMatching, e.Header)
		if err != nil {
			return dsl.Handle{}, fmt.Errorf("%s: headers[%d]: %w", where, i, err)
		}
		options = append(options, o)
	}
	for i, e := range def.Paths {
		if e.Path == "" || e.Header != "" {
			return dsl.Handle{}, fmt.Errorf("%s: paths[%d] must have a path and no header", where, i)
		}
		o, err := expectation(e, dsl.ExpectPath, dsl.ExpectPathPattern, dsl.ExpectPathMatching, e.Path)
		if err != nil {
			return dsl.Handle{}, fmt.Errorf("%s: paths[%d]: %w", where, i, err)
		}
		options = append(options, o)
	}
	for i, x := range def.Extract {
		switch {
		case x.Variable == "" || (x.Header == "") == (x.Path == ""):
			return dsl.Handle{}, fmt.Errorf("%s: extract[%d] needs a variable and one of header or path", where, i)
		case x.Header != "":
			options = append(options, dsl.ExtractHeader(x.Variable, x.Header))
		default:
			options = append(options, dsl.ExtractPath(x.Variable, x.Path))
		}
	}
	return c.builder.Receive(def.Endpoint, options...), nil
}

func expectation(
	e servicedef.ExpectationDefinition,
	exact func(target, value string) dsl.Option,
	pattern func(target, pattern string) dsl.Option,
	matching func(target, matcher string, args ...string) dsl.Option,
	target string,
) (dsl.Option, error) {
	value, hasValue := e.Value.Get()
	switch {
	case hasValue && e.Pattern == "" && e.Matcher == "":
		return exact(target, value), nil
	case !hasValue && e.Pattern != "" && e.Matcher == "":
		return pattern(target, e.Pattern), nil
	case !hasValue && e.Pattern == "" && e.Matcher != "":
		return matching(target, e.Matcher, e.Args...), nil
	default:
		return nil, errors.New("exactly one of value, pattern or matcher is required")
	}
}
