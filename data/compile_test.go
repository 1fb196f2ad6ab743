package data

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testharness/orchestrator/servicedef"
	"github.com/testharness/orchestrator/testcase"
	"github.com/testharness/orchestrator/transport"
)

const echoDefinition = `---
constants:
  QUEUE: orders
name: echo order
package: shop
author: qa
status: reviewed
creationDate: "2024-03-01"
variables:
  - name: id
    value: "42"
actions:
  - send:
      endpoint: <QUEUE>
      payload: '{"id": ${id}, "state": "new"}'
      headers:
        kind: order
  - name: check order
    receive:
      endpoint: <QUEUE>
      format: json
      payload: '{"id": ${id}, "state": "@ignore@"}'
      headers:
        - header: kind
          value: order
      paths:
        - path: state
          pattern: "n.w"
      extract:
        - variable: state
          path: state
  - parallel:
      - log: "state is ${state}"
      - iterate:
          condition: "${i} < 3"
          actions:
            - log: "loop ${i}"
finally:
  - log: cleanup
`

func newTestRouter(t *testing.T, names ...string) *transport.Router {
	r := transport.NewRouter(nil)
	for _, name := range names {
		require.NoError(t, r.Register(name, transport.NewMemoryEndpoint(name, 0)))
	}
	return r
}

func execute(t *testing.T, tc *testcase.TestCase, tr *transport.Router) testcase.Outcome {
	e, err := testcase.NewExecutor(tr, testcase.WithReceiveTimeout(time.Second))
	require.NoError(t, err)
	return e.Execute(context.Background(), tc)
}

func TestLoadAndRunDefinition(t *testing.T) {
	fsys := fstest.MapFS{"tests/echo.yaml": {Data: []byte(echoDefinition)}}
	cases, err := LoadTestCases(fsys, "tests")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	tc := cases[0]

	assert.Equal(t, "shop.echo order", tc.QualifiedName())
	assert.Equal(t, testcase.StatusReviewed, tc.Status)
	assert.Equal(t, "qa", tc.Author)
	assert.Equal(t, 2024, tc.CreationDate.Year())
	assert.Equal(t, "root\n"+
		"  send(orders)\n"+
		"  check order\n"+
		"  parallel\n"+
		"    log\n"+
		"    iterate(${i} < 3)\n"+
		"      log\n"+
		"finally\n"+
		"  log\n", tc.Tree.Outline())

	outcome := execute(t, tc, newTestRouter(t, "orders"))
	require.Nil(t, outcome.Cause)
	assert.Equal(t, testcase.Success, outcome.Status)
}

func TestDefinitionValidationFailure(t *testing.T) {
	def := servicedef.TestCaseDefinition{
		Name: "mismatch",
		Actions: []servicedef.ActionDefinition{
			{Send: someSend("q", "hello")},
			{Receive: someReceive("q", "goodbye")},
		},
	}
	tc, err := Compile(def)
	require.NoError(t, err)
	outcome := execute(t, tc, newTestRouter(t, "q"))
	require.NotNil(t, outcome.Cause)
	assert.Equal(t, testcase.ValidationFailure, outcome.Cause.Kind)
	assert.Equal(t, "root/1", outcome.Cause.Path)
}

func TestParameterizedDefinitionsAreNamedByParameters(t *testing.T) {
	fsys := fstest.MapFS{"p.yaml": {Data: []byte(`---
parameters:
  - FORMAT: json
  - FORMAT: text
name: format
actions:
  - log: "<FORMAT>"
`)}}
	cases, err := LoadTestCases(fsys, ".")
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "format (FORMAT=json)", cases[0].Name)
	assert.Equal(t, "format (FORMAT=text)", cases[1].Name)
}

func TestCompileErrors(t *testing.T) {
	for _, params := range []struct {
		desc string
		def  servicedef.TestCaseDefinition
	}{
		{"no name", servicedef.TestCaseDefinition{}},
		{"bad status", servicedef.TestCaseDefinition{Name: "x", Status: "maybe"}},
		{"bad date", servicedef.TestCaseDefinition{Name: "x", CreationDate: "yesterday"}},
		{"empty action", servicedef.TestCaseDefinition{Name: "x",
			Actions: []servicedef.ActionDefinition{{}}}},
		{"two kinds", servicedef.TestCaseDefinition{Name: "x",
			Actions: []servicedef.ActionDefinition{{Log: someString("a"), Fail: someString("b")}}}},
		{"send without endpoint", servicedef.TestCaseDefinition{Name: "x",
			Actions: []servicedef.ActionDefinition{{Send: someSend("", "a")}}}},
		{"ambiguous expectation", servicedef.TestCaseDefinition{Name: "x",
			Actions: []servicedef.ActionDefinition{{Receive: receiveWithHeader(servicedef.ExpectationDefinition{
				Header: "h", Pattern: "a", Matcher: "contains"})}}}},
		{"header expectation with path", servicedef.TestCaseDefinition{Name: "x",
			Actions: []servicedef.ActionDefinition{{Receive: receiveWithHeader(servicedef.ExpectationDefinition{
				Header: "h", Path: "a", Pattern: "a"})}}}},
		{"nested error", servicedef.TestCaseDefinition{Name: "x",
			Actions: []servicedef.ActionDefinition{{Sequence: []servicedef.ActionDefinition{{}}}}}},
	} {
		t.Run(params.desc, func(t *testing.T) {
			_, err := Compile(params.def)
			assert.Error(t, err)
		})
	}
}

func TestStrictParsingRejectsMisspelledProperty(t *testing.T) {
	fsys := fstest.MapFS{"t.yaml": {Data: []byte("name: x\nactions:\n  - lgo: hi\n")}}
	_, err := LoadTestCases(fsys, ".")
	assert.Error(t, err)
}
