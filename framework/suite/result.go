package suite

import (
	"strings"

	"github.com/testharness/orchestrator/testcase"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
	Skipped  []TestResult
}

type TestResult struct {
	TestID  TestID
	Outcome testcase.Outcome
	// SkipReason is set if the test case did not run.
	SkipReason string
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// TestID identifies a test case by its package components followed by its name.
type TestID []string

// IDOf returns the TestID of a test case: the dot-separated components of its package,
// then its name.
func IDOf(meta testcase.Meta) TestID {
	var id TestID
	if meta.Package != "" {
		id = append(id, strings.Split(meta.Package, ".")...)
	}
	return append(id, meta.Name)
}

func (t TestID) String() string {
	return strings.Join(t, "/")
}

func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}
