// Package testcase is the execution model for integration tests: the action tree, the
// test case that owns it, and the Executor that runs it and reports an Outcome.
package testcase

import "time"

// Status is the review state of a test case definition.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusReviewed Status = "REVIEWED"
	StatusFinal    Status = "FINAL"
	// StatusDisabled test cases are reported as skipped and never executed.
	StatusDisabled Status = "DISABLED"
)

// Meta identifies a test case.
type Meta struct {
	Name         string
	Package      string
	Description  string
	Author       string
	Status       Status
	CreationDate time.Time
}

// QualifiedName returns Package.Name, or just Name if there is no package.
func (m Meta) QualifiedName() string {
	if m.Package == "" {
		return m.Name
	}
	return m.Package + "." + m.Name
}

// TestCase is the unit of execution and reporting. It is built once, executed once and then
// discarded.
type TestCase struct {
	Meta
	// Variables are resolved in order into a fresh variable context before the root list
	// runs, so later definitions may refer to earlier ones.
	Variables []Variable
	Tree      *Tree
}

// New returns an empty test case.
func New(meta Meta) *TestCase {
	return &TestCase{Meta: meta, Tree: NewTree()}
}
