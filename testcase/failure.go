package testcase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/testharness/orchestrator/validation"
	"github.com/testharness/orchestrator/variables"
)

// Kind classifies a Failure.
type Kind string

const (
	// ValidationFailure means a received message did not meet its expectations.
	ValidationFailure Kind = "ValidationFailure"
	// TransportFailure means the transport could not send or receive, including timeouts.
	TransportFailure Kind = "TransportFailure"
	// ExpressionFailure means a placeholder, function call or condition could not be
	// evaluated.
	ExpressionFailure Kind = "ExpressionFailure"
	// ContainerAggregateFailure means one or more Parallel branches failed.
	ContainerAggregateFailure Kind = "ContainerAggregateFailure"
	// IterationBoundExceeded means an Iterate needed more iterations than its bound.
	IterationBoundExceeded Kind = "IterationBoundExceeded"
	// ConfigurationError means an action or container was defined incorrectly.
	ConfigurationError Kind = "ConfigurationError"
	// ActionFailure means a Custom action returned an error or a Fail action ran.
	ActionFailure Kind = "ActionFailure"
)

// Failure is the cause of a failed action or container. For a ContainerAggregateFailure,
// Branches holds the failure of each failed Parallel branch in declaration order.
type Failure struct {
	Kind     Kind
	Action   string
	Path     string
	Message  string
	Branches []*Failure
	cause    error
}

func (f *Failure) Error() string {
	if f.Action == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}
	return fmt.Sprintf("%s in %s: %s", f.Kind, f.Action, f.Message)
}

func (f *Failure) Unwrap() error { return f.cause }

func configError(format string, args ...interface{}) *Failure {
	return &Failure{Kind: ConfigurationError, Message: fmt.Sprintf(format, args...)}
}

// AsFailure converts an error from an action into a Failure. Expression, validation and
// configuration errors are recognized by type; anything else gets the fallback kind.
func AsFailure(err error, fallback Kind, action, path string) *Failure {
	var existing *Failure
	if errors.As(err, &existing) {
		ret := *existing
		if ret.Action == "" {
			ret.Action = action
			ret.Path = path
		}
		return &ret
	}
	kind := fallback
	var expressionErr *variables.ExpressionError
	var validationErr *validation.Error
	switch {
	case errors.As(err, &expressionErr):
		kind = ExpressionFailure
	case errors.As(err, &validationErr):
		kind = ValidationFailure
	case errors.Is(err, validation.ErrConfiguration):
		kind = ConfigurationError
	}
	return &Failure{Kind: kind, Action: action, Path: path, Message: err.Error(), cause: err}
}

// aggregate combines the failures of Parallel branches, given in declaration order.
func aggregate(action, path string, branches []*Failure) *Failure {
	var merr *multierror.Error
	for _, b := range branches {
		merr = multierror.Append(merr, b)
	}
	merr.ErrorFormat = func(errs []error) string {
		lines := make([]string, 0, len(errs))
		for _, e := range errs {
			lines = append(lines, "  - "+strings.ReplaceAll(e.Error(), "\n", "\n    "))
		}
		return fmt.Sprintf("%d of the parallel branches failed:\n%s", len(errs), strings.Join(lines, "\n"))
	}
	return &Failure{
		Kind:     ContainerAggregateFailure,
		Action:   action,
		Path:     path,
		Message:  merr.Error(),
		Branches: branches,
		cause:    merr.ErrorOrNil(),
	}
}
