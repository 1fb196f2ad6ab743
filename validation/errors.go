package validation

import (
	"errors"
	"strings"
)

// ErrConfiguration marks a problem with the validation context itself, such as an unknown
// format or matcher, as opposed to a message that failed its checks.
var ErrConfiguration = errors.New("invalid validation context")

// Error reports every check that a message failed. Received, if set, is the payload that
// was checked, with object keys sorted.
type Error struct {
	Problems []string
	Received string
}

func (e *Error) Error() string {
	var s string
	if len(e.Problems) == 1 {
		s = "validation failed: " + e.Problems[0]
	} else {
		s = "validation failed:\n  - " + strings.Join(e.Problems, "\n  - ")
	}
	if e.Received != "" {
		s += "\n  received: " + e.Received
	}
	return s
}

type problems []string

func (p *problems) add(problem string) { *p = append(*p, problem) }

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return &Error{Problems: p}
}
