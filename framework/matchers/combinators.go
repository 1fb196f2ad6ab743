package matchers

import (
	"fmt"
	"strings"
)

// Not negates a Matcher.
//
//	matchers.Not(matchers.Equal("x")).Test("x")
//	// expected: not (equal to x)
func Not(matcher Matcher) Matcher {
	return New(
		func(value interface{}) bool { return !matcher.matches(value) },
		func(value interface{}, _ DescribeValueFunc) string {
			return fmt.Sprintf("not (%s)", matcher.describe(value))
		},
	).WithValueDescription(matcher.describeValue)
}

// AllOf passes if every matcher passes. The failure message lists only the ones that failed.
func AllOf(matchers ...Matcher) Matcher {
	return combine(matchers, " and ", func(passed int) bool { return passed == len(matchers) })
}

// AnyOf passes if at least one matcher passes.
func AnyOf(matchers ...Matcher) Matcher {
	return combine(matchers, " or ", func(passed int) bool { return passed > 0 })
}

func combine(matchers []Matcher, separator string, decide func(passed int) bool) Matcher {
	var describeValue DescribeValueFunc
	if len(matchers) != 0 {
		describeValue = matchers[0].describeValue
	}
	return New(
		func(value interface{}) bool {
			passed := 0
			for _, m := range matchers {
				if m.matches(value) {
					passed++
				}
			}
			return decide(passed)
		},
		func(value interface{}, _ DescribeValueFunc) string {
			var failed []string
			for _, m := range matchers {
				if !m.matches(value) {
					failed = append(failed, m.describe(value))
				}
			}
			if len(failed) == 1 {
				return failed[0]
			}
			for i := range failed {
				failed[i] = "(" + failed[i] + ")"
			}
			return strings.Join(failed, separator)
		},
	).WithValueDescription(describeValue)
}
