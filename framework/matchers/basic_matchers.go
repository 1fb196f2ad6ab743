package matchers

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Equal tests for equality according to reflect.DeepEqual.
func Equal(expectedValue interface{}) Matcher {
	return New(
		func(value interface{}) bool { return reflect.DeepEqual(value, expectedValue) },
		func(_ interface{}, desc DescribeValueFunc) string {
			return fmt.Sprintf("equal to %s", desc(expectedValue))
		},
	)
}

// The remaining matchers operate on string values. A non-string value is rendered with
// fmt.Sprint first, so they can be applied to the results of JSON path queries.

func stringMatcher(test func(string) bool, describe func() string) Matcher {
	return New(
		func(value interface{}) bool { return test(AsString(value)) },
		func(interface{}, DescribeValueFunc) string { return describe() },
	)
}

// AsString converts a matched value to the string the string matchers test. Objects and
// arrays are rendered as JSON.
func AsString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return JSONDescription(value)
	default:
		return fmt.Sprint(value)
	}
}

// EqualString compares the string form of a value to expected.
func EqualString(expected string) Matcher {
	return stringMatcher(
		func(s string) bool { return s == expected },
		func() string { return fmt.Sprintf("equal to %q", expected) },
	)
}

// EqualIgnoringCase compares strings case-insensitively.
func EqualIgnoringCase(expected string) Matcher {
	return stringMatcher(
		func(s string) bool { return strings.EqualFold(s, expected) },
		func() string { return fmt.Sprintf("equal to %q ignoring case", expected) },
	)
}

// Contains tests for a substring.
func Contains(substring string) Matcher {
	return stringMatcher(
		func(s string) bool { return strings.Contains(s, substring) },
		func() string { return fmt.Sprintf("containing %q", substring) },
	)
}

// HasPrefix tests for a prefix.
func HasPrefix(prefix string) Matcher {
	return stringMatcher(
		func(s string) bool { return strings.HasPrefix(s, prefix) },
		func() string { return fmt.Sprintf("starting with %q", prefix) },
	)
}

// HasSuffix tests for a suffix.
func HasSuffix(suffix string) Matcher {
	return stringMatcher(
		func(s string) bool { return strings.HasSuffix(s, suffix) },
		func() string { return fmt.Sprintf("ending with %q", suffix) },
	)
}

// MatchesPattern tests the whole string against a regular expression.
func MatchesPattern(rx *regexp.Regexp) Matcher {
	anchored := regexp.MustCompile(`^(?:` + rx.String() + `)$`)
	return stringMatcher(
		anchored.MatchString,
		func() string { return fmt.Sprintf("matching pattern /%s/", rx) },
	)
}

// NotEmpty requires a non-empty string.
func NotEmpty() Matcher {
	return stringMatcher(
		func(s string) bool { return s != "" },
		func() string { return "not empty" },
	)
}

// IsNumber requires a string that parses as a number.
func IsNumber() Matcher {
	return stringMatcher(
		func(s string) bool {
			_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return err == nil
		},
		func() string { return "a number" },
	)
}

// GreaterThan requires a number strictly greater than limit.
func GreaterThan(limit float64) Matcher {
	return numberMatcher(func(n float64) bool { return n > limit }, "greater than", limit)
}

// LessThan requires a number strictly less than limit.
func LessThan(limit float64) Matcher {
	return numberMatcher(func(n float64) bool { return n < limit }, "less than", limit)
}

func numberMatcher(test func(float64) bool, relation string, limit float64) Matcher {
	return stringMatcher(
		func(s string) bool {
			n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return err == nil && test(n)
		},
		func() string { return fmt.Sprintf("a number %s %s", relation, strconv.FormatFloat(limit, 'f', -1, 64)) },
	)
}
