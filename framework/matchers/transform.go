package matchers

// MatcherTransform converts an input value to some other value before applying a Matcher
// to it, and names that conversion in failure messages. For instance, to test a header
// of a message:
//
//	contentType := matchers.Transform("header content_type",
//	    func(value interface{}) interface{} { return value.(message.Message).Headers["content_type"] })
//	contentType.Should(matchers.Contains("json")).Test(msg)
//	// expected: header content_type containing "json"
type MatcherTransform struct {
	name     string
	getValue func(interface{}) interface{}
}

// Transform creates a MatcherTransform.
func Transform(name string, getValue func(interface{}) interface{}) MatcherTransform {
	return MatcherTransform{name: name, getValue: getValue}
}

// Should applies matcher to the transformed value.
func (mt MatcherTransform) Should(matcher Matcher) Matcher {
	get := mt.getValue
	if get == nil {
		get = func(value interface{}) interface{} { return value }
	}
	return New(
		func(value interface{}) bool { return matcher.matches(get(value)) },
		func(value interface{}, _ DescribeValueFunc) string {
			return mt.name + " " + matcher.describe(get(value))
		},
	)
}
