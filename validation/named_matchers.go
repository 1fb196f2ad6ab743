package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/testharness/orchestrator/framework/matchers"
)

// MatcherFactory builds a Matcher from the arguments given in a test definition.
type MatcherFactory func(args []string) (matchers.Matcher, error)

// MatcherRegistry holds the custom matchers that can be referred to by name.
type MatcherRegistry struct {
	factories map[string]MatcherFactory
	lock      sync.RWMutex
}

// NewMatcherRegistry returns a registry with the built-in matchers.
func NewMatcherRegistry() *MatcherRegistry {
	r := &MatcherRegistry{factories: make(map[string]MatcherFactory)}
	r.Register("equalsIgnoreCase", oneArg(matchers.EqualIgnoringCase))
	r.Register("contains", oneArg(matchers.Contains))
	r.Register("startsWith", oneArg(matchers.HasPrefix))
	r.Register("endsWith", oneArg(matchers.HasSuffix))
	r.Register("matches", func(args []string) (matchers.Matcher, error) {
		if len(args) != 1 {
			return matchers.Matcher{}, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		rx, err := regexp.Compile(args[0])
		if err != nil {
			return matchers.Matcher{}, err
		}
		return matchers.MatchesPattern(rx), nil
	})
	r.Register("isNumber", noArgs(matchers.IsNumber))
	r.Register("notEmpty", noArgs(matchers.NotEmpty))
	r.Register("isUUID", noArgs(isUUID))
	r.Register("greaterThan", numberArg(matchers.GreaterThan))
	r.Register("lowerThan", numberArg(matchers.LessThan))
	return r
}

// Register adds or replaces a named matcher.
func (r *MatcherRegistry) Register(name string, factory MatcherFactory) {
	r.lock.Lock()
	r.factories[name] = factory
	r.lock.Unlock()
}

// Build creates the named matcher.
func (r *MatcherRegistry) Build(name string, args []string) (matchers.Matcher, error) {
	r.lock.RLock()
	factory, ok := r.factories[name]
	r.lock.RUnlock()
	if !ok {
		return matchers.Matcher{}, fmt.Errorf("%w: unknown matcher %q", ErrConfiguration, name)
	}
	m, err := factory(args)
	if err != nil {
		return matchers.Matcher{}, fmt.Errorf("%w: matcher %q: %s", ErrConfiguration, name, err)
	}
	return m, nil
}

func oneArg(fn func(string) matchers.Matcher) MatcherFactory {
	return func(args []string) (matchers.Matcher, error) {
		if len(args) != 1 {
			return matchers.Matcher{}, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return fn(args[0]), nil
	}
}

func noArgs(fn func() matchers.Matcher) MatcherFactory {
	return func(args []string) (matchers.Matcher, error) {
		if len(args) != 0 {
			return matchers.Matcher{}, fmt.Errorf("expected no arguments, got %d", len(args))
		}
		return fn(), nil
	}
}

func numberArg(fn func(float64) matchers.Matcher) MatcherFactory {
	return func(args []string) (matchers.Matcher, error) {
		if len(args) != 1 {
			return matchers.Matcher{}, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		n, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return matchers.Matcher{}, fmt.Errorf("%q is not a number", args[0])
		}
		return fn(n), nil
	}
}

func isUUID() matchers.Matcher {
	return matchers.New(
		func(value interface{}) bool {
			_, err := uuid.Parse(matchers.AsString(value))
			return err == nil
		},
		func(interface{}, matchers.DescribeValueFunc) string { return "a UUID" },
	)
}
