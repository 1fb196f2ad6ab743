package variables

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/google/uuid"
)

// Function computes a dynamic value from its already-resolved arguments.
type Function func(args []string) (string, error)

// FunctionRegistry maps function names to implementations. It is safe for concurrent use.
type FunctionRegistry struct {
	functions map[string]Function
	lock      sync.RWMutex
}

// NewFunctionRegistry returns a registry holding the built-in functions.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{functions: make(map[string]Function)}
	for name, fn := range builtinFunctions() {
		r.functions[name] = fn
	}
	return r
}

// Register adds or replaces a function.
func (r *FunctionRegistry) Register(name string, fn Function) {
	r.lock.Lock()
	r.functions[name] = fn
	r.lock.Unlock()
}

// Has returns true if a function with that name is registered.
func (r *FunctionRegistry) Has(name string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.functions[name]
	return ok
}

// Call invokes a function by name.
func (r *FunctionRegistry) Call(name string, args []string) (string, error) {
	r.lock.RLock()
	fn, ok := r.functions[name]
	r.lock.RUnlock()
	expr := fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
	if !ok {
		return "", &ExpressionError{Expression: expr, Reason: "no such function", Err: ErrUnknownFunction}
	}
	value, err := fn(args)
	if err != nil {
		return "", &ExpressionError{Expression: expr, Reason: err.Error(), Err: err}
	}
	return value, nil
}

const defaultDateLayout = "2006-01-02T15:04:05Z07:00"

func builtinFunctions() map[string]Function {
	sprigFuncs := sprig.GenericFuncMap()
	randAlphaNum := sprigFuncs["randAlphaNum"].(func(int) string)
	randAlpha := sprigFuncs["randAlpha"].(func(int) string)
	randNumeric := sprigFuncs["randNumeric"].(func(int) string)
	date := sprigFuncs["date"].(func(string, interface{}) string)
	b64enc := sprigFuncs["b64enc"].(func(string) string)
	b64dec := sprigFuncs["b64dec"].(func(string) string)

	return map[string]Function{
		"currentDate": func(args []string) (string, error) {
			if err := argCount(args, 0, 2); err != nil {
				return "", err
			}
			layout := defaultDateLayout
			if len(args) > 0 && args[0] != "" {
				layout = args[0]
			}
			now := time.Now()
			if len(args) > 1 {
				offset, err := time.ParseDuration(args[1])
				if err != nil {
					return "", fmt.Errorf("invalid offset %q", args[1])
				}
				now = now.Add(offset)
			}
			return date(layout, now), nil
		},
		"randomString": func(args []string) (string, error) {
			if err := argCount(args, 1, 2); err != nil {
				return "", err
			}
			n, err := intArg(args[0])
			if err != nil {
				return "", err
			}
			if len(args) > 1 {
				switch strings.ToLower(args[1]) {
				case "uppercase":
					return strings.ToUpper(randAlpha(n)), nil
				case "lowercase":
					return strings.ToLower(randAlpha(n)), nil
				case "letters":
					return randAlpha(n), nil
				}
			}
			return randAlphaNum(n), nil
		},
		"randomNumber": func(args []string) (string, error) {
			if err := argCount(args, 1, 1); err != nil {
				return "", err
			}
			n, err := intArg(args[0])
			if err != nil {
				return "", err
			}
			s := randNumeric(n)
			if n > 1 && s[0] == '0' {
				s = "1" + s[1:]
			}
			return s, nil
		},
		"randomUUID": func(args []string) (string, error) {
			if err := argCount(args, 0, 0); err != nil {
				return "", err
			}
			return uuid.NewString(), nil
		},
		"randomPattern": func(args []string) (string, error) {
			if err := argCount(args, 1, 1); err != nil {
				return "", err
			}
			return generateFromPattern(args[0])
		},
		"upperCase":    unary(strings.ToUpper),
		"lowerCase":    unary(strings.ToLower),
		"encodeBase64": unary(b64enc),
		"decodeBase64": unary(b64dec),
		"sha256": unary(func(s string) string {
			sum := sha256.Sum256([]byte(s))
			return hex.EncodeToString(sum[:])
		}),
		"stringLength": unary(func(s string) string { return strconv.Itoa(len([]rune(s))) }),
		"concat": func(args []string) (string, error) {
			return strings.Join(args, ""), nil
		},
		"substring": func(args []string) (string, error) {
			if err := argCount(args, 2, 3); err != nil {
				return "", err
			}
			runes := []rune(args[0])
			start, err := intArg(args[1])
			if err != nil {
				return "", err
			}
			end := len(runes)
			if len(args) > 2 {
				if end, err = intArg(args[2]); err != nil {
					return "", err
				}
			}
			if start < 0 || end > len(runes) || start > end {
				return "", fmt.Errorf("range [%d:%d] is out of bounds for a string of length %d", start, end, len(runes))
			}
			return string(runes[start:end]), nil
		},
	}
}

func unary(fn func(string) string) Function {
	return func(args []string) (string, error) {
		if err := argCount(args, 1, 1); err != nil {
			return "", err
		}
		return fn(args[0]), nil
	}
}

func argCount(args []string, minCount, maxCount int) error {
	if len(args) < minCount || len(args) > maxCount {
		if minCount == maxCount {
			return fmt.Errorf("expected %d argument(s), got %d", minCount, len(args))
		}
		return fmt.Errorf("expected %d to %d arguments, got %d", minCount, maxCount, len(args))
	}
	return nil
}

func intArg(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%q is not a non-negative integer", s)
	}
	return n, nil
}
