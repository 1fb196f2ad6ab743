package variables

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUnresolved means a ${name} placeholder referred to a variable that does not exist.
	ErrUnresolved = errors.New("unresolved variable reference")

	// ErrUnknownFunction means a ${fn(...)} placeholder named a function that is not registered.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrSyntax means an expression could not be parsed.
	ErrSyntax = errors.New("malformed expression")
)

// ExpressionError describes a placeholder, function call or condition that could not be
// evaluated.
type ExpressionError struct {
	Expression string
	Reason     string
	Err        error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Expression, e.Reason)
}

func (e *ExpressionError) Unwrap() error { return e.Err }

var functionCallRegex = regexp.MustCompile(`(?s)^\s*([A-Za-z_][A-Za-z0-9_.:]*)\s*\((.*)\)\s*$`)

// Resolve replaces every ${...} placeholder in template.
//
// A placeholder holds either a variable name, ${greeting}, or a function call,
// ${randomString(8)}. Placeholders may nest, and inner ones are resolved first:
// ${randomString(${length})}. A backslash before the dollar sign, \${, produces a literal
// "${" and does not open a nested placeholder, so inside a placeholder the first unmatched
// "}" ends it. A reference to an unknown variable or function is an error; it never resolves to
// an empty string.
func (c *Context) Resolve(template string) (string, error) {
	if !strings.Contains(template, "${") {
		return template, nil
	}
	var out strings.Builder
	for i := 0; i < len(template); {
		switch {
		case strings.HasPrefix(template[i:], `\${`):
			out.WriteString("${")
			i += 3
		case strings.HasPrefix(template[i:], "${"):
			end, err := findPlaceholderEnd(template, i)
			if err != nil {
				return "", err
			}
			value, err := c.evaluatePlaceholder(template[i+2 : end])
			if err != nil {
				return "", err
			}
			out.WriteString(value)
			i = end + 1
		default:
			out.WriteByte(template[i])
			i++
		}
	}
	return out.String(), nil
}

// ResolveAll resolves every value of a string map, returning a new map.
func (c *Context) ResolveAll(templates map[string]string) (map[string]string, error) {
	if templates == nil {
		return nil, nil
	}
	ret := make(map[string]string, len(templates))
	for k, v := range templates {
		resolved, err := c.Resolve(v)
		if err != nil {
			return nil, err
		}
		ret[k] = resolved
	}
	return ret, nil
}

func findPlaceholderEnd(s string, start int) (int, error) {
	depth := 0
	for i := start; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], `\${`):
			i += 2
		case strings.HasPrefix(s[i:], "${"):
			depth++
			i++
		case s[i] == '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, &ExpressionError{Expression: s[start:], Reason: "placeholder is not terminated", Err: ErrSyntax}
}

// evaluatePlaceholder evaluates the text between "${" and "}". A function call's arguments
// are split before any placeholder inside them is resolved, so a resolved value is always
// exactly one argument, whatever characters it contains.
func (c *Context) evaluatePlaceholder(content string) (string, error) {
	if m := functionCallRegex.FindStringSubmatch(content); m != nil {
		rawArgs, err := splitArguments(m[2])
		if err != nil {
			return "", &ExpressionError{Expression: "${" + content + "}", Reason: err.Error(), Err: ErrSyntax}
		}
		args := make([]string, 0, len(rawArgs))
		for _, raw := range rawArgs {
			arg, err := c.Resolve(raw)
			if err != nil {
				return "", err
			}
			args = append(args, arg)
		}
		return c.functions.Call(m[1], args)
	}
	inner, err := c.Resolve(content)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(inner)
	if name == "" {
		return "", &ExpressionError{Expression: "${" + content + "}", Reason: "empty placeholder", Err: ErrSyntax}
	}
	value, ok := c.GetString(name)
	if !ok {
		return "", &ExpressionError{
			Expression: "${" + content + "}",
			Reason:     fmt.Sprintf("no variable named %q has been set", name),
			Err:        ErrUnresolved,
		}
	}
	return value, nil
}

// splitArguments splits an unresolved function argument list on commas that are neither
// inside quotes nor inside a nested placeholder, and removes one level of surrounding
// quotes from each argument.
func splitArguments(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var args []string
	var current strings.Builder
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case strings.HasPrefix(s[i:], `\${`):
			current.WriteString(`\${`)
			i += 2
		case strings.HasPrefix(s[i:], "${"):
			depth++
			current.WriteString("${")
			i++
		case depth > 0:
			if ch == '}' {
				depth--
			}
			current.WriteByte(ch)
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			current.WriteByte(ch)
		case ch == '\'' || ch == '"':
			quote = ch
			current.WriteByte(ch)
		case ch == ',':
			args = append(args, unquote(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quoted argument")
	}
	return append(args, unquote(current.String())), nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
