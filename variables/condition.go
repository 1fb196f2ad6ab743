package variables

import (
	"fmt"
	"strconv"
	"strings"
)

var wordOperators = map[string]string{ //nolint:gochecknoglobals
	"lt": "<", "lte": "<=", "gt": ">", "gte": ">=", "eq": "==", "ne": "!=",
}

// EvaluateCondition evaluates a boolean condition such as `i < 3`, `${status} == "done"`
// or `i lt 10 && retry != 'false'`.
//
// Placeholders are substituted into the operand they appear in, and the result is taken
// literally. A bare word that is not a literal is looked up as a variable name.
// Comparisons are numeric when both sides are numbers and textual otherwise. && binds
// tighter than ||; parentheses are not supported.
func (c *Context) EvaluateCondition(condition string) (bool, error) {
	tokens, err := tokenizeCondition(condition)
	if err != nil {
		return false, &ExpressionError{Expression: condition, Reason: err.Error(), Err: ErrSyntax}
	}
	if len(tokens) == 0 {
		return false, &ExpressionError{Expression: condition, Reason: "empty condition", Err: ErrSyntax}
	}
	result, err := c.evaluateOr(tokens)
	if err != nil {
		if ee, ok := err.(*ExpressionError); ok {
			return false, ee
		}
		return false, &ExpressionError{Expression: condition, Reason: err.Error(), Err: ErrSyntax}
	}
	return result, nil
}

type conditionToken struct {
	text     string
	quoted   bool
	operator bool
}

func (t conditionToken) hasPlaceholder() bool { return strings.Contains(t.text, "${") }

func tokenizeCondition(s string) ([]conditionToken, error) {
	var tokens []conditionToken
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n':
			i++
		case ch == '\'' || ch == '"':
			end := strings.IndexByte(s[i+1:], ch)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string starting at offset %d", i)
			}
			tokens = append(tokens, conditionToken{text: s[i+1 : i+1+end], quoted: true})
			i += end + 2
		case strings.ContainsRune("<>=!&|", rune(ch)):
			op := symbolOperatorAt(s[i:])
			if op == "" {
				return nil, fmt.Errorf("unexpected %q at offset %d", ch, i)
			}
			tokens = append(tokens, conditionToken{text: op, operator: true})
			i += len(op)
		default:
			start := i
			for i < len(s) && !strings.ContainsRune(" \t\n'\"<>=!&|", rune(s[i])) {
				if strings.HasPrefix(s[i:], "${") {
					end, err := findPlaceholderEnd(s, i)
					if err != nil {
						return nil, err
					}
					i = end + 1
					continue
				}
				i++
			}
			word := s[start:i]
			if op, ok := wordOperators[strings.ToLower(word)]; ok {
				tokens = append(tokens, conditionToken{text: op, operator: true})
			} else {
				tokens = append(tokens, conditionToken{text: word})
			}
		}
	}
	return tokens, nil
}

func symbolOperatorAt(s string) string {
	for _, op := range []string{"<=", ">=", "==", "!=", "&&", "||", "<", ">"} {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func splitTokens(tokens []conditionToken, op string) [][]conditionToken {
	var parts [][]conditionToken
	start := 0
	for i, t := range tokens {
		if t.operator && t.text == op {
			parts = append(parts, tokens[start:i])
			start = i + 1
		}
	}
	return append(parts, tokens[start:])
}

func (c *Context) evaluateOr(tokens []conditionToken) (bool, error) {
	for _, part := range splitTokens(tokens, "||") {
		ok, err := c.evaluateAnd(part)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (c *Context) evaluateAnd(tokens []conditionToken) (bool, error) {
	for _, part := range splitTokens(tokens, "&&") {
		ok, err := c.evaluateComparison(part)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c *Context) evaluateComparison(tokens []conditionToken) (bool, error) {
	switch len(tokens) {
	case 1:
		value, err := c.operandValue(tokens[0])
		if err != nil {
			return false, err
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("%q is not a boolean", value)
		}
		return b, nil
	case 3:
		if tokens[0].operator || !tokens[1].operator || tokens[2].operator {
			break
		}
		left, err := c.operandValue(tokens[0])
		if err != nil {
			return false, err
		}
		right, err := c.operandValue(tokens[2])
		if err != nil {
			return false, err
		}
		return compareOperands(left, tokens[1].text, right)
	}
	texts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		texts = append(texts, t.text)
	}
	return false, fmt.Errorf("expected a comparison but got %q", strings.Join(texts, " "))
}

func (c *Context) operandValue(t conditionToken) (string, error) {
	if t.hasPlaceholder() {
		return c.Resolve(t.text)
	}
	if t.quoted {
		return t.text, nil
	}
	if _, err := strconv.ParseFloat(t.text, 64); err == nil {
		return t.text, nil
	}
	if t.text == "true" || t.text == "false" {
		return t.text, nil
	}
	value, ok := c.GetString(t.text)
	if !ok {
		return "", &ExpressionError{
			Expression: t.text,
			Reason:     fmt.Sprintf("no variable named %q has been set", t.text),
			Err:        ErrUnresolved,
		}
	}
	return value, nil
}

func compareOperands(left, op, right string) (bool, error) {
	l, lErr := strconv.ParseFloat(strings.TrimSpace(left), 64)
	r, rErr := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if lErr == nil && rErr == nil {
		switch op {
		case "<":
			return l < r, nil
		case "<=":
			return l <= r, nil
		case ">":
			return l > r, nil
		case ">=":
			return l >= r, nil
		case "==":
			return l == r, nil
		case "!=":
			return l != r, nil
		}
	} else {
		cmp := strings.Compare(left, right)
		switch op {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		case ">=":
			return cmp >= 0, nil
		case "==":
			return cmp == 0, nil
		case "!=":
			return cmp != 0, nil
		}
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}
