package variables

import (
	"fmt"
	"math/rand"
	"regexp/syntax"
	"strings"
)

// Unbounded repetitions (*, +, {n,}) generate at most this many extra copies.
const maxPatternRepeat = 8

// generateFromPattern produces a random string matched by the regular expression.
func generateFromPattern(pattern string) (string, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	var out strings.Builder
	if err := generate(&out, re.Simplify()); err != nil {
		return "", fmt.Errorf("pattern %q: %w", pattern, err)
	}
	return out.String(), nil
}

func generate(out *strings.Builder, re *syntax.Regexp) error {
	switch re.Op {
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText,
		syntax.OpEndText, syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return nil
	case syntax.OpLiteral:
		out.WriteString(string(re.Rune))
		return nil
	case syntax.OpCharClass:
		out.WriteRune(randomRuneFromClass(re.Rune))
		return nil
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		out.WriteRune(rune('a' + rand.Intn(26))) //nolint:gosec
		return nil
	case syntax.OpCapture:
		return generate(out, re.Sub[0])
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if err := generate(out, sub); err != nil {
				return err
			}
		}
		return nil
	case syntax.OpAlternate:
		return generate(out, re.Sub[rand.Intn(len(re.Sub))]) //nolint:gosec
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		minCount, maxCount := repeatBounds(re)
		n := minCount
		if maxCount > minCount {
			n += rand.Intn(maxCount - minCount + 1) //nolint:gosec
		}
		for i := 0; i < n; i++ {
			if err := generate(out, re.Sub[0]); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported construct %s", re)
	}
}

func repeatBounds(re *syntax.Regexp) (int, int) {
	switch re.Op {
	case syntax.OpStar:
		return 0, maxPatternRepeat
	case syntax.OpPlus:
		return 1, 1 + maxPatternRepeat
	case syntax.OpQuest:
		return 0, 1
	}
	if re.Max < 0 {
		return re.Min, re.Min + maxPatternRepeat
	}
	return re.Min, re.Max
}

// randomRuneFromClass picks from a class given as inclusive lo-hi pairs, preferring
// printable ASCII when the class contains any.
func randomRuneFromClass(ranges []rune) rune {
	var candidates []rune
	for i := 0; i+1 < len(ranges); i += 2 {
		lo, hi := ranges[i], ranges[i+1]
		if lo < ' ' {
			lo = ' '
		}
		if hi > '~' {
			hi = '~'
		}
		for r := lo; r <= hi; r++ {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return ranges[0]
	}
	return candidates[rand.Intn(len(candidates))] //nolint:gosec
}
