// Package simplify rewrites legal jargon into plain language with an ordered
// list of substitution rules.
package simplify

import (
	"fmt"
	"regexp"
)

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

// Simplifier applies its rules in order, each over the previous rule's output.
// It holds no mutable state after construction.
type Simplifier struct {
	rules []compiledRule
}

// New compiles rules. Use DefaultRules for the built-in set.
func New(rules []Rule) (*Simplifier, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %d (%q): %w", i, r.Pattern, err)
		}
		compiled = append(compiled, compiledRule{re: re, replacement: r.Replacement})
	}
	return &Simplifier{rules: compiled}, nil
}

// MustDefault returns a Simplifier over DefaultRules.
func MustDefault() *Simplifier {
	s, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Simplifier) Simplify(text string) string {
	for _, r := range s.rules {
		text = r.re.ReplaceAllLiteralString(text, r.replacement)
	}
	return text
}

// Len returns the number of active rules.
func (s *Simplifier) Len() int { return len(s.rules) }
