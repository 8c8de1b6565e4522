// Package tagger finds DATE, PARTY and OBLIGATION spans in document text.
package tagger

import (
	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
)

// Tagger runs its matchers in order and concatenates their results, so output
// is grouped by matcher and ordered by position within each group.
type Tagger struct {
	matchers []Matcher
}

// New returns a Tagger over matchers; with none it uses DefaultMatchers.
func New(matchers ...Matcher) *Tagger {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Tagger{matchers: matchers}
}

// DefaultMatchers returns date, suffixed party, labeled party and obligation matchers.
func DefaultMatchers() []Matcher {
	return []Matcher{
		DateMatcher(),
		SuffixedPartyMatcher(),
		LabeledPartyMatcher(),
		ObligationMatcher(),
	}
}

// Tag never returns nil. Offsets index into text.
func (t *Tagger) Tag(text string) []entity.Entity {
	out := make([]entity.Entity, 0)
	for _, m := range t.matchers {
		out = append(out, m.Scan(text)...)
	}
	return out
}
