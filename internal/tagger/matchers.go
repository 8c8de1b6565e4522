package tagger

import (
	"regexp"

	"github.com/joseph-ayodele/legal-simplifier/constants"
	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
)

// Matcher finds every occurrence of one entity shape, in text order.
type Matcher interface {
	Name() string
	Scan(text string) []entity.Entity
}

// RegexMatcher tags each match of Pattern as Type.
type RegexMatcher struct {
	name    string
	Type    constants.EntityType
	Pattern *regexp.Regexp
}

func NewRegexMatcher(name string, typ constants.EntityType, pattern string) *RegexMatcher {
	return &RegexMatcher{name: name, Type: typ, Pattern: regexp.MustCompile(pattern)}
}

func (m *RegexMatcher) Name() string { return m.name }

func (m *RegexMatcher) Scan(text string) []entity.Entity {
	locs := m.Pattern.FindAllStringIndex(text, -1)
	out := make([]entity.Entity, 0, len(locs))
	for _, loc := range locs {
		out = append(out, entity.Entity{
			Type:  m.Type,
			Value: text[loc[0]:loc[1]],
			Start: loc[0],
			End:   loc[1],
		})
	}
	return out
}

// Numeric dates (01/12/2024, 1-2-24) and month-name dates (Jan 5, 2024; September 30, 2025).
func DateMatcher() *RegexMatcher {
	return NewRegexMatcher("date", constants.EntityDate,
		`(?i)\b(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\s+\d{1,2},\s*\d{2,4})\b`)
}

// Capitalized word runs ending in a corporate suffix. "Inc." and "Ltd." end in
// a period so no trailing word boundary is required after them.
func SuffixedPartyMatcher() *RegexMatcher {
	return NewRegexMatcher("party.suffixed", constants.EntityParty,
		`\b[A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*\s+(?:Inc\.|Ltd\.|(?:LLC|Corporation|Company)\b)`)
}

// Contract role labels.
func LabeledPartyMatcher() *RegexMatcher {
	return NewRegexMatcher("party.labeled", constants.EntityParty,
		`(?i)\b(?:First Party|Second Party|Lessor|Lessee|Buyer|Seller)\b`)
}

// A modal verb followed by one lowercase word.
func ObligationMatcher() *RegexMatcher {
	return NewRegexMatcher("obligation", constants.EntityObligation,
		`\b(?i:shall|must|will)\s+[a-z]+\b`)
}
