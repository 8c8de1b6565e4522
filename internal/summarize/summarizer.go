// Package summarize builds extractive summaries by term-frequency sentence scoring.
package summarize

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultMaxSentences is the summary length used by the pipeline.
const DefaultMaxSentences = 5

var (
	reSpace = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)
	reWord  = regexp.MustCompile(`[a-z']+`)
)

var stopwords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "and": {}, "a": {},
	"an": {}, "of": {}, "to": {}, "for": {}, "in": {}, "by": {}, "with": {},
	"as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "are": {}, "or": {},
}

// Summarizer is stateless and safe for concurrent use.
type Summarizer struct{}

func New() *Summarizer { return &Summarizer{} }

type scored struct {
	index int
	text  string
	score float64
}

// Summarize returns text unchanged when it has at most maxSentences sentences.
// Otherwise it keeps the maxSentences highest scoring sentences in document
// order, joined by a single space. Equal scores keep document order.
func (s *Summarizer) Summarize(text string, maxSentences int) string {
	sentences := SplitSentences(text)
	if len(sentences) <= maxSentences {
		return text
	}
	if maxSentences <= 0 {
		return ""
	}

	freq := make(map[string]int)
	for _, w := range tokenize(text) {
		if _, stop := stopwords[w]; stop {
			continue
		}
		freq[w]++
	}

	ranked := make([]scored, len(sentences))
	for i, sentence := range sentences {
		tokens := tokenize(sentence)
		sum := 0
		for _, tok := range tokens {
			sum += freq[tok]
		}
		n := len(tokens)
		if n == 0 {
			n = 1
		}
		ranked[i] = scored{index: i, text: sentence, score: float64(sum) / float64(n)}
	}

	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	top := ranked[:maxSentences]
	sort.Slice(top, func(a, b int) bool { return top[a].index < top[b].index })

	out := make([]string, len(top))
	for i, sc := range top {
		out[i] = sc.text
	}
	return strings.Join(out, " ")
}

// SplitSentences collapses whitespace and cuts after '.', '!' or '?' when a
// space follows. Fragments are trimmed and empty ones dropped.
func SplitSentences(text string) []string {
	collapsed := reSpace.ReplaceAllString(text, " ")

	var sentences []string
	start := 0
	for i := 1; i < len(collapsed); i++ {
		if collapsed[i] != ' ' {
			continue
		}
		switch collapsed[i-1] {
		case '.', '!', '?':
			if frag := strings.TrimSpace(collapsed[start:i]); frag != "" {
				sentences = append(sentences, frag)
			}
			start = i + 1
		}
	}
	if start < len(collapsed) {
		if frag := strings.TrimSpace(collapsed[start:]); frag != "" {
			sentences = append(sentences, frag)
		}
	}
	return sentences
}

func tokenize(text string) []string {
	return reWord.FindAllString(strings.ToLower(text), -1)
}
