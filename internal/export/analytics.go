package export

import (
	"math"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
	"github.com/joseph-ayodele/legal-simplifier/internal/summarize"
)

var (
	reParagraphBreak = regexp.MustCompile(`\n\s*\n`)
	riskKeywords     = []string{
		"liability", "penalty", "breach", "termination", "damages", "indemnify",
		"sue", "lawsuit", "court", "arbitration", "dispute", "violation",
	}
)

type Insight struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Analytics struct {
	WordCount           int            `json:"wordCount"`
	SimplifiedWordCount int            `json:"simplifiedWordCount"`
	SentenceCount       int            `json:"sentenceCount"`
	ParagraphCount      int            `json:"paragraphCount"`
	AvgWordsPerSentence float64        `json:"avgWordsPerSentence"`
	ComplexityScore     int            `json:"complexityScore"`
	RiskScore           int            `json:"riskScore"`
	EntityCount         int            `json:"entityCount"`
	EntityCounts        map[string]int `json:"entityCounts"`
	ReductionPercent    int            `json:"reductionPercent"`
	Insights            []Insight      `json:"insights"`
}

// Analyze derives readability and risk metrics from a processed document.
// Scores are clamped to 1..10.
func Analyze(doc *entity.Document) Analytics {
	text := doc.OriginalText
	a := Analytics{
		WordCount:           len(strings.Fields(text)),
		SimplifiedWordCount: len(strings.Fields(doc.SimplifiedText)),
		SentenceCount:       len(summarize.SplitSentences(text)),
		ParagraphCount:      countParagraphs(text),
		EntityCount:         len(doc.Entities),
		EntityCounts:        map[string]int{},
		Insights:            []Insight{},
	}
	if a.SentenceCount > 0 {
		a.AvgWordsPerSentence = math.Round(float64(a.WordCount)/float64(a.SentenceCount)*10) / 10
	}
	a.ComplexityScore = clamp(int(math.Round(a.AvgWordsPerSentence/3)), 1, 10)

	lower := strings.ToLower(text)
	risks := 0
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) {
			risks++
		}
	}
	a.RiskScore = clamp(risks+1, 1, 10)

	for _, e := range doc.Entities {
		a.EntityCounts[string(e.Type)]++
	}
	if a.WordCount > 0 {
		a.ReductionPercent = int(math.Round(float64(a.WordCount-a.SimplifiedWordCount) / float64(a.WordCount) * 100))
	}

	if a.ComplexityScore > 7 {
		a.Insights = append(a.Insights, Insight{Type: "warning", Text: "High complexity document - may need expert review"})
	}
	if a.RiskScore > 5 {
		a.Insights = append(a.Insights, Insight{Type: "danger", Text: "Contains high-risk legal terms"})
	}
	if a.ReductionPercent > 30 {
		a.Insights = append(a.Insights, Insight{Type: "success", Text: "Significant readability improvement achieved"})
	}
	if a.EntityCount > 20 {
		a.Insights = append(a.Insights, Insight{Type: "info", Text: "Document contains many entities - complex agreement"})
	}
	if doc.Degraded {
		a.Insights = append(a.Insights, Insight{Type: "warning", Text: "Text could not be extracted from the PDF"})
	}
	return a
}

func countParagraphs(text string) int {
	n := 0
	for _, p := range reParagraphBreak.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
