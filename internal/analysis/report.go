package analysis

import (
	"regexp"
	"strings"

	"recitation-gateway/internal/observability/metrics"
)

var (
	transliterationPattern = regexp.MustCompile(`(?i)Transliteration:?\s*([^\n]+)`)
	translationPattern     = regexp.MustCompile(`(?i)Translation:?\s*([^\n]+)`)
	comparisonPattern      = regexp.MustCompile(`(?i)Comparison:?\s*([^\n]+(?:\n[^\n]+)*)`)
	reportScorePattern     = regexp.MustCompile(`(?i)(?:Similarity|Meaning) Score:?\s*(\d+)`)
)

// Report is the structured form of the model's recitation analysis:
// transliteration and translation of what the learner actually said, a
// meaning comparison against the original verse, and a similarity score.
// Absent sections stay empty rather than being guessed at.
type Report struct {
	Transliteration string
	Translation     string
	Comparison      string
	Score           Score
	Raw             string
}

// ParseReport extracts the labelled sections from the model's analysis text.
// The score is taken from an explicit "Similarity Score" line when present;
// otherwise the report carries an unparsed zero score.
func ParseReport(content string) Report {
	r := Report{Raw: content}

	if m := transliterationPattern.FindStringSubmatch(content); m != nil {
		r.Transliteration = strings.TrimSpace(m[1])
	}
	if m := translationPattern.FindStringSubmatch(content); m != nil {
		r.Translation = strings.TrimSpace(m[1])
	}
	if m := comparisonPattern.FindStringSubmatch(content); m != nil {
		r.Comparison = strings.TrimSpace(m[1])
	}

	if m := reportScorePattern.FindStringSubmatch(content); m != nil {
		r.Score = ParseScore(m[1])
	} else {
		// No explicit score line: report it as unparsed rather than
		// scraping an arbitrary number out of the prose.
		metrics.DefaultMetrics.RecordScoreParse("unparsed")
		r.Score = Score{Value: 0, Parsed: false, Raw: content}
	}
	return r
}
