// Package analysis extracts structured recitation feedback out of the
// free-text responses produced by the comparison model.
package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"

	"recitation-gateway/internal/observability/metrics"
)

// Extraction methods recorded on a Score.
const (
	MethodNumeric = "numeric" // a number was found in the model text
	MethodKeyword = "keyword" // inferred from a quality keyword
	MethodLocal   = "local"   // Jaro-Winkler similarity of the two texts
)

var numberPattern = regexp.MustCompile(`([0-9]*\.)?[0-9]+`)

// Score is a tagged extraction result. Parsed is false when nothing usable
// was found in the model text and the value is a fallback, so callers can
// observe the fallback instead of mistaking it for a model judgement.
type Score struct {
	Value  float64
	Parsed bool
	Method string
	Raw    string
}

// ParseScore extracts a pronunciation similarity score in [0,1] from the
// model's reply. Numbers are preferred; scores reported on a 0-100 scale are
// normalized. Failing that, quality keywords are mapped to fixed values.
// When neither is present the result is unparsed with a neutral 0.5.
func ParseScore(raw string) Score {
	m := metrics.DefaultMetrics
	trimmed := strings.TrimSpace(raw)

	if match := numberPattern.FindString(trimmed); match != "" {
		if v, err := strconv.ParseFloat(match, 64); err == nil {
			if v > 1 {
				v = v / 100
			}
			m.RecordScoreParse(MethodNumeric)
			return Score{Value: clamp(v), Parsed: true, Method: MethodNumeric, Raw: raw}
		}
	}

	lower := strings.ToLower(trimmed)
	for _, k := range []struct {
		word  string
		value float64
	}{
		{"excellent", 0.95},
		{"perfect", 0.95},
		{"good", 0.8},
		{"fair", 0.6},
		{"average", 0.6},
		{"poor", 0.4},
	} {
		if strings.Contains(lower, k.word) {
			m.RecordScoreParse(MethodKeyword)
			return Score{Value: k.value, Parsed: true, Method: MethodKeyword, Raw: raw}
		}
	}

	m.RecordScoreParse("unparsed")
	return Score{Value: 0.5, Parsed: false, Raw: raw}
}

// LocalSimilarity computes a Jaro-Winkler similarity between the expected
// text and the transcribed recitation. Used as an observable fallback when
// the model reply is unparseable.
func LocalSimilarity(expected, actual string) float64 {
	expected = strings.TrimSpace(expected)
	actual = strings.TrimSpace(actual)
	if expected == "" || actual == "" {
		return 0
	}
	return clamp(matchr.JaroWinkler(expected, actual, false))
}

// ScoreWithFallback parses the model reply and, when unparseable, substitutes
// a local similarity estimate instead of the neutral default. The result
// stays unparsed so the substitution is visible to the caller.
func ScoreWithFallback(raw, expected, actual string) Score {
	s := ParseScore(raw)
	if s.Parsed {
		return s
	}
	s.Value = LocalSimilarity(expected, actual)
	s.Method = MethodLocal
	return s
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
