package engine

import (
	"math"
	"strings"
	"unicode/utf8"
)

// QualityScorer rates a generated response against the triggering user
// message. It is a cheap deterministic proxy, not a learned quality model:
// keeping feedback synchronous avoids a second inference call per trial.
type QualityScorer struct{}

func NewQualityScorer() *QualityScorer { return &QualityScorer{} }

// Score returns a heuristic quality value in [0, 1].
//
// Empty or whitespace-only responses score 0. Otherwise the score starts at
// 0.5 and earns bonuses for reasonable length, sentence structure, and
// lexical overlap with the user message.
func (s *QualityScorer) Score(response, userMessage string) float64 {
	if strings.TrimSpace(response) == "" {
		return 0.0
	}

	score := 0.5

	// Length bonus: [50,500] runes is the sweet spot for a chat reply.
	switch length := utf8.RuneCountInString(response); {
	case length >= 50 && length <= 500:
		score += 0.2
	case length > 500:
		score += 0.1
	}

	// Structure bonus: at least two sentence-like segments.
	segments := 0
	for _, seg := range strings.Split(response, ".") {
		if strings.TrimSpace(seg) != "" {
			segments++
		}
	}
	if segments >= 2 {
		score += 0.1
	}

	// Relevance bonus: word-set overlap with the user message.
	responseWords := wordSet(response)
	userWords := wordSet(userMessage)
	if len(userWords) > 0 {
		overlap := 0
		for w := range userWords {
			if responseWords[w] {
				overlap++
			}
		}
		if overlap > 0 {
			score += math.Min(0.2, float64(overlap)/float64(len(userWords)))
		}
	}

	return math.Max(0.0, math.Min(1.0, score))
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}
