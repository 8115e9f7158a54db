package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_EmptyResponse(t *testing.T) {
	scorer := NewQualityScorer()

	assert.Equal(t, 0.0, scorer.Score("", "hello"))
	assert.Equal(t, 0.0, scorer.Score("   \n\t  ", "hello"))
}

func TestScore_BaseScore(t *testing.T) {
	scorer := NewQualityScorer()

	// Short, single segment, no lexical overlap: base score only.
	assert.Equal(t, 0.5, scorer.Score("Hello there", "xyz"))
}

func TestScore_LengthBonus(t *testing.T) {
	scorer := NewQualityScorer()

	tests := []struct {
		name     string
		response string
		want     float64
	}{
		{"in sweet spot", strings.Repeat("a", 60), 0.7},
		{"exactly 50", strings.Repeat("a", 50), 0.7},
		{"exactly 500", strings.Repeat("a", 500), 0.7},
		{"too long", strings.Repeat("a", 501), 0.6},
		{"too short", strings.Repeat("a", 49), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scorer.Score(tt.response, "xyz"), 1e-9)
		})
	}
}

func TestScore_StructureBonus(t *testing.T) {
	scorer := NewQualityScorer()

	// Two sentence-like segments, short, no overlap.
	assert.InDelta(t, 0.6, scorer.Score("One. Two.", "xyz"), 1e-9)

	// Trailing dot alone is not a second segment.
	assert.InDelta(t, 0.5, scorer.Score("One.", "xyz"), 1e-9)
}

func TestScore_RelevanceBonus(t *testing.T) {
	scorer := NewQualityScorer()

	// One of one user words overlaps: min(0.2, 1/1) = 0.2.
	assert.InDelta(t, 0.7, scorer.Score("the cat sat", "cat"), 1e-9)

	// One of four user words overlaps: min(0.2, 1/4) = 0.2 (cap applies).
	assert.InDelta(t, 0.7, scorer.Score("the cat sat", "cat dog bird fish"), 1e-9)

	// One of ten user words overlaps: 1/10 below the cap.
	assert.InDelta(t, 0.6, scorer.Score("the cat sat", "cat a b c d e f g h i"), 1e-9)
}

func TestScore_Bounds(t *testing.T) {
	scorer := NewQualityScorer()

	responses := []string{
		"",
		"short",
		strings.Repeat("word. ", 200),
		"An answer about cooking. It covers pans, knives and seasoning in detail for the cooking question.",
	}
	for _, r := range responses {
		score := scorer.Score(r, "tell me about cooking")
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestScore_MaximumScore(t *testing.T) {
	scorer := NewQualityScorer()

	// Sweet-spot length, two sentences, full overlap of the user's words.
	response := "I love cooking pasta every single day. Cooking pasta is my favourite thing to do."
	score := scorer.Score(response, "cooking pasta")
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestScore_Deterministic(t *testing.T) {
	scorer := NewQualityScorer()

	response := "A perfectly ordinary answer. It has two sentences."
	user := "an ordinary question"
	first := scorer.Score(response, user)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, scorer.Score(response, user))
	}
}
