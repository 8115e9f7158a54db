package engine

import (
	"strings"

	ports "personalab/plab/engine/ports"
)

const (
	// DefaultContextWindow is the number of trailing turns folded into a
	// context key. Larger windows raise bucket cardinality and slow
	// statistical convergence.
	DefaultContextWindow = 3

	// maxTurnRunes bounds the contribution of a single turn to the key.
	// The key is a low-cardinality bucket label, not verbatim context.
	maxTurnRunes = 80

	turnSeparator = " | "
)

// ContextExtractor reduces recent conversation turns into a compact,
// deterministic bucketing key. It has no side effects and no failure modes.
type ContextExtractor struct {
	window int
}

func NewContextExtractor(window int) *ContextExtractor {
	if window <= 0 {
		window = DefaultContextWindow
	}
	return &ContextExtractor{window: window}
}

// Extract returns the context key for the tail of the conversation. Empty
// input yields the empty key. Identical recent turns always yield identical
// keys.
func (e *ContextExtractor) Extract(messages []ports.Message) string {
	if len(messages) == 0 {
		return ""
	}

	tail := messages
	if len(tail) > e.window {
		tail = tail[len(tail)-e.window:]
	}

	parts := make([]string, 0, len(tail))
	for _, msg := range tail {
		content := strings.Join(strings.Fields(msg.Content), " ")
		if runes := []rune(content); len(runes) > maxTurnRunes {
			content = string(runes[:maxTurnRunes])
		}
		parts = append(parts, msg.Role+": "+content)
	}
	return strings.Join(parts, turnSeparator)
}
