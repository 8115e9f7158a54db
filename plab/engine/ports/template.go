package engineports

import (
	"strings"
	"time"
)

// Template is an immutable prompt pattern with named placeholders for
// persona attributes and the user message, e.g. "{name}" or "{user_message}".
type Template struct {
	ID string `json:"id"`

	// Pattern is the raw template text with {placeholder} slots.
	Pattern string `json:"pattern"`

	// ApplicableOccupations restricts the template to personas with one of
	// these occupations. Empty means universal.
	ApplicableOccupations []string `json:"applicable_occupations"`

	CreatedAt time.Time `json:"created_at"`
}

// AppliesTo reports whether the template may be used for the given
// occupation. Matching is case-insensitive on exact tags.
func (t Template) AppliesTo(occupation string) bool {
	if len(t.ApplicableOccupations) == 0 {
		return true
	}
	for _, occ := range t.ApplicableOccupations {
		if strings.EqualFold(occ, occupation) {
			return true
		}
	}
	return false
}
