// Package persona holds the persona model and its JSON-backed manager.
package persona

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Persona is a synthetic conversational character backed by a local model.
type Persona struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Age         int       `json:"age"`
	Nationality string    `json:"nationality"`
	Occupation  string    `json:"occupation"`
	Background  string    `json:"background"`
	Routine     string    `json:"routine"`
	Personality string    `json:"personality"`
	Skills      []string  `json:"skills"`
	Avatar      string    `json:"avatar"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	Tags        []string  `json:"tags,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// Attributes returns the persona's fields as template placeholder values.
// Keys match the placeholder names used in template patterns.
func (p *Persona) Attributes() map[string]string {
	return map[string]string{
		"name":        p.Name,
		"age":         strconv.Itoa(p.Age),
		"nationality": p.Nationality,
		"occupation":  p.Occupation,
		"background":  p.Background,
		"routine":     p.Routine,
		"personality": p.Personality,
		"skills":      strings.Join(p.Skills, ", "),
	}
}

// Validate checks the constraints enforced at creation time.
func (p *Persona) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("persona name is required")
	}
	if p.Age < 25 || p.Age > 65 {
		return fmt.Errorf("persona age must be between 25 and 65, got %d", p.Age)
	}
	if len(p.Skills) == 0 {
		return fmt.Errorf("persona skills must be a non-empty list")
	}
	return nil
}

// AvatarURL derives a stable DiceBear avatar URL from the persona name.
func AvatarURL(name string) string {
	seed := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name))
	return fmt.Sprintf("https://api.dicebear.com/7.x/personas/svg?seed=%s", seed)
}
