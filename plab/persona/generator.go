package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ports "personalab/plab/engine/ports"
)

const generationPrompt = `You are a JSON generator for creating detailed, realistic personas. You must ONLY output a valid JSON object - no other text.
Generate a CONCISE persona for a %s using this exact format:

{
    "name": "Example Name",
    "age": 35,
    "nationality": "Example Nationality",
    "occupation": "%s",
    "background": "One sentence about education and career.",
    "routine": "One sentence about daily schedule.",
    "personality": "One sentence about traits.",
    "skills": [
        "Skill 1",
        "Skill 2",
        "Skill 3"
    ]
}

IMPORTANT:
1. Output ONLY valid JSON - no other text
2. Keep all text fields SHORT (one sentence each)
3. Age between 25-65
4. Use proper JSON quotes and commas
5. Ensure JSON is complete and valid`

// generatedFields is the subset of persona fields the model must produce.
type generatedFields struct {
	Name        string   `json:"name"`
	Age         int      `json:"age"`
	Nationality string   `json:"nationality"`
	Background  string   `json:"background"`
	Routine     string   `json:"routine"`
	Personality string   `json:"personality"`
	Skills      []string `json:"skills"`
}

// Generator creates new personas by prompting the inference endpoint for a
// strict-JSON character sheet.
type Generator struct {
	provider ports.Provider
	logger   zerolog.Logger
}

func NewGenerator(provider ports.Provider, logger zerolog.Logger) *Generator {
	return &Generator{
		provider: provider,
		logger:   logger.With().Str("component", "persona_generator").Logger(),
	}
}

// Generate asks the model for a persona with the given occupation and
// validates the result. maxTokens is raised to 1000 when smaller, so the
// JSON object is never truncated mid-field.
func (g *Generator) Generate(ctx context.Context, occupation, model string, temperature float64, maxTokens int) (*Persona, error) {
	if model == "" {
		return nil, fmt.Errorf("no model configured for persona generation")
	}
	if maxTokens < 1000 {
		maxTokens = 1000
	}

	res, err := g.provider.Generate(ctx, ports.GenerateRequest{
		Model:       model,
		Prompt:      fmt.Sprintf(generationPrompt, occupation, occupation),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("persona generation call failed: %w", err)
	}

	raw, err := extractJSONObject(res.Text)
	if err != nil {
		g.logger.Warn().Str("response", res.Text).Msg("model response contained no JSON object")
		return nil, err
	}

	var fields generatedFields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON in model response: %w", err)
	}

	now := time.Now()
	p := &Persona{
		ID:          uuid.NewString(),
		Name:        fields.Name,
		Age:         fields.Age,
		Nationality: fields.Nationality,
		Occupation:  occupation,
		Background:  fields.Background,
		Routine:     fields.Routine,
		Personality: fields.Personality,
		Skills:      fields.Skills,
		Avatar:      AvatarURL(fields.Name),
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("generated persona rejected: %w", err)
	}

	g.logger.Info().Str("persona", p.Name).Str("occupation", occupation).Msg("generated persona")
	return p, nil
}

// extractJSONObject pulls the outermost {...} span from a possibly noisy
// completion. Models occasionally wrap the object in prose or code fences.
func extractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return text[start : end+1], nil
}
