// Package chat runs persona conversations: one trial cycle per response,
// fanning user messages out to every active persona.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"

	"personalab/plab/engine"
	ports "personalab/plab/engine/ports"
	"personalab/plab/persona"
)

// Reply is the outcome of one persona responding to a user message.
type Reply struct {
	Persona    *persona.Persona
	Text       string
	TemplateID string
	Quality    float64
	Elapsed    time.Duration
	Err        error
}

// Service orchestrates the select → render → generate → score → record
// cycle around the external LLM call.
type Service struct {
	manager  *engine.Manager
	provider ports.Provider
	logger   zerolog.Logger
}

func NewService(manager *engine.Manager, provider ports.Provider, logger zerolog.Logger) *Service {
	return &Service{
		manager:  manager,
		provider: provider,
		logger:   logger.With().Str("component", "chat").Logger(),
	}
}

// SystemPrompt builds the in-character system prompt from persona fields.
func SystemPrompt(p *persona.Persona) string {
	return fmt.Sprintf(`You are %s, a %d-year-old %s %s.
Background: %s
Daily Routine: %s
Personality: %s
Skills: %s

Respond to messages in character, incorporating your background, personality, and expertise.
Keep responses concise (2-3 sentences) and natural.`,
		p.Name, p.Age, p.Nationality, p.Occupation,
		p.Background, p.Routine, p.Personality,
		strings.Join(p.Skills, ", "))
}

// Respond runs one full trial for a persona. Selection and rendering
// failures fall back to the default template; failures of the LLM call are
// recorded as failed trials (success=false, quality=0) rather than
// surfacing as engine errors.
func (s *Service) Respond(ctx context.Context, p *persona.Persona, conversation []ports.Message, userMessage string) Reply {
	tpl, err := s.manager.OptimalTemplate(ctx, p, conversation, userMessage)
	if err != nil {
		if !errors.Is(err, engine.ErrNoTemplates) {
			return Reply{Persona: p, Err: err}
		}
		// Configuration gap, not a crash: fall back to the default template.
		s.logger.Warn().Str("persona", p.Name).Msg("no templates available, using default template")
		tpl = engine.DefaultTemplate()
	}

	prompt, err := s.manager.GeneratePrompt(tpl, p, userMessage, conversation)
	if err != nil {
		var renderErr *engine.RenderError
		if !errors.As(err, &renderErr) {
			return Reply{Persona: p, Err: err}
		}
		s.logger.Warn().Str("template", tpl.ID).Str("placeholder", renderErr.Placeholder).
			Msg("template render failed, falling back to default template")
		tpl = engine.DefaultTemplate()
		if prompt, err = s.manager.GeneratePrompt(tpl, p, userMessage, conversation); err != nil {
			return Reply{Persona: p, Err: err}
		}
	}

	res, callErr := s.provider.Generate(ctx, ports.GenerateRequest{
		Model:       p.Model,
		Prompt:      prompt,
		System:      SystemPrompt(p),
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})

	quality := 0.0
	if callErr == nil {
		quality = s.manager.Score(res.Text, userMessage)
	} else {
		s.logger.Warn().Err(callErr).Str("persona", p.Name).Msg("generation failed, recording failed trial")
	}

	if err := s.manager.RecordUsage(ctx, engine.Usage{
		TemplateID:        tpl.ID,
		PersonaID:         p.ID,
		Conversation:      conversation,
		InputPrompt:       prompt,
		GeneratedResponse: res.Text,
		ResponseTime:      res.Elapsed,
		QualityScore:      quality,
		Success:           callErr == nil,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("usage record rejected")
	}

	if callErr != nil {
		return Reply{
			Persona:    p,
			Text:       fmt.Sprintf("Sorry, I'm having trouble responding right now. Error: %v", callErr),
			TemplateID: tpl.ID,
			Elapsed:    res.Elapsed,
			Err:        callErr,
		}
	}
	return Reply{
		Persona:    p,
		Text:       res.Text,
		TemplateID: tpl.ID,
		Quality:    quality,
		Elapsed:    res.Elapsed,
	}
}

// Broadcast sends the user message to all active personas in parallel and
// returns their replies in persona order.
func (s *Service) Broadcast(ctx context.Context, personas []*persona.Persona, conversation []ports.Message, userMessage string) []Reply {
	return iter.Map(personas, func(p **persona.Persona) Reply {
		return s.Respond(ctx, *p, conversation, userMessage)
	})
}
