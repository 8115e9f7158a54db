// Package engine implements the adaptive prompt-template selection and
// learning engine: an epsilon-greedy exploration/exploitation policy over
// prompt templates, a heuristic quality scorer for feedback, and usage
// recording into per-(template, persona) aggregate statistics.
package engine

import (
	"context"
	"time"

	ports "personalab/plab/engine/ports"
	"personalab/plab/persona"
)

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	// Epsilon is the exploration rate of the selection policy.
	Epsilon float64

	// ContextWindow is the number of trailing turns folded into the
	// context key.
	ContextWindow int

	// ContextScoped switches aggregate statistics from (template, persona)
	// to (template, persona, context bucket). Off by default: the smaller
	// statistic space converges with limited trials per persona.
	ContextScoped bool

	// Seed fixes the selector's RNG for reproducible tests.
	Seed int64

	Tracer ports.Tracer
}

// Manager is the facade over the selection engine: pick a template, render
// it into a prompt, and record the observed outcome.
type Manager struct {
	store     ports.TemplateStore
	extractor *ContextExtractor
	scorer    *QualityScorer
	selector  *Selector
	recorder  *UsageRecorder
	tracer    ports.Tracer
}

func NewManager(store ports.TemplateStore, opts Options) *Manager {
	if opts.Epsilon == 0 {
		opts.Epsilon = DefaultEpsilon
	}
	if opts.Tracer == nil {
		opts.Tracer = ports.NopTracer{}
	}
	return &Manager{
		store:     store,
		extractor: NewContextExtractor(opts.ContextWindow),
		scorer:    NewQualityScorer(),
		selector:  NewSelector(store, opts.Epsilon, opts.ContextScoped, opts.Seed),
		recorder:  NewUsageRecorder(store, opts.ContextScoped),
		tracer:    opts.Tracer,
	}
}

// OptimalTemplate picks the template expected to produce the best response
// for the persona in the current conversation. userMessage is accepted for
// future relevance-aware selection; it is not yet a selection input.
func (m *Manager) OptimalTemplate(ctx context.Context, p *persona.Persona, conversation []ports.Message, userMessage string) (ports.Template, error) {
	_ = userMessage

	contextKey := m.extractor.Extract(conversation)
	ctx, finish := m.tracer.StartSpan(ctx, "select_template", map[string]any{
		"persona_id":  p.ID,
		"context_key": contextKey,
	})

	tpl, err := m.selector.Select(p.ID, p.Occupation, contextKey)
	finish(err)
	if err != nil {
		return ports.Template{}, err
	}

	m.tracer.Event(ctx, "template_selected", map[string]any{"template_id": tpl.ID})
	return tpl, nil
}

// GeneratePrompt renders the template for the persona and user message.
// Unknown placeholders yield a *RenderError; callers fall back to
// DefaultTemplate.
func (m *Manager) GeneratePrompt(tpl ports.Template, p *persona.Persona, userMessage string, conversation []ports.Message) (string, error) {
	return Render(tpl, p, userMessage, m.extractor.Extract(conversation))
}

// Usage is the observed outcome of one trial, reported by the caller after
// the external LLM call completed (or failed).
type Usage struct {
	TemplateID        string
	PersonaID         string
	Conversation      []ports.Message
	InputPrompt       string
	GeneratedResponse string
	ResponseTime      time.Duration
	QualityScore      float64
	Success           bool
}

// RecordUsage appends one usage record and updates the matching aggregate.
func (m *Manager) RecordUsage(ctx context.Context, u Usage) error {
	err := m.recorder.Record(UsageInput{
		TemplateID:        u.TemplateID,
		PersonaID:         u.PersonaID,
		ContextKey:        m.extractor.Extract(u.Conversation),
		InputPrompt:       u.InputPrompt,
		GeneratedResponse: u.GeneratedResponse,
		ResponseTime:      u.ResponseTime,
		QualityScore:      u.QualityScore,
		Success:           u.Success,
	})
	if err != nil {
		m.tracer.Event(ctx, "usage_rejected", map[string]any{"error": err.Error()})
		return err
	}
	m.tracer.Event(ctx, "usage_recorded", map[string]any{
		"template_id": u.TemplateID,
		"persona_id":  u.PersonaID,
		"success":     u.Success,
	})
	return nil
}

// Score rates a response against the user message with the built-in
// heuristic scorer.
func (m *Manager) Score(response, userMessage string) float64 {
	return m.scorer.Score(response, userMessage)
}

// ContextKey exposes the derived bucketing key, mainly for logging and
// offline analysis.
func (m *Manager) ContextKey(conversation []ports.Message) string {
	return m.extractor.Extract(conversation)
}

// Store returns the underlying template store.
func (m *Manager) Store() ports.TemplateStore { return m.store }
