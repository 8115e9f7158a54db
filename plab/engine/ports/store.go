package engineports

import "time"

// Message is a single conversation turn passed into the engine by the chat
// layer. Name is the display name of the speaking persona, if any.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// UsageRecord is an append-only fact describing one completed trial.
// Records are never mutated after creation.
type UsageRecord struct {
	ID                string    `json:"id"`
	TemplateID        string    `json:"template_id"`
	PersonaID         string    `json:"persona_id"`
	ContextKey        string    `json:"context_key"`
	InputPrompt       string    `json:"input_prompt"`
	GeneratedResponse string    `json:"generated_response"`
	ResponseSeconds   float64   `json:"response_time_seconds"`
	QualityScore      float64   `json:"quality_score"`
	Success           bool      `json:"success"`
	Timestamp         time.Time `json:"timestamp"`
}

// AggregateKey identifies the statistic bucket a record folds into.
// ContextKey is empty unless context-scoped selection is enabled.
type AggregateKey struct {
	TemplateID string `json:"template_id"`
	PersonaID  string `json:"persona_id"`
	ContextKey string `json:"context_key,omitempty"`
}

// AggregateStat holds running counters for one (template, persona) pair.
// Invariants: TrialCount >= SuccessCount >= 0, all sums >= 0.
type AggregateStat struct {
	TrialCount   int     `json:"trial_count"`
	SuccessCount int     `json:"success_count"`
	QualitySum   float64 `json:"quality_sum"`
	LatencySum   float64 `json:"latency_sum"`
}

// MeanQuality returns QualitySum/TrialCount, and whether the stat has any
// trials at all. Untried stats take part in forced exploration.
func (s AggregateStat) MeanQuality() (float64, bool) {
	if s.TrialCount == 0 {
		return 0, false
	}
	return s.QualitySum / float64(s.TrialCount), true
}

// MeanLatency returns the average response time in seconds.
func (s AggregateStat) MeanLatency() float64 {
	if s.TrialCount == 0 {
		return 0
	}
	return s.LatencySum / float64(s.TrialCount)
}

// TemplateStore owns template definitions, aggregate statistics, and the
// append-only usage log. It is the single writer of durable state; all
// other components hold read-only views.
type TemplateStore interface {
	// Templates returns a snapshot of all template definitions.
	Templates() []Template

	// Template looks up a single definition by ID.
	Template(id string) (Template, bool)

	// Aggregate returns the statistic for a key, or a zero stat when the
	// key has never been recorded.
	Aggregate(key AggregateKey) (AggregateStat, bool)

	// RecordUsage appends the record to the usage log and folds it into
	// the aggregate for key in one atomic step.
	RecordUsage(key AggregateKey, rec UsageRecord) error
}
