package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	ports "personalab/plab/engine/ports"
)

// UsageInput is the feedback for one completed trial, keyed by the derived
// context bucket.
type UsageInput struct {
	TemplateID        string
	PersonaID         string
	ContextKey        string
	InputPrompt       string
	GeneratedResponse string
	ResponseTime      time.Duration
	QualityScore      float64
	Success           bool
}

// UsageRecorder appends usage records and folds them into the matching
// aggregate. It never fails on valid inputs: out-of-range quality scores
// are clamped, only a negative response time is rejected.
type UsageRecorder struct {
	store         ports.TemplateStore
	contextScoped bool
}

func NewUsageRecorder(store ports.TemplateStore, contextScoped bool) *UsageRecorder {
	return &UsageRecorder{store: store, contextScoped: contextScoped}
}

// Record validates the input and hands one immutable UsageRecord to the
// store. The aggregate for the key is created with zero counters when
// absent and updated incrementally, O(1) per call.
func (r *UsageRecorder) Record(in UsageInput) error {
	if in.TemplateID == "" {
		return fmt.Errorf("%w: empty template id", ErrInvalidUsage)
	}
	if in.PersonaID == "" {
		return fmt.Errorf("%w: empty persona id", ErrInvalidUsage)
	}
	if in.ResponseTime < 0 {
		return fmt.Errorf("%w: negative response time %s", ErrInvalidUsage, in.ResponseTime)
	}

	quality := in.QualityScore
	if quality < 0 {
		quality = 0
	} else if quality > 1 {
		quality = 1
	}

	key := ports.AggregateKey{TemplateID: in.TemplateID, PersonaID: in.PersonaID}
	if r.contextScoped {
		key.ContextKey = in.ContextKey
	}

	rec := ports.UsageRecord{
		ID:                uuid.NewString(),
		TemplateID:        in.TemplateID,
		PersonaID:         in.PersonaID,
		ContextKey:        in.ContextKey,
		InputPrompt:       in.InputPrompt,
		GeneratedResponse: in.GeneratedResponse,
		ResponseSeconds:   in.ResponseTime.Seconds(),
		QualityScore:      quality,
		Success:           in.Success,
		Timestamp:         time.Now(),
	}
	return r.store.RecordUsage(key, rec)
}
