package engine

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	ports "personalab/plab/engine/ports"
)

// DefaultEpsilon is the exploration rate (0.1 = 10% explore, 90% exploit).
const DefaultEpsilon = 0.1

// Selector implements epsilon-greedy template selection with a
// minimum-trial floor: every candidate is tried at least once before any
// exploitation happens, so a single early success cannot dominate.
type Selector struct {
	store         ports.TemplateStore
	epsilon       float64
	contextScoped bool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector over the given store. A zero seed picks a
// time-based one; tests pass a fixed seed for reproducible draws.
func NewSelector(store ports.TemplateStore, epsilon float64, contextScoped bool, seed int64) *Selector {
	if epsilon < 0 || epsilon > 1 {
		epsilon = DefaultEpsilon
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Selector{
		store:         store,
		epsilon:       epsilon,
		contextScoped: contextScoped,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Epsilon returns the configured exploration rate.
func (s *Selector) Epsilon() float64 { return s.epsilon }

// scoredCandidate pairs a template with its aggregate statistic.
type scoredCandidate struct {
	template ports.Template
	stat     ports.AggregateStat
}

// Select picks a template for the persona. Candidates are the templates
// applicable to the persona's occupation; when none match, every template
// is a candidate; when there are no templates at all, ErrNoTemplates.
func (s *Selector) Select(personaID, occupation, contextKey string) (ports.Template, error) {
	all := s.store.Templates()

	candidates := make([]ports.Template, 0, len(all))
	for _, t := range all {
		if t.AppliesTo(occupation) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		candidates = all
	}
	if len(candidates) == 0 {
		return ports.Template{}, ErrNoTemplates
	}

	scored := make([]scoredCandidate, 0, len(candidates))
	untried := make([]ports.Template, 0, len(candidates))
	for _, t := range candidates {
		stat, _ := s.store.Aggregate(s.aggregateKey(t.ID, personaID, contextKey))
		if stat.TrialCount == 0 {
			untried = append(untried, t)
			continue
		}
		scored = append(scored, scoredCandidate{template: t, stat: stat})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Forced exploration: exhaust untried candidates before exploiting.
	if len(untried) > 0 {
		return untried[s.rng.Intn(len(untried))], nil
	}

	if s.rng.Float64() < s.epsilon {
		return candidates[s.rng.Intn(len(candidates))], nil
	}

	// Exploit: highest mean quality, then lower mean latency (prefer
	// faster), then smallest ID for a deterministic tie-break.
	sort.Slice(scored, func(i, j int) bool {
		qi, _ := scored[i].stat.MeanQuality()
		qj, _ := scored[j].stat.MeanQuality()
		if qi != qj {
			return qi > qj
		}
		li, lj := scored[i].stat.MeanLatency(), scored[j].stat.MeanLatency()
		if li != lj {
			return li < lj
		}
		return scored[i].template.ID < scored[j].template.ID
	})
	return scored[0].template, nil
}

// aggregateKey scopes statistics per (template, persona) by default, and
// additionally per context bucket when context-scoped selection is on.
func (s *Selector) aggregateKey(templateID, personaID, contextKey string) ports.AggregateKey {
	key := ports.AggregateKey{TemplateID: templateID, PersonaID: personaID}
	if s.contextScoped {
		key.ContextKey = contextKey
	}
	return key
}
