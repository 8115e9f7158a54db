package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "personalab/plab/engine/ports"
)

func TestManager_OptimalTemplateAndRecord(t *testing.T) {
	store := newMemStore(
		ports.Template{ID: "t1", Pattern: "{name}: {user_message}"},
	)
	m := NewManager(store, Options{Seed: 1})
	p := testPersona()

	tpl, err := m.OptimalTemplate(context.Background(), p, nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "t1", tpl.ID)

	prompt, err := m.GeneratePrompt(tpl, p, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Marie Dubois: hi", prompt)

	err = m.RecordUsage(context.Background(), Usage{
		TemplateID:        tpl.ID,
		PersonaID:         p.ID,
		InputPrompt:       prompt,
		GeneratedResponse: "Bonjour!",
		ResponseTime:      1500 * time.Millisecond,
		QualityScore:      0.8,
		Success:           true,
	})
	require.NoError(t, err)

	stat, ok := store.Aggregate(ports.AggregateKey{TemplateID: "t1", PersonaID: "p1"})
	require.True(t, ok)
	assert.Equal(t, 1, stat.TrialCount)
	assert.Equal(t, 1, stat.SuccessCount)
	assert.InDelta(t, 0.8, stat.QualitySum, 1e-9)
	assert.InDelta(t, 1.5, stat.LatencySum, 1e-9)
}

func TestManager_AggregatesAccumulate(t *testing.T) {
	store := newMemStore(ports.Template{ID: "t1", Pattern: "x"})
	m := NewManager(store, Options{Seed: 1})

	qualities := []float64{0.2, 0.4, 0.9}
	for i, q := range qualities {
		err := m.RecordUsage(context.Background(), Usage{
			TemplateID:   "t1",
			PersonaID:    "p1",
			ResponseTime: time.Second,
			QualityScore: q,
			Success:      i != 0,
		})
		require.NoError(t, err)
	}

	stat, ok := store.Aggregate(ports.AggregateKey{TemplateID: "t1", PersonaID: "p1"})
	require.True(t, ok)
	assert.Equal(t, 3, stat.TrialCount)
	assert.Equal(t, 2, stat.SuccessCount)
	assert.InDelta(t, 1.5, stat.QualitySum, 1e-9)

	mean, ok := stat.MeanQuality()
	require.True(t, ok)
	assert.InDelta(t, 0.5, mean, 1e-9)
	assert.InDelta(t, 1.0, stat.MeanLatency(), 1e-9)
}

func TestManager_RecordUsageValidation(t *testing.T) {
	store := newMemStore(ports.Template{ID: "t1", Pattern: "x"})
	m := NewManager(store, Options{Seed: 1})

	err := m.RecordUsage(context.Background(), Usage{PersonaID: "p1"})
	assert.ErrorIs(t, err, ErrInvalidUsage)

	err = m.RecordUsage(context.Background(), Usage{TemplateID: "t1"})
	assert.ErrorIs(t, err, ErrInvalidUsage)

	err = m.RecordUsage(context.Background(), Usage{
		TemplateID:   "t1",
		PersonaID:    "p1",
		ResponseTime: -time.Second,
	})
	assert.ErrorIs(t, err, ErrInvalidUsage)

	assert.Empty(t, store.records, "rejected usage must not reach the store")
}

func TestManager_RecordUsageClampsQuality(t *testing.T) {
	store := newMemStore(ports.Template{ID: "t1", Pattern: "x"})
	m := NewManager(store, Options{Seed: 1})

	for _, q := range []float64{-0.5, 1.5} {
		err := m.RecordUsage(context.Background(), Usage{
			TemplateID:   "t1",
			PersonaID:    "p1",
			QualityScore: q,
		})
		require.NoError(t, err)
	}

	stat, ok := store.Aggregate(ports.AggregateKey{TemplateID: "t1", PersonaID: "p1"})
	require.True(t, ok)
	assert.Equal(t, 2, stat.TrialCount)
	assert.InDelta(t, 1.0, stat.QualitySum, 1e-9, "clamped to 0 and 1")
}

func TestManager_ContextScopedKeys(t *testing.T) {
	store := newMemStore(ports.Template{ID: "t1", Pattern: "x"})
	m := NewManager(store, Options{Seed: 1, ContextScoped: true})

	conversation := []ports.Message{{Role: "user", Content: "about pasta"}}
	err := m.RecordUsage(context.Background(), Usage{
		TemplateID:   "t1",
		PersonaID:    "p1",
		Conversation: conversation,
		QualityScore: 0.6,
		Success:      true,
	})
	require.NoError(t, err)

	scoped := ports.AggregateKey{
		TemplateID: "t1",
		PersonaID:  "p1",
		ContextKey: m.ContextKey(conversation),
	}
	stat, ok := store.Aggregate(scoped)
	require.True(t, ok)
	assert.Equal(t, 1, stat.TrialCount)

	_, ok = store.Aggregate(ports.AggregateKey{TemplateID: "t1", PersonaID: "p1"})
	assert.False(t, ok, "persona-scoped key must stay empty when context scoping is on")
}

func TestManager_PersonaScopedIgnoresContext(t *testing.T) {
	store := newMemStore(ports.Template{ID: "t1", Pattern: "x"})
	m := NewManager(store, Options{Seed: 1})

	for _, content := range []string{"first topic", "second topic"} {
		err := m.RecordUsage(context.Background(), Usage{
			TemplateID:   "t1",
			PersonaID:    "p1",
			Conversation: []ports.Message{{Role: "user", Content: content}},
			Success:      true,
		})
		require.NoError(t, err)
	}

	stat, ok := store.Aggregate(ports.AggregateKey{TemplateID: "t1", PersonaID: "p1"})
	require.True(t, ok)
	assert.Equal(t, 2, stat.TrialCount, "distinct contexts share one persona-scoped aggregate")
}

func TestManager_ConcurrentRecordUsage(t *testing.T) {
	store := newMemStore(ports.Template{ID: "t1", Pattern: "x"})
	m := NewManager(store, Options{Seed: 1})

	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = m.RecordUsage(context.Background(), Usage{
					TemplateID:   "t1",
					PersonaID:    "p1",
					QualityScore: 0.5,
					Success:      true,
				})
			}
		}()
	}
	wg.Wait()

	stat, ok := store.Aggregate(ports.AggregateKey{TemplateID: "t1", PersonaID: "p1"})
	require.True(t, ok)
	assert.Equal(t, workers*perWorker, stat.TrialCount)
	assert.Equal(t, workers*perWorker, stat.SuccessCount)
	assert.InDelta(t, float64(workers*perWorker)*0.5, stat.QualitySum, 1e-6)
}

func TestManager_ScoreDelegates(t *testing.T) {
	m := NewManager(newMemStore(), Options{Seed: 1})
	assert.Equal(t, 0.0, m.Score("", "hi"))
	assert.InDelta(t, 0.5, m.Score("short reply", "xyz"), 1e-9)
}
