package adapters

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personalab/plab/engine"
	ports "personalab/plab/engine/ports"
)

func newTestStore(t *testing.T, dir string) *JSONTemplateStore {
	t.Helper()
	store, err := NewJSONTemplateStore(dir, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func usageRecord(templateID, personaID string, quality float64, success bool) ports.UsageRecord {
	return ports.UsageRecord{
		ID:              "r-" + templateID,
		TemplateID:      templateID,
		PersonaID:       personaID,
		QualityScore:    quality,
		Success:         success,
		ResponseSeconds: 1.0,
		Timestamp:       time.Now(),
	}
}

func TestStore_SeedsDefaultTemplate(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	templates := store.Templates()
	require.Len(t, templates, 1)
	assert.Equal(t, engine.DefaultTemplateID, templates[0].ID)

	// The seed is written to disk so operators can edit it.
	data, err := os.ReadFile(filepath.Join(dir, templatesFile))
	require.NoError(t, err)
	var onDisk []ports.Template
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, engine.DefaultTemplateID, onDisk[0].ID)
}

func TestStore_LoadsExistingTemplates(t *testing.T) {
	dir := t.TempDir()
	seed := []ports.Template{
		{ID: "casual", Pattern: "{name} chats: {user_message}"},
		{ID: "formal", Pattern: "{name} replies: {user_message}", ApplicableOccupations: []string{"Lawyer"}},
	}
	data, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, templatesFile), data, 0o644))

	store := newTestStore(t, dir)
	assert.Len(t, store.Templates(), 2)

	tpl, ok := store.Template("formal")
	require.True(t, ok)
	assert.Equal(t, []string{"Lawyer"}, tpl.ApplicableOccupations)

	_, ok = store.Template("missing")
	assert.False(t, ok)
}

func TestStore_RejectsMalformedTemplateRecords(t *testing.T) {
	dir := t.TempDir()
	raw := `[
		{"id": "good", "pattern": "{user_message}"},
		{"id": "", "pattern": "empty id"},
		{"pattern": "no id"},
		{"id": "no-pattern"}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, templatesFile), []byte(raw), 0o644))

	store := newTestStore(t, dir)
	templates := store.Templates()
	require.Len(t, templates, 1)
	assert.Equal(t, "good", templates[0].ID)
}

func TestStore_CorruptTemplatesFileResetsToDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, templatesFile), []byte("{not json"), 0o644))

	store := newTestStore(t, dir)
	templates := store.Templates()
	require.Len(t, templates, 1)
	assert.Equal(t, engine.DefaultTemplateID, templates[0].ID)
}

func TestStore_RecordUsagePersists(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	key := ports.AggregateKey{TemplateID: "default", PersonaID: "p1"}
	require.NoError(t, store.RecordUsage(key, usageRecord("default", "p1", 0.8, true)))
	require.NoError(t, store.RecordUsage(key, usageRecord("default", "p1", 0.4, false)))

	// A fresh store over the same directory sees the aggregates.
	reopened := newTestStore(t, dir)
	stat, ok := reopened.Aggregate(key)
	require.True(t, ok)
	assert.Equal(t, 2, stat.TrialCount)
	assert.Equal(t, 1, stat.SuccessCount)
	assert.InDelta(t, 1.2, stat.QualitySum, 1e-9)
	assert.InDelta(t, 2.0, stat.LatencySum, 1e-9)
}

func TestStore_UsageLogIsAppendOnlyJSONL(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	key := ports.AggregateKey{TemplateID: "default", PersonaID: "p1"}
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordUsage(key, usageRecord("default", "p1", 0.5, true)))
	}

	f, err := os.Open(store.UsageLogPath())
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec ports.UsageRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		assert.Equal(t, "default", rec.TemplateID)
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 3, lines)
}

func TestStore_CorruptStatsFileResetsAggregates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, statsFile), []byte("garbage"), 0o644))

	store := newTestStore(t, dir)
	_, ok := store.Aggregate(ports.AggregateKey{TemplateID: "default", PersonaID: "p1"})
	assert.False(t, ok)

	// The store is still writable after the reset.
	key := ports.AggregateKey{TemplateID: "default", PersonaID: "p1"}
	require.NoError(t, store.RecordUsage(key, usageRecord("default", "p1", 0.5, true)))
	stat, ok := store.Aggregate(key)
	require.True(t, ok)
	assert.Equal(t, 1, stat.TrialCount)
}

func TestStore_DropsInvalidAggregates(t *testing.T) {
	dir := t.TempDir()
	entries := []aggregateEntry{
		{
			Key:  ports.AggregateKey{TemplateID: "ok", PersonaID: "p1"},
			Stat: ports.AggregateStat{TrialCount: 2, SuccessCount: 1, QualitySum: 1.0},
		},
		{
			Key:  ports.AggregateKey{TemplateID: "bad", PersonaID: "p1"},
			Stat: ports.AggregateStat{TrialCount: 1, SuccessCount: 5},
		},
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, statsFile), data, 0o644))

	store := newTestStore(t, dir)
	_, ok := store.Aggregate(ports.AggregateKey{TemplateID: "ok", PersonaID: "p1"})
	assert.True(t, ok)
	_, ok = store.Aggregate(ports.AggregateKey{TemplateID: "bad", PersonaID: "p1"})
	assert.False(t, ok)
}

func TestStore_ConcurrentRecordUsage(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	const workers = 8
	const perWorker = 20
	key := ports.AggregateKey{TemplateID: "default", PersonaID: "p1"}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = store.RecordUsage(key, usageRecord("default", "p1", 0.5, true))
			}
		}()
	}
	wg.Wait()

	stat, ok := store.Aggregate(key)
	require.True(t, ok)
	assert.Equal(t, workers*perWorker, stat.TrialCount)

	f, err := os.Open(store.UsageLogPath())
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, workers*perWorker, lines, "every record reaches the log exactly once")
}

func TestStore_Reload(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	require.Len(t, store.Templates(), 1)

	updated := []ports.Template{
		{ID: "a", Pattern: "{user_message}"},
		{ID: "b", Pattern: "{user_message}"},
	}
	data, err := json.Marshal(updated)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, templatesFile), data, 0o644))

	store.Reload()
	assert.Len(t, store.Templates(), 2)
}
