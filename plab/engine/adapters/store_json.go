// Package adapters provides the concrete implementations behind the engine
// ports: durable JSON storage, the Ollama HTTP provider, and tracing.
package adapters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"personalab/plab/engine"
	ports "personalab/plab/engine/ports"
)

const (
	templatesFile = "templates.json"
	statsFile     = "template_stats.json"
	usageLogFile  = "usage_log.jsonl"
)

// templateSchema validates template records at the store boundary.
// Malformed records are rejected instead of silently coerced.
const templateSchema = `{
	"type": "object",
	"required": ["id", "pattern"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"pattern": {"type": "string", "minLength": 1},
		"applicable_occupations": {"type": "array", "items": {"type": "string"}},
		"created_at": {"type": "string"}
	}
}`

// aggregateEntry is the snapshot serialization of one statistic bucket.
type aggregateEntry struct {
	Key  ports.AggregateKey  `json:"key"`
	Stat ports.AggregateStat `json:"stat"`
}

// JSONTemplateStore persists template definitions, aggregate statistics,
// and the append-only usage log under a data directory.
//
// Durability model: the usage log is append-only JSONL; the aggregate
// snapshot is replaced via temp file + atomic rename. A crash mid-write
// never corrupts previously committed state. Corruption or absence of
// either file resets that file's state with a logged warning and is never
// fatal to startup.
type JSONTemplateStore struct {
	mu         sync.RWMutex
	dataDir    string
	templates  []ports.Template
	aggregates map[ports.AggregateKey]ports.AggregateStat
	schema     *gojsonschema.Schema
	logger     zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewJSONTemplateStore loads (or initializes) the store under dataDir.
// When no templates file exists the store seeds the built-in default
// template so selection always has at least one candidate.
func NewJSONTemplateStore(dataDir string, logger zerolog.Logger) (*JSONTemplateStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory %s: %w", dataDir, err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(templateSchema))
	if err != nil {
		return nil, fmt.Errorf("invalid template schema: %w", err)
	}

	s := &JSONTemplateStore{
		dataDir:    dataDir,
		aggregates: make(map[ports.AggregateKey]ports.AggregateStat),
		schema:     schema,
		logger:     logger.With().Str("component", "template_store").Logger(),
	}
	s.loadTemplates()
	s.loadAggregates()
	return s, nil
}

func (s *JSONTemplateStore) loadTemplates() {
	path := filepath.Join(s.dataDir, templatesFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.templates = []ports.Template{engine.DefaultTemplate()}
		if werr := writeFileAtomic(path, s.templates); werr != nil {
			s.logger.Warn().Err(werr).Msg("could not seed templates file")
		}
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("could not read templates file, using default template")
		s.templates = []ports.Template{engine.DefaultTemplate()}
		return
	}

	templates, err := s.decodeTemplates(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("templates file corrupted, resetting to default template")
		s.templates = []ports.Template{engine.DefaultTemplate()}
		return
	}
	s.templates = templates
}

// decodeTemplates parses and schema-validates the templates file. Records
// failing validation are dropped individually; an unparseable file is a
// corruption error.
func (s *JSONTemplateStore) decodeTemplates(data []byte) ([]ports.Template, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrCorruptStore, err)
	}

	templates := make([]ports.Template, 0, len(raw))
	for _, entry := range raw {
		result, err := s.schema.Validate(gojsonschema.NewBytesLoader(entry))
		if err != nil || !result.Valid() {
			s.logger.Warn().RawJSON("record", entry).Msg("rejecting malformed template record")
			continue
		}
		var t ports.Template
		if err := json.Unmarshal(entry, &t); err != nil {
			s.logger.Warn().Err(err).Msg("rejecting undecodable template record")
			continue
		}
		templates = append(templates, t)
	}
	return templates, nil
}

func (s *JSONTemplateStore) loadAggregates() {
	path := filepath.Join(s.dataDir, statsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", path).Msg("could not read stats file, starting empty")
		}
		return
	}

	var entries []aggregateEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("stats file corrupted, resetting aggregates")
		return
	}
	for _, e := range entries {
		if e.Stat.TrialCount < e.Stat.SuccessCount || e.Stat.TrialCount < 0 {
			s.logger.Warn().Interface("key", e.Key).Msg("dropping aggregate violating invariants")
			continue
		}
		s.aggregates[e.Key] = e.Stat
	}
}

// Templates returns a copy of all template definitions.
func (s *JSONTemplateStore) Templates() []ports.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.Template, len(s.templates))
	copy(out, s.templates)
	return out
}

// Template looks up a definition by ID.
func (s *JSONTemplateStore) Template(id string) (ports.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.templates {
		if t.ID == id {
			return t, true
		}
	}
	return ports.Template{}, false
}

// Aggregate returns the statistic for a key; absent keys read as zero.
func (s *JSONTemplateStore) Aggregate(key ports.AggregateKey) (ports.AggregateStat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stat, ok := s.aggregates[key]
	return stat, ok
}

// RecordUsage appends the record to the usage log and folds it into the
// aggregate for key under one lock, so concurrent writers never lose
// updates and readers never observe a partial increment.
func (s *JSONTemplateStore) RecordUsage(key ports.AggregateKey, rec ports.UsageRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("could not marshal usage record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendUsageLine(line); err != nil {
		return err
	}

	stat := s.aggregates[key]
	stat.TrialCount++
	if rec.Success {
		stat.SuccessCount++
	}
	stat.QualitySum += rec.QualityScore
	stat.LatencySum += rec.ResponseSeconds
	s.aggregates[key] = stat

	if err := s.saveAggregates(); err != nil {
		// The log line is already durable; the snapshot catches up on the
		// next successful write.
		s.logger.Warn().Err(err).Msg("could not persist aggregate snapshot")
	}
	return nil
}

func (s *JSONTemplateStore) appendUsageLine(line []byte) error {
	path := filepath.Join(s.dataDir, usageLogFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("could not open usage log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("could not append usage record: %w", err)
	}
	return nil
}

func (s *JSONTemplateStore) saveAggregates() error {
	entries := make([]aggregateEntry, 0, len(s.aggregates))
	for key, stat := range s.aggregates {
		entries = append(entries, aggregateEntry{Key: key, Stat: stat})
	}
	return writeFileAtomic(filepath.Join(s.dataDir, statsFile), entries)
}

// UsageLogPath returns the location of the append-only usage log, for
// offline analysis.
func (s *JSONTemplateStore) UsageLogPath() string {
	return filepath.Join(s.dataDir, usageLogFile)
}

// Reload re-reads template definitions from disk. Aggregates are untouched.
func (s *JSONTemplateStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadTemplates()
}

// Watch reloads template definitions whenever the templates file changes,
// so template-management tooling can edit it while the lab is running.
func (s *JSONTemplateStore) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}
	if err := watcher.Add(s.dataDir); err != nil {
		watcher.Close()
		return fmt.Errorf("could not watch %s: %w", s.dataDir, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != templatesFile {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					s.logger.Info().Str("file", event.Name).Msg("templates file changed, reloading")
					s.Reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Msg("template watcher error")
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher, if one was started.
func (s *JSONTemplateStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	return s.watcher.Close()
}

// writeFileAtomic marshals v and replaces path via temp file + rename.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close %s: %w", tmp.Name(), err)
	}
	return os.Rename(tmp.Name(), path)
}

// Ensure JSONTemplateStore implements the TemplateStore interface.
var _ ports.TemplateStore = (*JSONTemplateStore)(nil)
