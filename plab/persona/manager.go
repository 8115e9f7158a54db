package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	personasFile = "personas.json"
	settingsFile = "settings.json"
)

// Settings are the model defaults applied to newly generated personas.
type Settings struct {
	DefaultModel       string  `json:"default_model"`
	DefaultTemperature float64 `json:"default_temperature"`
	DefaultMaxTokens   int     `json:"default_max_tokens"`
}

// DefaultSettings mirrors the defaults the store starts with when no
// settings file exists yet.
func DefaultSettings() Settings {
	return Settings{
		DefaultTemperature: 0.7,
		DefaultMaxTokens:   1000,
	}
}

// Manager persists personas and settings as JSON files under dataDir.
// Writes go through a temp file plus rename so a crash mid-write never
// corrupts the previous state.
type Manager struct {
	mu       sync.RWMutex
	dataDir  string
	personas []*Persona
	settings Settings
	logger   zerolog.Logger
}

// NewManager loads personas and settings from dataDir, creating the
// directory if needed. Missing or unreadable files reset to empty state
// with a logged warning; they are never fatal.
func NewManager(dataDir string, logger zerolog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory %s: %w", dataDir, err)
	}

	m := &Manager{
		dataDir:  dataDir,
		settings: DefaultSettings(),
		logger:   logger.With().Str("component", "persona_manager").Logger(),
	}
	m.loadPersonas()
	m.loadSettings()
	return m, nil
}

func (m *Manager) loadPersonas() {
	path := filepath.Join(m.dataDir, personasFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("path", path).Msg("could not read personas file, starting empty")
		}
		return
	}
	var personas []*Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		m.logger.Warn().Err(err).Str("path", path).Msg("personas file corrupted, starting empty")
		return
	}
	m.personas = personas
}

func (m *Manager) loadSettings() {
	path := filepath.Join(m.dataDir, settingsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		m.logger.Warn().Err(err).Str("path", path).Msg("settings file corrupted, keeping defaults")
		return
	}
	m.settings = s
}

// List returns copies of all personas in insertion order.
func (m *Manager) List() []*Persona {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Persona, len(m.personas))
	for i, p := range m.personas {
		cp := *p
		out[i] = &cp
	}
	return out
}

// Get returns the persona with the given ID, or false when absent.
func (m *Manager) Get(id string) (*Persona, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.personas {
		if p.ID == id {
			cp := *p
			return &cp, true
		}
	}
	return nil, false
}

// Add validates and persists a new persona.
func (m *Manager) Add(p *Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.personas = append(m.personas, &cp)
	return m.savePersonas()
}

// Update replaces an existing persona, bumping its modification time.
func (m *Manager) Update(p *Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.personas {
		if existing.ID == p.ID {
			cp := *p
			cp.ModifiedAt = time.Now()
			m.personas[i] = &cp
			return m.savePersonas()
		}
	}
	return fmt.Errorf("persona %s not found", p.ID)
}

// Remove deletes a persona by ID.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, p := range m.personas {
		if p.ID == id {
			m.personas = append(m.personas[:i], m.personas[i+1:]...)
			return m.savePersonas()
		}
	}
	return fmt.Errorf("persona %s not found", id)
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// UpdateSettings persists new settings.
func (m *Manager) UpdateSettings(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = s
	return writeFileAtomic(filepath.Join(m.dataDir, settingsFile), s)
}

func (m *Manager) savePersonas() error {
	return writeFileAtomic(filepath.Join(m.dataDir, personasFile), m.personas)
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
