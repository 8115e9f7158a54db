// Package plab holds application-level constants shared across the
// persona-lab packages.
package plab

import (
	"os"
	"path/filepath"
)

const (
	DefaultAppName = "persona-lab"

	// DefaultOllamaURL is the local inference endpoint.
	DefaultOllamaURL = "http://localhost:11434"
)

// DefaultDataDir returns the per-user data directory for personas,
// templates, and usage statistics.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "data")
	}
	return filepath.Join(home, ".local", "share", DefaultAppName)
}

// DefaultConfigPath is where LoadConfig looks for config.yaml when no
// explicit path is given.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", DefaultAppName)
}
