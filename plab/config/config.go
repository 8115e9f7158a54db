// Package config loads application configuration with viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	internal "personalab/plab"
)

// Config stores all configuration of the application. The values are read
// by viper from a config file or environment variables.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Ollama  OllamaConfig  `mapstructure:"ollama"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Chat    ChatConfig    `mapstructure:"chat"`
}

// StorageConfig locates the durable state files.
type StorageConfig struct {
	DataDir       string `mapstructure:"data_dir"`       // personas, templates, stats, usage log
	TranscriptDB  string `mapstructure:"transcript_db"`  // embedded libsql database file
	WatchTemplate bool   `mapstructure:"watch_template"` // reload templates.json on change
}

// OllamaConfig stores inference endpoint settings.
type OllamaConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // per-call timeout
}

// EngineConfig stores adaptive selection settings.
type EngineConfig struct {
	Epsilon       float64 `mapstructure:"epsilon"`        // exploration rate
	ContextWindow int     `mapstructure:"context_window"` // turns folded into the context key
	ContextScoped bool    `mapstructure:"context_scoped"` // bucket statistics per context key
}

// ChatConfig stores conversation settings.
type ChatConfig struct {
	HistoryWindow      int     `mapstructure:"history_window"` // turns kept in the prompt context
	Transcripts        bool    `mapstructure:"transcripts"`    // persist turns to the transcript db
	DefaultModel       string  `mapstructure:"default_model"`
	DefaultTemperature float64 `mapstructure:"default_temperature"`
	DefaultMaxTokens   int     `mapstructure:"default_max_tokens"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(internal.DefaultConfigPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	dataDir := internal.DefaultDataDir()
	viper.SetDefault("storage.data_dir", dataDir)
	viper.SetDefault("storage.transcript_db", filepath.Join(dataDir, "transcripts.db"))
	viper.SetDefault("storage.watch_template", true)

	viper.SetDefault("ollama.base_url", internal.DefaultOllamaURL)
	viper.SetDefault("ollama.timeout_seconds", 120)

	viper.SetDefault("engine.epsilon", 0.1)
	viper.SetDefault("engine.context_window", 3)
	viper.SetDefault("engine.context_scoped", false)

	viper.SetDefault("chat.history_window", 10)
	viper.SetDefault("chat.transcripts", true)
	viper.SetDefault("chat.default_model", "")
	viper.SetDefault("chat.default_temperature", 0.7)
	viper.SetDefault("chat.default_max_tokens", 1000)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PERSONALAB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults are fine.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}
