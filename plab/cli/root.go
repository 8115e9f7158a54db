// Package cli wires the persona-lab commands.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"personalab/plab/chat"
	"personalab/plab/config"
	"personalab/plab/engine"
	"personalab/plab/engine/adapters"
	ports "personalab/plab/engine/ports"
	"personalab/plab/persona"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "persona-lab",
	Short:         "Chat with adaptive synthetic personas backed by a local Ollama endpoint",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newPersonaCmd())
	rootCmd.AddCommand(newTemplatesCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newModelsCmd())
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the wired components a command needs.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    *adapters.JSONTemplateStore
	personas *persona.Manager
	provider ports.Provider
	manager  *engine.Manager
	service  *chat.Service
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	store, err := adapters.NewJSONTemplateStore(cfg.Storage.DataDir, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.WatchTemplate {
		if err := store.Watch(); err != nil {
			logger.Warn().Err(err).Msg("template watching disabled")
		}
	}

	personas, err := persona.NewManager(cfg.Storage.DataDir, logger)
	if err != nil {
		return nil, err
	}

	provider := adapters.NewOllamaProvider(
		cfg.Ollama.BaseURL,
		time.Duration(cfg.Ollama.TimeoutSeconds)*time.Second,
		logger,
	)

	manager := engine.NewManager(store, engine.Options{
		Epsilon:       cfg.Engine.Epsilon,
		ContextWindow: cfg.Engine.ContextWindow,
		ContextScoped: cfg.Engine.ContextScoped,
		Tracer:        adapters.NewZerologTracer(logger),
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		personas: personas,
		provider: provider,
		manager:  manager,
		service:  chat.NewService(manager, provider, logger),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("could not close template store")
	}
}
