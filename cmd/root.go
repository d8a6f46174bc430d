// Package cmd implements the helpline command-line interface.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/helpline-ai/helpline/internal/config"
	"github.com/helpline-ai/helpline/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "helpline",
	Short: "Customer-support assistant with retrieval-augmented answers",
	Long: `Helpline answers customer-support questions grounded in your own
knowledge base. Documents are chunked, embedded and stored in PostgreSQL
with pgvector; questions are answered either by a direct RAG pipeline or
by a tool-calling agent loop, depending on the configured mode.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads the environment, the configuration and a logger. Every
// subcommand starts here.
func setup() (*config.Config, *slog.Logger, error) {
	// A missing .env is fine; explicit environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating config: %w", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level: %w", err)
	}
	logger := log.New(log.Config{Level: level, JSON: cfg.LogJSON})

	return cfg, logger, nil
}
