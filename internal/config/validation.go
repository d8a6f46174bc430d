package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/helpline-ai/helpline/internal/provider"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. API key for the selected provider. The adapters read the key from
	// the environment; failing here keeps startup errors close to the user.
	if err := c.validateAPIKey(); err != nil {
		return err
	}

	// 2. Model and mode configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.Mode != ModeAgent && c.Mode != ModeRAG {
		return fmt.Errorf("%w: %q is not valid, must be %q or %q", ErrInvalidMode, c.Mode, ModeAgent, ModeRAG)
	}

	// 3. Retrieval configuration. The pipeline enforces top_k >= rerank_k > 0
	// per call; checking here fails fast at startup.
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidTopK, c.TopK)
	}

	if c.RerankK < 1 || c.RerankK > c.TopK {
		return fmt.Errorf("%w: must be between 1 and top_k (%d), got %d", ErrInvalidRerankK, c.TopK, c.RerankK)
	}

	if c.EmbedDimension != VectorDimension {
		return fmt.Errorf("%w: chunks table stores vector(%d), got %d",
			ErrInvalidEmbedDimension, VectorDimension, c.EmbedDimension)
	}

	// 4. Agent configuration
	if c.MaxIterations < 1 || c.MaxIterations > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidMaxIterations, c.MaxIterations)
	}

	// 5. Ingestion configuration
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidChunking, c.ChunkOverlap)
	}

	// 6. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}

	if c.PostgresPassword == "helpline_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}

	// Modern SSL modes only; allow/prefer are deprecated.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}

func (c *Config) validateAPIKey() error {
	switch provider.Detect(c.Provider, c.ModelName) {
	case provider.ProviderCohere:
		if os.Getenv("COHERE_API_KEY") == "" {
			return fmt.Errorf("%w: COHERE_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case provider.ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case provider.ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	}
	return nil
}
