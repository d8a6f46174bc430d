package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	cohere "github.com/cohere-ai/cohere-go/v2"
)

// Supported provider names.
const (
	ProviderCohere = "cohere"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Options configures the provider suite. Zero-value model fields select
// each provider's defaults; APIKey falls back to the provider's
// conventional environment variable.
type Options struct {
	Provider     string
	Model        string
	EmbedModel   string
	RerankModel  string
	EmbedDim     int
	SystemPrompt string
	Temperature  float64
	APIKey       string
}

// Suite bundles the collaborators one provider offers. Reranker is nil for
// providers without a reranking endpoint; callers treat that as
// vector-order truncation.
type Suite struct {
	QueryEmbedder    Embedder
	DocumentEmbedder Embedder
	Reranker         Reranker
	Generator        Generator
}

// Detect resolves the provider name: an explicit provider wins, otherwise
// the chat model's prefix decides.
func Detect(providerName, model string) string {
	if providerName != "" {
		return strings.ToLower(providerName)
	}
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "command"):
		return ProviderCohere
	case strings.HasPrefix(model, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3"):
		return ProviderOpenAI
	default:
		return ProviderCohere
	}
}

// New builds the full suite for the detected provider.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Suite, error) {
	name := Detect(opts.Provider, opts.Model)
	switch name {
	case ProviderCohere:
		key, err := resolveKey(opts.APIKey, "COHERE_API_KEY")
		if err != nil {
			return nil, err
		}
		return &Suite{
			QueryEmbedder:    NewCohereEmbedder(key, opts.EmbedModel, cohere.EmbedInputTypeSearchQuery),
			DocumentEmbedder: NewCohereEmbedder(key, opts.EmbedModel, cohere.EmbedInputTypeSearchDocument),
			Reranker:         NewCohereReranker(key, opts.RerankModel),
			Generator:        NewCohereGenerator(key, opts.Model, opts.SystemPrompt, opts.Temperature, logger),
		}, nil

	case ProviderGemini:
		key, err := resolveKey(opts.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
		if err != nil {
			return nil, err
		}
		embedder, err := NewGeminiEmbedder(ctx, key, opts.EmbedModel, opts.EmbedDim)
		if err != nil {
			return nil, err
		}
		generator, err := NewGeminiGenerator(ctx, key, opts.Model, opts.SystemPrompt, opts.Temperature, logger)
		if err != nil {
			return nil, err
		}
		return &Suite{
			QueryEmbedder:    embedder,
			DocumentEmbedder: embedder,
			Generator:        generator,
		}, nil

	case ProviderOpenAI:
		key, err := resolveKey(opts.APIKey, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		embedder := NewOpenAIEmbedder(key, opts.EmbedModel, opts.EmbedDim)
		return &Suite{
			QueryEmbedder:    embedder,
			DocumentEmbedder: embedder,
			Generator:        NewOpenAIGenerator(key, opts.Model, opts.SystemPrompt, opts.Temperature, logger),
		}, nil

	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func resolveKey(explicit string, envVars ...string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	for _, v := range envVars {
		if key := os.Getenv(v); key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("missing API key: set %s", strings.Join(envVars, " or "))
}
