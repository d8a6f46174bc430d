package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpline-ai/helpline/internal/agent"
	"github.com/helpline-ai/helpline/internal/config"
	"github.com/helpline-ai/helpline/internal/database"
	"github.com/helpline-ai/helpline/internal/knowledge"
	"github.com/helpline-ai/helpline/internal/provider"
	"github.com/helpline-ai/helpline/internal/retrieval"
	"github.com/helpline-ai/helpline/internal/session"
	"github.com/helpline-ai/helpline/internal/tools"
)

// systemPrompt frames every generation call.
const systemPrompt = `You are a customer-support assistant. Answer questions using the
knowledge base whenever possible and cite the articles you relied on. If
the knowledge base has no relevant information, say so honestly instead of
guessing. Keep answers short and actionable.`

// runtime wires the full application: database, provider suite, retrieval
// pipeline, tool registry, session store and agent.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	chunks   *knowledge.Store
	sessions *session.Store
	suite    *provider.Suite
	pipeline *retrieval.Pipeline
	answerer *retrieval.Answerer
	agent    *agent.Agent
}

// newRuntime connects to PostgreSQL (running migrations), builds the
// provider suite for the configured vendor and assembles the agent.
func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	pool, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	suite, err := provider.New(ctx, provider.Options{
		Provider:     cfg.Provider,
		Model:        cfg.ModelName,
		EmbedModel:   cfg.EmbedderModel,
		RerankModel:  cfg.RerankModel,
		EmbedDim:     cfg.EmbedDimension,
		SystemPrompt: systemPrompt,
		Temperature:  cfg.Temperature,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("building provider suite: %w", err)
	}

	chunks := knowledge.NewStore(pool, logger)
	pipeline := retrieval.New(suite.QueryEmbedder, chunks, suite.Reranker, cfg.TopK, cfg.RerankK, logger)
	sessions := session.NewStore(pool, logger)

	registry := tools.NewRegistry(logger)
	for _, tool := range []tools.Tool{
		tools.NewKnowledgeBaseSearch(pipeline, cfg.TopK, cfg.RerankK),
		tools.NewCalculator(),
		tools.NewCurrentTime(time.Now),
		tools.NewContactInfo(),
	} {
		if err := registry.Register(tool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("registering tool: %w", err)
		}
	}

	ag := agent.New(suite.Generator, registry, sessions, agent.Options{
		Mode:          cfg.Mode,
		MaxIterations: cfg.MaxIterations,
	}, logger)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		chunks:   chunks,
		sessions: sessions,
		suite:    suite,
		pipeline: pipeline,
		answerer: retrieval.NewAnswerer(pipeline, suite.Generator, logger),
		agent:    ag,
	}, nil
}

// Close releases the database pool.
func (r *runtime) Close() {
	r.pool.Close()
}
