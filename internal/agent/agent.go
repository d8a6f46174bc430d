// Package agent runs the bounded tool-calling loop: generate, execute the
// requested tools, feed the results back, repeat until the model produces a
// final answer or the iteration cap is hit.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/helpline-ai/helpline/internal/config"
	"github.com/helpline-ai/helpline/internal/provider"
	"github.com/helpline-ai/helpline/internal/tools"
)

// ErrIterationLimit indicates the loop hit the iteration cap without a
// final answer.
var ErrIterationLimit = errors.New("agent iteration limit exceeded")

// State is the loop's observable phase. A run always ends in StateDone or
// StateFailed.
type State string

const (
	StateAwaitingModel State = "awaiting_model"
	StateExecutingTool State = "executing_tool"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Degraded answers returned instead of propagating failures to the chat
// surface.
const (
	answerIterationLimit = "I couldn't complete this request within the allowed number of steps. " +
		"Please try rephrasing your question, or use the contact details from our support page " +
		"to reach a human agent."
	answerGenerationDown = "I'm having trouble reaching the language model right now. " +
		"Please try again in a moment."
)

// ToolExecutor is the tool surface the agent drives, satisfied by
// *tools.Registry.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) provider.ToolResult
	Specs() []provider.ToolSpec
}

// SessionStore persists the user-visible turns of a run.
type SessionStore interface {
	History(ctx context.Context, id uuid.UUID) ([]provider.Turn, error)
	AppendTurns(ctx context.Context, id uuid.UUID, turns []provider.Turn) error
}

// Result is the outcome of one run.
type Result struct {
	Answer     string               `json:"answer"`
	Sources    []provider.SourceRef `json:"sources,omitempty"`
	Iterations int                  `json:"iterations"`
	State      State                `json:"state"`

	// Err is the failure cause when State is StateFailed. It is informational;
	// the degraded Answer is what reaches the user.
	Err error `json:"-"`
}

// Options tunes a new agent. Zero values select the defaults.
type Options struct {
	// Mode is config.ModeAgent or config.ModeRAG. In RAG mode every tool
	// except knowledge_base_search is refused without execution.
	Mode string

	// MaxIterations caps model calls per run. Default 5.
	MaxIterations int

	// RetryDelay is the backoff before the single generation retry.
	// Default 2s; tests shorten it.
	RetryDelay time.Duration

	// RequestsPerSecond limits generation calls. Default 5.
	RequestsPerSecond float64
}

// Agent executes runs. One run is a single synchronous loop; concurrent
// runs on different sessions share nothing mutable but the rate limiter.
type Agent struct {
	generator provider.Generator
	tools     ToolExecutor
	sessions  SessionStore
	limiter   *rate.Limiter
	opts      Options
	logger    *slog.Logger
}

func New(generator provider.Generator, executor ToolExecutor, sessions SessionStore, opts Options, logger *slog.Logger) *Agent {
	if opts.Mode == "" {
		opts.Mode = config.ModeAgent
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 5
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}

	return &Agent{
		generator: generator,
		tools:     executor,
		sessions:  sessions,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)+1),
		opts:      opts,
		logger:    logger,
	}
}

// Run processes one user message in a session. The working history is the
// persisted session history plus the new user turn; tool exchanges stay in
// the working history for the duration of the run, while only the user
// turn and the final assistant turn are persisted.
//
// Run never propagates generation failures or the iteration limit as
// errors: those end in StateFailed with a degraded answer. The returned
// error is reserved for infrastructure failures (session store, context
// cancellation).
func (a *Agent) Run(ctx context.Context, sessionID uuid.UUID, message string) (*Result, error) {
	history, err := a.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session history: %w", err)
	}

	userTurn := provider.UserTurn(message)
	working := append(history, userTurn)
	specs := a.tools.Specs()

	var sources []provider.SourceRef

	for iteration := 1; iteration <= a.opts.MaxIterations; iteration++ {
		a.logger.Debug("agent iteration",
			"session_id", sessionID,
			"iteration", iteration,
			"state", StateAwaitingModel)

		gen, err := a.generate(ctx, working, specs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Error("generation failed after retry", "session_id", sessionID, "error", err)
			return a.finish(ctx, sessionID, userTurn, &Result{
				Answer:     answerGenerationDown,
				Iterations: iteration,
				State:      StateFailed,
				Err:        err,
			})
		}

		if gen.IsFinal() {
			return a.finish(ctx, sessionID, userTurn, &Result{
				Answer:     gen.Text,
				Sources:    sources,
				Iterations: iteration,
				State:      StateDone,
			})
		}

		// Tool phase: the request turn goes into the working history first,
		// then exactly one result turn per call, in the order the model
		// asked for them.
		working = append(working, provider.AssistantToolCallTurn(gen.Text, gen.ToolCalls))
		for _, call := range gen.ToolCalls {
			a.logger.Debug("agent iteration",
				"session_id", sessionID,
				"iteration", iteration,
				"state", StateExecutingTool,
				"tool", call.Name)

			result := a.executeCall(ctx, call)
			sources = appendSources(sources, result.Sources)
			working = append(working, provider.ToolTurn(result))
		}
	}

	a.logger.Warn("iteration limit reached",
		"session_id", sessionID,
		"max_iterations", a.opts.MaxIterations)

	return a.finish(ctx, sessionID, userTurn, &Result{
		Answer:     answerIterationLimit,
		Sources:    sources,
		Iterations: a.opts.MaxIterations,
		State:      StateFailed,
		Err:        fmt.Errorf("%w: %d iterations", ErrIterationLimit, a.opts.MaxIterations),
	})
}

// executeCall dispatches one tool call, applying the RAG-only gate: in RAG
// mode any tool other than the knowledge-base search is refused with an
// error result and never executed.
func (a *Agent) executeCall(ctx context.Context, call provider.ToolCall) provider.ToolResult {
	if a.opts.Mode == config.ModeRAG && call.Name != tools.ToolKnowledgeBaseSearch {
		a.logger.Warn("tool refused in rag mode", "tool", call.Name)
		return provider.ToolResult{
			Name: call.Name,
			Err:  fmt.Sprintf("tool %q is not available in retrieval-only mode", call.Name),
		}
	}
	return a.tools.Execute(ctx, call.Name, call.Arguments)
}

// generate runs one rate-limited model call, retrying exactly once on
// provider.ErrGeneration after a short backoff.
func (a *Agent) generate(ctx context.Context, history []provider.Turn, specs []provider.ToolSpec) (*provider.Generation, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	gen, err := a.generator.Generate(ctx, history, specs)
	if err == nil || !errors.Is(err, provider.ErrGeneration) {
		return gen, err
	}

	a.logger.Warn("generation failed, retrying once", "error", err)
	select {
	case <-time.After(a.opts.RetryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return a.generator.Generate(ctx, history, specs)
}

// finish persists the user turn and the final assistant turn, then returns
// the result.
func (a *Agent) finish(ctx context.Context, sessionID uuid.UUID, userTurn provider.Turn, result *Result) (*Result, error) {
	turns := []provider.Turn{userTurn, provider.AssistantTurn(result.Answer)}
	if err := a.sessions.AppendTurns(ctx, sessionID, turns); err != nil {
		return nil, fmt.Errorf("persisting turns: %w", err)
	}

	a.logger.Info("run finished",
		"session_id", sessionID,
		"state", result.State,
		"iterations", result.Iterations,
		"sources", len(result.Sources))

	return result, nil
}

// appendSources accumulates source references, keeping the first (highest
// ranked) entry per path.
func appendSources(acc []provider.SourceRef, refs []provider.SourceRef) []provider.SourceRef {
	for _, ref := range refs {
		seen := false
		for _, existing := range acc {
			if existing.Path == ref.Path {
				seen = true
				break
			}
		}
		if !seen {
			acc = append(acc, ref)
		}
	}
	return acc
}
