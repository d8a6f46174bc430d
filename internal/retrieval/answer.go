package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/helpline-ai/helpline/internal/provider"
)

// answerPrompt frames the retrieved context for direct answering.
const answerPrompt = "Answer the customer's question using the support articles below. " +
	"If the articles do not cover the question, say so instead of guessing.\n\n" +
	"%s\n\nQuestion: %s"

// degradedPrompt is used when retrieval is unavailable.
const degradedPrompt = "The knowledge base is currently unavailable. Answer the customer's " +
	"question from general knowledge and mention that you could not consult the support articles.\n\n" +
	"Question: %s"

// Response is a direct answer with the sources that grounded it.
type Response struct {
	Text    string   `json:"text"`
	Sources []Result `json:"sources"`
}

// Answerer answers questions straight from retrieval, without the tool
// loop. When retrieval is unavailable it degrades to answering without
// sources rather than failing.
type Answerer struct {
	pipeline  *Pipeline
	generator provider.Generator
	logger    *slog.Logger
}

func NewAnswerer(pipeline *Pipeline, generator provider.Generator, logger *slog.Logger) *Answerer {
	return &Answerer{pipeline: pipeline, generator: generator, logger: logger}
}

// Answer retrieves context for question and generates a grounded answer.
// history carries earlier turns of the conversation and may be nil.
func (a *Answerer) Answer(ctx context.Context, question string, history []provider.Turn) (*Response, error) {
	var prompt string
	var sources []Result

	results, err := a.pipeline.Retrieve(ctx, question, a.pipeline.topK, a.pipeline.rerankK)
	switch {
	case errors.Is(err, ErrUnavailable):
		a.logger.Warn("retrieval unavailable, answering without sources", "error", err)
		prompt = fmt.Sprintf(degradedPrompt, question)
	case err != nil:
		return nil, err
	case len(results) == 0:
		prompt = fmt.Sprintf(degradedPrompt, question)
	default:
		prompt = fmt.Sprintf(answerPrompt, BuildContext(results), question)
		sources = results
	}

	turns := append(append([]provider.Turn{}, history...), provider.UserTurn(prompt))
	gen, err := a.generator.Generate(ctx, turns, nil)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Response{Text: gen.Text, Sources: sources}, nil
}
