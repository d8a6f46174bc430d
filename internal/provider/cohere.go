package provider

import (
	"context"
	"fmt"
	"log/slog"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// Default Cohere models. Embeddings are requested at 1024 dimensions, the
// native size of embed-multilingual-v3.0, which is also what the chunks
// table stores.
const (
	defaultCohereChatModel   = "command-r-plus"
	defaultCohereEmbedModel  = "embed-multilingual-v3.0"
	defaultCohereRerankModel = "rerank-multilingual-v3.0"
)

// CohereEmbedder embeds text with the Cohere Embed API. The input type
// distinguishes corpus documents from search queries; both land in the same
// vector space.
type CohereEmbedder struct {
	client    *cohereclient.Client
	model     string
	inputType cohere.EmbedInputType
}

// NewCohereEmbedder creates an embedder for the given input type. Pass
// cohere.EmbedInputTypeSearchQuery for retrieval queries and
// cohere.EmbedInputTypeSearchDocument for ingestion.
func NewCohereEmbedder(apiKey, model string, inputType cohere.EmbedInputType) *CohereEmbedder {
	if model == "" {
		model = defaultCohereEmbedModel
	}
	return &CohereEmbedder{
		client:    cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:     model,
		inputType: inputType,
	}
}

// Embed returns the embedding vector for text.
func (e *CohereEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &cohere.EmbedRequest{
		Texts:     []string{text},
		Model:     cohere.String(e.model),
		InputType: e.inputType.Ptr(),
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embed: %w", err)
	}
	if resp.EmbeddingsFloats == nil || len(resp.EmbeddingsFloats.Embeddings) == 0 {
		return nil, fmt.Errorf("cohere embed: empty response")
	}

	raw := resp.EmbeddingsFloats.Embeddings[0]
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// CohereReranker reranks candidate documents with the Cohere Rerank API.
type CohereReranker struct {
	client *cohereclient.Client
	model  string
}

func NewCohereReranker(apiKey, model string) *CohereReranker {
	if model == "" {
		model = defaultCohereRerankModel
	}
	return &CohereReranker{
		client: cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:  model,
	}
}

// Rerank returns the top k candidates in descending relevance order.
func (r *CohereReranker) Rerank(ctx context.Context, query string, candidates []string, k int) ([]Ranking, error) {
	docs := make([]*cohere.RerankRequestDocumentsItem, len(candidates))
	for i, c := range candidates {
		docs[i] = &cohere.RerankRequestDocumentsItem{String: c}
	}

	resp, err := r.client.Rerank(ctx, &cohere.RerankRequest{
		Model:     cohere.String(r.model),
		Query:     query,
		Documents: docs,
		TopN:      cohere.Int(k),
	})
	if err != nil {
		return nil, fmt.Errorf("cohere rerank: %w", err)
	}

	rankings := make([]Ranking, 0, len(resp.Results))
	for _, res := range resp.Results {
		rankings = append(rankings, Ranking{Index: res.Index, Score: res.RelevanceScore})
	}
	return rankings, nil
}

// CohereGenerator runs chat completions with tool calling through the
// Cohere Chat API. The system preamble, model and temperature are fixed at
// construction.
type CohereGenerator struct {
	client      *cohereclient.Client
	model       string
	preamble    string
	temperature float64
	logger      *slog.Logger
}

func NewCohereGenerator(apiKey, model, systemPrompt string, temperature float64, logger *slog.Logger) *CohereGenerator {
	if model == "" {
		model = defaultCohereChatModel
	}
	return &CohereGenerator{
		client:      cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:       model,
		preamble:    systemPrompt,
		temperature: temperature,
		logger:      logger,
	}
}

// Generate converts the canonical history to the Cohere chat shape, runs
// one completion and normalizes the response.
func (g *CohereGenerator) Generate(ctx context.Context, history []Turn, tools []ToolSpec) (*Generation, error) {
	req := &cohere.ChatRequest{
		Model:       cohere.String(g.model),
		Temperature: cohere.Float64(g.temperature),
	}
	if g.preamble != "" {
		req.Preamble = cohere.String(g.preamble)
	}
	if len(tools) > 0 {
		req.Tools = cohereTools(tools)
	}

	message, chatHistory, toolResults := splitCohereHistory(history)
	req.Message = message
	req.ChatHistory = chatHistory
	req.ToolResults = toolResults

	resp, err := g.client.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: cohere chat: %v", ErrGeneration, err)
	}

	gen := &Generation{Text: resp.Text}
	for _, tc := range resp.ToolCalls {
		gen.ToolCalls = append(gen.ToolCalls, ToolCall{
			Name:      tc.Name,
			Arguments: tc.Parameters,
		})
	}

	g.logger.Debug("cohere generation",
		"model", g.model,
		"tool_calls", len(gen.ToolCalls),
		"text_len", len(gen.Text))

	return gen, nil
}

// splitCohereHistory maps the canonical history onto the Cohere chat
// request: the trailing user turn becomes Message, trailing tool turns
// become ToolResults, and everything earlier becomes ChatHistory.
func splitCohereHistory(history []Turn) (string, []*cohere.Message, []*cohere.ToolResult) {
	if len(history) == 0 {
		return "", nil, nil
	}

	// Trailing tool turns are results for the last assistant request and
	// go into ToolResults rather than ChatHistory.
	end := len(history)
	var pending []Turn
	for end > 0 && history[end-1].Role == RoleTool {
		end--
		pending = append([]Turn{history[end]}, pending...)
	}

	if len(pending) > 0 {
		// The assistant turn before the results carries the calls; match
		// results to calls by position.
		var calls []ToolCall
		if end > 0 && history[end-1].Role == RoleAssistant {
			calls = history[end-1].ToolCalls
			end--
		}
		results := make([]*cohere.ToolResult, 0, len(pending))
		for i, turn := range pending {
			call := &cohere.ToolCall{Name: turn.ToolResult.Name}
			if i < len(calls) {
				call.Parameters = calls[i].Arguments
			}
			results = append(results, &cohere.ToolResult{
				Call:    call,
				Outputs: []map[string]any{{"result": turn.ToolResult.Text()}},
			})
		}
		return "", cohereChatHistory(history[:end]), results
	}

	// Otherwise the last user turn is the current message.
	if history[end-1].Role == RoleUser {
		return history[end-1].Content, cohereChatHistory(history[:end-1]), nil
	}
	return "", cohereChatHistory(history[:end]), nil
}

func cohereChatHistory(turns []Turn) []*cohere.Message {
	msgs := make([]*cohere.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case RoleUser:
			msgs = append(msgs, &cohere.Message{
				Role: "USER",
				User: &cohere.ChatMessage{Message: turn.Content},
			})
		case RoleAssistant:
			msgs = append(msgs, &cohere.Message{
				Role:    "CHATBOT",
				Chatbot: &cohere.ChatMessage{Message: turn.Content},
			})
		case RoleTool:
			msgs = append(msgs, &cohere.Message{
				Role: "TOOL",
				Tool: &cohere.ToolMessage{
					ToolResults: []*cohere.ToolResult{{
						Call:    &cohere.ToolCall{Name: turn.ToolResult.Name},
						Outputs: []map[string]any{{"result": turn.ToolResult.Text()}},
					}},
				},
			})
		}
	}
	return msgs
}

// cohereTools translates tool specs to Cohere parameter definitions. Cohere
// uses Python-style type names rather than JSON schema types.
func cohereTools(specs []ToolSpec) []*cohere.Tool {
	out := make([]*cohere.Tool, 0, len(specs))
	for _, spec := range specs {
		defs := make(map[string]*cohere.ToolParameterDefinitionsValue)
		if spec.Schema != nil {
			required := make(map[string]bool, len(spec.Schema.Required))
			for _, name := range spec.Schema.Required {
				required[name] = true
			}
			for name, prop := range spec.Schema.Properties {
				defs[name] = &cohere.ToolParameterDefinitionsValue{
					Type:        coherePythonType(prop.Type),
					Description: cohere.String(prop.Description),
					Required:    cohere.Bool(required[name]),
				}
			}
		}
		out = append(out, &cohere.Tool{
			Name:                 spec.Name,
			Description:          spec.Description,
			ParameterDefinitions: defs,
		})
	}
	return out
}

func coherePythonType(jsonType string) string {
	switch jsonType {
	case "number":
		return "float"
	case "integer":
		return "int"
	case "boolean":
		return "bool"
	default:
		return "str"
	}
}
