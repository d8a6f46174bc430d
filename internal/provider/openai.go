package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIChatModel  = "gpt-4o-mini"
	defaultOpenAIEmbedModel = string(openai.SmallEmbedding3)
)

// OpenAIEmbedder embeds text with the OpenAI embeddings API at a fixed
// output dimensionality. Vectors are L2-normalized so cosine distance over
// the stored chunks behaves the same across providers.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

func NewOpenAIEmbedder(apiKey, model string, dim int) *OpenAIEmbedder {
	if model == "" {
		model = defaultOpenAIEmbedModel
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    dim,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      []string{text},
		Dimensions: e.dim,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embed: empty response")
	}

	vec := resp.Data[0].Embedding
	if len(vec) != e.dim {
		return nil, fmt.Errorf("openai embed: dimension mismatch: want %d, got %d", e.dim, len(vec))
	}
	return l2Normalize(vec), nil
}

// OpenAIGenerator runs chat completions with tool calling through the
// OpenAI API. OpenAI has no reranking endpoint; the retrieval pipeline
// falls back to vector-order truncation when this provider is selected.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	system      string
	temperature float32
	logger      *slog.Logger
}

func NewOpenAIGenerator(apiKey, model, systemPrompt string, temperature float64, logger *slog.Logger) *OpenAIGenerator {
	if model == "" {
		model = defaultOpenAIChatModel
	}
	return &OpenAIGenerator{
		client:      openai.NewClient(apiKey),
		model:       model,
		system:      systemPrompt,
		temperature: float32(temperature),
		logger:      logger,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, history []Turn, tools []ToolSpec) (*Generation, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    openaiMessages(g.system, history),
		Temperature: g.temperature,
	}
	for _, spec := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Schema,
			},
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai chat: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai chat: no choices", ErrGeneration)
	}

	msg := resp.Choices[0].Message
	gen := &Generation{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%w: openai chat: malformed tool arguments for %s: %v",
					ErrGeneration, tc.Function.Name, err)
			}
		}
		gen.ToolCalls = append(gen.ToolCalls, ToolCall{Name: tc.Function.Name, Arguments: args})
	}

	g.logger.Debug("openai generation",
		"model", g.model,
		"tool_calls", len(gen.ToolCalls),
		"text_len", len(gen.Text))

	return gen, nil
}

// openaiMessages maps the canonical history to OpenAI chat messages. The
// wire format requires tool call IDs, which the canonical model does not
// carry; IDs are synthesized deterministically from turn positions and
// matched to the tool results that follow, relying on results appearing
// immediately after their request in call order.
func openaiMessages(system string, history []Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	var pendingIDs []string
	for i, turn := range history {
		switch turn.Role {
		case RoleUser:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: turn.Content,
			})
		case RoleAssistant:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: turn.Content,
			}
			pendingIDs = pendingIDs[:0]
			for j, call := range turn.ToolCalls {
				id := fmt.Sprintf("call_%d_%d", i, j)
				args, _ := json.Marshal(call.Arguments)
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   id,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
				pendingIDs = append(pendingIDs, id)
			}
			msgs = append(msgs, msg)
		case RoleTool:
			var id string
			if len(pendingIDs) > 0 {
				id = pendingIDs[0]
				pendingIDs = pendingIDs[1:]
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    turn.ToolResult.Text(),
				Name:       turn.ToolResult.Name,
				ToolCallID: id,
			})
		}
	}
	return msgs
}
