package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"google.golang.org/genai"
)

const (
	defaultGeminiChatModel  = "gemini-2.0-flash"
	defaultGeminiEmbedModel = "gemini-embedding-001"
)

// GeminiEmbedder embeds text with the Gemini embedding API at a fixed
// output dimensionality. Vectors at reduced dimensionality are not unit
// length, so they are L2-normalized before use with cosine distance.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dim    int32
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dim int) (*GeminiEmbedder, error) {
	if model == "" {
		model = defaultGeminiEmbedModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, dim: int32(dim)}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{OutputDimensionality: &e.dim})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty response")
	}

	vec := result.Embeddings[0].Values
	if len(vec) != int(e.dim) {
		return nil, fmt.Errorf("gemini embed: dimension mismatch: want %d, got %d", e.dim, len(vec))
	}
	return l2Normalize(vec), nil
}

// GeminiGenerator runs chat completions with function calling through the
// Gemini API. Gemini has no reranking endpoint; the retrieval pipeline
// falls back to vector-order truncation when this provider is selected.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	system      string
	temperature float32
	logger      *slog.Logger
}

func NewGeminiGenerator(ctx context.Context, apiKey, model, systemPrompt string, temperature float64, logger *slog.Logger) (*GeminiGenerator, error) {
	if model == "" {
		model = defaultGeminiChatModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiGenerator{
		client:      client,
		model:       model,
		system:      systemPrompt,
		temperature: float32(temperature),
		logger:      logger,
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, history []Turn, tools []ToolSpec) (*Generation, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if g.system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(g.system, genai.RoleUser)
	}
	if len(tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: geminiFunctions(tools)}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, geminiContents(history), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini generate: %v", ErrGeneration, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: gemini generate: no candidates", ErrGeneration)
	}

	gen := &Generation{}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			gen.ToolCalls = append(gen.ToolCalls, ToolCall{
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		case part.Text != "":
			gen.Text += part.Text
		}
	}

	g.logger.Debug("gemini generation",
		"model", g.model,
		"tool_calls", len(gen.ToolCalls),
		"text_len", len(gen.Text))

	return gen, nil
}

// geminiContents maps the canonical history to Gemini contents. Tool call
// requests become model-role function call parts; tool results become
// user-role function responses, which is how the Gemini API expects them.
func geminiContents(history []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleUser))
		case RoleAssistant:
			parts := make([]*genai.Part, 0, 1+len(turn.ToolCalls))
			if turn.Content != "" {
				parts = append(parts, genai.NewPartFromText(turn.Content))
			}
			for _, call := range turn.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					Name: call.Name,
					Args: call.Arguments,
				}})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					Name:     turn.ToolResult.Name,
					Response: map[string]any{"result": turn.ToolResult.Text()},
				}}},
			})
		}
	}
	return contents
}

func geminiFunctions(specs []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decl := &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
		}
		if spec.Schema != nil {
			params := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(spec.Schema.Properties)),
				Required:   spec.Schema.Required,
			}
			for name, prop := range spec.Schema.Properties {
				params.Properties[name] = &genai.Schema{
					Type:        geminiType(prop.Type),
					Description: prop.Description,
				}
			}
			decl.Parameters = params
		}
		decls = append(decls, decl)
	}
	return decls
}

func geminiType(jsonType string) genai.Type {
	switch jsonType {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// l2Normalize scales vec to unit length so inner-product and cosine
// orderings agree. A zero vector is returned unchanged.
func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
