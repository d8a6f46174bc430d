package tools

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/helpline-ai/helpline/internal/provider"
	"github.com/helpline-ai/helpline/internal/retrieval"
)

// Registered names of the built-in tools.
const (
	ToolKnowledgeBaseSearch = "knowledge_base_search"
	ToolCurrentTime         = "current_time"
	ToolContactInfo         = "contact_info"
)

// contactInfo is the static escalation card returned by the contact tool.
const contactInfo = `Helpline customer support:
- Email: support@helpline.ai
- Phone: +1 (800) 555-0142 (Mon-Fri, 9:00-18:00 UTC)
- Live chat: https://helpline.ai/chat
Please include your account email when contacting support.`

// Searcher is the retrieval the knowledge-base tool runs on, satisfied by
// *retrieval.Pipeline.
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK, rerankK int) ([]retrieval.Result, error)
}

// NewKnowledgeBaseSearch returns the knowledge-base search tool. Its output
// carries the retrieved source references so the agent can attach them to
// the final answer. A retrieval failure is returned as an error and reaches
// the model as an error result; the loop keeps going.
func NewKnowledgeBaseSearch(searcher Searcher, topK, rerankK int) Tool {
	return Tool{
		Name: ToolKnowledgeBaseSearch,
		Description: "Search the support knowledge base for articles relevant to the " +
			"customer's question. Use this before answering any product or policy question.",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "The search query describing what to look up.",
				},
			},
			Required: []string{"query"},
		},
		Handler: func(ctx context.Context, args map[string]any) (Output, error) {
			query, _ := args["query"].(string)

			results, err := searcher.Retrieve(ctx, query, topK, rerankK)
			if err != nil {
				return Output{}, err
			}
			if len(results) == 0 {
				return Output{Text: "No relevant articles found in the knowledge base."}, nil
			}

			sources := make([]provider.SourceRef, len(results))
			for i, r := range results {
				sources[i] = provider.SourceRef{Path: r.Source, Score: r.Score}
			}
			return Output{Text: retrieval.BuildContext(results), Sources: sources}, nil
		},
	}
}

// NewCurrentTime returns the clock tool. now is injectable for tests; pass
// time.Now in production.
func NewCurrentTime(now func() time.Time) Tool {
	return Tool{
		Name:        ToolCurrentTime,
		Description: "Get the current date and time in UTC.",
		Schema:      &jsonschema.Schema{Type: "object"},
		Handler: func(_ context.Context, _ map[string]any) (Output, error) {
			return Output{Text: now().UTC().Format(time.RFC3339)}, nil
		},
	}
}

// NewContactInfo returns the static contact information tool.
func NewContactInfo() Tool {
	return Tool{
		Name:        ToolContactInfo,
		Description: "Get the contact channels for reaching a human support agent.",
		Schema:      &jsonschema.Schema{Type: "object"},
		Handler: func(_ context.Context, _ map[string]any) (Output, error) {
			return Output{Text: contactInfo}, nil
		},
	}
}
