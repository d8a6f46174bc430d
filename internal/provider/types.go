package provider

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a turn authored by the end user.
	RoleUser Role = "user"

	// RoleAssistant is a turn authored by the generation model. Assistant
	// turns may carry tool call requests instead of (or in addition to) text.
	RoleAssistant Role = "assistant"

	// RoleTool is a turn carrying the result of a single tool invocation.
	RoleTool Role = "tool"
)

// Turn is the canonical conversation turn. Every provider adapter converts
// its wire format to and from this type at the boundary; provider-specific
// message shapes never leak past this package.
//
// The conversation history is an append-only sequence of turns in strict
// chronological order. An assistant turn with ToolCalls is followed by one
// tool turn per requested call, in request order, before the next
// user-visible turn.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// ToolCalls holds tool invocations requested by an assistant turn.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolResult holds the outcome on a tool turn.
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ToolCall is a request by the generation model to invoke a named tool.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the outcome of executing one tool call. Exactly one of the
// two outcomes is meaningful: Output on success, Err on failure. Failed
// results are still fed back to the model as conversational content.
//
// Sources carries the knowledge-base references behind the output. It is
// internal metadata: adapters never send it to the model.
type ToolResult struct {
	Name    string      `json:"name"`
	Output  string      `json:"output,omitempty"`
	Err     string      `json:"error,omitempty"`
	Sources []SourceRef `json:"sources,omitempty"`
}

// SourceRef points at a knowledge-base document that grounded a tool
// output.
type SourceRef struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Text returns the result content to present to the model: the output on
// success, or the error message prefixed so the model can recognize it.
func (r ToolResult) Text() string {
	if r.Err != "" {
		return "Error: " + r.Err
	}
	return r.Output
}

// ToolSpec describes a tool to the generation model: its name, a
// description the model uses to decide when to call it, and a JSON schema
// for its arguments. Adapters translate the schema to their wire format.
type ToolSpec struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Generation is the normalized response of one model call: either a final
// text answer (no tool calls) or one or more tool call requests, preserved
// in the order the model returned them.
type Generation struct {
	Text      string
	ToolCalls []ToolCall
}

// IsFinal reports whether the generation is a final answer rather than a
// request for tool execution.
func (g *Generation) IsFinal() bool {
	return len(g.ToolCalls) == 0
}

// UserTurn builds a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds a plain assistant text turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// AssistantToolCallTurn builds an assistant turn requesting tool calls.
func AssistantToolCallTurn(content string, calls []ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolTurn builds a tool turn carrying one result.
func ToolTurn(result ToolResult) Turn {
	return Turn{Role: RoleTool, ToolResult: &result}
}
