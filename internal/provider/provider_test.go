package provider

import (
	"math"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     string
	}{
		{"explicit wins", "openai", "command-r-plus", ProviderOpenAI},
		{"explicit case insensitive", "Gemini", "", ProviderGemini},
		{"command prefix", "", "command-r-plus", ProviderCohere},
		{"gemini prefix", "", "gemini-2.0-flash", ProviderGemini},
		{"gpt prefix", "", "gpt-4o-mini", ProviderOpenAI},
		{"o1 prefix", "", "o1-mini", ProviderOpenAI},
		{"unknown defaults to cohere", "", "mystery-model", ProviderCohere},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.provider, tt.model); got != tt.want {
				t.Errorf("Detect(%q, %q) = %q, want %q", tt.provider, tt.model, got, tt.want)
			}
		})
	}
}

func TestToolResultText(t *testing.T) {
	ok := ToolResult{Name: "calculator", Output: "450"}
	if got := ok.Text(); got != "450" {
		t.Errorf("success text = %q, want %q", got, "450")
	}

	failed := ToolResult{Name: "calculator", Err: "invalid expression"}
	if got := failed.Text(); got != "Error: invalid expression" {
		t.Errorf("failure text = %q, want %q", got, "Error: invalid expression")
	}
}

func TestGenerationIsFinal(t *testing.T) {
	final := &Generation{Text: "done"}
	if !final.IsFinal() {
		t.Error("generation without tool calls should be final")
	}

	pending := &Generation{ToolCalls: []ToolCall{{Name: "calculator"}}}
	if pending.IsFinal() {
		t.Error("generation with tool calls should not be final")
	}
}

func TestL2Normalize(t *testing.T) {
	vec := l2Normalize([]float32{3, 4})

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("normalized vector has squared norm %f, want 1.0", sum)
	}

	zero := l2Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector should pass through unchanged, got %v", zero)
	}
}

func TestSplitCohereHistory_UserMessage(t *testing.T) {
	history := []Turn{
		UserTurn("first question"),
		AssistantTurn("first answer"),
		UserTurn("second question"),
	}

	message, chatHistory, toolResults := splitCohereHistory(history)

	if message != "second question" {
		t.Errorf("message = %q, want the trailing user turn", message)
	}
	if len(chatHistory) != 2 {
		t.Fatalf("chat history length = %d, want 2", len(chatHistory))
	}
	if chatHistory[0].Role != "USER" || chatHistory[1].Role != "CHATBOT" {
		t.Errorf("unexpected history roles: %s, %s", chatHistory[0].Role, chatHistory[1].Role)
	}
	if toolResults != nil {
		t.Errorf("expected no tool results, got %d", len(toolResults))
	}
}

func TestSplitCohereHistory_TrailingToolResults(t *testing.T) {
	history := []Turn{
		UserTurn("what is 150 * 3?"),
		AssistantToolCallTurn("", []ToolCall{
			{Name: "calculator", Arguments: map[string]any{"expression": "150 * 3"}},
		}),
		ToolTurn(ToolResult{Name: "calculator", Output: "450"}),
	}

	message, chatHistory, toolResults := splitCohereHistory(history)

	if message != "" {
		t.Errorf("message = %q, want empty when feeding back tool results", message)
	}
	if len(chatHistory) != 1 || chatHistory[0].Role != "USER" {
		t.Fatalf("chat history should hold only the user turn, got %d entries", len(chatHistory))
	}
	if len(toolResults) != 1 {
		t.Fatalf("tool results length = %d, want 1", len(toolResults))
	}
	if toolResults[0].Call.Name != "calculator" {
		t.Errorf("tool result call name = %q", toolResults[0].Call.Name)
	}
	if got := toolResults[0].Outputs[0]["result"]; got != "450" {
		t.Errorf("tool result output = %v, want 450", got)
	}
	if toolResults[0].Call.Parameters["expression"] != "150 * 3" {
		t.Errorf("tool result should carry the original call arguments, got %v", toolResults[0].Call.Parameters)
	}
}

func TestOpenAIMessages_ToolCallIDsMatch(t *testing.T) {
	history := []Turn{
		UserTurn("time and a sum please"),
		AssistantToolCallTurn("", []ToolCall{
			{Name: "current_time"},
			{Name: "calculator", Arguments: map[string]any{"expression": "1+1"}},
		}),
		ToolTurn(ToolResult{Name: "current_time", Output: "2026-08-23T10:00:00Z"}),
		ToolTurn(ToolResult{Name: "calculator", Output: "2"}),
	}

	msgs := openaiMessages("be helpful", history)

	if msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("first message role = %s, want system", msgs[0].Role)
	}
	// system, user, assistant, tool, tool
	if len(msgs) != 5 {
		t.Fatalf("message count = %d, want 5", len(msgs))
	}

	assistant := msgs[2]
	if len(assistant.ToolCalls) != 2 {
		t.Fatalf("assistant tool calls = %d, want 2", len(assistant.ToolCalls))
	}
	if msgs[3].ToolCallID != assistant.ToolCalls[0].ID {
		t.Errorf("first tool result ID %q does not match first call ID %q",
			msgs[3].ToolCallID, assistant.ToolCalls[0].ID)
	}
	if msgs[4].ToolCallID != assistant.ToolCalls[1].ID {
		t.Errorf("second tool result ID %q does not match second call ID %q",
			msgs[4].ToolCallID, assistant.ToolCalls[1].ID)
	}
}

func TestGeminiContents_ToolExchange(t *testing.T) {
	history := []Turn{
		UserTurn("question"),
		AssistantToolCallTurn("", []ToolCall{{Name: "knowledge_base_search", Arguments: map[string]any{"query": "refunds"}}}),
		ToolTurn(ToolResult{Name: "knowledge_base_search", Output: "refund policy text"}),
		AssistantTurn("here is the answer"),
	}

	contents := geminiContents(history)

	if len(contents) != 4 {
		t.Fatalf("content count = %d, want 4", len(contents))
	}
	if contents[1].Parts[0].FunctionCall == nil {
		t.Error("assistant tool call turn should map to a function call part")
	}
	if contents[2].Parts[0].FunctionResponse == nil {
		t.Fatal("tool turn should map to a function response part")
	}
	if got := contents[2].Parts[0].FunctionResponse.Response["result"]; got != "refund policy text" {
		t.Errorf("function response result = %v", got)
	}
}
