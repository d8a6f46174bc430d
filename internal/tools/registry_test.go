package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/helpline-ai/helpline/internal/log"
)

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "echoes its input",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"text": {Type: "string"},
			},
			Required: []string{"text"},
		},
		Handler: func(_ context.Context, args map[string]any) (Output, error) {
			text, _ := args["text"].(string)
			return Output{Text: text}, nil
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(log.NewNop())

	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if !r.Has("echo") {
		t.Error("Has(echo) = false after registration")
	}

	if err := r.Register(echoTool("echo")); err == nil {
		t.Error("duplicate registration must fail")
	}
	if err := r.Register(Tool{Name: "", Handler: echoTool("x").Handler}); err == nil {
		t.Error("empty name must fail")
	}
	if err := r.Register(Tool{Name: "nohandler"}); err == nil {
		t.Error("nil handler must fail")
	}
}

func TestRegistry_SpecsInRegistrationOrder(t *testing.T) {
	r := NewRegistry(log.NewNop())
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(echoTool(name)); err != nil {
			t.Fatal(err)
		}
	}

	specs := r.Specs()
	if len(specs) != 3 {
		t.Fatalf("specs = %d, want 3", len(specs))
	}
	for i, want := range []string{"c", "a", "b"} {
		if specs[i].Name != want {
			t.Errorf("spec %d = %s, want %s", i, specs[i].Name, want)
		}
	}
}

func TestExecute_Success(t *testing.T) {
	r := NewRegistry(log.NewNop())
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatal(err)
	}

	result := r.Execute(context.Background(), "echo", map[string]any{"text": "hello"})

	if result.Err != "" {
		t.Fatalf("unexpected error: %s", result.Err)
	}
	if result.Output != "hello" {
		t.Errorf("output = %q", result.Output)
	}
	if result.Name != "echo" {
		t.Errorf("name = %q", result.Name)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	r := NewRegistry(log.NewNop())

	result := r.Execute(context.Background(), "missing", nil)

	if result.Err == "" {
		t.Fatal("unknown tool must produce an error result")
	}
	if !strings.Contains(result.Err, ErrUnknownTool.Error()) {
		t.Errorf("error = %q, want mention of unknown tool", result.Err)
	}
	if result.Name != "missing" {
		t.Errorf("name = %q, want the requested name", result.Name)
	}
}

func TestExecute_InvalidArguments(t *testing.T) {
	r := NewRegistry(log.NewNop())
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing required", map[string]any{}},
		{"wrong type", map[string]any{"text": 42}},
		{"nil args", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Execute(context.Background(), "echo", tt.args)
			if !strings.Contains(result.Err, ErrInvalidArguments.Error()) {
				t.Errorf("error = %q, want schema validation failure", result.Err)
			}
		})
	}
}

func TestExecute_HandlerErrorContained(t *testing.T) {
	r := NewRegistry(log.NewNop())
	err := r.Register(Tool{
		Name:        "failing",
		Description: "always fails",
		Handler: func(_ context.Context, _ map[string]any) (Output, error) {
			return Output{}, errors.New("backend exploded")
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	result := r.Execute(context.Background(), "failing", nil)

	if result.Err != "backend exploded" {
		t.Errorf("error = %q, want handler error text", result.Err)
	}
	if result.Output != "" {
		t.Errorf("output should be empty on failure, got %q", result.Output)
	}
}

func TestExecute_PanicContained(t *testing.T) {
	r := NewRegistry(log.NewNop())
	err := r.Register(Tool{
		Name:        "panicking",
		Description: "panics",
		Handler: func(_ context.Context, _ map[string]any) (Output, error) {
			panic("boom")
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	result := r.Execute(context.Background(), "panicking", nil)

	if !strings.Contains(result.Err, "panicked") || !strings.Contains(result.Err, "boom") {
		t.Errorf("panic not contained into result: %q", result.Err)
	}
}
