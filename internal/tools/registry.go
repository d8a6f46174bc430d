// Package tools implements the tool registry and the built-in support
// tools. Tools are plain functions behind JSON schemas; the registry
// validates arguments, dispatches by name and contains every failure mode
// (bad arguments, handler errors, panics) into an error-carrying result
// that flows back to the model as conversation content.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/helpline-ai/helpline/internal/provider"
)

var (
	// ErrInvalidArguments indicates tool arguments failed schema validation.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrUnknownTool indicates a tool name with no registration.
	ErrUnknownTool = errors.New("unknown tool")
)

// Output is a successful tool execution: the text fed back to the model,
// plus any knowledge-base sources behind it.
type Output struct {
	Text    string
	Sources []provider.SourceRef
}

// Handler executes one tool call. Arguments arrive already validated
// against the tool's schema.
type Handler func(ctx context.Context, args map[string]any) (Output, error)

// Tool couples a name and argument schema with its handler.
type Tool struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     Handler
}

// Registry dispatches tool calls by exact name over a fixed map. It is
// populated at startup and read-only afterwards, so concurrent Execute
// calls are safe.
type Registry struct {
	tools    map[string]Tool
	resolved map[string]*jsonschema.Resolved
	order    []string
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		resolved: make(map[string]*jsonschema.Resolved),
		logger:   logger,
	}
}

// Register adds a tool. Names must be unique; the schema is resolved here
// so malformed schemas fail at startup, not at call time.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	if t.Schema != nil {
		resolved, err := t.Schema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("resolving schema for %q: %w", t.Name, err)
		}
		r.resolved[t.Name] = resolved
	}

	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Specs returns the tool specs in registration order, for the generation
// model.
func (r *Registry) Specs() []provider.ToolSpec {
	specs := make([]provider.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, provider.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Schema:      t.Schema,
		})
	}
	return specs
}

// Execute runs one tool call. It never returns an error: unknown names,
// schema violations, handler errors and panics all become error-carrying
// results so the agent loop can continue.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result provider.ToolResult) {
	result.Name = name

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", rec)
			result = provider.ToolResult{Name: name, Err: fmt.Sprintf("tool %q panicked: %v", name, rec)}
		}
	}()

	tool, ok := r.tools[name]
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", name)
		result.Err = fmt.Sprintf("%v: %q", ErrUnknownTool, name)
		return result
	}

	if args == nil {
		args = map[string]any{}
	}
	if resolved := r.resolved[name]; resolved != nil {
		if err := resolved.Validate(args); err != nil {
			r.logger.Warn("tool arguments rejected", "tool", name, "error", err)
			result.Err = fmt.Sprintf("%v: %v", ErrInvalidArguments, err)
			return result
		}
	}

	out, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		result.Err = err.Error()
		return result
	}

	result.Output = out.Text
	result.Sources = out.Sources
	return result
}
