package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/xhad/courserag/internal/models"
)

// ErrInvalidArguments wraps every argument decoding or validation failure.
var ErrInvalidArguments = errors.New("invalid tool arguments")

type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool '%s' not found", e.Name)
}

type registeredTool struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry holds tools by name and validates call arguments against each
// tool's parameter schema.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds a tool. Names must be unique and the parameter schema must
// compile.
func (r *Registry) Register(tool Tool) error {
	def := tool.Definition()
	if def.Name == "" {
		return errors.New("tool name is required")
	}

	raw, err := json.Marshal(def.Parameters)
	if err != nil {
		return fmt.Errorf("encode schema of %s: %w", def.Name, err)
	}
	resource := def.Name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("add schema resource of %s: %w", def.Name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("compile schema of %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[def.Name]; ok {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.tools[def.Name] = registeredTool{tool: tool, schema: schema}
	r.order = append(r.order, def.Name)
	return nil
}

// Definitions lists the registered tools in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].tool.Definition())
	}
	return defs
}

// Execute runs the named tool with JSON-encoded arguments.
func (r *Registry) Execute(ctx context.Context, name, arguments string) (string, error) {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", &UnknownToolError{Name: name}
	}

	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	var payload any
	if err := json.Unmarshal([]byte(arguments), &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := entry.schema.Validate(payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	args, ok := payload.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: arguments must be an object", ErrInvalidArguments)
	}

	return entry.tool.Execute(ctx, args)
}

// CollectSources returns the sources recorded by every tool since the last
// reset, then resets them.
func (r *Registry) CollectSources() []models.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sources []models.Source
	for _, name := range r.order {
		if tracker, ok := r.tools[name].tool.(SourceTracker); ok {
			sources = append(sources, tracker.LastSources()...)
			tracker.ResetSources()
		}
	}
	return sources
}

func (r *Registry) ResetSources() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if tracker, ok := r.tools[name].tool.(SourceTracker); ok {
			tracker.ResetSources()
		}
	}
}
