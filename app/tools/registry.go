package tools

import (
	"fmt"
	"sync"

	"workbench/app/llm"
)

// Tool pairs a schema advertised to the model with the handler that runs it.
type Tool struct {
	Schema  llm.ToolSchema
	Handler llm.Handler
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	names []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: map[string]Tool{},
	}
}

func (r *Registry) Register(tool Tool) error {
	name := tool.Schema.Function.Name
	if name == "" {
		return fmt.Errorf("tool schema has no function name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("tool '%s' is already registered", name)
	}
	r.tools[name] = tool
	r.names = append(r.names, name)
	return nil
}

// Schemas returns the advertised tool schemas in registration order.
func (r *Registry) Schemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(r.names))
	for _, name := range r.names {
		schemas = append(schemas, r.tools[name].Schema)
	}
	return schemas
}

// HandlerMap returns the name-to-handler table consumed by the tool loop.
func (r *Registry) HandlerMap() map[string]llm.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := make(map[string]llm.Handler, len(r.tools))
	for name, tool := range r.tools {
		handlers[name] = tool.Handler
	}
	return handlers
}

// Subset builds a registry restricted to the named tools, used when an agent
// definition only allows part of the toolbox. Unknown names are skipped.
func (r *Registry) Subset(names []string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub := NewRegistry()
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			_ = sub.Register(tool)
		}
	}
	return sub
}
