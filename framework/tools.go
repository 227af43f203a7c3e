package framework

import (
	"context"
	"fmt"
	"sync"
)

// Tool defines a capability exposed to an LLM agent. The metadata doubles as
// a schema that models can reason about when deciding which tool to call.
// Implementations return a human-readable string on success; errors are
// reserved for failures the orchestrator should see (sandbox violations,
// broken invariants), not for ordinary "file not found" outcomes, which tools
// report inside the result string so the model can react to them.
type Tool interface {
	Name() string
	Description() string
	Parameters() []ToolParameter
	Invoke(ctx context.Context, args map[string]interface{}) (string, error)
}

// ToolParameter describes an argument the tool accepts.
type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     interface{}
}

// ToolRegistry maintains the fixed set of tools built at startup. Agents
// receive the slice they are allowed to use; nothing registers ambiently.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewToolRegistry builds a registry from an explicit tool list. Duplicate
// names are a programming error and fail construction.
func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	r.order = append(r.order, tool.Name())
	return nil
}

// Get fetches a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns the tools in registration order so prompts stay stable across
// runs.
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		res = append(res, r.tools[name])
	}
	return res
}

// Subset returns the named tools, skipping unknown names. Agents use this to
// obtain the slice they are permitted to call.
func (r *ToolRegistry) Subset(names ...string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Tool, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			res = append(res, tool)
		}
	}
	return res
}
