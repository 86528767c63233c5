package mcpcore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ToolFunc is the invocation body of one built-in tool.
type ToolFunc func(ctx context.Context, args map[string]interface{}) (ToolResult, error)

// builtinTool pairs a ToolDescriptor with its invocation body.
type builtinTool struct {
	descriptor ToolDescriptor
	fn         ToolFunc
}

// BuiltinToolRegistry is the minimal in-memory ToolRegistry implementation
// the design calls for: enough to exercise the handlers end-to-end in
// tests, with tools and prompts registered as plain Go interfaces'
// "external collaborators" out of scope.
type BuiltinToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]builtinTool
	order []string
}

// NewBuiltinToolRegistry creates an empty registry.
func NewBuiltinToolRegistry() *BuiltinToolRegistry {
	return &BuiltinToolRegistry{tools: make(map[string]builtinTool)}
}

// Register adds (or replaces) a tool. Registration order is preserved for
// listing, except replacing an existing name keeps its original position.
func (r *BuiltinToolRegistry) Register(desc ToolDescriptor, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.Name]; !exists {
		r.order = append(r.order, desc.Name)
	}
	r.tools[desc.Name] = builtinTool{descriptor: desc, fn: fn}
}

// ListTools implements ToolRegistry.
func (r *BuiltinToolRegistry) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].descriptor)
	}
	return out, nil
}

// CallTool implements ToolRegistry.
func (r *BuiltinToolRegistry) CallTool(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return ToolResult{}, fmt.Errorf("mcpcore: unknown tool %q", name)
	}
	return t.fn(ctx, args)
}

// PromptFunc is the render body of one built-in prompt.
type PromptFunc func(ctx context.Context, args map[string]string) (PromptResult, error)

type builtinPrompt struct {
	descriptor PromptDescriptor
	fn         PromptFunc
}

// BuiltinPromptRegistry is the minimal in-memory PromptRegistry
// implementation.
type BuiltinPromptRegistry struct {
	mu      sync.RWMutex
	prompts map[string]builtinPrompt
	order   []string
}

// NewBuiltinPromptRegistry creates an empty registry.
func NewBuiltinPromptRegistry() *BuiltinPromptRegistry {
	return &BuiltinPromptRegistry{prompts: make(map[string]builtinPrompt)}
}

// Register adds (or replaces) a prompt.
func (r *BuiltinPromptRegistry) Register(desc PromptDescriptor, fn PromptFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.prompts[desc.Name]; !exists {
		r.order = append(r.order, desc.Name)
	}
	r.prompts[desc.Name] = builtinPrompt{descriptor: desc, fn: fn}
}

// ListPrompts implements PromptRegistry.
func (r *BuiltinPromptRegistry) ListPrompts(ctx context.Context) ([]PromptDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PromptDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.prompts[name].descriptor)
	}
	return out, nil
}

// GetPrompt implements PromptRegistry.
func (r *BuiltinPromptRegistry) GetPrompt(ctx context.Context, name string, args map[string]string) (PromptResult, error) {
	r.mu.RLock()
	p, ok := r.prompts[name]
	r.mu.RUnlock()
	if !ok {
		return PromptResult{}, fmt.Errorf("mcpcore: unknown prompt %q", name)
	}
	return p.fn(ctx, args)
}

// BuiltinResourceRegistry is the minimal in-memory ResourceRegistry
// implementation: resources are fixed content keyed by URI, templates are
// purely descriptive (no expansion logic).
type BuiltinResourceRegistry struct {
	mu        sync.RWMutex
	resources map[string]ResourceContent
	meta      map[string]ResourceDescriptor
	order     []string
	templates []ResourceTemplateDescriptor
}

// NewBuiltinResourceRegistry creates an empty registry.
func NewBuiltinResourceRegistry() *BuiltinResourceRegistry {
	return &BuiltinResourceRegistry{
		resources: make(map[string]ResourceContent),
		meta:      make(map[string]ResourceDescriptor),
	}
}

// RegisterResource adds (or replaces) a static resource's descriptor and
// content.
func (r *BuiltinResourceRegistry) RegisterResource(desc ResourceDescriptor, content ResourceContent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.meta[desc.URI]; !exists {
		r.order = append(r.order, desc.URI)
	}
	r.meta[desc.URI] = desc
	r.resources[desc.URI] = content
}

// RegisterTemplate adds a resource template descriptor.
func (r *BuiltinResourceRegistry) RegisterTemplate(desc ResourceTemplateDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates = append(r.templates, desc)
}

// ListResources implements ResourceRegistry.
func (r *BuiltinResourceRegistry) ListResources(ctx context.Context) ([]ResourceDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ResourceDescriptor, 0, len(r.order))
	for _, uri := range r.order {
		out = append(out, r.meta[uri])
	}
	return out, nil
}

// ListResourceTemplates implements ResourceRegistry.
func (r *BuiltinResourceRegistry) ListResourceTemplates(ctx context.Context) ([]ResourceTemplateDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ResourceTemplateDescriptor, len(r.templates))
	copy(out, r.templates)
	sort.Slice(out, func(i, j int) bool { return out[i].URITemplate < out[j].URITemplate })
	return out, nil
}

// ReadResource implements ResourceRegistry.
func (r *BuiltinResourceRegistry) ReadResource(ctx context.Context, uri string) (ResourceContent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	content, ok := r.resources[uri]
	if !ok {
		return ResourceContent{}, fmt.Errorf("mcpcore: unknown resource %q", uri)
	}
	return content, nil
}
