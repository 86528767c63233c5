// Package mcpcore is the MCP Core Server Wiring described in the component
// design: it dispatches the MCP list/call handlers against three small
// registry interfaces (ToolRegistry, PromptRegistry, ResourceRegistry), which
// are external collaborators — only their Go interfaces and a minimal
// in-memory built-in implementation live here.
package mcpcore

import "context"

// ToolDescriptor is the static shape of one registered tool as returned by
// tools/list.
type ToolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// ContentItem is one element of a tool result's content array. Exactly one
// of Text/Data/Resource should be populated, selected by Type.
type ContentItem struct {
	Type     string          `json:"type"` // "text", "image", "audio", "resource_link", "resource"
	Text     string          `json:"text,omitempty"`
	Data     string          `json:"data,omitempty"`     // base64, for "image"/"audio"
	MimeType string          `json:"mimeType,omitempty"` // for "image"/"audio"/"resource"
	URI      string          `json:"uri,omitempty"`      // for "resource_link"
	Resource *ResourceContent `json:"resource,omitempty"` // for "resource" (embedded)
}

// ToolResult is what a ToolRegistry.CallTool invocation returns; the server
// flattens it into the wire tools/call result shape.
type ToolResult struct {
	// Text is the tool's primary textual output. Always rendered as the
	// first content item, even when StructuredContent is also set (in
	// which case Text should be its stringified form).
	Text string
	// StructuredContent is optional machine-readable output returned
	// alongside Text, verbatim under the wire result's
	// structuredContent field.
	StructuredContent map[string]interface{}
	// Images, Audio, ResourceLinks, and EmbeddedResources are appended to
	// the content array, in that order, only when non-empty.
	Images            []ContentItem
	Audio             []ContentItem
	ResourceLinks     []ContentItem
	EmbeddedResources []ContentItem
	// Success, when false, makes the wire result isError=true.
	Success bool
}

// ToolRegistry is the external collaborator that knows the set of callable
// tools. mcpcore depends only on this interface.
type ToolRegistry interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error)
}

// PromptArgument describes one named argument a prompt accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptDescriptor is the static shape of one registered prompt as returned
// by prompts/list.
type PromptDescriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptMessage is one rendered message in a prompts/get result.
type PromptMessage struct {
	Role    string      `json:"role"`
	Content ContentItem `json:"content"`
}

// PromptResult is what a PromptRegistry.GetPrompt invocation returns.
type PromptResult struct {
	Description string
	Messages    []PromptMessage
}

// PromptRegistry is the external collaborator that knows the set of
// renderable prompts.
type PromptRegistry interface {
	ListPrompts(ctx context.Context) ([]PromptDescriptor, error)
	GetPrompt(ctx context.Context, name string, args map[string]string) (PromptResult, error)
}

// ResourceDescriptor is the static shape of one registered resource as
// returned by resources/list.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplateDescriptor is the static shape of one registered resource
// template as returned by resources/templates/list.
type ResourceTemplateDescriptor struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContent is the body of a resources/read result for one URI.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"` // base64, for binary resources
}

// ResourceRegistry is the external collaborator that knows the set of
// readable resources and resource templates.
type ResourceRegistry interface {
	ListResources(ctx context.Context) ([]ResourceDescriptor, error)
	ListResourceTemplates(ctx context.Context) ([]ResourceTemplateDescriptor, error)
	ReadResource(ctx context.Context, uri string) (ResourceContent, error)
}

// Capabilities is the capability set advertised during initialize.
type Capabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Logging   *LoggingCapability   `json:"logging,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
}

// ToolsCapability advertises tool support. Empty per the design: tool-list
// change notifications are not implemented.
type ToolsCapability struct{}

// PromptsCapability advertises prompt support and whether the server emits
// listChanged notifications when the prompt set changes.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ResourcesCapability advertises resource support.
type ResourcesCapability struct{}

// LoggingCapability advertises the server's logging capability and default
// level.
type LoggingCapability struct {
	Level string `json:"level"`
}

// DefaultCapabilities is the capability set every Server advertises, per the
// component design: tools, prompts with listChanged, and logging at debug.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Tools:     &ToolsCapability{},
		Prompts:   &PromptsCapability{ListChanged: true},
		Logging:   &LoggingCapability{Level: "debug"},
		Resources: &ResourcesCapability{},
	}
}
