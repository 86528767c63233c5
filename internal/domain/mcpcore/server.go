package mcpcore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/mcpgateway/mcpgateway/internal/ctxkey"
	"github.com/mcpgateway/mcpgateway/internal/domain/eventjournal"
	"github.com/mcpgateway/mcpgateway/internal/domain/mcptransport"
	"github.com/mcpgateway/mcpgateway/pkg/mcp"
)

// progressTokenKey is the context key under which the active call's
// progress token is stored, so deeply nested tool/prompt code can report
// progress without threading it through every function signature.
type progressTokenKey = ctxkey.ProgressTokenKey

// ProgressTokenFromContext returns the progress token injected for the
// in-flight tools/call or prompts/get request, or "" if none is active.
func ProgressTokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(progressTokenKey{}).(string)
	return tok
}

// Server is the MCP Core Server Wiring: it dispatches the standard MCP
// list/call methods against a ToolRegistry, PromptRegistry, and
// ResourceRegistry, and forwards progress notifications over the
// connected Transport.
type Server struct {
	tools     ToolRegistry
	prompts   PromptRegistry
	resources ResourceRegistry
	journal   *eventjournal.Journal
}

// New creates a Server backed by the three registries. journal may be nil,
// in which case progress notifications are only fanned out locally (not
// persisted for cross-replica SSE resumability).
func New(tools ToolRegistry, prompts PromptRegistry, resources ResourceRegistry, journal *eventjournal.Journal) *Server {
	return &Server{tools: tools, prompts: prompts, resources: resources, journal: journal}
}

// Connect binds this Server to t, returning the mcptransport.Handler that
// dispatches every request arriving on t. Matches the mcptransport.Connector
// shape so it can be passed directly to Registry.CreateTransport /
// ReplayInitialRequest.
func (s *Server) Connect(t *mcptransport.Transport) mcptransport.Handler {
	return func(ctx context.Context, body []byte) ([]byte, error) {
		return s.handle(ctx, t, body)
	}
}

func (s *Server) handle(ctx context.Context, t *mcptransport.Transport, body []byte) ([]byte, error) {
	decoded, err := mcp.DecodeMessage(body)
	if err != nil {
		return encodeError(jsonrpc.ID{}, &jsonrpc.Error{Code: jsonrpc.CodeParseError, Message: "parse error: " + err.Error()})
	}
	req, ok := decoded.(*jsonrpc.Request)
	if !ok {
		// Responses/notifications flowing into the core server carry
		// nothing to reply to.
		return nil, nil
	}

	var params map[string]interface{}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return encodeError(req.ID, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "invalid params: " + err.Error()})
		}
	}

	result, rpcErr := s.dispatch(ctx, t, req.Method, params)
	if rpcErr != nil {
		return encodeError(req.ID, rpcErr)
	}
	if result == nil {
		// Notification (e.g. notifications/initialized): nothing to send.
		return nil, nil
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return encodeError(req.ID, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: "marshal result: " + err.Error()})
	}
	return mcp.EncodeMessage(&jsonrpc.Response{ID: req.ID, Result: resultJSON})
}

func encodeError(id jsonrpc.ID, rpcErr *jsonrpc.Error) ([]byte, error) {
	return mcp.EncodeMessage(&jsonrpc.Response{ID: id, Error: rpcErr})
}

func (s *Server) dispatch(ctx context.Context, t *mcptransport.Transport, method string, params map[string]interface{}) (interface{}, *jsonrpc.Error) {
	switch method {
	case "initialize":
		return s.initialize(), nil
	case "notifications/initialized":
		return nil, nil
	case "tools/list":
		return s.toolsList(ctx, cursorOf(params))
	case "tools/call":
		return s.toolsCall(ctx, t, params)
	case "prompts/list":
		return s.promptsList(ctx, cursorOf(params))
	case "prompts/get":
		return s.promptsGet(ctx, t, params)
	case "resources/list":
		return s.resourcesList(ctx, cursorOf(params))
	case "resources/templates/list":
		return s.resourceTemplatesList(ctx, cursorOf(params))
	case "resources/read":
		return s.resourcesRead(ctx, params)
	default:
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", method)}
	}
}

func cursorOf(params map[string]interface{}) string {
	if params == nil {
		return ""
	}
	cursor, _ := params["cursor"].(string)
	return cursor
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      serverInfo   `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// protocolVersion is the MCP protocol revision this server implements.
const protocolVersion = "2025-06-18"

func (s *Server) initialize() initializeResult {
	return initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    DefaultCapabilities(),
		ServerInfo:      serverInfo{Name: "mcpgateway", Version: "0.1.0"},
	}
}

type toolsListResult struct {
	Tools      []ToolDescriptor `json:"tools"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

func (s *Server) toolsList(ctx context.Context, cursor string) (interface{}, *jsonrpc.Error) {
	if s.tools == nil {
		return toolsListResult{}, nil
	}
	all, err := s.tools.ListTools(ctx)
	if err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
	}
	page, next := paginate(all, cursor)
	return toolsListResult{Tools: page, NextCursor: next}, nil
}

type toolsCallResult struct {
	Content           []ContentItem          `json:"content"`
	StructuredContent map[string]interface{} `json:"structuredContent,omitempty"`
	IsError           bool                   `json:"isError"`
}

func (s *Server) toolsCall(ctx context.Context, t *mcptransport.Transport, params map[string]interface{}) (interface{}, *jsonrpc.Error) {
	if s.tools == nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "no tool registry configured"}
	}
	name, _ := params["name"].(string)
	if name == "" {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "missing tool name"}
	}
	args, _ := params["arguments"].(map[string]interface{})

	ctx = s.injectProgressToken(ctx, t, params)
	result, err := s.tools.CallTool(ctx, name, args)
	if err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
	}
	return toolResultToWire(result), nil
}

func toolResultToWire(result ToolResult) toolsCallResult {
	content := make([]ContentItem, 0, 1+len(result.Images)+len(result.Audio)+len(result.ResourceLinks)+len(result.EmbeddedResources))
	content = append(content, ContentItem{Type: "text", Text: result.Text})
	content = append(content, result.Images...)
	content = append(content, result.Audio...)
	content = append(content, result.ResourceLinks...)
	content = append(content, result.EmbeddedResources...)
	return toolsCallResult{
		Content:           content,
		StructuredContent: result.StructuredContent,
		IsError:           !result.Success,
	}
}

type promptsListResult struct {
	Prompts    []PromptDescriptor `json:"prompts"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

func (s *Server) promptsList(ctx context.Context, cursor string) (interface{}, *jsonrpc.Error) {
	if s.prompts == nil {
		return promptsListResult{}, nil
	}
	all, err := s.prompts.ListPrompts(ctx)
	if err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
	}
	page, next := paginate(all, cursor)
	return promptsListResult{Prompts: page, NextCursor: next}, nil
}

type promptsGetResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

func (s *Server) promptsGet(ctx context.Context, t *mcptransport.Transport, params map[string]interface{}) (interface{}, *jsonrpc.Error) {
	if s.prompts == nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "no prompt registry configured"}
	}
	name, _ := params["name"].(string)
	if name == "" {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "missing prompt name"}
	}
	args := map[string]string{}
	if raw, ok := params["arguments"].(map[string]interface{}); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				args[k] = s
			}
		}
	}

	ctx = s.injectProgressToken(ctx, t, params)
	result, err := s.prompts.GetPrompt(ctx, name, args)
	if err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
	}
	return promptsGetResult{Description: result.Description, Messages: result.Messages}, nil
}

type resourcesListResult struct {
	Resources  []ResourceDescriptor `json:"resources"`
	NextCursor string               `json:"nextCursor,omitempty"`
}

func (s *Server) resourcesList(ctx context.Context, cursor string) (interface{}, *jsonrpc.Error) {
	if s.resources == nil {
		return resourcesListResult{}, nil
	}
	all, err := s.resources.ListResources(ctx)
	if err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
	}
	page, next := paginate(all, cursor)
	return resourcesListResult{Resources: page, NextCursor: next}, nil
}

type resourceTemplatesListResult struct {
	ResourceTemplates []ResourceTemplateDescriptor `json:"resourceTemplates"`
	NextCursor        string                       `json:"nextCursor,omitempty"`
}

func (s *Server) resourceTemplatesList(ctx context.Context, cursor string) (interface{}, *jsonrpc.Error) {
	if s.resources == nil {
		return resourceTemplatesListResult{}, nil
	}
	all, err := s.resources.ListResourceTemplates(ctx)
	if err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
	}
	page, next := paginate(all, cursor)
	return resourceTemplatesListResult{ResourceTemplates: page, NextCursor: next}, nil
}

type resourcesReadResult struct {
	Contents []ResourceContent `json:"contents"`
}

func (s *Server) resourcesRead(ctx context.Context, params map[string]interface{}) (interface{}, *jsonrpc.Error) {
	if s.resources == nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "no resource registry configured"}
	}
	uri, _ := params["uri"].(string)
	if uri == "" {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "missing resource uri"}
	}
	content, err := s.resources.ReadResource(ctx, uri)
	if err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
	}
	return resourcesReadResult{Contents: []ResourceContent{content}}, nil
}

// injectProgressToken reads params._meta.progressToken, generating a short
// random one if absent, and returns a context carrying it for the
// in-flight call.
func (s *Server) injectProgressToken(ctx context.Context, t *mcptransport.Transport, params map[string]interface{}) context.Context {
	token := extractProgressToken(params)
	if token == "" {
		token = uuid.NewString()[:8]
	}
	return context.WithValue(ctx, progressTokenKey{}, token)
}

// extractProgressToken delegates to mcp.Message.ProgressToken, reusing the
// same params._meta.progressToken extraction the wire codec already knows
// how to do, rather than re-deriving it here.
func extractProgressToken(params map[string]interface{}) string {
	msg := &mcp.Message{ParsedParams: params}
	return msg.ProgressToken()
}

// progressNotification is the wire shape of notifications/progress.
type progressNotification struct {
	ProgressToken string  `json:"progressToken"`
	Progress      float64 `json:"progress"`
	Total         float64 `json:"total,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// PublishProgress sends a notifications/progress message to every live
// subscriber of t, and — when a Journal was configured — persists it to
// the transport's stream so a reconnecting client can recover it via
// Last-Event-ID replay.
func (s *Server) PublishProgress(ctx context.Context, t *mcptransport.Transport, progress, total float64, message string) error {
	token := ProgressTokenFromContext(ctx)
	if token == "" || t == nil {
		return nil
	}
	note := struct {
		JSONRPC string               `json:"jsonrpc"`
		Method  string               `json:"method"`
		Params  progressNotification `json:"params"`
	}{
		JSONRPC: "2.0",
		Method:  "notifications/progress",
		Params: progressNotification{
			ProgressToken: token,
			Progress:      progress,
			Total:         total,
			Message:       message,
		},
	}
	blob, err := json.Marshal(note)
	if err != nil {
		return err
	}

	if s.journal != nil {
		ev, err := s.journal.StoreEvent(ctx, t.StreamID, blob)
		if err != nil {
			return err
		}
		t.Publish(eventjournal.StoredEvent{EventID: ev, StreamID: t.StreamID, Message: blob})
		return nil
	}

	t.Publish(eventjournal.StoredEvent{StreamID: t.StreamID, Message: blob})
	return nil
}
