package mcpcore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mcpgateway/mcpgateway/internal/adapter/outbound/memorykv"
	"github.com/mcpgateway/mcpgateway/internal/domain/eventjournal"
	"github.com/mcpgateway/mcpgateway/internal/domain/mcptransport"
)

func newTestServer(t *testing.T) (*Server, *BuiltinToolRegistry, *BuiltinPromptRegistry, *BuiltinResourceRegistry, *mcptransport.Registry) {
	t.Helper()
	store := memorykv.New()
	journal := eventjournal.New(store, time.Hour)
	tools := NewBuiltinToolRegistry()
	prompts := NewBuiltinPromptRegistry()
	resources := NewBuiltinResourceRegistry()
	srv := New(tools, prompts, resources, journal)
	reg := mcptransport.New(store, journal, time.Hour)
	return srv, tools, prompts, resources, reg
}

func call(t *testing.T, transport *mcptransport.Transport, id int, method string, params interface{}) map[string]interface{} {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	respBytes, err := transport.Handle(context.Background(), body)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v (body: %s)", err, respBytes)
	}
	return resp
}

func mustResult(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	if errVal, ok := resp["error"]; ok {
		t.Fatalf("unexpected rpc error: %v", errVal)
	}
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected object result, got %#v", resp["result"])
	}
	return result
}

func TestToolsListReturnsRegisteredTools(t *testing.T) {
	srv, tools, _, _, reg := newTestServer(t)
	tools.Register(ToolDescriptor{Name: "echo"}, func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
		return ToolResult{Text: "ok", Success: true}, nil
	})
	transport := reg.CreateTransport("sess-1", srv.Connect)

	resp := call(t, transport, 1, "tools/list", nil)
	result := mustResult(t, resp)
	toolList, ok := result["tools"].([]interface{})
	if !ok || len(toolList) != 1 {
		t.Fatalf("expected one tool, got %#v", result["tools"])
	}
	if _, hasNext := result["nextCursor"]; hasNext {
		t.Errorf("expected no nextCursor for a single-page result")
	}
}

func TestToolsListPaginatesAtPageSize(t *testing.T) {
	srv, tools, _, _, reg := newTestServer(t)
	for i := 0; i < 120; i++ {
		name := fmt.Sprintf("tool-%03d", i)
		tools.Register(ToolDescriptor{Name: name}, func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
			return ToolResult{Success: true}, nil
		})
	}
	transport := reg.CreateTransport("sess-page", srv.Connect)

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		params := map[string]interface{}{}
		if cursor != "" {
			params["cursor"] = cursor
		}
		resp := call(t, transport, pages+1, "tools/list", params)
		result := mustResult(t, resp)
		items := result["tools"].([]interface{})
		if pages < 2 && len(items) != pageSize {
			t.Fatalf("expected full page of %d, got %d on page %d", pageSize, len(items), pages)
		}
		for _, raw := range items {
			item := raw.(map[string]interface{})
			seen[item["name"].(string)] = true
		}
		pages++
		next, ok := result["nextCursor"].(string)
		if !ok || next == "" {
			break
		}
		cursor = next
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
	}
	if len(seen) != 120 {
		t.Fatalf("expected 120 unique tools visited exactly once, got %d", len(seen))
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages for 120 items at page size %d, got %d", pageSize, pages)
	}
}

func TestDecodeCursorNonNumericOrNegativeIsZero(t *testing.T) {
	if got := decodeCursor("not-base64!!!"); got != 0 {
		t.Errorf("expected 0 for undecodable cursor, got %d", got)
	}
	if got := decodeCursor(encodeCursor(-5)); got != 0 {
		t.Errorf("expected 0 for negative cursor, got %d", got)
	}
	nonNumericButValidBase64 := base64.StdEncoding.EncodeToString([]byte("abc"))
	if got := decodeCursor(nonNumericButValidBase64); got != 0 {
		t.Errorf("expected 0 for non-numeric decoded cursor, got %d", got)
	}
	if got := decodeCursor(""); got != 0 {
		t.Errorf("expected 0 for empty cursor, got %d", got)
	}
}

func TestToolsCallSuccessProducesTextContentNotError(t *testing.T) {
	srv, tools, _, _, reg := newTestServer(t)
	tools.Register(ToolDescriptor{Name: "greet"}, func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
		name, _ := args["name"].(string)
		return ToolResult{Text: "hello " + name, Success: true}, nil
	})
	transport := reg.CreateTransport("sess-2", srv.Connect)

	resp := call(t, transport, 1, "tools/call", map[string]interface{}{
		"name":      "greet",
		"arguments": map[string]interface{}{"name": "ada"},
	})
	result := mustResult(t, resp)
	if isErr, _ := result["isError"].(bool); isErr {
		t.Errorf("expected isError=false on success")
	}
	content := result["content"].([]interface{})
	if len(content) != 1 {
		t.Fatalf("expected exactly one content item (text), got %d", len(content))
	}
	item := content[0].(map[string]interface{})
	if item["type"] != "text" || item["text"] != "hello ada" {
		t.Errorf("unexpected text content: %#v", item)
	}
}

func TestToolsCallFailureSetsIsError(t *testing.T) {
	srv, tools, _, _, reg := newTestServer(t)
	tools.Register(ToolDescriptor{Name: "fail"}, func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
		return ToolResult{Text: "boom", Success: false}, nil
	})
	transport := reg.CreateTransport("sess-3", srv.Connect)

	resp := call(t, transport, 1, "tools/call", map[string]interface{}{"name": "fail"})
	result := mustResult(t, resp)
	if isErr, _ := result["isError"].(bool); !isErr {
		t.Errorf("expected isError=true when Success=false")
	}
}

func TestToolsCallAppendsOptionalContentArrays(t *testing.T) {
	srv, tools, _, _, reg := newTestServer(t)
	tools.Register(ToolDescriptor{Name: "withImage"}, func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
		return ToolResult{
			Text:    "see image",
			Success: true,
			Images:  []ContentItem{{Type: "image", Data: "Zm9v", MimeType: "image/png"}},
		}, nil
	})
	transport := reg.CreateTransport("sess-4", srv.Connect)

	resp := call(t, transport, 1, "tools/call", map[string]interface{}{"name": "withImage"})
	result := mustResult(t, resp)
	content := result["content"].([]interface{})
	if len(content) != 2 {
		t.Fatalf("expected text + image content items, got %d", len(content))
	}
	if content[1].(map[string]interface{})["type"] != "image" {
		t.Errorf("expected second content item to be the image")
	}
}

func TestToolsCallUnknownToolReturnsRPCError(t *testing.T) {
	srv, _, _, _, reg := newTestServer(t)
	transport := reg.CreateTransport("sess-5", srv.Connect)

	resp := call(t, transport, 1, "tools/call", map[string]interface{}{"name": "nope"})
	if _, ok := resp["error"]; !ok {
		t.Fatalf("expected an rpc error for unknown tool, got %#v", resp)
	}
}

func TestPromptsListAndGet(t *testing.T) {
	srv, _, prompts, _, reg := newTestServer(t)
	prompts.Register(PromptDescriptor{Name: "summarize", Arguments: []PromptArgument{{Name: "topic", Required: true}}},
		func(ctx context.Context, args map[string]string) (PromptResult, error) {
			return PromptResult{
				Description: "summary prompt",
				Messages: []PromptMessage{
					{Role: "user", Content: ContentItem{Type: "text", Text: "summarize " + args["topic"]}},
				},
			}, nil
		})
	transport := reg.CreateTransport("sess-6", srv.Connect)

	listResp := call(t, transport, 1, "prompts/list", nil)
	listResult := mustResult(t, listResp)
	promptList := listResult["prompts"].([]interface{})
	if len(promptList) != 1 {
		t.Fatalf("expected one prompt, got %d", len(promptList))
	}

	getResp := call(t, transport, 2, "prompts/get", map[string]interface{}{
		"name":      "summarize",
		"arguments": map[string]interface{}{"topic": "go"},
	})
	getResult := mustResult(t, getResp)
	messages := getResult["messages"].([]interface{})
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	msg := messages[0].(map[string]interface{})
	content := msg["content"].(map[string]interface{})
	if content["text"] != "summarize go" {
		t.Errorf("unexpected rendered prompt text: %#v", content["text"])
	}
}

func TestResourcesListTemplatesAndRead(t *testing.T) {
	srv, _, _, resources, reg := newTestServer(t)
	resources.RegisterResource(
		ResourceDescriptor{URI: "file:///readme.md", Name: "readme", MimeType: "text/markdown"},
		ResourceContent{URI: "file:///readme.md", MimeType: "text/markdown", Text: "# hello"},
	)
	resources.RegisterTemplate(ResourceTemplateDescriptor{URITemplate: "file:///{path}", Name: "any file"})
	transport := reg.CreateTransport("sess-7", srv.Connect)

	listResp := call(t, transport, 1, "resources/list", nil)
	listResult := mustResult(t, listResp)
	resourceList := listResult["resources"].([]interface{})
	if len(resourceList) != 1 {
		t.Fatalf("expected one resource, got %d", len(resourceList))
	}

	templatesResp := call(t, transport, 2, "resources/templates/list", nil)
	templatesResult := mustResult(t, templatesResp)
	templates := templatesResult["resourceTemplates"].([]interface{})
	if len(templates) != 1 {
		t.Fatalf("expected one resource template, got %d", len(templates))
	}

	readResp := call(t, transport, 3, "resources/read", map[string]interface{}{"uri": "file:///readme.md"})
	readResult := mustResult(t, readResp)
	contents := readResult["contents"].([]interface{})
	if len(contents) != 1 {
		t.Fatalf("expected one resource content, got %d", len(contents))
	}
	if contents[0].(map[string]interface{})["text"] != "# hello" {
		t.Errorf("unexpected resource text: %#v", contents[0])
	}
}

func TestResourcesReadUnknownURIReturnsRPCError(t *testing.T) {
	srv, _, _, _, reg := newTestServer(t)
	transport := reg.CreateTransport("sess-8", srv.Connect)

	resp := call(t, transport, 1, "resources/read", map[string]interface{}{"uri": "file:///missing"})
	if _, ok := resp["error"]; !ok {
		t.Fatalf("expected an rpc error for unknown resource, got %#v", resp)
	}
}

func TestInitializeAdvertisesCapabilities(t *testing.T) {
	srv, _, _, _, reg := newTestServer(t)
	transport := reg.CreateTransport("sess-9", srv.Connect)

	resp := call(t, transport, 1, "initialize", map[string]interface{}{})
	result := mustResult(t, resp)
	caps := result["capabilities"].(map[string]interface{})
	if _, ok := caps["tools"]; !ok {
		t.Errorf("expected tools capability advertised")
	}
	prompts := caps["prompts"].(map[string]interface{})
	if listChanged, _ := prompts["listChanged"].(bool); !listChanged {
		t.Errorf("expected prompts.listChanged=true")
	}
	logging := caps["logging"].(map[string]interface{})
	if logging["level"] != "debug" {
		t.Errorf("expected logging.level=debug, got %v", logging["level"])
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	srv, _, _, _, reg := newTestServer(t)
	transport := reg.CreateTransport("sess-10", srv.Connect)

	resp := call(t, transport, 1, "nonexistent/method", nil)
	if _, ok := resp["error"]; !ok {
		t.Fatalf("expected an rpc error for unknown method")
	}
}

func TestNotificationProducesNoResponse(t *testing.T) {
	srv, _, _, _, reg := newTestServer(t)
	transport := reg.CreateTransport("sess-11", srv.Connect)

	body := []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	respBytes, err := transport.Handle(context.Background(), body)
	if err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	if respBytes != nil {
		t.Errorf("expected no response bytes for a notification, got %s", respBytes)
	}
}

func TestProgressTokenInjectedWhenAbsentAndUsableByTool(t *testing.T) {
	srv, tools, _, _, reg := newTestServer(t)
	var observedToken string
	tools.Register(ToolDescriptor{Name: "tracked"}, func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
		observedToken = ProgressTokenFromContext(ctx)
		return ToolResult{Success: true}, nil
	})
	transport := reg.CreateTransport("sess-12", srv.Connect)

	call(t, transport, 1, "tools/call", map[string]interface{}{"name": "tracked"})
	if observedToken == "" {
		t.Fatal("expected a generated progress token to be injected into context")
	}
}

func TestProgressTokenFromRequestMetaIsPreserved(t *testing.T) {
	srv, tools, _, _, reg := newTestServer(t)
	var observedToken string
	tools.Register(ToolDescriptor{Name: "tracked"}, func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
		observedToken = ProgressTokenFromContext(ctx)
		return ToolResult{Success: true}, nil
	})
	transport := reg.CreateTransport("sess-13", srv.Connect)

	call(t, transport, 1, "tools/call", map[string]interface{}{
		"name": "tracked",
		"_meta": map[string]interface{}{"progressToken": "client-token"},
	})
	if observedToken != "client-token" {
		t.Fatalf("expected caller-provided progress token to be preserved, got %q", observedToken)
	}
}

func TestPublishProgressFansOutToSubscriber(t *testing.T) {
	srv, tools, _, _, reg := newTestServer(t)
	transport := reg.CreateTransport("sess-14", srv.Connect)

	tools.Register(ToolDescriptor{Name: "progressing"}, func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
		if err := srv.PublishProgress(ctx, transport, 0.5, 1, "halfway"); err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Success: true}, nil
	})

	sub, unsubscribe := transport.Subscribe()
	defer unsubscribe()

	call(t, transport, 1, "tools/call", map[string]interface{}{
		"name":  "progressing",
		"_meta": map[string]interface{}{"progressToken": "tok-1"},
	})

	select {
	case ev := <-sub:
		var note map[string]interface{}
		if err := json.Unmarshal(ev.Message, &note); err != nil {
			t.Fatalf("unmarshal progress notification: %v", err)
		}
		if note["method"] != "notifications/progress" {
			t.Errorf("expected a progress notification, got %#v", note)
		}
		params := note["params"].(map[string]interface{})
		if params["progressToken"] != "tok-1" {
			t.Errorf("expected progressToken tok-1, got %v", params["progressToken"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress notification")
	}
}
