// Package mcpclient is a minimal MCP Streamable HTTP + SSE client used by
// integration tests to drive the real HTTP pipeline end-to-end, rather than
// calling handler methods directly. It is not a public SDK: it implements
// only the request/response shapes the gateway's own handlers produce.
package mcpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client, e.g. to attach a
// custom Transport for an httptest.Server.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken sets the Authorization header sent with every request.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.bearerToken = token }
}

// Client drives a single MCP session against a running gateway over
// Streamable HTTP, tracking the session id assigned by the initialize
// response.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
	sessionID   string
}

// New creates a Client targeting baseURL (e.g. an httptest.Server's URL).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the Mcp-Session-Id assigned by the last Initialize call,
// or "" if none has been made yet.
func (c *Client) SessionID() string { return c.sessionID }

// rpcRequest is the JSON-RPC envelope this client sends.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Initialize sends the initialize method with no session header, capturing
// the Mcp-Session-Id the gateway assigns for subsequent calls.
func (c *Client) Initialize(ctx context.Context) (json.RawMessage, error) {
	resp, header, err := c.post(ctx, "", rpcRequest{JSONRPC: "2.0", ID: 1, Method: "initialize", Params: map[string]interface{}{}})
	if err != nil {
		return nil, err
	}
	c.sessionID = header.Get("Mcp-Session-Id")
	if c.sessionID == "" {
		return nil, fmt.Errorf("mcpclient: initialize response carried no Mcp-Session-Id header")
	}
	return resp, nil
}

// Call sends method/params against the session established by Initialize.
func (c *Client) Call(ctx context.Context, id int, method string, params interface{}) (json.RawMessage, error) {
	if c.sessionID == "" {
		return nil, fmt.Errorf("mcpclient: Call before Initialize")
	}
	resp, _, err := c.post(ctx, c.sessionID, rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	return resp, err
}

// Terminate sends DELETE /mcp for the current session.
func (c *Client) Terminate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/mcp", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, c.sessionID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (c *Client) post(ctx context.Context, sessionID string, body rpcRequest) (json.RawMessage, http.Header, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(raw))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req, sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, nil, fmt.Errorf("mcpclient: %s %s: %d: %s", http.MethodPost, "/mcp", resp.StatusCode, string(data))
	}
	if resp.StatusCode == http.StatusAccepted {
		return nil, resp.Header, nil
	}
	return json.RawMessage(data), resp.Header, nil
}

func (c *Client) setHeaders(req *http.Request, sessionID string) {
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
}

// Event is a single replayed or live SSE event read from GET /mcp.
type Event struct {
	ID   string
	Data string
}

// Stream opens GET /mcp for the current session and returns a channel of
// Events. lastEventID, if non-empty, is sent as Last-Event-ID to resume a
// dropped connection. The returned channel closes when ctx is cancelled or
// the server ends the stream.
func (c *Client) Stream(ctx context.Context, lastEventID string) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/mcp", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, c.sessionID)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("mcpclient: GET /mcp: %d: %s", resp.StatusCode, string(data))
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var cur Event
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "id: "):
				cur.ID = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "data: "):
				cur.Data = strings.TrimPrefix(line, "data: ")
			case line == "":
				if cur.ID != "" || cur.Data != "" {
					select {
					case events <- cur:
					case <-ctx.Done():
						return
					}
					cur = Event{}
				}
			}
		}
	}()
	return events, nil
}
