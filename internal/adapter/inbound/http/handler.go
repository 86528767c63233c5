package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/mcpgateway/mcpgateway/internal/domain/eventjournal"
	"github.com/mcpgateway/mcpgateway/internal/domain/mcpcore"
	"github.com/mcpgateway/mcpgateway/internal/domain/mcptransport"
)

// MCPProtocolVersion is the MCP protocol revision this handler negotiates.
const MCPProtocolVersion = protocolVersion

// MCPSessionIDHeader carries the session id assigned at initialize time.
const MCPSessionIDHeader = "Mcp-Session-Id"

// MCPProtocolVersionHeader carries the negotiated protocol revision.
const MCPProtocolVersionHeader = "Mcp-Protocol-Version"

// mcpHandlers implements the three Streamable HTTP verbs (§4.5) against the
// Transport Registry, MCP Core Server, and Event Journal.
type mcpHandlers struct {
	registry *mcptransport.Registry
	core     *mcpcore.Server
	journal  *eventjournal.Journal
}

func newMCPHandlers(registry *mcptransport.Registry, core *mcpcore.Server, journal *eventjournal.Journal) *mcpHandlers {
	return &mcpHandlers{registry: registry, core: core, journal: journal}
}

func (h *mcpHandlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handlePost implements the five-step logic of §4.5: reuse or replay an
// existing session's transport, mint a new one for initialize, or reject.
func (h *mcpHandlers) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusBadRequest, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !json.Valid(body) {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var rpc struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	_ = json.Unmarshal(body, &rpc)

	ctx := r.Context()
	sessionID := r.Header.Get(MCPSessionIDHeader)

	var transport *mcptransport.Transport
	switch {
	case sessionID != "":
		hasSession, err := h.registry.HasSession(ctx, sessionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "session lookup failed")
			return
		}
		if !hasSession {
			writeJSONError(w, http.StatusBadRequest, "invalid request")
			return
		}
		if t, ok := h.registry.GetTransport(sessionID); ok {
			transport = t
		} else {
			t, err := h.registry.ReplayInitialRequest(ctx, sessionID, h.core.Connect)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "session replay failed")
				return
			}
			transport = t
		}
	case rpc.Method == "initialize":
		sessionID = uuid.NewString()
		if err := h.registry.SaveSession(ctx, sessionID, json.RawMessage(body)); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to save session")
			return
		}
		transport = h.registry.CreateTransport(sessionID, h.core.Connect)
	default:
		writeJSONError(w, http.StatusBadRequest, "missing Mcp-Session-Id header")
		return
	}

	resp, err := transport.Handle(ctx, body)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set(MCPProtocolVersionHeader, MCPProtocolVersion)
	w.Header().Set(MCPSessionIDHeader, sessionID)

	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// handleGet opens a resumable SSE stream for sessionID, replaying any
// events after Last-Event-ID before switching to live delivery.
func (h *mcpHandlers) handleGet(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := r.Header.Get(MCPSessionIDHeader)
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing Mcp-Session-Id header")
		return
	}

	transport, ok := h.registry.GetTransport(sessionID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(MCPProtocolVersionHeader, MCPProtocolVersion)
	w.Header().Set(MCPSessionIDHeader, sessionID)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()

	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		_, err := h.journal.ReplayAfter(ctx, lastEventID, func(_ context.Context, ev eventjournal.StoredEvent) error {
			writeSSEEvent(w, ev)
			flusher.Flush()
			return nil
		})
		if err != nil {
			loggerFromContext(ctx).WarnContext(ctx, "sse replay failed", "error", err, "session_id", sessionID)
		}
	}

	events, unsubscribe := transport.Subscribe()
	defer unsubscribe()

	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSEEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev eventjournal.StoredEvent) {
	_, _ = fmt.Fprintf(w, "id: %s\ndata: %s\n\n", ev.EventID, ev.Message)
}

// handleDelete terminates a session. Per §4.5 and §7, a missing local
// transport is an idempotent success, not an error.
func (h *mcpHandlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(MCPSessionIDHeader)
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing Mcp-Session-Id header")
		return
	}

	if !h.registry.HasTransport(sessionID) {
		writeJSON(w, http.StatusOK, map[string]string{"error": "Session not found"})
		return
	}

	if err := h.registry.DeleteTransport(r.Context(), sessionID); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to terminate session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
