package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractRealIP_PrefersHighestPriorityHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("x-forwarded-for", "203.0.113.5")
	req.Header.Set("cf-connecting-ip", "198.51.100.9")
	req.RemoteAddr = "10.0.0.1:1234"

	if got := extractRealIP(req); got != "198.51.100.9" {
		t.Errorf("extractRealIP() = %q, want cf-connecting-ip value", got)
	}
}

func TestExtractRealIP_SplitsCommaSeparatedList(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("x-forwarded-for", "203.0.113.5, 70.41.3.18, 150.172.238.178")

	if got := extractRealIP(req); got != "203.0.113.5" {
		t.Errorf("extractRealIP() = %q, want first candidate", got)
	}
}

func TestExtractRealIP_FallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.RemoteAddr = "203.0.113.99:5000"

	if got := extractRealIP(req); got != "203.0.113.99" {
		t.Errorf("extractRealIP() = %q, want RemoteAddr host", got)
	}
}

func TestExtractRealIP_UnknownWhenNothingValid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("x-forwarded-for", "not-an-ip")
	req.RemoteAddr = ""

	if got := extractRealIP(req); got != "unknown" {
		t.Errorf("extractRealIP() = %q, want \"unknown\"", got)
	}
}

func TestMCPPipelineMiddleware_DefaultsMissingProtocolVersion(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(MCPProtocolVersionHeader)
		w.WriteHeader(http.StatusOK)
	})
	mw := mcpPipelineMiddleware(nil)(next)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if seen != protocolVersion {
		t.Errorf("protocol version = %q, want default %q", seen, protocolVersion)
	}
}

func TestMCPPipelineMiddleware_RejectsUnsupportedProtocolVersion(t *testing.T) {
	mw := mcpPipelineMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached for unsupported version")
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set(MCPProtocolVersionHeader, "1999-01-01")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMCPPipelineMiddleware_RejectsDisallowedOrigin(t *testing.T) {
	mw := mcpPipelineMiddleware([]string{"https://allowed.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached for a disallowed origin")
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestMCPPipelineMiddleware_EchoesAllowedOrigin(t *testing.T) {
	mw := mcpPipelineMiddleware([]string{"https://allowed.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Origin", "https://allowed.example")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://allowed.example" {
		t.Errorf("Access-Control-Allow-Origin = %q, want echoed origin", got)
	}
	if got := rec.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
}

func TestMCPPipelineMiddleware_OptionsShortCircuits(t *testing.T) {
	mw := mcpPipelineMiddleware([]string{"https://allowed.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("OPTIONS should short-circuit before reaching the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://allowed.example")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMCPPipelineMiddleware_IgnoresNonMCPPaths(t *testing.T) {
	called := false
	mw := mcpPipelineMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(MCPProtocolVersionHeader, "nonsense")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Errorf("expected /health to pass through untouched, called=%v code=%d", called, rec.Code)
	}
}

func TestRequestScopeMiddleware_GeneratesAndEchoesRequestID(t *testing.T) {
	mw := requestScopeMiddleware(slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs := RequestScopeFromContext(r.Context())
		if rs.RequestID == "" {
			t.Error("expected a non-empty request id on the context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header to be set")
	}
}

func TestRequestScopeMiddleware_PreservesIncomingRequestID(t *testing.T) {
	mw := requestScopeMiddleware(slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want preserved incoming value", got)
	}
}

func TestBodyLimitMiddleware_PassesThroughNonMatchingContentType(t *testing.T) {
	var bodyBefore, bodyAfter interface{}
	mw := bodyLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bodyAfter = r.Body
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	bodyBefore = req.Body
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if bodyAfter != bodyBefore {
		t.Error("expected r.Body to be left untouched for a non-JSON/form content type")
	}
}
