package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcpgateway/mcpgateway/internal/adapter/outbound/memory"
	"github.com/mcpgateway/mcpgateway/internal/adapter/outbound/memorykv"
	"github.com/mcpgateway/mcpgateway/internal/config"
	"github.com/mcpgateway/mcpgateway/internal/domain/eventjournal"
	"github.com/mcpgateway/mcpgateway/internal/domain/jwtauth"
	"github.com/mcpgateway/mcpgateway/internal/domain/mcpcore"
	"github.com/mcpgateway/mcpgateway/internal/domain/mcptransport"
	"github.com/mcpgateway/mcpgateway/internal/domain/oauth"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memorykv.New()
	t.Cleanup(func() { _ = store.Close() })

	journal := eventjournal.New(store, time.Hour)
	core := mcpcore.New(
		mcpcore.NewBuiltinToolRegistry(),
		mcpcore.NewBuiltinPromptRegistry(),
		mcpcore.NewBuiltinResourceRegistry(),
		journal,
	)
	registry := mcptransport.New(store, journal, time.Hour)

	jwtMgr := jwtauth.NewManager("test-secret-at-least-16-bytes")
	oauthSvc := oauth.NewService(store, jwtMgr, fakeUpstream{}, nil, oauth.Config{
		Issuer:          "https://gw.example",
		BaseURL:         "https://gw.example",
		UpstreamDomain:  "https://upstream.example",
		SessionTTL:      time.Hour,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		AuthEnabled:     false,
	})

	cfg := config.Default()
	cfg.Server.Auth.Enabled = false

	limiter := memory.NewRateLimiter()
	t.Cleanup(limiter.Stop)

	return New(cfg, registry, core, journal, oauthSvc, limiter)
}

func TestServer_PingRoute(t *testing.T) {
	s := newTestServer(t)
	handler := s.buildMux()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Errorf("GET /ping = %d %q, want 200 pong", rec.Code, rec.Body.String())
	}
}

func TestServer_HealthRoute(t *testing.T) {
	s := newTestServer(t)
	handler := s.buildMux()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rec.Code)
	}
}

func TestServer_MetadataRoutes(t *testing.T) {
	s := newTestServer(t)
	handler := s.buildMux()

	for _, path := range []string{
		"/.well-known/oauth-authorization-server",
		"/.well-known/oauth-protected-resource",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestServer_MCPRouteWithoutSessionRejectsNonInitialize(t *testing.T) {
	s := newTestServer(t)
	handler := s.buildMux()

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST /mcp with no body = %d, want 400", rec.Code)
	}
}

func TestServer_OAuthAuthorizeAliasesBothPaths(t *testing.T) {
	s := newTestServer(t)
	handler := s.buildMux()

	for _, path := range []string{"/authorize", "/oauth/authorize"} {
		req := httptest.NewRequest(http.MethodGet, path+"?client_id=unknown", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		// Both should reach the same handler and fail identically (missing
		// redirect_uri) rather than 404.
		if rec.Code == http.StatusNotFound {
			t.Errorf("GET %s = 404, want the alias to be routed", path)
		}
	}
}

func TestServer_MetricsRouteGatedByConfig(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Observability.MetricsEnabled = false
	handler := s.buildMux()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics with MetricsEnabled=false = %d, want 404", rec.Code)
	}
}
