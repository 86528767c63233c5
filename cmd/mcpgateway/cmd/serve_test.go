package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/mcpgateway/mcpgateway/internal/config"
)

func TestServeCmd_Registered(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "serve" {
			found = true
			break
		}
	}
	if !found {
		t.Error("serve command not registered with rootCmd")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLogLevel(input); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestToOAuthConfig_CopiesAllFields(t *testing.T) {
	cfg := config.Default()
	cfg.OAuth.Issuer = "https://gateway.example.com"
	cfg.OAuth.UpstreamDomain = "https://tenant.example-idp.com"
	cfg.OAuth.ScopePolicy = `client_id == "abc"`
	cfg.Server.Auth.SessionTTL = 5 * time.Minute

	oc := toOAuthConfig(cfg)
	if oc.Issuer != cfg.OAuth.Issuer {
		t.Errorf("Issuer = %q, want %q", oc.Issuer, cfg.OAuth.Issuer)
	}
	if oc.UpstreamDomain != cfg.OAuth.UpstreamDomain {
		t.Errorf("UpstreamDomain = %q, want %q", oc.UpstreamDomain, cfg.OAuth.UpstreamDomain)
	}
	if oc.SessionTTL != cfg.Server.Auth.SessionTTL {
		t.Errorf("SessionTTL = %v, want %v", oc.SessionTTL, cfg.Server.Auth.SessionTTL)
	}
	if oc.ScopePolicy != cfg.OAuth.ScopePolicy {
		t.Errorf("ScopePolicy = %q, want %q", oc.ScopePolicy, cfg.OAuth.ScopePolicy)
	}
}

func TestNewKVStore_DefaultsToMemory(t *testing.T) {
	cfg := config.Default()
	store, err := newKVStore(cfg, slog.Default())
	if err != nil {
		t.Fatalf("newKVStore() error: %v", err)
	}
	defer store.Close()
	if store == nil {
		t.Fatal("expected non-nil store")
	}
}
