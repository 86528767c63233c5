package config

import (
	"strings"
	"testing"
	"time"
)

func minimalValidConfig() *Config {
	cfg := Default()
	cfg.OAuth.Issuer = "https://gateway.example.com"
	cfg.OAuth.UpstreamDomain = "https://tenant.example-idp.com"
	cfg.OAuth.UpstreamClientID = "client-id"
	cfg.OAuth.UpstreamClientSecret = "client-secret"
	cfg.OAuth.JWTSecret = "0123456789abcdef"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_MissingOAuthIssuer(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.OAuth.Issuer = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() with empty OAuth.Issuer should fail")
	}
	if !strings.Contains(err.Error(), "Issuer") {
		t.Errorf("Validate() error = %q, want mention of Issuer", err.Error())
	}
}

func TestValidate_InvalidHTTPPort(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.HTTPPort = 70000

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with HTTPPort=70000 should fail")
	}
}

func TestValidate_InvalidEnvironment(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.Environment = "staging-west"

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with an unrecognized Environment should fail")
	}
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.OAuth.JWTSecret = "short"

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with a JWTSecret under 16 chars should fail")
	}
}

func TestValidate_RedisStorageRequiresValkeyURL(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Storage.Type = "redis"
	cfg.Storage.ValkeyURL = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() with storage.type=redis and no valkeyUrl should fail")
	}
	if !strings.Contains(err.Error(), "valkeyUrl") {
		t.Errorf("Validate() error = %q, want mention of valkeyUrl", err.Error())
	}
}

func TestValidate_ValkeyStorageWithURL(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Storage.Type = "valkey"
	cfg.Storage.ValkeyURL = "valkey://localhost:6379/0"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_MemoryStorageDoesNotNeedValkeyURL(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Storage.Type = "memory"
	cfg.Storage.ValkeyURL = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_AuditLogEnabledRequiresPath(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Storage.AuditLog.Enabled = true
	cfg.Storage.AuditLog.Path = ""

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with auditLog.enabled=true and empty path should fail")
	}
}

func TestValidate_ZeroSessionTTL(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.Auth.SessionTTL = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with a zero SessionTTL should fail")
	}
}

func TestValidate_NonZeroDurationsAccepted(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.OAuth.AccessTokenTTL = 5 * time.Minute
	cfg.OAuth.RefreshTokenTTL = 24 * time.Hour

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}
