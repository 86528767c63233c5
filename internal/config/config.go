// Package config provides the layered configuration schema for mcpgateway.
//
// Configuration is assembled in three layers, lowest priority first:
// built-in defaults, an optional YAML file, and environment variables
// prefixed MCP_CONFIG_ (see loader.go for the exact binding scheme). The
// root Config struct is validated with struct tags before the server
// starts.
package config

import "time"

// Config is the root configuration tree.
type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	OAuth         OAuthConfig         `yaml:"oauth" mapstructure:"oauth"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit" mapstructure:"rateLimit"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// ServerConfig configures the HTTP listener and the MCP pipeline's
// request-level policy.
type ServerConfig struct {
	// HTTPPort is the TCP port the Streamable HTTP server listens on.
	HTTPPort int `yaml:"httpPort" mapstructure:"httpPort" validate:"min=1,max=65535"`
	// BaseURL is this gateway's own externally reachable base URL, used to
	// build OAuth endpoint URLs and the upstream callback redirect.
	BaseURL string `yaml:"baseUrl" mapstructure:"baseUrl" validate:"required,url"`
	// Environment selects the /health response's redaction policy;
	// "production" omits Version/Environment from the body.
	Environment string `yaml:"environment" mapstructure:"environment" validate:"required,oneof=development staging production"`
	// LogLevel sets the minimum slog level. One of debug/info/warn/error.
	LogLevel string `yaml:"logLevel" mapstructure:"logLevel" validate:"required,oneof=debug info warn error"`

	Auth ServerAuthConfig `yaml:"auth" mapstructure:"auth"`
	CORS CORSConfig       `yaml:"cors" mapstructure:"cors"`
}

// ServerAuthConfig gates the OAuth Proxy's requireAuth middleware and bounds
// session-adjacent KV TTLs.
type ServerAuthConfig struct {
	// Enabled, when false, makes requireAuth a pass-through for local
	// development against a client that doesn't speak OAuth.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// SessionTTL bounds AuthorizationSession/UpstreamSession/MCPSession
	// lifetime in the KV Store.
	SessionTTL time.Duration `yaml:"sessionTTL" mapstructure:"sessionTTL" validate:"required"`
}

// CORSConfig configures the Origin-pinning middleware.
type CORSConfig struct {
	// AllowedOrigins is the CORS allowlist for /mcp*. "*" allows any
	// origin; an empty list rejects every cross-origin request.
	AllowedOrigins []string `yaml:"allowedOrigins" mapstructure:"allowedOrigins"`
}

// StorageConfig selects and configures the KV Store backend and the
// TTL-bound entities layered on it.
type StorageConfig struct {
	// Type selects the KV Store backend: "memory" or "redis"/"valkey".
	Type string `yaml:"type" mapstructure:"type" validate:"required,oneof=memory redis valkey"`
	// ValkeyURL is the Redis-compatible connection URL, required when
	// Type is "redis" or "valkey".
	ValkeyURL string `yaml:"valkeyUrl" mapstructure:"valkeyUrl"`
	// EventTTL bounds how long an individual SSE event (and its stream
	// index entry) remains resolvable for Last-Event-ID replay.
	EventTTL time.Duration `yaml:"eventTTL" mapstructure:"eventTTL" validate:"required"`

	AuditLog AuditLogConfig `yaml:"auditLog" mapstructure:"auditLog"`
}

// AuditLogConfig configures the optional durable SQLite audit sink for
// OAuth Proxy lifecycle events. Disabled by default; independent of the KV
// Store's TTL-bound session/token state.
type AuditLogConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path" validate:"required_if=Enabled true"`
}

// OAuthConfig configures the OAuth 2.1 proxy and its upstream OIDC
// delegate.
type OAuthConfig struct {
	// Issuer is both the metadata "issuer" value and the default expected
	// access-token audience.
	Issuer string `yaml:"issuer" mapstructure:"issuer" validate:"required,url"`

	UpstreamDomain       string `yaml:"upstreamDomain" mapstructure:"upstreamDomain" validate:"required,url"`
	UpstreamClientID     string `yaml:"upstreamClientId" mapstructure:"upstreamClientId" validate:"required"`
	UpstreamClientSecret string `yaml:"upstreamClientSecret" mapstructure:"upstreamClientSecret" validate:"required"`
	// UpstreamAudience is sent as the upstream `audience` parameter and
	// used as the access token's `aud` when a request carries no RFC 8707
	// `resource` parameter.
	UpstreamAudience string `yaml:"upstreamAudience" mapstructure:"upstreamAudience"`

	// JWTSecret is the HMAC key the JWT Signer/Verifier signs and
	// verifies access/refresh tokens with (HS256 only).
	JWTSecret string `yaml:"jwtSecret" mapstructure:"jwtSecret" validate:"required,min=16"`

	AccessTokenTTL  time.Duration `yaml:"accessTokenTTL" mapstructure:"accessTokenTTL" validate:"required"`
	RefreshTokenTTL time.Duration `yaml:"refreshTokenTTL" mapstructure:"refreshTokenTTL" validate:"required"`
	// RotateRefreshTokens, when true, issues a new refresh token on every
	// refresh_token grant instead of reusing the original. Off by default.
	RotateRefreshTokens bool `yaml:"rotateRefreshTokens" mapstructure:"rotateRefreshTokens"`
	// ExpectedAudience overrides Issuer as the audience requireAuth
	// expects on inbound access tokens, if set.
	ExpectedAudience string `yaml:"expectedAudience" mapstructure:"expectedAudience"`
	// ScopePolicy, if non-empty, is a CEL expression evaluated against the
	// requested scope and client before DCR auto-approval. Defaults to
	// always-allow when empty.
	ScopePolicy string `yaml:"scopePolicy" mapstructure:"scopePolicy"`
}

// RateLimitConfig configures the global per-IP rate limit middleware.
type RateLimitConfig struct {
	// RequestsPerMinute bounds requests per client IP in a sliding
	// window; requests from a kube-probe User-Agent always bypass it.
	RequestsPerMinute int `yaml:"requestsPerMinute" mapstructure:"requestsPerMinute" validate:"required,min=1"`
}

// ObservabilityConfig toggles the metrics and tracing surfaces. Disabling
// either only stops *exporting*; the underlying instrumentation calls
// remain in the code paths that make them, matching the teacher's
// always-instrumented style.
type ObservabilityConfig struct {
	MetricsEnabled bool `yaml:"metricsEnabled" mapstructure:"metricsEnabled"`
	TracingEnabled bool `yaml:"tracingEnabled" mapstructure:"tracingEnabled"`
}

// Default returns the built-in default configuration. Loader layers a YAML
// file and environment variables on top of this before validation.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    8080,
			BaseURL:     "http://localhost:8080",
			Environment: "development",
			LogLevel:    "info",
			Auth: ServerAuthConfig{
				Enabled:    true,
				SessionTTL: 10 * time.Minute,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{},
			},
		},
		Storage: StorageConfig{
			Type:     "memory",
			EventTTL: time.Hour,
			AuditLog: AuditLogConfig{
				Enabled: false,
				Path:    "./mcpgateway-audit.db",
			},
		},
		OAuth: OAuthConfig{
			AccessTokenTTL:      15 * time.Minute,
			RefreshTokenTTL:     30 * 24 * time.Hour,
			RotateRefreshTokens: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 100,
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
			TracingEnabled: false,
		},
	}
}
