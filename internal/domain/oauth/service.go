package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/mcpgateway/mcpgateway/internal/domain/jwtauth"
	"github.com/mcpgateway/mcpgateway/internal/domain/kv"
)

// Config holds the OAuth Proxy's runtime configuration, populated from
// internal/config.
type Config struct {
	// Issuer is both the metadata "issuer" value and the default expected
	// access-token audience.
	Issuer string
	// BaseURL is this gateway's own externally reachable base URL, used to
	// build endpoint URLs in metadata documents and the upstream callback.
	BaseURL string

	// UpstreamDomain is the upstream OIDC provider's base URL (e.g.
	// "https://tenant.auth0.com").
	UpstreamDomain string
	// UpstreamClientID / UpstreamClientSecret authenticate this gateway to
	// the upstream provider.
	UpstreamClientID     string
	UpstreamClientSecret string
	// UpstreamAudience is sent as the upstream `audience` parameter and
	// used as the access token's `aud` when the request carries no RFC
	// 8707 `resource` parameter.
	UpstreamAudience string

	// SessionTTL bounds AuthorizationSession/UpstreamSession/MCPSession
	// lifetime.
	SessionTTL time.Duration
	// AccessTokenTTL / RefreshTokenTTL bound minted JWT lifetimes.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// AuthEnabled mirrors server.auth.enabled, which, when false, makes
	// requireAuth a pass-through — used for local development against an
	// MCP client that doesn't speak OAuth. The Service itself never reads it.
	AuthEnabled bool
	// RotateRefreshTokens, when true, issues a new refresh token on every
	// refresh_token grant instead of reusing the original.
	RotateRefreshTokens bool
	// ExpectedAudience overrides Issuer as the audience requireAuth
	// expects on inbound access tokens, if set.
	ExpectedAudience string

	// ScopePolicy, if non-empty, is a CEL expression evaluated against the
	// requested scope and client by Authorize, for every client and after
	// an unknown client has been auto-registered; see ScopePolicyEvaluator.
	ScopePolicy string
}

func (c Config) expectedAudience() string {
	if c.ExpectedAudience != "" {
		return c.ExpectedAudience
	}
	return c.Issuer
}

// ScopePolicyEvaluator decides whether a client may be granted a requested
// scope. CELScopePolicy in this package is the CEL-backed implementation
// used when oauth.scopePolicy is configured; allowAllPolicy is the default.
type ScopePolicyEvaluator interface {
	Allow(ctx context.Context, clientID, scope string) (bool, error)
}

// allowAllPolicy is used when no ScopePolicyEvaluator is configured.
type allowAllPolicy struct{}

func (allowAllPolicy) Allow(context.Context, string, string) (bool, error) { return true, nil }

// UpstreamProvider exchanges an authorization code for tokens at the
// upstream OIDC provider and resolves the authenticated user's subject.
// The default implementation (upstream.go) wraps golang.org/x/oauth2.
type UpstreamProvider interface {
	AuthorizeURL(state, codeChallenge, scope, audience, redirectURI string) string
	Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (UpstreamTokens, error)
	UserSubject(ctx context.Context, upstreamAccessToken string) (string, error)
}

// AuditSink records OAuth Proxy lifecycle events for offline inspection.
// This is a domain-side port; the default implementation
// (internal/adapter/outbound/auditsqlite) is optional, disabled by default,
// and independent of the KV Store's TTL-bound session and token state.
// Implementations must tolerate a nil receiver as a no-op, matching the
// package's "SetAuditSink never called" default.
type AuditSink interface {
	RecordEvent(ctx context.Context, eventType, clientID, userID, detail string, success bool) error
}

// Service implements the OAuth Proxy component.
type Service struct {
	store    kv.Store
	jwt      *jwtauth.Manager
	upstream UpstreamProvider
	policy   ScopePolicyEvaluator
	cfg      Config
	metrics  *Metrics
	audit    AuditSink
}

// NewService constructs a Service. policy may be nil, in which case every
// scope request is allowed.
func NewService(store kv.Store, jwtMgr *jwtauth.Manager, upstream UpstreamProvider, policy ScopePolicyEvaluator, cfg Config) *Service {
	if policy == nil {
		policy = allowAllPolicy{}
	}
	return &Service{store: store, jwt: jwtMgr, upstream: upstream, policy: policy, cfg: cfg}
}

// SetAuditSink wires an optional durable audit sink. Call sites tolerate a
// nil sink (the zero Service.audit) as "auditing disabled".
func (s *Service) SetAuditSink(sink AuditSink) {
	s.audit = sink
}

// recordAudit is a nil-tolerant helper so call sites never need to guard on
// whether an audit sink was configured.
func (s *Service) recordAudit(ctx context.Context, eventType, clientID, userID, detail string, success bool) {
	if s.audit == nil {
		return
	}
	_ = s.audit.RecordEvent(ctx, eventType, clientID, userID, detail, success)
}

func randomHex(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func generateCodeVerifier() (string, error) {
	return oauth2.GenerateVerifier(), nil
}

func challengeFromVerifier(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// normalizeAudience strips a trailing slash, per invariant 6.
func normalizeAudience(aud string) string {
	return strings.TrimSuffix(aud, "/")
}

func audienceEqual(a, b string) bool {
	return normalizeAudience(a) == normalizeAudience(b)
}

func audienceContains(auds []string, want string) bool {
	for _, a := range auds {
		if audienceEqual(a, want) {
			return true
		}
	}
	return false
}
