// Package oauth implements the OAuth 2.1 proxy: Dynamic Client
// Registration, the authorization-code + PKCE kickoff and callback,
// token issuance/refresh/revocation, and bearer-token validation. User
// authentication itself is delegated to an upstream OIDC provider; this
// package only proxies the flow and mints its own JWTs.
package oauth

import "time"

// Client is a registered OAuth client, persisted at client:{id}. Created by
// Dynamic Client Registration; never expires.
type Client struct {
	ClientID                string    `json:"client_id"`
	ClientSecret            string    `json:"client_secret_hash"`
	RedirectURIs            []string  `json:"redirect_uris"`
	GrantTypes              []string  `json:"grant_types"`
	ResponseTypes           []string  `json:"response_types"`
	Scope                   string    `json:"scope"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	IssuedAt                time.Time `json:"issued_at"`
}

// AuthorizationSession is the state tracked between /authorize and the
// upstream callback, persisted at auth-session:{state}. CodeChallenge and
// CodeChallengeMethod are the requesting (downstream) client's own PKCE
// parameters, if it sent any — distinct from the gateway's own PKCE pair
// generated for its hop to the upstream provider, which lives only in
// UpstreamSession.CodeVerifier.
type AuthorizationSession struct {
	SessionID           string    `json:"session_id"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scope               string    `json:"scope"`
	State               string    `json:"state"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	ResponseType        string    `json:"response_type"`
	Resource            string    `json:"resource,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// UpstreamSession mirrors AuthorizationSession but additionally tracks the
// PKCE verifier generated for the hop to the upstream provider, persisted
// at auth0-session:{session_id}.
type UpstreamSession struct {
	SessionID    string               `json:"session_id"`
	State        string               `json:"state"`
	CodeVerifier string               `json:"code_verifier"`
	Original     AuthorizationSession `json:"original"`
	CreatedAt    time.Time            `json:"created_at"`
}

// UpstreamTokens is what the upstream OIDC provider returns from its token
// endpoint, embedded verbatim in the resulting TokenRecord.
type UpstreamTokens struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// TokenRecord is stored twice under independent keys — token:{access} and
// token:{refresh} — pointing at the same serialized blob; a pending
// authorization-code slot uses the same shape keyed by the code itself
// before real tokens are minted.
type TokenRecord struct {
	AccessToken    string         `json:"access_token,omitempty"`
	RefreshToken   string         `json:"refresh_token,omitempty"`
	TokenType      string         `json:"token_type,omitempty"`
	ExpiresAt      time.Time      `json:"expires_at,omitempty"`
	Scope          string         `json:"scope"`
	ClientID       string         `json:"client_id"`
	UserID         string         `json:"user_id"`
	Audience       string         `json:"audience,omitempty"`
	Upstream       UpstreamTokens `json:"upstream"`
	CreatedAt      time.Time      `json:"created_at"`
	PendingForCode string         `json:"pending_for_code,omitempty"`

	// ClientCodeChallenge/Method carry the requesting client's own PKCE
	// parameters (from /authorize) forward past session deletion, so a
	// public client (no client_secret) can authenticate at /oauth/token
	// with a matching code_verifier instead.
	ClientCodeChallenge       string `json:"client_code_challenge,omitempty"`
	ClientCodeChallengeMethod string `json:"client_code_challenge_method,omitempty"`
}
