package oauth

import "errors"

var (
	// ErrInvalidClient is returned by the token endpoint when the client
	// id/secret pair (or PKCE verifier) doesn't check out.
	ErrInvalidClient = errors.New("oauth: invalid client")
	// ErrInvalidGrant covers an unknown/expired authorization code or
	// refresh token, or a client_id mismatch against the stored record.
	ErrInvalidGrant = errors.New("oauth: invalid grant")
	// ErrUnsupportedGrantType is returned for any grant_type besides
	// authorization_code and refresh_token.
	ErrUnsupportedGrantType = errors.New("oauth: unsupported grant type")
	// ErrRedirectURIMismatch is returned when a known client's requested
	// redirect_uri doesn't match any registered URI.
	ErrRedirectURIMismatch = errors.New("oauth: redirect_uri mismatch")
	// ErrInvalidRequest covers malformed DCR/authorize payloads.
	ErrInvalidRequest = errors.New("oauth: invalid request")
	// ErrScopeDenied is returned when the scope policy evaluator rejects a
	// requested scope for a client.
	ErrScopeDenied = errors.New("oauth: scope denied by policy")
	// ErrSessionNotFound covers missing AuthorizationSession/UpstreamSession
	// lookups during the callback.
	ErrSessionNotFound = errors.New("oauth: session not found")
	// ErrUnauthorized is returned by bearer-token validation for any
	// verification failure; callers map this to 401.
	ErrUnauthorized = errors.New("oauth: unauthorized")
)
