package oauth

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mcpgateway/mcpgateway/internal/domain/secrethash"
)

// AuthorizeRequest is the query this gateway's GET /authorize accepts,
// already parsed from the HTTP layer. CodeChallenge/CodeChallengeMethod are
// the requesting client's own PKCE parameters (RFC 7636), carried forward
// to the token endpoint for public clients with no client_secret — distinct
// from the gateway's own PKCE pair generated for its upstream hop.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	Resource            string
	ResponseType        string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Authorize implements GET /authorize: it resolves (or auto-registers) the
// client, enforces the redirect-URI match policy, generates local PKCE
// state for the hop to the upstream provider, persists the
// AuthorizationSession/UpstreamSession pair, and returns the upstream
// /authorize URL to redirect the user-agent to.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	s.metrics.incAuthorizeAttempt()
	if req.RedirectURI == "" {
		return "", fmt.Errorf("%w: redirect_uri is required", ErrInvalidRequest)
	}

	client, ok, err := s.getClient(ctx, req.ClientID)
	if err != nil {
		return "", err
	}
	if !ok {
		client, err = s.autoRegisterForRedirect(ctx, req.ClientID, req.RedirectURI)
		if err != nil {
			return "", err
		}
	} else if !anyRedirectURIMatches(client.RedirectURIs, req.RedirectURI) {
		return "", ErrRedirectURIMismatch
	}

	allowed, err := s.policy.Allow(ctx, client.ClientID, req.Scope)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", ErrScopeDenied
	}

	sessionID, err := randomHex(16)
	if err != nil {
		return "", err
	}
	// verifier/challenge are the gateway's own PKCE pair for its hop to the
	// upstream provider; they never get persisted into AuthorizationSession.
	verifier, err := generateCodeVerifier()
	if err != nil {
		return "", err
	}
	challenge := challengeFromVerifier(verifier)

	responseType := req.ResponseType
	if responseType == "" {
		responseType = "code"
	}

	now := time.Now().UTC()
	authSession := &AuthorizationSession{
		SessionID:           sessionID,
		ClientID:            client.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ResponseType:        responseType,
		Resource:            req.Resource,
		CreatedAt:           now,
	}
	if err := s.putAuthSession(ctx, authSession); err != nil {
		return "", err
	}

	upstreamSession := &UpstreamSession{
		SessionID:    sessionID,
		State:        req.State,
		CodeVerifier: verifier,
		Original:     *authSession,
		CreatedAt:    now,
	}
	if err := s.putUpstreamSession(ctx, upstreamSession); err != nil {
		return "", err
	}

	callbackURL := s.cfg.BaseURL + "/oauth/auth0-callback"
	s.recordAudit(ctx, "authorize_attempt", client.ClientID, "", "", true)
	return s.upstream.AuthorizeURL(req.State, challenge, req.Scope, s.cfg.UpstreamAudience, callbackURL), nil
}

// CallbackResult is what HandleCallback resolves to: the URI the
// user-agent should be redirected to, carrying the gateway's own
// authorization code.
type CallbackResult struct {
	RedirectURI string
	Code        string
	State       string
}

// HandleCallback implements GET /oauth/auth0-callback: it loads the
// AuthorizationSession/UpstreamSession pair by state, exchanges the
// upstream code for tokens, resolves the user's subject, mints a fresh
// gateway authorization code bound to a pending TokenRecord, deletes both
// sessions, and returns the redirect back to the original client.
func (s *Service) HandleCallback(ctx context.Context, code, state string) (*CallbackResult, error) {
	authSession, ok, err := s.getAuthSession(ctx, state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	upstreamSession, ok, err := s.getUpstreamSession(ctx, authSession.SessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	// Both upstream HTTP calls share a 10-second deadline.
	upstreamCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	callbackURL := s.cfg.BaseURL + "/oauth/auth0-callback"
	upstreamTokens, err := s.upstream.Exchange(upstreamCtx, code, upstreamSession.CodeVerifier, callbackURL)
	if err != nil {
		s.recordAudit(ctx, "token_exchange_failed", authSession.ClientID, "", "upstream exchange failed", false)
		return nil, fmt.Errorf("oauth: upstream token exchange: %w", err)
	}

	sub, err := s.upstream.UserSubject(upstreamCtx, upstreamTokens.AccessToken)
	if err != nil {
		s.recordAudit(ctx, "token_exchange_failed", authSession.ClientID, "", "upstream userinfo failed", false)
		return nil, fmt.Errorf("oauth: upstream userinfo: %w", err)
	}

	gatewayCode, err := randomHex(32)
	if err != nil {
		return nil, err
	}

	pending := &TokenRecord{
		Scope:                     authSession.Scope,
		ClientID:                  authSession.ClientID,
		UserID:                    sub,
		Upstream:                  upstreamTokens,
		CreatedAt:                 time.Now().UTC(),
		PendingForCode:            gatewayCode,
		ClientCodeChallenge:       authSession.CodeChallenge,
		ClientCodeChallengeMethod: authSession.CodeChallengeMethod,
	}
	if err := s.putPendingCode(ctx, gatewayCode, pending); err != nil {
		return nil, err
	}

	if err := s.deleteAuthSession(ctx, state); err != nil {
		return nil, err
	}
	if err := s.deleteUpstreamSession(ctx, authSession.SessionID); err != nil {
		return nil, err
	}

	redirectURI := authSession.RedirectURI + "?" + url.Values{
		"code":  {gatewayCode},
		"state": {state},
	}.Encode()

	return &CallbackResult{RedirectURI: redirectURI, Code: gatewayCode, State: state}, nil
}

// authenticateClient verifies clientSecret against the stored client
// record using constant-time comparison via secrethash.
func (s *Service) authenticateClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	client, ok, err := s.getClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidClient
	}
	match, err := secrethash.Verify(clientSecret, client.ClientSecret)
	if err != nil || !match {
		return nil, ErrInvalidClient
	}
	return client, nil
}
