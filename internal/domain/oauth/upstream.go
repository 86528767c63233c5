package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// Auth0Provider is the default UpstreamProvider, wrapping an
// golang.org/x/oauth2.Config against an Auth0-shaped (or any standard
// OIDC-compatible) upstream provider.
type Auth0Provider struct {
	cfg        oauth2.Config
	domain     string
	httpClient *http.Client
}

// NewAuth0Provider builds an Auth0Provider from the gateway's own OAuth
// Config. redirectURI becomes the oauth2.Config default; AuthorizeURL and
// Exchange replace it with the redirect URI each call is given.
func NewAuth0Provider(cfg Config, redirectURI string) *Auth0Provider {
	return &Auth0Provider{
		cfg: oauth2.Config{
			ClientID:     cfg.UpstreamClientID,
			ClientSecret: cfg.UpstreamClientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.UpstreamDomain + "/authorize",
				TokenURL: cfg.UpstreamDomain + "/oauth/token",
			},
		},
		domain:     cfg.UpstreamDomain,
		httpClient: http.DefaultClient,
	}
}

// AuthorizeURL builds the upstream /authorize URL for this gateway's own
// PKCE pair, carrying state and audience through to the provider.
func (p *Auth0Provider) AuthorizeURL(state, codeChallenge, scope, audience, redirectURI string) string {
	cfg := p.cfg
	cfg.RedirectURL = redirectURI
	cfg.Scopes = splitScope(scope)

	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(codeChallenge),
	}
	if audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", audience))
	}
	return cfg.AuthCodeURL(state, opts...)
}

// Exchange trades code for tokens at the upstream token endpoint, supplying
// this gateway's own PKCE verifier.
func (p *Auth0Provider) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (UpstreamTokens, error) {
	cfg := p.cfg
	cfg.RedirectURL = redirectURI

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return UpstreamTokens{}, fmt.Errorf("oauth: upstream exchange: %w", err)
	}

	tokens := UpstreamTokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}
	return tokens, nil
}

// userInfoResponse is the subset of the standard OIDC userinfo response
// this gateway relies on.
type userInfoResponse struct {
	Sub string `json:"sub"`
}

// UserSubject resolves the authenticated user's stable subject identifier
// by calling the upstream provider's userinfo endpoint.
func (p *Auth0Provider) UserSubject(ctx context.Context, upstreamAccessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.domain+"/userinfo", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+upstreamAccessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth: userinfo returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var info userInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("oauth: decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return "", fmt.Errorf("oauth: userinfo response missing sub")
	}
	return info.Sub, nil
}

func splitScope(scope string) []string {
	if scope == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(scope); i++ {
		if i == len(scope) || scope[i] == ' ' {
			if i > start {
				out = append(out, scope[start:i])
			}
			start = i + 1
		}
	}
	return out
}
