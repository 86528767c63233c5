package oauth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"
)

// TokenRequest is the parsed POST /oauth/token body, covering both the
// authorization_code and refresh_token grants.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	RefreshToken string
	Resource     string
}

// TokenResponse is the RFC 6749 §5.1 access-token response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// Exchange implements POST /oauth/token for both supported grants.
func (s *Service) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	switch req.GrantType {
	case "authorization_code":
		return s.exchangeAuthorizationCode(ctx, req)
	case "refresh_token":
		return s.exchangeRefreshToken(ctx, req)
	default:
		return nil, ErrUnsupportedGrantType
	}
}

func (s *Service) exchangeAuthorizationCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}

	pending, ok, err := s.getTokenRecord(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if !ok || pending.PendingForCode != req.Code {
		return nil, ErrInvalidGrant
	}
	if req.ClientID != "" && req.ClientID != pending.ClientID {
		return nil, ErrInvalidGrant
	}

	if err := s.authenticateForToken(ctx, pending.ClientID, req.ClientSecret, req.CodeVerifier, pending); err != nil {
		return nil, err
	}

	audience := s.cfg.UpstreamAudience
	if req.Resource != "" {
		audience = normalizeAudience(req.Resource)
	}
	if audience == "" {
		audience = s.cfg.Issuer
	}

	tr, err := s.mintTokenPair(pending.ClientID, pending.UserID, pending.Scope, audience, pending.Upstream)
	if err != nil {
		return nil, err
	}
	if err := s.putTokenPair(ctx, tr, s.cfg.AccessTokenTTL); err != nil {
		return nil, err
	}
	if err := s.deletePendingCode(ctx, req.Code); err != nil {
		return nil, err
	}
	s.metrics.incTokenIssued()
	s.recordAudit(ctx, "token_issued", tr.ClientID, tr.UserID, "authorization_code", true)

	return &TokenResponse{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
		Scope:        tr.Scope,
	}, nil
}

func (s *Service) exchangeRefreshToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}

	claims, err := s.jwt.VerifyRefresh(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidGrant
	}

	existing, ok, err := s.getTokenRecord(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !ok || existing.RefreshToken != req.RefreshToken {
		return nil, ErrInvalidGrant
	}
	if existing.ClientID != claims.ClientID {
		return nil, ErrInvalidGrant
	}
	if req.ClientID != "" && req.ClientID != existing.ClientID {
		return nil, ErrInvalidGrant
	}

	client, err := s.authenticateClient(ctx, existing.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	audience := existing.Audience
	if audience == "" {
		audience = s.cfg.Issuer
	}

	accessToken, err := s.jwt.IssueAccessToken(s.cfg.Issuer, existing.UserID, client.ClientID, existing.Scope, audience, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.AccessToken = accessToken
	updated.ExpiresAt = time.Now().UTC().Add(s.cfg.AccessTokenTTL)
	updated.Audience = audience

	if s.cfg.RotateRefreshTokens {
		newRefresh, err := s.jwt.IssueRefreshToken(s.cfg.Issuer, existing.UserID, client.ClientID, existing.Scope, audience, s.cfg.RefreshTokenTTL)
		if err != nil {
			return nil, err
		}
		if err := s.deleteTokenPair(ctx, existing); err != nil {
			return nil, err
		}
		updated.RefreshToken = newRefresh
		if err := s.putTokenPair(ctx, &updated, s.cfg.AccessTokenTTL); err != nil {
			return nil, err
		}
	} else {
		if err := putJSON(ctx, s.store, tokenKey(updated.AccessToken), &updated, s.cfg.AccessTokenTTL); err != nil {
			return nil, err
		}
		if err := putJSON(ctx, s.store, tokenKey(updated.RefreshToken), &updated, 0); err != nil {
			return nil, err
		}
	}

	s.metrics.incTokenIssued()
	s.recordAudit(ctx, "token_issued", updated.ClientID, updated.UserID, "refresh_token", true)

	return &TokenResponse{
		AccessToken:  updated.AccessToken,
		RefreshToken: updated.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
		Scope:        updated.Scope,
	}, nil
}

// authenticateForToken validates the caller at the token endpoint either by
// client_secret (confidential clients) or by a code_verifier matching the
// challenge recorded against pending at /authorize (public clients, RFC
// 7636). Fails ErrInvalidClient if neither checks out.
func (s *Service) authenticateForToken(ctx context.Context, clientID, clientSecret, codeVerifier string, pending *TokenRecord) error {
	if clientSecret != "" {
		_, err := s.authenticateClient(ctx, clientID, clientSecret)
		return err
	}
	if pending.ClientCodeChallenge != "" && codeVerifier != "" {
		if pending.ClientCodeChallengeMethod == "plain" {
			if subtle.ConstantTimeCompare([]byte(codeVerifier), []byte(pending.ClientCodeChallenge)) == 1 {
				return nil
			}
			return ErrInvalidClient
		}
		if challengeFromVerifier(codeVerifier) == pending.ClientCodeChallenge {
			return nil
		}
	}
	return ErrInvalidClient
}

func (s *Service) mintTokenPair(clientID, userID, scope, audience string, upstream UpstreamTokens) (*TokenRecord, error) {
	accessToken, err := s.jwt.IssueAccessToken(s.cfg.Issuer, userID, clientID, scope, audience, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwt.IssueRefreshToken(s.cfg.Issuer, userID, clientID, scope, audience, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenRecord{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().UTC().Add(s.cfg.AccessTokenTTL),
		Scope:        scope,
		ClientID:     clientID,
		UserID:       userID,
		Audience:     audience,
		Upstream:     upstream,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Revoke implements POST /oauth/revoke (RFC 7009): it looks the token up as
// both an access and a refresh token key and deletes whichever record
// exists. Always succeeds per RFC 7009 §2.2, even for an unknown token.
func (s *Service) Revoke(ctx context.Context, token string) error {
	tr, ok, err := s.getTokenRecord(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.deleteTokenPair(ctx, tr); err != nil {
		return err
	}
	s.metrics.incTokenRevoked()
	s.recordAudit(ctx, "token_revoked", tr.ClientID, tr.UserID, "", true)
	return nil
}

// ValidateAccessToken implements the OAuth Proxy's requireAuth middleware
// logic: it verifies the JWT signature and expiry, checks the audience
// against the expected value, and confirms the token has not been revoked
// (i.e. its record still exists in the store under its own key, and its
// client still resolves).
func (s *Service) ValidateAccessToken(ctx context.Context, raw string) (*TokenRecord, error) {
	claims, err := s.jwt.VerifyAccess(raw)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !audienceContains(claims.Audience, s.cfg.expectedAudience()) {
		return nil, ErrUnauthorized
	}

	tr, ok, err := s.getTokenRecord(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !ok || tr.AccessToken != raw {
		return nil, ErrUnauthorized
	}

	if _, ok, err := s.getClient(ctx, tr.ClientID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrUnauthorized
	}

	return tr, nil
}
