package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/mcpgateway/mcpgateway/internal/domain/secrethash"
)

// RegistrationRequest is the RFC 7591 Dynamic Client Registration payload
// this gateway accepts.
type RegistrationRequest struct {
	ClientID                string   `json:"client_id,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
}

// RegistrationResponse is the DCR response: the registered Client plus its
// plaintext secret (returned once, never again — only the hash is stored).
type RegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

// RegisterClient implements POST /oauth/register.
func (s *Service) RegisterClient(ctx context.Context, req RegistrationRequest) (*RegistrationResponse, error) {
	if len(req.RedirectURIs) == 0 {
		return nil, fmt.Errorf("%w: redirect_uris is required", ErrInvalidRequest)
	}

	clientID := req.ClientID
	if clientID == "" {
		id, err := randomHex(16)
		if err != nil {
			return nil, err
		}
		clientID = "mcp_" + id
	}

	secret, err := randomHex(32)
	if err != nil {
		return nil, err
	}
	secretHash, err := secrethash.Hash(secret)
	if err != nil {
		return nil, err
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{"authorization_code", "refresh_token"}
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{"code"}
	}
	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = "client_secret_post"
	}

	client := &Client{
		ClientID:                clientID,
		ClientSecret:            secretHash,
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		Scope:                   req.Scope,
		TokenEndpointAuthMethod: authMethod,
		IssuedAt:                time.Now().UTC(),
	}

	if err := s.putClient(ctx, client); err != nil {
		return nil, err
	}
	s.metrics.incRegistration()
	s.recordAudit(ctx, "client_registered", client.ClientID, "", "", true)

	return &RegistrationResponse{
		ClientID:                client.ClientID,
		ClientSecret:            secret,
		ClientSecretExpiresAt:   0,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		Scope:                   client.Scope,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
	}, nil
}

// autoRegisterForRedirect registers a new client scoped to exactly one
// redirect_uri, used by /authorize when the client_id in the query is
// unknown.
func (s *Service) autoRegisterForRedirect(ctx context.Context, clientID, redirectURI string) (*Client, error) {
	secret, err := randomHex(32)
	if err != nil {
		return nil, err
	}
	secretHash, err := secrethash.Hash(secret)
	if err != nil {
		return nil, err
	}
	client := &Client{
		ClientID:                clientID,
		ClientSecret:            secretHash,
		RedirectURIs:            []string{redirectURI},
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: "client_secret_post",
		IssuedAt:                time.Now().UTC(),
	}
	if err := s.putClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}
