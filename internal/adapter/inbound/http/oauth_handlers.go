package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcpgateway/mcpgateway/internal/domain/oauth"
)

// oauthHandlers implements every OAuth Proxy endpoint in §4.6, translating
// between HTTP and the oauth.Service port.
type oauthHandlers struct {
	svc *oauth.Service
}

func newOAuthHandlers(svc *oauth.Service) *oauthHandlers {
	return &oauthHandlers{svc: svc}
}

func (h *oauthHandlers) authorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Metadata())
}

func (h *oauthHandlers) protectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ProtectedResourceMetadata())
}

func (h *oauthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req oauth.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.svc.RegisterClient(r.Context(), req)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *oauthHandlers) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := oauth.AuthorizeRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Resource:            q.Get("resource"),
		ResponseType:        q.Get("response_type"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	redirectURL, err := h.svc.Authorize(r.Context(), req)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *oauthHandlers) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             errParam,
			"error_description": q.Get("error_description"),
		})
		return
	}

	result, err := h.svc.HandleCallback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	http.Redirect(w, r, result.RedirectURI, http.StatusFound)
}

func (h *oauthHandlers) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	req := oauth.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		ClientID:     r.PostForm.Get("client_id"),
		ClientSecret: r.PostForm.Get("client_secret"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
		RefreshToken: r.PostForm.Get("refresh_token"),
		Resource:     r.PostForm.Get("resource"),
	}

	resp, err := h.svc.Exchange(r.Context(), req)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func (h *oauthHandlers) revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	token := r.PostForm.Get("token")
	if token == "" {
		// RFC 7009 §2.2: malformed requests still get 200 once the
		// parameter is genuinely absent, but an empty token can't map to
		// any record, so there is nothing to revoke.
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := h.svc.Revoke(r.Context(), token); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "revocation failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *oauthHandlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats())
}

// validateBearer adapts oauth.Service.ValidateAccessToken to the
// requireAuth middleware's narrower signature.
func (h *oauthHandlers) validateBearer(ctx context.Context, token string) error {
	_, err := h.svc.ValidateAccessToken(ctx, token)
	return err
}

// oauthErrorStatus maps a domain oauth sentinel error to the HTTP status
// and RFC 6749 §5.2 error code the token/authorize/register endpoints
// should return.
func oauthErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, oauth.ErrInvalidClient):
		return http.StatusUnauthorized, "invalid_client"
	case errors.Is(err, oauth.ErrInvalidGrant):
		return http.StatusBadRequest, "invalid_grant"
	case errors.Is(err, oauth.ErrUnsupportedGrantType):
		return http.StatusBadRequest, "unsupported_grant_type"
	case errors.Is(err, oauth.ErrRedirectURIMismatch):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, oauth.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, oauth.ErrScopeDenied):
		return http.StatusForbidden, "access_denied"
	case errors.Is(err, oauth.ErrSessionNotFound):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, oauth.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid_token"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func writeOAuthError(w http.ResponseWriter, err error) {
	status, code := oauthErrorStatus(err)
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": err.Error(),
	})
}
