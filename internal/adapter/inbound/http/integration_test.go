package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mcpgateway/mcpgateway/internal/domain/oauth"
	"github.com/mcpgateway/mcpgateway/internal/testsupport/mcpclient"
)

// TestEndToEnd_RegisterAuthorizeCallbackTokenThenMCPCall drives the full
// OAuth dance against a real httptest.Server fronting the gateway's mux,
// then uses the minted access token as a bearer credential for the MCP
// Streamable HTTP endpoint, exercising requireAuth end to end rather than
// calling handler methods directly.
func TestEndToEnd_RegisterAuthorizeCallbackTokenThenMCPCall(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Server.Auth.Enabled = true
	ts := httptest.NewServer(s.buildMux())
	t.Cleanup(ts.Close)

	httpc := ts.Client()

	// 1. Dynamic Client Registration.
	regBody := strings.NewReader(`{"redirect_uris":["https://client.example/cb"]}`)
	regResp, err := httpc.Post(ts.URL+"/oauth/register", "application/json", regBody)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer regResp.Body.Close()
	var reg oauth.RegistrationResponse
	if err := json.NewDecoder(regResp.Body).Decode(&reg); err != nil {
		t.Fatalf("decode registration: %v", err)
	}
	if reg.ClientID == "" {
		t.Fatal("expected non-empty client_id from DCR")
	}

	// 2. Authorize: don't follow the redirect to the upstream provider, just
	// read the Location so we can pull the state we generated back out.
	noRedirect := *httpc
	noRedirect.CheckRedirect = func(req *http.Request, via []*http.Request) error { return http.ErrUseLastResponse }

	authorizeURL := ts.URL + "/authorize?" + url.Values{
		"client_id":     {reg.ClientID},
		"redirect_uri":  {"https://client.example/cb"},
		"state":         {"client-state-xyz"},
		"response_type": {"code"},
	}.Encode()
	authResp, err := noRedirect.Get(authorizeURL)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	defer authResp.Body.Close()

	upstreamLocation := authResp.Header.Get("Location")
	if upstreamLocation == "" {
		t.Fatalf("authorize: expected a Location header, status=%d", authResp.StatusCode)
	}
	upstreamURL, err := url.Parse(upstreamLocation)
	if err != nil {
		t.Fatalf("parse upstream location: %v", err)
	}
	if got := upstreamURL.Query().Get("state"); got != "client-state-xyz" {
		t.Fatalf("upstream state = %q, want echoed client state", got)
	}

	// 3. Callback: simulate the upstream provider redirecting back with its
	// own authorization code and our echoed state.
	callbackURL := ts.URL + "/oauth/auth0-callback?" + url.Values{
		"code":  {"upstream-code-1"},
		"state": {"client-state-xyz"},
	}.Encode()
	cbResp, err := noRedirect.Get(callbackURL)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	defer cbResp.Body.Close()

	clientRedirect := cbResp.Header.Get("Location")
	clientRedirectURL, err := url.Parse(clientRedirect)
	if err != nil {
		t.Fatalf("parse client redirect: %v", err)
	}
	gatewayCode := clientRedirectURL.Query().Get("code")
	if gatewayCode == "" {
		t.Fatalf("callback: expected a code in the client redirect, got %q", clientRedirect)
	}

	// 4. Token exchange.
	tokenForm := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {gatewayCode},
		"client_id":     {reg.ClientID},
		"client_secret": {reg.ClientSecret},
		"redirect_uri":  {"https://client.example/cb"},
	}
	tokenResp, err := httpc.PostForm(ts.URL+"/oauth/token", tokenForm)
	if err != nil {
		t.Fatalf("token exchange: %v", err)
	}
	defer tokenResp.Body.Close()
	var tok oauth.TokenResponse
	if err := json.NewDecoder(tokenResp.Body).Decode(&tok); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if tok.AccessToken == "" {
		t.Fatal("expected a non-empty access_token")
	}

	// 5. Use the minted access token against the MCP endpoint.
	mc := mcpclient.New(ts.URL, mcpclient.WithHTTPClient(httpc), mcpclient.WithBearerToken(tok.AccessToken))
	if _, err := mc.Initialize(context.Background()); err != nil {
		t.Fatalf("mcp initialize with bearer token: %v", err)
	}
	if mc.SessionID() == "" {
		t.Fatal("expected a session id after initialize")
	}
}

func TestEndToEnd_MCPCallWithoutBearerTokenIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Server.Auth.Enabled = true
	ts := httptest.NewServer(s.buildMux())
	t.Cleanup(ts.Close)

	mc := mcpclient.New(ts.URL, mcpclient.WithHTTPClient(ts.Client()))
	if _, err := mc.Initialize(context.Background()); err == nil {
		t.Fatal("expected initialize to fail without a bearer token")
	}
}
