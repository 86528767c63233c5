// Package http is the inbound Streamable HTTP + SSE transport adapter: it
// exposes the MCP Core Server and the OAuth Proxy over plain HTTP, wiring
// the Transport Registry, Event Journal, and OAuth Service domain packages
// behind the middleware pipeline described in the component design.
//
// # Endpoints
//
//	GET  /                                             - service identification banner
//	GET  /ping                                        - liveness probe, "pong"
//	GET  /health                                       - readiness/health JSON
//	POST /mcp                                          - JSON-RPC request (auth-gated)
//	GET  /mcp                                          - SSE stream, resumable via Last-Event-ID
//	DELETE /mcp                                        - idempotent session termination
//	GET  /.well-known/oauth-authorization-server       - RFC 8414 metadata
//	GET  /.well-known/oauth-protected-resource         - RFC 9728 metadata
//	POST /oauth/register                               - RFC 7591 Dynamic Client Registration
//	GET  /authorize, GET /oauth/authorize               - Authorization Code + PKCE entry point
//	GET  /oauth/auth0-callback                          - upstream OIDC provider callback
//	POST /oauth/token                                   - authorization_code / refresh_token grants
//	POST /oauth/revoke                                  - RFC 7009 revocation
//	GET  /oauth/stats                                   - registration/token counters
//
// # Middleware pipeline
//
// Applied in this order (outermost first), matching the component design:
//
//  1. Security headers
//  2. Global per-IP rate limit (kube-probe User-Agent bypasses it)
//  3. Request body size cap
//  4. Structured logging scope + correlation id (combined: the correlation
//     id is the first field the logging scope needs, so one middleware
//     establishes both)
//  5. MCP protocol-version enforcement (“/mcp*“ only)
//  6. CORS + Origin pinning (“/mcp*“ only)
//
// Innermost, a per-route OTel span (see internal/observability) wraps every
// route handler except GET /ping, GET /health and GET /metrics, which are
// not traced. For the MCP routes the span wraps requireAuth, so it opens
// before authentication runs. The span name is the fixed route pattern
// rather than a raw path with a session id in it.
package http
