package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcpgateway/mcpgateway/internal/ctxkey"
	"github.com/mcpgateway/mcpgateway/internal/domain/ratelimit"
	"github.com/mcpgateway/mcpgateway/internal/observability"
)

// maxRequestBodySize is the per-request body cap applied to both JSON and
// URL-encoded bodies.
const maxRequestBodySize = 1 << 20

// protocolVersion is the MCP protocol revision this server negotiates by
// default when a client omits mcp-protocol-version.
const protocolVersion = "2025-06-18"

var supportedProtocolVersions = []string{protocolVersion}

// realIPHeaders is the priority-ordered list of headers consulted to
// recover the client's real IP address behind a reverse proxy or CDN.
var realIPHeaders = []string{
	"cf-connecting-ip",
	"x-real-ip",
	"x-forwarded-for",
	"x-client-ip",
	"x-forwarded",
	"forwarded-for",
	"forwarded",
	"x-cluster-client-ip",
	"x-original-forwarded-for",
	"true-client-ip",
}

// requestScope is the value carried on the request context under
// ctxkey.LoggerKey's sibling keys, gathering every correlation id a log
// line in this request should carry.
type requestScope struct {
	RequestID   string
	IP          string
	SessionID   string
	ProtocolVer string
	UserAgent   string
	StartTime   time.Time
}

type requestScopeKey struct{}

// RequestScopeFromContext returns the correlation tuple established for the
// in-flight request, or a zero-value requestScope if none was set (e.g. in
// a unit test calling a handler directly).
func RequestScopeFromContext(ctx context.Context) requestScope {
	rs, _ := ctx.Value(requestScopeKey{}).(requestScope)
	return rs
}

// securityHeaders sets standard hardening headers on every response. No
// Content-Security-Policy is set — this is a JSON/SSE API, not a page
// renderer, so a CSP buys nothing.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware enforces a global per-client-IP limit, bypassing
// requests whose User-Agent contains "kube-probe" (kubelet liveness/
// readiness probes should never be throttled).
func rateLimitMiddleware(limiter ratelimit.RateLimiter, requestsPerMinute int) func(http.Handler) http.Handler {
	cfg := ratelimit.RateLimitConfig{Rate: requestsPerMinute, Burst: requestsPerMinute, Period: time.Minute}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.Header.Get("User-Agent"), "kube-probe") {
				next.ServeHTTP(w, r)
				return
			}

			ip := extractRealIP(r)
			result, err := limiter.Allow(r.Context(), ratelimit.FormatKey(ratelimit.KeyTypeIP, ip), cfg)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bodyLimitMiddleware caps JSON and URL-encoded request bodies at
// maxRequestBodySize; everything else passes through unmodified.
func bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "application/json") || strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// requestScopeMiddleware establishes the per-request correlation tuple
// (request id, client ip, mcp session id, protocol version, user agent,
// start time) and an slog.Logger enriched with it, then stores both on the
// context so every downstream log line in this request carries the same
// ids. It also performs the response-header half of correlation-id init
// (echoing x-request-id).
func requestScopeMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			rs := requestScope{
				RequestID:   requestID,
				IP:          extractRealIP(r),
				SessionID:   r.Header.Get(MCPSessionIDHeader),
				ProtocolVer: r.Header.Get(MCPProtocolVersionHeader),
				UserAgent:   r.Header.Get("User-Agent"),
				StartTime:   time.Now(),
			}

			enriched := logger.With(
				"request_id", rs.RequestID,
				"ip", rs.IP,
				"mcp_session_id", rs.SessionID,
				"mcp_protocol_version", rs.ProtocolVer,
				"user_agent", rs.UserAgent,
			)

			ctx := context.WithValue(r.Context(), requestScopeKey{}, rs)
			ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, enriched)
			ctx = context.WithValue(ctx, ctxkey.RequestIDKey{}, requestID)

			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tracer is the package-wide OTel tracer for the inbound HTTP pipeline. It
// is a no-op unless internal/observability.Setup installed a real
// TracerProvider (i.e. observability.tracingEnabled), so this middleware is
// always safe to install.
var tracer = observability.Tracer("mcpgateway/adapter/inbound/http")

// tracingMiddleware opens one span per request, named after the route
// pattern rather than the raw path so cardinality stays bounded regardless
// of session ids in the URL.
func tracingMiddleware(pattern string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), pattern,
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", pattern),
				),
			)
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// loggerFromContext retrieves the enriched per-request logger, falling back
// to slog.Default() when none was established (e.g. a handler invoked
// directly in a test).
func loggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// unsupportedProtocolVersionBody is the 400 response body when a client
// requests a protocol version this server doesn't negotiate.
type unsupportedProtocolVersionBody struct {
	Error             string   `json:"error"`
	SupportedVersions []string `json:"supported_versions"`
	RequestedVersion  string   `json:"requested_version"`
}

// mcpPipelineMiddleware implements steps 5 (protocol-version enforcement)
// and 6 (CORS + Origin pinning) of the component design, scoped to /mcp*
// paths only; every other path is passed through untouched.
func mcpPipelineMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	allowAny := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAny = true
		}
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/mcp") {
				next.ServeHTTP(w, r)
				return
			}

			if v := r.Header.Get(MCPProtocolVersionHeader); v == "" {
				r.Header.Set(MCPProtocolVersionHeader, protocolVersion)
			} else if !isSupportedProtocolVersion(v) {
				writeJSON(w, http.StatusBadRequest, unsupportedProtocolVersionBody{
					Error:             "unsupported mcp-protocol-version",
					SupportedVersions: supportedProtocolVersions,
					RequestedVersion:  v,
				})
				return
			}

			origin := r.Header.Get("Origin")
			if origin != "" {
				_, ok := allowed[origin]
				if !ok && !allowAny {
					writeJSONError(w, http.StatusForbidden, "origin not allowed")
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Mcp-Session-Id, Mcp-Protocol-Version, Last-Event-ID, Authorization")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isSupportedProtocolVersion(v string) bool {
	for _, sv := range supportedProtocolVersions {
		if sv == v {
			return true
		}
	}
	return false
}

// extractRealIP walks realIPHeaders in priority order, splitting
// comma-separated candidate lists and accepting the first syntactically
// valid IPv4/IPv6 address. Falls back to RemoteAddr, then "unknown".
func extractRealIP(r *http.Request) string {
	for _, header := range realIPHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		for _, candidate := range strings.Split(value, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				continue
			}
			if ip := net.ParseIP(candidate); ip != nil {
				return candidate
			}
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return "unknown"
}

// requireAuth gates a handler behind the OAuth Proxy's bearer-token
// validation. When auth is disabled in config it is a pass-through.
func requireAuth(authEnabled bool, validate func(ctx context.Context, token string) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			token := strings.TrimPrefix(auth, "Bearer ")
			if err := validate(r.Context(), token); err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
