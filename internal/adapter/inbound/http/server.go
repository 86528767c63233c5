package http

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcpgateway/mcpgateway/internal/config"
	"github.com/mcpgateway/mcpgateway/internal/domain/eventjournal"
	"github.com/mcpgateway/mcpgateway/internal/domain/mcpcore"
	"github.com/mcpgateway/mcpgateway/internal/domain/mcptransport"
	"github.com/mcpgateway/mcpgateway/internal/domain/oauth"
	"github.com/mcpgateway/mcpgateway/internal/domain/ratelimit"
)

// Server is the inbound Streamable HTTP + SSE transport adapter: it wires
// the Transport Registry, Event Journal, MCP Core Server, and OAuth Proxy
// behind the middleware pipeline of §4.4 and serves them on one listener.
type Server struct {
	cfg         *config.Config
	registry    *mcptransport.Registry
	core        *mcpcore.Server
	journal     *eventjournal.Journal
	oauthSvc    *oauth.Service
	rateLimiter ratelimit.RateLimiter
	logger      *slog.Logger
	certFile    string
	keyFile     string

	httpServer *http.Server
	startTime  time.Time
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithTLS enables TLS using the given certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) { s.certFile, s.keyFile = certFile, keyFile }
}

// New constructs a Server wiring every domain port this adapter serves.
func New(
	cfg *config.Config,
	registry *mcptransport.Registry,
	core *mcpcore.Server,
	journal *eventjournal.Journal,
	oauthSvc *oauth.Service,
	rateLimiter ratelimit.RateLimiter,
	opts ...Option,
) *Server {
	s := &Server{
		cfg:         cfg,
		registry:    registry,
		core:        core,
		journal:     journal,
		oauthSvc:    oauthSvc,
		rateLimiter: rateLimiter,
		logger:      slog.Default(),
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) buildMux() http.Handler {
	mcp := newMCPHandlers(s.registry, s.core, s.journal)
	o := newOAuthHandlers(s.oauthSvc)
	health := newHealthChecker(buildVersion, s.cfg.Server.Environment)

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", tracingMiddleware("GET /")(rootHandler(buildVersion, s.cfg.Server.Environment)))
	mux.Handle("GET /ping", pingHandler())
	mux.Handle("GET /health", health.Handler())

	mcpAuth := requireAuth(s.cfg.Server.Auth.Enabled, o.validateBearer)
	mux.Handle("POST /mcp", tracingMiddleware("POST /mcp")(mcpAuth(mcp)))
	mux.Handle("GET /mcp", tracingMiddleware("GET /mcp")(mcpAuth(mcp)))
	mux.Handle("DELETE /mcp", tracingMiddleware("DELETE /mcp")(mcpAuth(mcp)))

	mux.Handle("GET /.well-known/oauth-authorization-server", tracingMiddleware("GET /.well-known/oauth-authorization-server")(http.HandlerFunc(o.authorizationServerMetadata)))
	mux.Handle("GET /.well-known/oauth-protected-resource", tracingMiddleware("GET /.well-known/oauth-protected-resource")(http.HandlerFunc(o.protectedResourceMetadata)))
	mux.Handle("POST /oauth/register", tracingMiddleware("POST /oauth/register")(http.HandlerFunc(o.register)))
	mux.Handle("GET /authorize", tracingMiddleware("GET /authorize")(http.HandlerFunc(o.authorize)))
	mux.Handle("GET /oauth/authorize", tracingMiddleware("GET /authorize")(http.HandlerFunc(o.authorize)))
	mux.Handle("GET /oauth/auth0-callback", tracingMiddleware("GET /oauth/auth0-callback")(http.HandlerFunc(o.callback)))
	mux.Handle("POST /oauth/token", tracingMiddleware("POST /oauth/token")(http.HandlerFunc(o.token)))
	mux.Handle("POST /oauth/revoke", tracingMiddleware("POST /oauth/revoke")(http.HandlerFunc(o.revoke)))
	mux.Handle("GET /oauth/stats", tracingMiddleware("GET /oauth/stats")(http.HandlerFunc(o.stats)))

	// Instrumentation runs unconditionally; Observability.MetricsEnabled
	// only gates whether /metrics is exposed for scraping.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.oauthSvc.SetMetrics(oauth.NewMetrics(reg))
	if s.cfg.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	var handler http.Handler = mux
	handler = mcpPipelineMiddleware(s.cfg.Server.CORS.AllowedOrigins)(handler)
	handler = requestScopeMiddleware(s.logger)(handler)
	handler = bodyLimitMiddleware(handler)
	handler = rateLimitMiddleware(s.rateLimiter, s.cfg.RateLimit.RequestsPerMinute)(handler)
	handler = securityHeaders(handler)
	return handler
}

// buildVersion is the fixed version string reported by GET / and
// GET /health. It is a constant, so it cannot be overridden at link time.
const buildVersion = "dev"

// Start builds the route table and middleware chain and blocks serving HTTP
// until ctx is cancelled or the listener errors.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr(),
		Handler:           s.buildMux(),
		ReadHeaderTimeout: 65 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if s.certFile != "" && s.keyFile != "" {
		s.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.certFile != "" && s.keyFile != "" {
			s.logger.Info("starting HTTPS server", "addr", s.httpServer.Addr)
			err = s.httpServer.ListenAndServeTLS(s.certFile, s.keyFile)
		} else {
			s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down HTTP server")
		return s.Close()
	case err := <-errCh:
		return err
	}
}

func (s *Server) addr() string {
	return ":" + strconv.Itoa(s.cfg.Server.HTTPPort)
}

// Close performs a graceful shutdown, giving in-flight requests at most 10
// seconds to drain.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}
	s.logger.Info("HTTP server shutdown complete")
	return nil
}
