package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	inboundhttp "github.com/mcpgateway/mcpgateway/internal/adapter/inbound/http"
	"github.com/mcpgateway/mcpgateway/internal/adapter/outbound/auditsqlite"
	"github.com/mcpgateway/mcpgateway/internal/adapter/outbound/memory"
	"github.com/mcpgateway/mcpgateway/internal/adapter/outbound/memorykv"
	"github.com/mcpgateway/mcpgateway/internal/adapter/outbound/rediskv"
	"github.com/mcpgateway/mcpgateway/internal/config"
	"github.com/mcpgateway/mcpgateway/internal/domain/eventjournal"
	"github.com/mcpgateway/mcpgateway/internal/domain/jwtauth"
	"github.com/mcpgateway/mcpgateway/internal/domain/kv"
	"github.com/mcpgateway/mcpgateway/internal/domain/mcpcore"
	"github.com/mcpgateway/mcpgateway/internal/domain/mcptransport"
	"github.com/mcpgateway/mcpgateway/internal/domain/oauth"
	"github.com/mcpgateway/mcpgateway/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long: `Start the mcpgateway HTTP server: the MCP Streamable HTTP + SSE
transport and the OAuth 2.1 proxy, on a single listener.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	// ctx is cancelled on the first SIGINT/SIGTERM; a second one restores
	// default signal handling so it kills the process outright.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("mcpgateway exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("mcpgateway stopped")
	return nil
}

// run wires every domain port behind the inbound HTTP adapter and blocks
// until ctx is cancelled or the listener fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := newKVStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing kv store", "error", err)
		}
	}()

	journal := eventjournal.New(store, cfg.Storage.EventTTL)
	registry := mcptransport.New(store, journal, cfg.Server.Auth.SessionTTL)
	core := mcpcore.New(
		mcpcore.NewBuiltinToolRegistry(),
		mcpcore.NewBuiltinPromptRegistry(),
		mcpcore.NewBuiltinResourceRegistry(),
		journal,
	)

	jwtMgr := jwtauth.NewManager(cfg.OAuth.JWTSecret)
	upstream := oauth.NewAuth0Provider(toOAuthConfig(cfg), cfg.Server.BaseURL+"/oauth/auth0-callback")

	var policy oauth.ScopePolicyEvaluator
	if cfg.OAuth.ScopePolicy != "" {
		policy, err = oauth.NewCELScopePolicy(cfg.OAuth.ScopePolicy)
		if err != nil {
			return fmt.Errorf("compile oauth scope policy: %w", err)
		}
	}

	oauthSvc := oauth.NewService(store, jwtMgr, upstream, policy, toOAuthConfig(cfg))

	if cfg.Storage.AuditLog.Enabled {
		sink, err := auditsqlite.Open(cfg.Storage.AuditLog.Path)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Error("error closing audit log", "error", err)
			}
		}()
		oauthSvc.SetAuditSink(sink)
	}

	provider, err := observability.Setup(ctx, observability.Config{
		TracingEnabled: cfg.Observability.TracingEnabled,
		MetricsEnabled: cfg.Observability.MetricsEnabled,
	})
	if err != nil {
		return fmt.Errorf("setup observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down observability providers", "error", err)
		}
	}()

	rateLimiter := memory.NewRateLimiter()

	server := inboundhttp.New(cfg, registry, core, journal, oauthSvc, rateLimiter, inboundhttp.WithLogger(logger))

	logger.Info("mcpgateway starting",
		"addr", fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		"base_url", cfg.Server.BaseURL,
		"storage", cfg.Storage.Type,
		"auth_enabled", cfg.Server.Auth.Enabled,
	)
	return server.Start(ctx)
}

// newKVStore selects the KV Store backend named by cfg.Storage.Type.
func newKVStore(cfg *config.Config, logger *slog.Logger) (kv.Store, error) {
	switch cfg.Storage.Type {
	case "redis", "valkey":
		return rediskv.New(cfg.Storage.ValkeyURL)
	default:
		return memorykv.NewWithLogger(logger), nil
	}
}

func toOAuthConfig(cfg *config.Config) oauth.Config {
	return oauth.Config{
		Issuer:               cfg.OAuth.Issuer,
		BaseURL:              cfg.Server.BaseURL,
		UpstreamDomain:       cfg.OAuth.UpstreamDomain,
		UpstreamClientID:     cfg.OAuth.UpstreamClientID,
		UpstreamClientSecret: cfg.OAuth.UpstreamClientSecret,
		UpstreamAudience:     cfg.OAuth.UpstreamAudience,
		SessionTTL:           cfg.Server.Auth.SessionTTL,
		AccessTokenTTL:       cfg.OAuth.AccessTokenTTL,
		RefreshTokenTTL:      cfg.OAuth.RefreshTokenTTL,
		AuthEnabled:          cfg.Server.Auth.Enabled,
		RotateRefreshTokens:  cfg.OAuth.RotateRefreshTokens,
		ExpectedAudience:     cfg.OAuth.ExpectedAudience,
		ScopePolicy:          cfg.OAuth.ScopePolicy,
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
