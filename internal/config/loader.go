package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// envPrefix is the fixed prefix for every environment-variable override.
const envPrefix = "MCP_CONFIG_"

// configKeys enumerates every dotted config path this loader binds to an
// MCP_CONFIG_ environment variable. Kept as an explicit list, rather than
// reflecting over the struct, so the env scheme stays in lockstep with
// whatever Config actually declares.
var configKeys = []string{
	"server.httpPort",
	"server.baseUrl",
	"server.environment",
	"server.logLevel",
	"server.auth.enabled",
	"server.auth.sessionTTL",
	"server.cors.allowedOrigins",
	"storage.type",
	"storage.valkeyUrl",
	"storage.eventTTL",
	"storage.auditLog.enabled",
	"storage.auditLog.path",
	"oauth.issuer",
	"oauth.upstreamDomain",
	"oauth.upstreamClientId",
	"oauth.upstreamClientSecret",
	"oauth.upstreamAudience",
	"oauth.jwtSecret",
	"oauth.accessTokenTTL",
	"oauth.refreshTokenTTL",
	"oauth.rotateRefreshTokens",
	"oauth.expectedAudience",
	"oauth.scopePolicy",
	"rateLimit.requestsPerMinute",
	"observability.metricsEnabled",
	"observability.tracingEnabled",
}

// Load assembles Config from, lowest priority first: built-in defaults, an
// optional YAML file at path (skipped if path is empty or the file doesn't
// exist), and MCP_CONFIG_-prefixed environment variables. The result is
// validated before being returned.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else {
			var fileValues map[string]interface{}
			if err := yaml.Unmarshal(raw, &fileValues); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
			if err := v.MergeConfigMap(fileValues); err != nil {
				return nil, fmt.Errorf("config: merge %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults seeds v with every field of def, so a key left unset by both
// the YAML file and the environment still resolves to the built-in default.
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("server.httpPort", def.Server.HTTPPort)
	v.SetDefault("server.baseUrl", def.Server.BaseURL)
	v.SetDefault("server.environment", def.Server.Environment)
	v.SetDefault("server.logLevel", def.Server.LogLevel)
	v.SetDefault("server.auth.enabled", def.Server.Auth.Enabled)
	v.SetDefault("server.auth.sessionTTL", def.Server.Auth.SessionTTL)
	v.SetDefault("server.cors.allowedOrigins", def.Server.CORS.AllowedOrigins)
	v.SetDefault("storage.type", def.Storage.Type)
	v.SetDefault("storage.valkeyUrl", def.Storage.ValkeyURL)
	v.SetDefault("storage.eventTTL", def.Storage.EventTTL)
	v.SetDefault("storage.auditLog.enabled", def.Storage.AuditLog.Enabled)
	v.SetDefault("storage.auditLog.path", def.Storage.AuditLog.Path)
	v.SetDefault("oauth.issuer", def.OAuth.Issuer)
	v.SetDefault("oauth.upstreamDomain", def.OAuth.UpstreamDomain)
	v.SetDefault("oauth.upstreamClientId", def.OAuth.UpstreamClientID)
	v.SetDefault("oauth.upstreamClientSecret", def.OAuth.UpstreamClientSecret)
	v.SetDefault("oauth.upstreamAudience", def.OAuth.UpstreamAudience)
	v.SetDefault("oauth.jwtSecret", def.OAuth.JWTSecret)
	v.SetDefault("oauth.accessTokenTTL", def.OAuth.AccessTokenTTL)
	v.SetDefault("oauth.refreshTokenTTL", def.OAuth.RefreshTokenTTL)
	v.SetDefault("oauth.rotateRefreshTokens", def.OAuth.RotateRefreshTokens)
	v.SetDefault("oauth.expectedAudience", def.OAuth.ExpectedAudience)
	v.SetDefault("oauth.scopePolicy", def.OAuth.ScopePolicy)
	v.SetDefault("rateLimit.requestsPerMinute", def.RateLimit.RequestsPerMinute)
	v.SetDefault("observability.metricsEnabled", def.Observability.MetricsEnabled)
	v.SetDefault("observability.tracingEnabled", def.Observability.TracingEnabled)
}

// applyEnvOverrides scans os.Environ() for each known config key's
// MCP_CONFIG_ variable and, when present, type-sniffs its value
// (bool/int/JSON/string) and layers it into v via viper.Set. This is the
// custom binding §6 calls for in place of viper's automatic, literal
// dot-to-underscore BindEnv/AutomaticEnv path: the prefix is MCP_CONFIG_
// and each dotted segment is split at camelCase word boundaries before
// being upper-cased, so "server.auth.sessionTTL" binds to
// MCP_CONFIG_SERVER_AUTH_SESSION_TTL rather than MCP_CONFIG_SERVER_AUTH_SESSIONTTL.
func applyEnvOverrides(v *viper.Viper) {
	for _, key := range configKeys {
		envVar := envVarForKey(key)
		raw, ok := os.LookupEnv(envVar)
		if !ok {
			continue
		}
		v.Set(key, parseEnvValue(raw))
	}
}

// envVarForKey computes the MCP_CONFIG_ environment variable name for a
// dotted config path: each dot-separated segment is split at camelCase word
// boundaries and upper-cased, then every resulting word across the whole
// key is joined with underscores.
//
// "server.auth.sessionTTL" -> "MCP_CONFIG_SERVER_AUTH_SESSION_TTL"
// "storage.valkeyUrl"      -> "MCP_CONFIG_STORAGE_VALKEY_URL"
func envVarForKey(key string) string {
	segments := strings.Split(key, ".")
	parts := make([]string, 0, len(segments)*2)
	for _, seg := range segments {
		for _, word := range splitCamelCase(seg) {
			parts = append(parts, strings.ToUpper(word))
		}
	}
	return envPrefix + strings.Join(parts, "_")
}

// splitCamelCase splits s at every transition from a lowercase (or digit)
// rune into an uppercase rune, so a run of capitals (an acronym like "TTL"
// or "URL") stays together as a single word instead of exploding into
// single letters.
func splitCamelCase(s string) []string {
	runes := []rune(s)
	var words []string
	var cur []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) {
			words = append(words, string(cur))
			cur = nil
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}

// parseEnvValue type-sniffs a raw environment variable value per §6:
// boolean, integer, JSON array/object, else the raw string.
func parseEnvValue(raw string) interface{} {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var v interface{}
		if err := yaml.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return raw
}
