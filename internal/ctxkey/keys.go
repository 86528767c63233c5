// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the enriched per-request logger.
// Used by HTTP middleware to store and retrieve the logger carrying
// request_id/ip/mcp_session_id/mcp_protocol_version fields.
type LoggerKey struct{}

// RequestIDKey is the context key type for the correlation id of the
// current request (x-request-id, or a generated UUID v4).
type RequestIDKey struct{}

// ProgressTokenKey is the context key type for the progress token injected
// into a tool/prompt call so progress notifications can be routed back to
// the originating SSE stream.
type ProgressTokenKey struct{}
