package oauth

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks OAuth Proxy counters, registered against the Prometheus
// registry passed to NewMetrics and mirrored locally so GET /oauth/stats can report
// them without a registry scrape round-trip.
type Metrics struct {
	registrations     prometheus.Counter
	authorizeAttempts prometheus.Counter
	tokensIssued      prometheus.Counter
	tokensRevoked     prometheus.Counter

	registrationsCount     atomic.Uint64
	authorizeAttemptsCount atomic.Uint64
	tokensIssuedCount      atomic.Uint64
	tokensRevokedCount     atomic.Uint64
}

// NewMetrics constructs and registers a Metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpgateway_oauth_registrations_total",
			Help: "Total Dynamic Client Registration requests served.",
		}),
		authorizeAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpgateway_oauth_authorize_attempts_total",
			Help: "Total GET /authorize requests served.",
		}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpgateway_oauth_tokens_issued_total",
			Help: "Total access/refresh token pairs minted.",
		}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpgateway_oauth_tokens_revoked_total",
			Help: "Total tokens revoked via POST /oauth/revoke.",
		}),
	}
	reg.MustRegister(m.registrations, m.authorizeAttempts, m.tokensIssued, m.tokensRevoked)
	return m
}

func (m *Metrics) incRegistration() {
	if m == nil {
		return
	}
	m.registrations.Inc()
	m.registrationsCount.Add(1)
}

func (m *Metrics) incAuthorizeAttempt() {
	if m == nil {
		return
	}
	m.authorizeAttempts.Inc()
	m.authorizeAttemptsCount.Add(1)
}

func (m *Metrics) incTokenIssued() {
	if m == nil {
		return
	}
	m.tokensIssued.Inc()
	m.tokensIssuedCount.Add(1)
}

func (m *Metrics) incTokenRevoked() {
	if m == nil {
		return
	}
	m.tokensRevoked.Inc()
	m.tokensRevokedCount.Add(1)
}

// Stats is the GET /oauth/stats response shape.
type Stats struct {
	Registrations     uint64 `json:"registrations"`
	AuthorizeAttempts uint64 `json:"authorize_attempts"`
	TokensIssued      uint64 `json:"tokens_issued"`
	TokensRevoked     uint64 `json:"tokens_revoked"`
}

// Stats implements GET /oauth/stats. If no Metrics was configured via
// SetMetrics, every counter reads zero.
func (s *Service) Stats() Stats {
	if s.metrics == nil {
		return Stats{}
	}
	return Stats{
		Registrations:     s.metrics.registrationsCount.Load(),
		AuthorizeAttempts: s.metrics.authorizeAttemptsCount.Load(),
		TokensIssued:      s.metrics.tokensIssuedCount.Load(),
		TokensRevoked:     s.metrics.tokensRevokedCount.Load(),
	}
}

// SetMetrics wires m into s; subsequent RegisterClient/Authorize/Exchange/
// Revoke calls increment its counters. Safe to call once at construction.
func (s *Service) SetMetrics(m *Metrics) {
	s.metrics = m
}
