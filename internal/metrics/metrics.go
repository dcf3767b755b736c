package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshAttempts tracks refresh attempts per provider and outcome
	RefreshAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenkeeper_refresh_attempts_total",
			Help: "Total number of token refresh attempts",
		},
		[]string{"provider", "outcome"},
	)

	// RefreshLatency tracks provider token endpoint latency
	RefreshLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokenkeeper_refresh_latency_seconds",
			Help:    "Token refresh latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// RateLimited tracks refreshes rejected by the per-identity rate limiter
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenkeeper_rate_limited_total",
			Help: "Total number of refreshes rejected by the rate limiter",
		},
		[]string{"provider"},
	)

	// ProviderHealthScore tracks the aggregate 0-100 health score per provider
	ProviderHealthScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tokenkeeper_provider_health_score",
			Help: "Aggregate provider health score (0-100)",
		},
		[]string{"provider"},
	)

	// ExpiredTokens tracks expired connections per provider
	ExpiredTokens = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tokenkeeper_expired_tokens",
			Help: "Number of connections with an expired access token",
		},
		[]string{"provider"},
	)

	// AlertsTriggered tracks alerts by type and severity
	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenkeeper_alerts_total",
			Help: "Total number of alerts triggered",
		},
		[]string{"type", "severity"},
	)
)
