// Package monitoring aggregates provider-level metrics and raises
// threshold-based alerts.
package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
	"github.com/vietddude/tokenkeeper/internal/infra/storage"
	"github.com/vietddude/tokenkeeper/internal/metrics"
)

// aggregationWindow is the rolling window for attempt-log aggregation.
const aggregationWindow = 24 * time.Hour

// Collector builds periodic per-provider metric snapshots.
type Collector struct {
	providers   []string
	connections storage.ConnectionRepository
	attempts    storage.AttemptRepository
	snapshots   storage.ProviderMetricsRepository
	log         *slog.Logger
}

// NewCollector creates a metrics collector for the given provider names.
func NewCollector(
	providers []string,
	connections storage.ConnectionRepository,
	attempts storage.AttemptRepository,
	snapshots storage.ProviderMetricsRepository,
) *Collector {
	return &Collector{
		providers:   providers,
		connections: connections,
		attempts:    attempts,
		snapshots:   snapshots,
		log:         slog.Default().With("component", "monitoring"),
	}
}

// Collect builds and persists a snapshot per selected provider
// (providerFilter empty = all configured providers).
func (c *Collector) Collect(ctx context.Context, providerFilter string) ([]*domain.ProviderMetrics, error) {
	var selected []string
	for _, p := range c.providers {
		if providerFilter == "" || p == providerFilter {
			selected = append(selected, p)
		}
	}

	out := make([]*domain.ProviderMetrics, 0, len(selected))
	for _, p := range selected {
		m, err := c.collectProvider(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to collect metrics for %s: %w", p, err)
		}
		if err := c.snapshots.Save(ctx, m); err != nil {
			return nil, fmt.Errorf("failed to persist snapshot for %s: %w", p, err)
		}

		metrics.ProviderHealthScore.WithLabelValues(p).Set(m.HealthScore)
		metrics.ExpiredTokens.WithLabelValues(p).Set(float64(m.ExpiredTokens))
		out = append(out, m)
	}
	return out, nil
}

func (c *Collector) collectProvider(ctx context.Context, provider string) (*domain.ProviderMetrics, error) {
	now := time.Now()

	conns, err := c.connections.Scan(ctx, provider, false)
	if err != nil {
		return nil, err
	}

	m := &domain.ProviderMetrics{
		Provider:          provider,
		Timestamp:         now,
		TotalIdentities:   len(conns),
		ErrorDistribution: make(map[string]int),
	}
	for _, conn := range conns {
		if conn.Status == domain.ConnectionStatusActive {
			m.ActiveConnections++
		}
		if conn.ExpiresAt.Before(now) {
			m.ExpiredTokens++
		}
	}

	attempts, err := c.attempts.QueryByProvider(ctx, provider, now.Add(-aggregationWindow))
	if err != nil {
		return nil, err
	}

	var successes, failures int
	var successLatency time.Duration
	for _, a := range attempts {
		switch a.Outcome {
		case domain.OutcomeSuccess:
			successes++
			successLatency += a.Latency
		case domain.OutcomeRateLimited:
			// Rejected before reaching the provider, not a refresh failure.
		default:
			failures++
			m.ErrorDistribution[a.ErrorType]++
		}
	}

	m.FailedRefreshes = failures
	if successes+failures > 0 {
		m.SuccessRate = float64(successes) / float64(successes+failures) * 100
	} else {
		m.SuccessRate = 100
	}
	if successes > 0 {
		m.AverageRefreshMs = float64(successLatency.Milliseconds()) / float64(successes)
	}

	m.HealthScore = aggregateScore(m.SuccessRate, m.ExpiredRatio(), m.FailedRefreshes)

	c.log.Debug("Collected provider metrics",
		"provider", provider,
		"identities", m.TotalIdentities,
		"success_rate", m.SuccessRate,
		"health_score", m.HealthScore)
	return m, nil
}

// aggregateScore is the provider-level variant of the health score: starts
// at 100 and penalizes degraded success rate, expired tokens beyond 5% and
// refresh failures beyond 5.
func aggregateScore(successRate, expiredRatio float64, failedRefreshes int) float64 {
	score := 100.0

	if successRate < 95 {
		score -= 95 - successRate
	}
	if expiredRatio > 5 {
		score -= (expiredRatio - 5) * 3
	}
	if failedRefreshes > 5 {
		score -= float64(failedRefreshes-5) * 2
	}

	if score < 0 {
		return 0
	}
	return score
}
