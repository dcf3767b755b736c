package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
	"github.com/vietddude/tokenkeeper/internal/infra/storage"
)

// Tracker updates per-identity health metrics after every refresh attempt.
type Tracker struct {
	repo storage.HealthRepository
	log  *slog.Logger
}

// NewTracker creates a new health tracker.
func NewTracker(repo storage.HealthRepository) *Tracker {
	return &Tracker{
		repo: repo,
		log:  slog.Default().With("component", "health"),
	}
}

// Update records the outcome of one refresh attempt and returns the
// recomputed metrics. lastErr is empty on success.
func (t *Tracker) Update(
	ctx context.Context,
	id domain.Identity,
	success bool,
	latency time.Duration,
	lastErr string,
) (*domain.HealthMetrics, error) {
	m, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load health metrics: %w", err)
	}
	if m == nil {
		m = &domain.HealthMetrics{Identity: id}
	}

	now := time.Now()
	m.TotalAttempts++

	if success {
		m.SuccessfulAttempts++
		m.ConsecutiveFailures = 0
		m.LastSuccessfulRefresh = &now
		m.LastError = ""

		// Running average over successful attempts only.
		n := int64(m.SuccessfulAttempts)
		m.AverageLatency = time.Duration(
			(int64(m.AverageLatency)*(n-1) + int64(latency)) / n,
		)
	} else {
		m.ConsecutiveFailures++
		m.LastError = lastErr
	}

	m.HealthScore = Score(m.SuccessRate(), m.ConsecutiveFailures, m.LastSuccessfulRefresh)
	m.UpdatedAt = now

	if err := t.repo.Put(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to store health metrics: %w", err)
	}

	t.logSignals(m)
	return m, nil
}

// GetStatus returns the current health view for one identity.
func (t *Tracker) GetStatus(ctx context.Context, id domain.Identity) (*HealthStatus, error) {
	m, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load health metrics: %w", err)
	}
	if m == nil {
		return &HealthStatus{Identity: id, Status: StatusUnknown}, nil
	}
	return &HealthStatus{
		Identity: id,
		Status:   StatusForScore(m.HealthScore),
		Metrics:  m,
	}, nil
}

// Score computes the 0-100 health score. Starts from the success rate,
// penalizes consecutive failures (10 each, max 50) and staleness (2 per
// hour beyond 24h, max 30; 20 flat when no success was ever recorded).
func Score(successRate float64, consecutiveFailures int, lastSuccess *time.Time) float64 {
	score := successRate

	failurePenalty := float64(consecutiveFailures) * 10
	if failurePenalty > 50 {
		failurePenalty = 50
	}
	score -= failurePenalty

	if lastSuccess == nil {
		score -= 20
	} else if hours := time.Since(*lastSuccess).Hours(); hours > 24 {
		stalePenalty := (hours - 24) * 2
		if stalePenalty > 30 {
			stalePenalty = 30
		}
		score -= stalePenalty
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// logSignals emits local alerting signals on every update. Deduplication is
// left to the monitoring service.
func (t *Tracker) logSignals(m *domain.HealthMetrics) {
	if m.ConsecutiveFailures >= 3 {
		t.log.Error("Identity refresh failing repeatedly",
			"identity", m.Identity.String(),
			"consecutive_failures", m.ConsecutiveFailures,
			"last_error", m.LastError)
	}
	if m.TotalAttempts >= 5 && m.SuccessRate() < 80 {
		t.log.Warn("Identity success rate degraded",
			"identity", m.Identity.String(),
			"success_rate", m.SuccessRate())
	}
	if m.HealthScore < 50 {
		t.log.Warn("Identity health score low",
			"identity", m.Identity.String(),
			"health_score", m.HealthScore)
	}
}
