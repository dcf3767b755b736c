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

// Alert thresholds. Warning fires above/below the warning bound, critical
// above/below the critical bound.
const (
	successRateCritical = 60.0
	successRateWarning  = 80.0
	expiredPctCritical  = 25.0
	expiredPctWarning   = 10.0
	errorRateCritical   = 40.0
	errorRateWarning    = 20.0
)

// Alerter evaluates threshold rules over provider metrics and dispatches
// the resulting alerts.
type Alerter struct {
	repo     storage.AlertRepository
	channels []AlertChannel
	log      *slog.Logger
}

// NewAlerter creates an alerter dispatching to the given channels.
func NewAlerter(repo storage.AlertRepository, channels ...AlertChannel) *Alerter {
	return &Alerter{
		repo:     repo,
		channels: channels,
		log:      slog.Default().With("component", "alerting"),
	}
}

// Check evaluates every threshold rule independently for each metrics entry
// and dispatches each triggered alert. Dispatch and persistence failures are
// logged, never surfaced as refresh failures.
func (a *Alerter) Check(ctx context.Context, ms []*domain.ProviderMetrics) []*domain.Alert {
	var alerts []*domain.Alert
	for _, m := range ms {
		alerts = append(alerts, evaluate(m)...)
	}

	for _, alert := range alerts {
		a.dispatch(ctx, alert)
	}
	return alerts
}

// History returns alerts within the last hours, newest first, optionally
// filtered by provider.
func (a *Alerter) History(ctx context.Context, providerFilter string, hours int) ([]*domain.Alert, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	alerts, err := a.repo.History(ctx, providerFilter, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert history: %w", err)
	}
	return alerts, nil
}

func evaluate(m *domain.ProviderMetrics) []*domain.Alert {
	var out []*domain.Alert

	if sev, ok := thresholdBelow(m.SuccessRate, successRateCritical, successRateWarning); ok {
		out = append(out, newAlert(m, domain.AlertLowSuccessRate, sev,
			"Low refresh success rate",
			fmt.Sprintf("provider %s refresh success rate is %.1f%% over the last 24h", m.Provider, m.SuccessRate),
			map[string]string{"success_rate": fmt.Sprintf("%.1f", m.SuccessRate)},
		))
	}

	if sev, ok := thresholdAbove(m.ExpiredRatio(), expiredPctCritical, expiredPctWarning); ok {
		out = append(out, newAlert(m, domain.AlertExpiredTokens, sev,
			"Expired tokens above threshold",
			fmt.Sprintf("provider %s has %d of %d connections with expired tokens (%.1f%%)",
				m.Provider, m.ExpiredTokens, m.TotalIdentities, m.ExpiredRatio()),
			map[string]string{"expired_ratio": fmt.Sprintf("%.1f", m.ExpiredRatio())},
		))
	}

	if sev, ok := thresholdAbove(m.ErrorRate(), errorRateCritical, errorRateWarning); ok {
		out = append(out, newAlert(m, domain.AlertHighErrorRate, sev,
			"High refresh error rate",
			fmt.Sprintf("provider %s had %d failed refreshes across %d identities over the last 24h",
				m.Provider, m.FailedRefreshes, m.TotalIdentities),
			map[string]string{"error_rate": fmt.Sprintf("%.1f", m.ErrorRate())},
		))
	}

	return out
}

func newAlert(
	m *domain.ProviderMetrics,
	t domain.AlertType,
	sev domain.AlertSeverity,
	title, message string,
	metadata map[string]string,
) *domain.Alert {
	return &domain.Alert{
		ID:        domain.AlertID(t, m.Provider, m.Timestamp),
		Type:      t,
		Severity:  sev,
		Title:     title,
		Message:   message,
		Scope:     domain.AlertScope{Provider: m.Provider},
		Timestamp: m.Timestamp,
		Metadata:  metadata,
	}
}

func thresholdBelow(v, critical, warning float64) (domain.AlertSeverity, bool) {
	switch {
	case v < critical:
		return domain.AlertCritical, true
	case v < warning:
		return domain.AlertWarning, true
	default:
		return "", false
	}
}

func thresholdAbove(v, critical, warning float64) (domain.AlertSeverity, bool) {
	switch {
	case v > critical:
		return domain.AlertCritical, true
	case v > warning:
		return domain.AlertWarning, true
	default:
		return "", false
	}
}

func (a *Alerter) dispatch(ctx context.Context, alert *domain.Alert) {
	metrics.AlertsTriggered.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()

	for _, ch := range a.channels {
		if err := ch.Dispatch(ctx, alert); err != nil {
			a.log.Warn("Alert dispatch failed",
				"alert_id", alert.ID, "channel", fmt.Sprintf("%T", ch), "error", err)
		}
	}

	if err := a.repo.Save(ctx, alert); err != nil {
		a.log.Error("Failed to persist alert", "alert_id", alert.ID, "error", err)
	}
}
