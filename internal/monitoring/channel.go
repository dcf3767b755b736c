package monitoring

import (
	"context"
	"log/slog"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// AlertChannel delivers alerts to an external sink. Delivery is
// fire-and-forget: errors are logged by the alerter, never propagated.
type AlertChannel interface {
	Dispatch(ctx context.Context, alert *domain.Alert) error
}

// LogChannel writes alerts to the structured log, routed by severity.
type LogChannel struct {
	log *slog.Logger
}

// NewLogChannel creates the default log-based alert channel.
func NewLogChannel() *LogChannel {
	return &LogChannel{log: slog.Default().With("component", "alerts")}
}

// Dispatch logs the alert at the level matching its severity.
func (c *LogChannel) Dispatch(_ context.Context, alert *domain.Alert) error {
	attrs := []any{
		"alert_id", alert.ID,
		"type", alert.Type,
		"provider", alert.Scope.Provider,
		"message", alert.Message,
	}

	switch alert.Severity {
	case domain.AlertCritical, domain.AlertError:
		c.log.Error(alert.Title, attrs...)
	case domain.AlertWarning:
		c.log.Warn(alert.Title, attrs...)
	default:
		c.log.Info(alert.Title, attrs...)
	}
	return nil
}
