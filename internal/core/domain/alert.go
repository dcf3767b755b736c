package domain

import (
	"fmt"
	"time"
)

// AlertType identifies which threshold rule produced an alert.
type AlertType string

const (
	AlertConsecutiveFailures  AlertType = "consecutive_failures"
	AlertLowSuccessRate       AlertType = "low_success_rate"
	AlertHighErrorRate        AlertType = "high_error_rate"
	AlertExpiredTokens        AlertType = "expired_tokens"
	AlertMissingRefreshTokens AlertType = "missing_refresh_tokens"
	AlertProviderOutage       AlertType = "provider_outage"
	AlertRateLimitExceeded    AlertType = "rate_limit_exceeded"
	AlertConfigurationError   AlertType = "configuration_error"
)

// AlertSeverity ranks operator urgency.
type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "info"
	AlertWarning  AlertSeverity = "warning"
	AlertError    AlertSeverity = "error"
	AlertCritical AlertSeverity = "critical"
)

// AlertScope names what the alert is about: a whole provider, or one identity.
type AlertScope struct {
	Provider string    `json:"provider,omitempty"`
	Identity *Identity `json:"identity,omitempty"`
}

// Alert is a single triggered threshold rule.
type Alert struct {
	ID            string            `json:"id"`
	Type          AlertType         `json:"type"`
	Severity      AlertSeverity     `json:"severity"`
	Title         string            `json:"title"`
	Message       string            `json:"message"`
	Scope         AlertScope        `json:"scope"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// AlertID builds the deterministic alert identifier: the same rule firing
// for the same scope within the same second yields the same ID.
func AlertID(t AlertType, scope string, ts time.Time) string {
	return fmt.Sprintf("%s-%s-%d", t, scope, ts.Unix())
}
