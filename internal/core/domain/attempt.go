package domain

import "time"

// AttemptOutcome is the result of a single refresh attempt.
type AttemptOutcome string

const (
	OutcomeSuccess             AttemptOutcome = "success"
	OutcomeFailedRetryable     AttemptOutcome = "failed_retryable"
	OutcomeFailedPermanent     AttemptOutcome = "failed_permanent"
	OutcomeExpiredRefreshToken AttemptOutcome = "expired_refresh_token"
	OutcomeInvalidCredentials  AttemptOutcome = "invalid_credentials"
	OutcomeRateLimited         AttemptOutcome = "rate_limited"
)

// RefreshAttempt is one append-only log record per provider call (or per
// rate-limit rejection, recorded with zero latency).
type RefreshAttempt struct {
	ID            string         `json:"id"`
	Identity      Identity       `json:"identity"`
	Timestamp     time.Time      `json:"timestamp"`
	AttemptNumber int            `json:"attempt_number"`
	Outcome       AttemptOutcome `json:"outcome"`
	ErrorType     string         `json:"error_type,omitempty"`
	Latency       time.Duration  `json:"latency"`
	BackoffDelay  time.Duration  `json:"backoff_delay"`
	CorrelationID string         `json:"correlation_id"`
}
