package domain

import (
	"fmt"
	"time"
)

// ErrorCategory groups refresh failures by their root cause.
type ErrorCategory string

const (
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAuthorization  ErrorCategory = "authorization"
	CategoryNetwork        ErrorCategory = "network"
	CategoryRateLimiting   ErrorCategory = "rate_limiting"
	CategoryProviderIssue  ErrorCategory = "provider_issue"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategorySystem         ErrorCategory = "system"
)

// ErrorSeverity ranks how serious a classified failure is.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// Error codes produced by the classifier.
const (
	CodeExpiredAccessToken  = "expired_access_token"
	CodeExpiredRefreshToken = "expired_refresh_token"
	CodeInvalidToken        = "invalid_token"
	CodeRevokedToken        = "revoked_token"
	CodeInsufficientScope   = "insufficient_scope"
	CodeRateLimitExceeded   = "rate_limit_exceeded"
	CodeNetworkError        = "network_error"
	CodeProviderError       = "provider_error"
	CodeConfigurationError  = "configuration_error"
	CodeSystemError         = "system_error"
)

// ErrorContext carries where and when a failure happened.
type ErrorContext struct {
	Identity      Identity `json:"identity"`
	Operation     string   `json:"operation"`
	CorrelationID string   `json:"correlation_id"`
	Attempt       int      `json:"attempt"`
}

// TokenError is a classified refresh failure.
type TokenError struct {
	Category   ErrorCategory `json:"category"`
	Severity   ErrorSeverity `json:"severity"`
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retry_after,omitempty"` // 0 = not specified
	Context    ErrorContext  `json:"context"`
}

// Error implements the error interface.
func (e *TokenError) Error() string {
	return fmt.Sprintf("%s (%s/%s): %s", e.Code, e.Category, e.Severity, e.Message)
}

// RequiresReauth reports whether the caller must prompt the user to
// re-authorize instead of retrying.
func (e *TokenError) RequiresReauth() bool {
	switch e.Code {
	case CodeExpiredRefreshToken, CodeRevokedToken, CodeInvalidToken:
		return true
	}
	return false
}
