// Package refresh keeps OAuth access tokens valid: it classifies refresh
// failures, retries with bounded backoff, enforces per-identity rate limits
// and coordinates bulk refreshes.
package refresh

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// Backoff caps per error category.
const (
	capNetwork      = 60 * time.Second
	capRateLimiting = 300 * time.Second
	capProvider     = 120 * time.Second
	capDefault      = 30 * time.Second

	defaultRetryAfter = 60 * time.Second
)

// retryAfterRe matches "retry-after: 45", "retry_after=45" and similar
// phrasings inside provider error bodies.
var retryAfterRe = regexp.MustCompile(`(?i)retry[-_ ]after[:=]?\s*(\d+)`)

// ClassifyHTTP maps an HTTP rejection from the token endpoint to a TokenError.
func ClassifyHTTP(statusCode int, body string, errCtx domain.ErrorContext) *domain.TokenError {
	bodyLower := strings.ToLower(body)

	switch {
	case statusCode == 401 && strings.Contains(bodyLower, "invalid_grant"):
		// The refresh token itself was invalidated, re-auth required.
		return &domain.TokenError{
			Category:  domain.CategoryAuthentication,
			Severity:  domain.SeverityHigh,
			Code:      domain.CodeExpiredRefreshToken,
			Message:   "refresh token expired or invalidated",
			Retryable: false,
			Context:   errCtx,
		}
	case statusCode == 401:
		return &domain.TokenError{
			Category:  domain.CategoryAuthentication,
			Severity:  domain.SeverityLow,
			Code:      domain.CodeExpiredAccessToken,
			Message:   "access token expired",
			Retryable: true,
			Context:   errCtx,
		}
	case statusCode == 403 && strings.Contains(bodyLower, "scope"):
		return &domain.TokenError{
			Category:  domain.CategoryAuthorization,
			Severity:  domain.SeverityMedium,
			Code:      domain.CodeInsufficientScope,
			Message:   "granted scopes do not cover this operation",
			Retryable: false,
			Context:   errCtx,
		}
	case statusCode == 403:
		return &domain.TokenError{
			Category:  domain.CategoryAuthentication,
			Severity:  domain.SeverityHigh,
			Code:      domain.CodeRevokedToken,
			Message:   "token revoked by user or provider",
			Retryable: false,
			Context:   errCtx,
		}
	case statusCode == 429:
		return &domain.TokenError{
			Category:   domain.CategoryRateLimiting,
			Severity:   domain.SeverityMedium,
			Code:       domain.CodeRateLimitExceeded,
			Message:    "provider rate limit exceeded",
			Retryable:  true,
			RetryAfter: parseRetryAfter(body),
			Context:    errCtx,
		}
	case statusCode >= 500:
		return &domain.TokenError{
			Category:  domain.CategoryProviderIssue,
			Severity:  domain.SeverityMedium,
			Code:      domain.CodeProviderError,
			Message:   "provider returned " + strconv.Itoa(statusCode),
			Retryable: true,
			Context:   errCtx,
		}
	default:
		return &domain.TokenError{
			Category:  domain.CategoryProviderIssue,
			Severity:  domain.SeverityMedium,
			Code:      domain.CodeProviderError,
			Message:   "unexpected provider response " + strconv.Itoa(statusCode),
			Retryable: true,
			Context:   errCtx,
		}
	}
}

// ClassifyError maps a non-HTTP failure (transport faults, library errors,
// local misconfiguration) to a TokenError by message matching.
func ClassifyError(err error, errCtx domain.ErrorContext) *domain.TokenError {
	msg := err.Error()
	msgLower := strings.ToLower(msg)

	switch {
	case containsAny(msgLower, "network", "timeout", "connection", "dns"):
		return &domain.TokenError{
			Category:  domain.CategoryNetwork,
			Severity:  domain.SeverityMedium,
			Code:      domain.CodeNetworkError,
			Message:   msg,
			Retryable: true,
			Context:   errCtx,
		}
	case strings.Contains(msgLower, "invalid_grant"):
		return &domain.TokenError{
			Category:  domain.CategoryAuthentication,
			Severity:  domain.SeverityHigh,
			Code:      domain.CodeExpiredRefreshToken,
			Message:   msg,
			Retryable: false,
			Context:   errCtx,
		}
	case strings.Contains(msgLower, "invalid_token"):
		return &domain.TokenError{
			Category:  domain.CategoryAuthentication,
			Severity:  domain.SeverityHigh,
			Code:      domain.CodeInvalidToken,
			Message:   msg,
			Retryable: false,
			Context:   errCtx,
		}
	case strings.Contains(msgLower, "revoked"):
		return &domain.TokenError{
			Category:  domain.CategoryAuthentication,
			Severity:  domain.SeverityHigh,
			Code:      domain.CodeRevokedToken,
			Message:   msg,
			Retryable: false,
			Context:   errCtx,
		}
	case strings.Contains(msgLower, "scope"):
		return &domain.TokenError{
			Category:  domain.CategoryAuthorization,
			Severity:  domain.SeverityMedium,
			Code:      domain.CodeInsufficientScope,
			Message:   msg,
			Retryable: false,
			Context:   errCtx,
		}
	case containsAny(msgLower, "rate limit", "too many requests", "quota"):
		return &domain.TokenError{
			Category:   domain.CategoryRateLimiting,
			Severity:   domain.SeverityMedium,
			Code:       domain.CodeRateLimitExceeded,
			Message:    msg,
			Retryable:  true,
			RetryAfter: parseRetryAfter(msg),
			Context:    errCtx,
		}
	case containsAny(msgLower, "config", "credential", "secret"):
		return &domain.TokenError{
			Category:  domain.CategoryConfiguration,
			Severity:  domain.SeverityCritical,
			Code:      domain.CodeConfigurationError,
			Message:   msg,
			Retryable: false,
			Context:   errCtx,
		}
	default:
		return &domain.TokenError{
			Category:  domain.CategorySystem,
			Severity:  domain.SeverityHigh,
			Code:      domain.CodeSystemError,
			Message:   msg,
			Retryable: true,
			Context:   errCtx,
		}
	}
}

// ShouldRetry decides whether another attempt is allowed for this error.
func ShouldRetry(e *domain.TokenError, maxRetries, attempt int) bool {
	if !e.Retryable {
		return false
	}
	if attempt >= maxRetries {
		return false
	}
	if e.Severity == domain.SeverityCritical {
		return false
	}
	return true
}

// RetryDelay computes the backoff before the next attempt (attempt is
// 1-based). A provider-supplied RetryAfter wins; otherwise exponential
// backoff scaled by severity and capped per category. Deterministic —
// jitter is the caller's concern.
func RetryDelay(e *domain.TokenError, attempt int, base time.Duration) time.Duration {
	if e.RetryAfter > 0 {
		return e.RetryAfter
	}

	delay := float64(base) * severityMultiplier(e.Severity) * math.Pow(2, float64(attempt-1))

	limit := categoryCap(e.Category)
	if delay > float64(limit) {
		return limit
	}
	return time.Duration(delay)
}

func severityMultiplier(s domain.ErrorSeverity) float64 {
	switch s {
	case domain.SeverityLow:
		return 1.0
	case domain.SeverityMedium:
		return 1.5
	case domain.SeverityHigh:
		return 2.0
	case domain.SeverityCritical:
		return 3.0
	default:
		return 1.0
	}
}

func categoryCap(c domain.ErrorCategory) time.Duration {
	switch c {
	case domain.CategoryNetwork:
		return capNetwork
	case domain.CategoryRateLimiting:
		return capRateLimiting
	case domain.CategoryProviderIssue:
		return capProvider
	default:
		return capDefault
	}
}

func parseRetryAfter(body string) time.Duration {
	m := retryAfterRe.FindStringSubmatch(body)
	if len(m) == 2 {
		if secs, err := strconv.Atoi(m[1]); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
