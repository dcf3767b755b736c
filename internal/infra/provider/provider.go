// Package provider talks to third-party OAuth token endpoints.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// TokenPair is the result of a successful refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string // empty when the provider did not rotate it
	ExpiresAt    time.Time
}

// Client refreshes the access token for one connection.
type Client interface {
	Refresh(ctx context.Context, conn *domain.Connection) (*TokenPair, error)
}

// Failure is an HTTP-level rejection from the provider's token endpoint.
type Failure struct {
	StatusCode int
	Body       string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("provider returned %d: %s", f.StatusCode, f.Body)
}

// NetworkError wraps a transport-level failure (DNS, timeout, connection).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
