package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

var (
	// ErrConnectionNotFound is returned when an identity has no stored connection.
	ErrConnectionNotFound = errors.New("connection not found")
)

// TokenUpdate carries the fields written back after a successful refresh.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string // empty = keep the existing one
	ExpiresAt    time.Time
}

// ConnectionRepository handles OAuth connection storage.
type ConnectionRepository interface {
	// Get retrieves the connection for one identity.
	Get(ctx context.Context, id domain.Identity) (*domain.Connection, error)

	// Scan lists connections, optionally filtered by provider and status.
	Scan(ctx context.Context, providerFilter string, activeOnly bool) ([]*domain.Connection, error)

	// UpdateToken stores refreshed token material.
	UpdateToken(ctx context.Context, id domain.Identity, upd TokenUpdate) error

	// UpdateStatus changes the connection lifecycle state.
	UpdateStatus(ctx context.Context, id domain.Identity, status domain.ConnectionStatus) error
}

// AttemptRepository is the append-only refresh attempt log.
type AttemptRepository interface {
	// Append records one attempt.
	Append(ctx context.Context, a *domain.RefreshAttempt) error

	// QueryByProvider returns attempts for a provider since the given time.
	QueryByProvider(ctx context.Context, provider string, since time.Time) ([]*domain.RefreshAttempt, error)

	// QueryByIdentity returns attempts for one identity since the given time.
	QueryByIdentity(ctx context.Context, id domain.Identity, since time.Time) ([]*domain.RefreshAttempt, error)

	// CountSince counts attempts for one identity since the given time.
	// Backs the rolling-window rate limiter, so it must be cheap.
	CountSince(ctx context.Context, id domain.Identity, since time.Time) (int, error)

	// DeleteOlderThan removes attempts outside the retention window.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// HealthRepository stores per-identity health metrics (one record per
// identity, last writer wins).
type HealthRepository interface {
	Get(ctx context.Context, id domain.Identity) (*domain.HealthMetrics, error)
	Put(ctx context.Context, m *domain.HealthMetrics) error
}

// ProviderMetricsRepository stores periodic provider snapshots.
type ProviderMetricsRepository interface {
	Save(ctx context.Context, m *domain.ProviderMetrics) error
	Latest(ctx context.Context, provider string) (*domain.ProviderMetrics, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// AlertRepository stores alert history.
type AlertRepository interface {
	Save(ctx context.Context, a *domain.Alert) error

	// History returns alerts since the given time, newest first,
	// optionally filtered by provider.
	History(ctx context.Context, providerFilter string, since time.Time) ([]*domain.Alert, error)

	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
