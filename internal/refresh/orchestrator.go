package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
	"github.com/vietddude/tokenkeeper/internal/health"
	"github.com/vietddude/tokenkeeper/internal/infra/provider"
	"github.com/vietddude/tokenkeeper/internal/infra/storage"
	"github.com/vietddude/tokenkeeper/internal/metrics"
)

// ErrRefreshInProgress is returned when another process holds the
// per-identity refresh lock.
var ErrRefreshInProgress = errors.New("refresh already in progress for identity")

// Config defines retry and rate-limit behavior.
type Config struct {
	MaxRetries      int           // provider calls per logical refresh
	BaseDelay       time.Duration // backoff base before severity scaling
	RateLimitMax    int           // attempts allowed per identity per window
	RateLimitWindow time.Duration // rolling window size
	LockTTL         time.Duration // per-identity lock expiry
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxRetries:      5,
	BaseDelay:       1 * time.Second,
	RateLimitMax:    10,
	RateLimitWindow: 1 * time.Hour,
	LockTTL:         5 * time.Minute,
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultConfig.MaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultConfig.BaseDelay
	}
	if c.RateLimitMax <= 0 {
		c.RateLimitMax = DefaultConfig.RateLimitMax
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = DefaultConfig.RateLimitWindow
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultConfig.LockTTL
	}
	return c
}

// IdentityLocker serializes refreshes for one identity across processes.
// Optional; without it two concurrent refreshes for the same identity can
// race on the stored refresh token.
type IdentityLocker interface {
	TryLock(ctx context.Context, id domain.Identity, ttl time.Duration) (unlock func(), ok bool, err error)
}

// Status is the terminal state of one logical refresh call.
type Status string

const (
	StatusSuccess             Status = "success"
	StatusFailedRetryable     Status = "failed_retryable"
	StatusFailedPermanent     Status = "failed_permanent"
	StatusExpiredRefreshToken Status = "expired_refresh_token"
	StatusInvalidCredentials  Status = "invalid_credentials"
	StatusRateLimited         Status = "rate_limited"
)

// Result is the outcome of RefreshWithBackoff.
type Result struct {
	Identity       domain.Identity     `json:"identity"`
	Status         Status              `json:"status"`
	Attempts       int                 `json:"attempts"`
	Latency        time.Duration       `json:"latency"`
	RetryAfter     time.Duration       `json:"retry_after,omitempty"`
	RequiresReauth bool                `json:"requires_reauth"`
	Token          *provider.TokenPair `json:"-"`
	Err            *domain.TokenError  `json:"error,omitempty"`
	CorrelationID  string              `json:"correlation_id"`
}

// Succeeded reports whether the refresh produced a valid token.
func (r *Result) Succeeded() bool { return r.Status == StatusSuccess }

// Orchestrator executes single refreshes with bounded retries, backoff and
// per-identity rate limiting.
type Orchestrator struct {
	cfg         Config
	client      provider.Client
	connections storage.ConnectionRepository
	attempts    storage.AttemptRepository
	tracker     *health.Tracker
	locker      IdentityLocker // nil = no cross-process locking
	log         *slog.Logger
}

// NewOrchestrator creates a refresh orchestrator. locker may be nil.
func NewOrchestrator(
	cfg Config,
	client provider.Client,
	connections storage.ConnectionRepository,
	attempts storage.AttemptRepository,
	tracker *health.Tracker,
	locker IdentityLocker,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg.withDefaults(),
		client:      client,
		connections: connections,
		attempts:    attempts,
		tracker:     tracker,
		locker:      locker,
		log:         slog.Default().With("component", "refresh"),
	}
}

// RefreshWithBackoff refreshes the token for one identity, retrying
// transient failures with exponential backoff. Per-identity outcomes are
// reported in the Result; the error return is reserved for infrastructure
// faults (storage unreachable, unknown identity, lock contention).
func (o *Orchestrator) RefreshWithBackoff(
	ctx context.Context,
	id domain.Identity,
	correlationID string,
) (*Result, error) {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	log := o.log.With("identity", id.String(), "correlation_id", correlationID)

	if o.locker != nil {
		unlock, ok, err := o.locker.TryLock(ctx, id, o.cfg.LockTTL)
		if err != nil {
			// Lock service down: proceed unlocked rather than blocking refreshes.
			log.Warn("Identity lock unavailable, proceeding without it", "error", err)
		} else if !ok {
			return nil, ErrRefreshInProgress
		} else {
			defer unlock()
		}
	}

	// Rolling-window rate limit, derived from the attempt log.
	since := time.Now().Add(-o.cfg.RateLimitWindow)
	count, err := o.attempts.CountSince(ctx, id, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent attempts: %w", err)
	}
	if count >= o.cfg.RateLimitMax {
		o.recordAttempt(ctx, id, 0, domain.OutcomeRateLimited, domain.CodeRateLimitExceeded, 0, 0, correlationID)
		metrics.RateLimited.WithLabelValues(id.Provider).Inc()
		log.Warn("Refresh rate limited", "attempts_in_window", count)
		return &Result{
			Identity:      id,
			Status:        StatusRateLimited,
			RetryAfter:    o.cfg.RateLimitWindow,
			CorrelationID: correlationID,
		}, nil
	}

	conn, err := o.connections.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}

	var lastErr *domain.TokenError

	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		pair, err := o.client.Refresh(ctx, conn)
		latency := time.Since(start)

		if err == nil {
			return o.finishSuccess(ctx, id, conn, pair, attempt, latency, correlationID, log)
		}

		tokenErr := o.classify(err, id, attempt, correlationID)
		lastErr = tokenErr

		if !tokenErr.Retryable || tokenErr.Severity == domain.SeverityCritical {
			// ShouldRetry can also veto on attempt exhaustion, which the
			// loop bound already enforces; only terminal errors short-circuit.
			return o.finishTerminal(ctx, id, tokenErr, attempt, latency, correlationID, log)
		}

		var delay time.Duration
		if ShouldRetry(tokenErr, o.cfg.MaxRetries, attempt) {
			delay = RetryDelay(tokenErr, attempt, o.cfg.BaseDelay)
		}
		o.recordAttempt(ctx, id, attempt, domain.OutcomeFailedRetryable, tokenErr.Code, latency, delay, correlationID)
		metrics.RefreshAttempts.WithLabelValues(id.Provider, string(domain.OutcomeFailedRetryable)).Inc()
		if _, err := o.tracker.Update(ctx, id, false, latency, tokenErr.Error()); err != nil {
			log.Warn("Failed to update health metrics", "error", err)
		}

		if delay > 0 {
			log.Debug("Backing off before retry",
				"attempt", attempt, "delay", delay, "error", tokenErr.Code)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter(delay)):
			}
		}
	}

	log.Warn("Refresh exhausted retries", "max_retries", o.cfg.MaxRetries, "last_error", lastErr.Code)
	return &Result{
		Identity:      id,
		Status:        StatusFailedRetryable,
		Attempts:      o.cfg.MaxRetries,
		Err:           lastErr,
		CorrelationID: correlationID,
	}, nil
}

func (o *Orchestrator) finishSuccess(
	ctx context.Context,
	id domain.Identity,
	conn *domain.Connection,
	pair *provider.TokenPair,
	attempt int,
	latency time.Duration,
	correlationID string,
	log *slog.Logger,
) (*Result, error) {
	o.recordAttempt(ctx, id, attempt, domain.OutcomeSuccess, "", latency, 0, correlationID)
	if _, err := o.tracker.Update(ctx, id, true, latency, ""); err != nil {
		log.Warn("Failed to update health metrics", "error", err)
	}
	metrics.RefreshAttempts.WithLabelValues(id.Provider, string(domain.OutcomeSuccess)).Inc()
	metrics.RefreshLatency.WithLabelValues(id.Provider).Observe(latency.Seconds())

	upd := storage.TokenUpdate{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken, // empty keeps the stored one
		ExpiresAt:    pair.ExpiresAt,
	}
	if err := o.connections.UpdateToken(ctx, id, upd); err != nil {
		return nil, fmt.Errorf("failed to store refreshed token: %w", err)
	}

	log.Info("Token refreshed", "attempt", attempt, "latency", latency)
	return &Result{
		Identity:      id,
		Status:        StatusSuccess,
		Attempts:      attempt,
		Latency:       latency,
		Token:         pair,
		CorrelationID: correlationID,
	}, nil
}

func (o *Orchestrator) finishTerminal(
	ctx context.Context,
	id domain.Identity,
	tokenErr *domain.TokenError,
	attempt int,
	latency time.Duration,
	correlationID string,
	log *slog.Logger,
) (*Result, error) {
	status, outcome := terminalOutcome(tokenErr)

	o.recordAttempt(ctx, id, attempt, outcome, tokenErr.Code, latency, 0, correlationID)
	if _, err := o.tracker.Update(ctx, id, false, latency, tokenErr.Error()); err != nil {
		log.Warn("Failed to update health metrics", "error", err)
	}
	metrics.RefreshAttempts.WithLabelValues(id.Provider, string(outcome)).Inc()

	if tokenErr.RequiresReauth() {
		connStatus := domain.ConnectionStatusExpired
		if tokenErr.Code == domain.CodeRevokedToken || tokenErr.Code == domain.CodeInvalidToken {
			connStatus = domain.ConnectionStatusRevoked
		}
		if err := o.connections.UpdateStatus(ctx, id, connStatus); err != nil {
			log.Warn("Failed to update connection status", "status", connStatus, "error", err)
		}
	}

	log.Warn("Refresh failed permanently",
		"attempt", attempt, "code", tokenErr.Code, "requires_reauth", tokenErr.RequiresReauth())
	return &Result{
		Identity:       id,
		Status:         status,
		Attempts:       attempt,
		Latency:        latency,
		RequiresReauth: tokenErr.RequiresReauth(),
		Err:            tokenErr,
		CorrelationID:  correlationID,
	}, nil
}

// classify converts a provider failure into the TokenError taxonomy. This is
// the only place raw errors cross the subsystem boundary.
func (o *Orchestrator) classify(err error, id domain.Identity, attempt int, correlationID string) *domain.TokenError {
	errCtx := domain.ErrorContext{
		Identity:      id,
		Operation:     "refresh_token",
		CorrelationID: correlationID,
		Attempt:       attempt,
	}

	var pf *provider.Failure
	if errors.As(err, &pf) {
		return ClassifyHTTP(pf.StatusCode, pf.Body, errCtx)
	}
	return ClassifyError(err, errCtx)
}

func terminalOutcome(e *domain.TokenError) (Status, domain.AttemptOutcome) {
	switch e.Code {
	case domain.CodeExpiredRefreshToken:
		return StatusExpiredRefreshToken, domain.OutcomeExpiredRefreshToken
	case domain.CodeInvalidToken, domain.CodeRevokedToken:
		return StatusInvalidCredentials, domain.OutcomeInvalidCredentials
	default:
		return StatusFailedPermanent, domain.OutcomeFailedPermanent
	}
}

func (o *Orchestrator) recordAttempt(
	ctx context.Context,
	id domain.Identity,
	attempt int,
	outcome domain.AttemptOutcome,
	errType string,
	latency, backoff time.Duration,
	correlationID string,
) {
	rec := &domain.RefreshAttempt{
		ID:            uuid.New().String(),
		Identity:      id,
		Timestamp:     time.Now(),
		AttemptNumber: attempt,
		Outcome:       outcome,
		ErrorType:     errType,
		Latency:       latency,
		BackoffDelay:  backoff,
		CorrelationID: correlationID,
	}
	if err := o.attempts.Append(ctx, rec); err != nil {
		o.log.Warn("Failed to record refresh attempt",
			"identity", id.String(), "outcome", outcome, "error", err)
	}
}

// jitter spreads a delay by ±10% so synchronized retries don't burst the
// provider.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * (0.9 + rand.Float64()*0.2))
}
