package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// AttemptRepo implements storage.AttemptRepository using PostgreSQL.
type AttemptRepo struct {
	db *DB
}

// NewAttemptRepo creates a new PostgreSQL attempt log repository.
func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

type attemptRow struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	Provider      string    `db:"provider"`
	Timestamp     time.Time `db:"ts"`
	AttemptNumber int       `db:"attempt_number"`
	Outcome       string    `db:"outcome"`
	ErrorType     string    `db:"error_type"`
	LatencyMs     int64     `db:"latency_ms"`
	BackoffMs     int64     `db:"backoff_ms"`
	CorrelationID string    `db:"correlation_id"`
}

func (r attemptRow) toDomain() *domain.RefreshAttempt {
	return &domain.RefreshAttempt{
		ID:            r.ID,
		Identity:      domain.Identity{UserID: r.UserID, Provider: r.Provider},
		Timestamp:     r.Timestamp,
		AttemptNumber: r.AttemptNumber,
		Outcome:       domain.AttemptOutcome(r.Outcome),
		ErrorType:     r.ErrorType,
		Latency:       time.Duration(r.LatencyMs) * time.Millisecond,
		BackoffDelay:  time.Duration(r.BackoffMs) * time.Millisecond,
		CorrelationID: r.CorrelationID,
	}
}

// Append records one attempt.
func (r *AttemptRepo) Append(ctx context.Context, a *domain.RefreshAttempt) error {
	query := `
		INSERT INTO refresh_attempts (id, user_id, provider, ts, attempt_number, outcome, error_type, latency_ms, backoff_ms, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.Identity.UserID,
		a.Identity.Provider,
		a.Timestamp,
		a.AttemptNumber,
		string(a.Outcome),
		a.ErrorType,
		a.Latency.Milliseconds(),
		a.BackoffDelay.Milliseconds(),
		a.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("failed to append attempt: %w", err)
	}
	return nil
}

// QueryByProvider returns attempts for a provider since the given time.
func (r *AttemptRepo) QueryByProvider(ctx context.Context, provider string, since time.Time) ([]*domain.RefreshAttempt, error) {
	query := `
		SELECT id, user_id, provider, ts, attempt_number, outcome, error_type, latency_ms, backoff_ms, correlation_id
		FROM refresh_attempts
		WHERE provider = $1 AND ts >= $2
		ORDER BY ts
	`

	var rows []attemptRow
	if err := r.db.SelectContext(ctx, &rows, query, provider, since); err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	return attemptsToDomain(rows), nil
}

// QueryByIdentity returns attempts for one identity since the given time.
func (r *AttemptRepo) QueryByIdentity(ctx context.Context, id domain.Identity, since time.Time) ([]*domain.RefreshAttempt, error) {
	query := `
		SELECT id, user_id, provider, ts, attempt_number, outcome, error_type, latency_ms, backoff_ms, correlation_id
		FROM refresh_attempts
		WHERE user_id = $1 AND provider = $2 AND ts >= $3
		ORDER BY ts
	`

	var rows []attemptRow
	if err := r.db.SelectContext(ctx, &rows, query, id.UserID, id.Provider, since); err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	return attemptsToDomain(rows), nil
}

// CountSince counts attempts for one identity since the given time. Served
// by the (user_id, provider, ts) index.
func (r *AttemptRepo) CountSince(ctx context.Context, id domain.Identity, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM refresh_attempts
		WHERE user_id = $1 AND provider = $2 AND ts >= $3
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, id.UserID, id.Provider, since); err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes attempts outside the retention window.
func (r *AttemptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_attempts WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old attempts: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func attemptsToDomain(rows []attemptRow) []*domain.RefreshAttempt {
	out := make([]*domain.RefreshAttempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
