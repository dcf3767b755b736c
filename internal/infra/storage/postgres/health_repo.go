package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// HealthRepo implements storage.HealthRepository using PostgreSQL.
type HealthRepo struct {
	db *DB
}

// NewHealthRepo creates a new PostgreSQL health metrics repository.
func NewHealthRepo(db *DB) *HealthRepo {
	return &HealthRepo{db: db}
}

type healthRow struct {
	UserID                string       `db:"user_id"`
	Provider              string       `db:"provider"`
	LastSuccessfulRefresh sql.NullTime `db:"last_successful_refresh"`
	ConsecutiveFailures   int          `db:"consecutive_failures"`
	TotalAttempts         int          `db:"total_attempts"`
	SuccessfulAttempts    int          `db:"successful_attempts"`
	AverageLatencyMs      int64        `db:"average_latency_ms"`
	HealthScore           float64      `db:"health_score"`
	LastError             string       `db:"last_error"`
	UpdatedAt             time.Time    `db:"updated_at"`
}

// Get retrieves metrics for one identity; nil when none exist yet.
func (r *HealthRepo) Get(ctx context.Context, id domain.Identity) (*domain.HealthMetrics, error) {
	query := `
		SELECT user_id, provider, last_successful_refresh, consecutive_failures,
		       total_attempts, successful_attempts, average_latency_ms, health_score,
		       last_error, updated_at
		FROM health_metrics
		WHERE user_id = $1 AND provider = $2
	`

	var row healthRow
	err := r.db.GetContext(ctx, &row, query, id.UserID, id.Provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get health metrics: %w", err)
	}

	m := &domain.HealthMetrics{
		Identity:            domain.Identity{UserID: row.UserID, Provider: row.Provider},
		ConsecutiveFailures: row.ConsecutiveFailures,
		TotalAttempts:       row.TotalAttempts,
		SuccessfulAttempts:  row.SuccessfulAttempts,
		AverageLatency:      time.Duration(row.AverageLatencyMs) * time.Millisecond,
		HealthScore:         row.HealthScore,
		LastError:           row.LastError,
		UpdatedAt:           row.UpdatedAt,
	}
	if row.LastSuccessfulRefresh.Valid {
		t := row.LastSuccessfulRefresh.Time
		m.LastSuccessfulRefresh = &t
	}
	return m, nil
}

// Put upserts the metrics record (last writer wins per identity).
func (r *HealthRepo) Put(ctx context.Context, m *domain.HealthMetrics) error {
	query := `
		INSERT INTO health_metrics (user_id, provider, last_successful_refresh, consecutive_failures,
		                            total_attempts, successful_attempts, average_latency_ms, health_score,
		                            last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			last_successful_refresh = EXCLUDED.last_successful_refresh,
			consecutive_failures = EXCLUDED.consecutive_failures,
			total_attempts = EXCLUDED.total_attempts,
			successful_attempts = EXCLUDED.successful_attempts,
			average_latency_ms = EXCLUDED.average_latency_ms,
			health_score = EXCLUDED.health_score,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`

	var lastSuccess sql.NullTime
	if m.LastSuccessfulRefresh != nil {
		lastSuccess = sql.NullTime{Time: *m.LastSuccessfulRefresh, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		m.Identity.UserID,
		m.Identity.Provider,
		lastSuccess,
		m.ConsecutiveFailures,
		m.TotalAttempts,
		m.SuccessfulAttempts,
		m.AverageLatency.Milliseconds(),
		m.HealthScore,
		m.LastError,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put health metrics: %w", err)
	}
	return nil
}
