package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// ProviderMetricsRepo implements storage.ProviderMetricsRepository using PostgreSQL.
type ProviderMetricsRepo struct {
	db *DB
}

// NewProviderMetricsRepo creates a new PostgreSQL snapshot repository.
func NewProviderMetricsRepo(db *DB) *ProviderMetricsRepo {
	return &ProviderMetricsRepo{db: db}
}

type metricsRow struct {
	Provider          string    `db:"provider"`
	Timestamp         time.Time `db:"ts"`
	TotalIdentities   int       `db:"total_identities"`
	ActiveConnections int       `db:"active_connections"`
	ExpiredTokens     int       `db:"expired_tokens"`
	FailedRefreshes   int       `db:"failed_refreshes"`
	SuccessRate       float64   `db:"success_rate"`
	AverageRefreshMs  float64   `db:"average_refresh_ms"`
	ErrorDistribution []byte    `db:"error_distribution"`
	HealthScore       float64   `db:"health_score"`
}

// Save persists one snapshot.
func (r *ProviderMetricsRepo) Save(ctx context.Context, m *domain.ProviderMetrics) error {
	dist, err := json.Marshal(m.ErrorDistribution)
	if err != nil {
		return fmt.Errorf("failed to encode error distribution: %w", err)
	}

	query := `
		INSERT INTO provider_metrics (provider, ts, total_identities, active_connections, expired_tokens,
		                              failed_refreshes, success_rate, average_refresh_ms, error_distribution, health_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (provider, ts) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, query,
		m.Provider,
		m.Timestamp,
		m.TotalIdentities,
		m.ActiveConnections,
		m.ExpiredTokens,
		m.FailedRefreshes,
		m.SuccessRate,
		m.AverageRefreshMs,
		dist,
		m.HealthScore,
	)
	if err != nil {
		return fmt.Errorf("failed to save provider metrics: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot for a provider; nil when none exist.
func (r *ProviderMetricsRepo) Latest(ctx context.Context, provider string) (*domain.ProviderMetrics, error) {
	query := `
		SELECT provider, ts, total_identities, active_connections, expired_tokens,
		       failed_refreshes, success_rate, average_refresh_ms, error_distribution, health_score
		FROM provider_metrics
		WHERE provider = $1
		ORDER BY ts DESC
		LIMIT 1
	`

	var row metricsRow
	err := r.db.GetContext(ctx, &row, query, provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest provider metrics: %w", err)
	}

	m := &domain.ProviderMetrics{
		Provider:          row.Provider,
		Timestamp:         row.Timestamp,
		TotalIdentities:   row.TotalIdentities,
		ActiveConnections: row.ActiveConnections,
		ExpiredTokens:     row.ExpiredTokens,
		FailedRefreshes:   row.FailedRefreshes,
		SuccessRate:       row.SuccessRate,
		AverageRefreshMs:  row.AverageRefreshMs,
		HealthScore:       row.HealthScore,
		ErrorDistribution: make(map[string]int),
	}
	if len(row.ErrorDistribution) > 0 {
		if err := json.Unmarshal(row.ErrorDistribution, &m.ErrorDistribution); err != nil {
			return nil, fmt.Errorf("failed to decode error distribution: %w", err)
		}
	}
	return m, nil
}

// DeleteOlderThan removes snapshots outside the retention window.
func (r *ProviderMetricsRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM provider_metrics WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old provider metrics: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
