package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// AlertRepo implements storage.AlertRepository using PostgreSQL.
type AlertRepo struct {
	db *DB
}

// NewAlertRepo creates a new PostgreSQL alert history repository.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

type alertRow struct {
	ID            string    `db:"id"`
	Type          string    `db:"type"`
	Severity      string    `db:"severity"`
	Title         string    `db:"title"`
	Message       string    `db:"message"`
	Provider      string    `db:"provider"`
	UserID        string    `db:"user_id"`
	Timestamp     time.Time `db:"ts"`
	Metadata      []byte    `db:"metadata"`
	CorrelationID string    `db:"correlation_id"`
}

// Save persists one alert. Re-dispatching the same deterministic alert ID
// is a no-op.
func (r *AlertRepo) Save(ctx context.Context, a *domain.Alert) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode alert metadata: %w", err)
	}

	var userID string
	if a.Scope.Identity != nil {
		userID = a.Scope.Identity.UserID
	}

	query := `
		INSERT INTO alerts (id, type, severity, title, message, provider, user_id, ts, metadata, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, query,
		a.ID,
		string(a.Type),
		string(a.Severity),
		a.Title,
		a.Message,
		a.Scope.Provider,
		userID,
		a.Timestamp,
		meta,
		a.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// History returns alerts since the given time, newest first.
func (r *AlertRepo) History(ctx context.Context, providerFilter string, since time.Time) ([]*domain.Alert, error) {
	query := `
		SELECT id, type, severity, title, message, provider, user_id, ts, metadata, correlation_id
		FROM alerts
		WHERE ts >= $1 AND ($2 = '' OR provider = $2)
		ORDER BY ts DESC
	`

	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, query, since, providerFilter); err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}

	out := make([]*domain.Alert, 0, len(rows))
	for _, row := range rows {
		a := &domain.Alert{
			ID:            row.ID,
			Type:          domain.AlertType(row.Type),
			Severity:      domain.AlertSeverity(row.Severity),
			Title:         row.Title,
			Message:       row.Message,
			Scope:         domain.AlertScope{Provider: row.Provider},
			Timestamp:     row.Timestamp,
			CorrelationID: row.CorrelationID,
		}
		if row.UserID != "" {
			a.Scope.Identity = &domain.Identity{UserID: row.UserID, Provider: row.Provider}
		}
		if len(row.Metadata) > 0 {
			a.Metadata = make(map[string]string)
			if err := json.Unmarshal(row.Metadata, &a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode alert metadata: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// DeleteOlderThan removes alerts outside the retention window.
func (r *AlertRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old alerts: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
