package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
	"github.com/vietddude/tokenkeeper/internal/infra/storage"
)

// ConnectionRepo implements storage.ConnectionRepository using PostgreSQL.
type ConnectionRepo struct {
	db *DB
}

// NewConnectionRepo creates a new PostgreSQL connection repository.
func NewConnectionRepo(db *DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

type connectionRow struct {
	UserID       string    `db:"user_id"`
	Provider     string    `db:"provider"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
	Status       string    `db:"status"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r connectionRow) toDomain() *domain.Connection {
	return &domain.Connection{
		Identity:     domain.Identity{UserID: r.UserID, Provider: r.Provider},
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		Status:       domain.ConnectionStatus(r.Status),
		UpdatedAt:    r.UpdatedAt,
	}
}

// Get retrieves the connection for one identity.
func (r *ConnectionRepo) Get(ctx context.Context, id domain.Identity) (*domain.Connection, error) {
	query := `
		SELECT user_id, provider, access_token, refresh_token, expires_at, status, updated_at
		FROM connections
		WHERE user_id = $1 AND provider = $2
	`

	var row connectionRow
	err := r.db.GetContext(ctx, &row, query, id.UserID, id.Provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return row.toDomain(), nil
}

// Scan lists connections, optionally filtered by provider and status.
func (r *ConnectionRepo) Scan(ctx context.Context, providerFilter string, activeOnly bool) ([]*domain.Connection, error) {
	query := `
		SELECT user_id, provider, access_token, refresh_token, expires_at, status, updated_at
		FROM connections
		WHERE ($1 = '' OR provider = $1)
		  AND (NOT $2 OR status = 'active')
		ORDER BY user_id, provider
	`

	var rows []connectionRow
	if err := r.db.SelectContext(ctx, &rows, query, providerFilter, activeOnly); err != nil {
		return nil, fmt.Errorf("failed to scan connections: %w", err)
	}

	out := make([]*domain.Connection, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// UpdateToken stores refreshed token material. An empty refresh token keeps
// the existing one (providers that don't rotate).
func (r *ConnectionRepo) UpdateToken(ctx context.Context, id domain.Identity, upd storage.TokenUpdate) error {
	query := `
		UPDATE connections
		SET access_token = $3,
		    refresh_token = CASE WHEN $4 = '' THEN refresh_token ELSE $4 END,
		    expires_at = $5,
		    status = 'active',
		    updated_at = NOW()
		WHERE user_id = $1 AND provider = $2
	`

	res, err := r.db.ExecContext(ctx, query, id.UserID, id.Provider, upd.AccessToken, upd.RefreshToken, upd.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrConnectionNotFound
	}
	return nil
}

// UpdateStatus changes the connection lifecycle state.
func (r *ConnectionRepo) UpdateStatus(ctx context.Context, id domain.Identity, status domain.ConnectionStatus) error {
	query := `
		UPDATE connections
		SET status = $3, updated_at = NOW()
		WHERE user_id = $1 AND provider = $2
	`

	res, err := r.db.ExecContext(ctx, query, id.UserID, id.Provider, string(status))
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrConnectionNotFound
	}
	return nil
}
