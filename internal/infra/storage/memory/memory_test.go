package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
	"github.com/vietddude/tokenkeeper/internal/infra/storage"
)

func conn(user, provider string, status domain.ConnectionStatus) *domain.Connection {
	return &domain.Connection{
		Identity:     domain.Identity{UserID: user, Provider: provider},
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		Status:       status,
	}
}

func TestConnectionRepo_GetNotFound(t *testing.T) {
	repo := NewConnectionRepo(NewMemoryStorage())

	_, err := repo.Get(context.Background(), domain.Identity{UserID: "ghost", Provider: "google"})
	if !errors.Is(err, storage.ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestConnectionRepo_ScanFilters(t *testing.T) {
	repo := NewConnectionRepo(NewMemoryStorage())
	repo.Seed(
		conn("u1", "google", domain.ConnectionStatusActive),
		conn("u2", "google", domain.ConnectionStatusRevoked),
		conn("u3", "github", domain.ConnectionStatusActive),
	)
	ctx := context.Background()

	all, err := repo.Scan(ctx, "", false)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 connections, got %d", len(all))
	}

	active, _ := repo.Scan(ctx, "", true)
	if len(active) != 2 {
		t.Errorf("expected 2 active connections, got %d", len(active))
	}

	google, _ := repo.Scan(ctx, "google", true)
	if len(google) != 1 || google[0].Identity.UserID != "u1" {
		t.Errorf("expected only the active google connection, got %d", len(google))
	}
}

func TestConnectionRepo_UpdateToken(t *testing.T) {
	repo := NewConnectionRepo(NewMemoryStorage())
	c := conn("u1", "google", domain.ConnectionStatusExpired)
	repo.Seed(c)
	ctx := context.Background()
	id := c.Identity

	expiry := time.Now().Add(2 * time.Hour)
	err := repo.UpdateToken(ctx, id, storage.TokenUpdate{
		AccessToken: "new-access",
		ExpiresAt:   expiry,
	})
	if err != nil {
		t.Fatalf("UpdateToken failed: %v", err)
	}

	got, _ := repo.Get(ctx, id)
	if got.AccessToken != "new-access" {
		t.Errorf("expected updated access token, got %q", got.AccessToken)
	}
	if got.RefreshToken != "refresh" {
		t.Errorf("empty refresh token in update must keep the stored one, got %q", got.RefreshToken)
	}
	if got.Status != domain.ConnectionStatusActive {
		t.Errorf("successful refresh must reactivate the connection, got %s", got.Status)
	}

	err = repo.UpdateToken(ctx, id, storage.TokenUpdate{
		AccessToken:  "newer-access",
		RefreshToken: "rotated",
		ExpiresAt:    expiry,
	})
	if err != nil {
		t.Fatalf("UpdateToken failed: %v", err)
	}
	got, _ = repo.Get(ctx, id)
	if got.RefreshToken != "rotated" {
		t.Errorf("expected rotated refresh token, got %q", got.RefreshToken)
	}
}

func TestConnectionRepo_UpdateStatusNotFound(t *testing.T) {
	repo := NewConnectionRepo(NewMemoryStorage())

	err := repo.UpdateStatus(context.Background(),
		domain.Identity{UserID: "ghost", Provider: "google"}, domain.ConnectionStatusRevoked)
	if !errors.Is(err, storage.ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestAttemptRepo_Retention(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewAttemptRepo(store)
	ctx := context.Background()
	id := domain.Identity{UserID: "u1", Provider: "google"}

	_ = repo.Append(ctx, &domain.RefreshAttempt{
		ID: "old", Identity: id, Timestamp: time.Now().Add(-48 * time.Hour),
	})
	_ = repo.Append(ctx, &domain.RefreshAttempt{
		ID: "recent", Identity: id, Timestamp: time.Now(),
	})

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	count, _ := repo.CountSince(ctx, id, time.Now().Add(-72*time.Hour))
	if count != 1 {
		t.Errorf("expected 1 remaining attempt, got %d", count)
	}
}

func TestAttemptRepo_CountScopedToIdentity(t *testing.T) {
	repo := NewAttemptRepo(NewMemoryStorage())
	ctx := context.Background()
	a := domain.Identity{UserID: "u1", Provider: "google"}
	b := domain.Identity{UserID: "u2", Provider: "google"}

	_ = repo.Append(ctx, &domain.RefreshAttempt{ID: "1", Identity: a, Timestamp: time.Now()})
	_ = repo.Append(ctx, &domain.RefreshAttempt{ID: "2", Identity: a, Timestamp: time.Now()})
	_ = repo.Append(ctx, &domain.RefreshAttempt{ID: "3", Identity: b, Timestamp: time.Now()})

	count, err := repo.CountSince(ctx, a, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountSince failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 attempts for identity a, got %d", count)
	}
}

func TestHealthRepo_RoundTrip(t *testing.T) {
	repo := NewHealthRepo(NewMemoryStorage())
	ctx := context.Background()
	id := domain.Identity{UserID: "u1", Provider: "google"}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for untracked identity")
	}

	m := &domain.HealthMetrics{Identity: id, TotalAttempts: 3, SuccessfulAttempts: 2, HealthScore: 66}
	if err := repo.Put(ctx, m); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Mutating the original must not leak into storage.
	m.TotalAttempts = 99

	got, _ = repo.Get(ctx, id)
	if got.TotalAttempts != 3 {
		t.Errorf("expected stored copy isolated from caller, got %d", got.TotalAttempts)
	}
}
