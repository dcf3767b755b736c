package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
	"github.com/vietddude/tokenkeeper/internal/infra/storage/memory"
)

type collectorFixture struct {
	collector *Collector
	conns     *memory.ConnectionRepo
	attempts  *memory.AttemptRepo
	snapshots *memory.ProviderMetricsRepo
}

func newCollectorFixture(providers ...string) *collectorFixture {
	store := memory.NewMemoryStorage()
	f := &collectorFixture{
		conns:     memory.NewConnectionRepo(store),
		attempts:  memory.NewAttemptRepo(store),
		snapshots: memory.NewProviderMetricsRepo(store),
	}
	f.collector = NewCollector(providers, f.conns, f.attempts, f.snapshots)
	return f
}

func (f *collectorFixture) seedConnection(userID, provider string, expiresAt time.Time, status domain.ConnectionStatus) {
	f.conns.Seed(&domain.Connection{
		Identity:     domain.Identity{UserID: userID, Provider: provider},
		RefreshToken: "refresh",
		ExpiresAt:    expiresAt,
		Status:       status,
	})
}

func (f *collectorFixture) seedAttempt(userID, provider string, outcome domain.AttemptOutcome, errType string, latency time.Duration) {
	_ = f.attempts.Append(context.Background(), &domain.RefreshAttempt{
		ID:        uuid.New().String(),
		Identity:  domain.Identity{UserID: userID, Provider: provider},
		Timestamp: time.Now(),
		Outcome:   outcome,
		ErrorType: errType,
		Latency:   latency,
	})
}

func TestCollector_Census(t *testing.T) {
	f := newCollectorFixture("google")
	now := time.Now()
	f.seedConnection("u1", "google", now.Add(time.Hour), domain.ConnectionStatusActive)
	f.seedConnection("u2", "google", now.Add(-time.Hour), domain.ConnectionStatusActive)
	f.seedConnection("u3", "google", now.Add(time.Hour), domain.ConnectionStatusRevoked)

	ms, err := f.collector.Collect(context.Background(), "")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(ms) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(ms))
	}

	m := ms[0]
	if m.TotalIdentities != 3 {
		t.Errorf("expected 3 identities, got %d", m.TotalIdentities)
	}
	if m.ActiveConnections != 2 {
		t.Errorf("expected 2 active connections, got %d", m.ActiveConnections)
	}
	if m.ExpiredTokens != 1 {
		t.Errorf("expected 1 expired token, got %d", m.ExpiredTokens)
	}
}

func TestCollector_SuccessRateAndLatency(t *testing.T) {
	f := newCollectorFixture("google")
	f.seedAttempt("u1", "google", domain.OutcomeSuccess, "", 100*time.Millisecond)
	f.seedAttempt("u1", "google", domain.OutcomeSuccess, "", 300*time.Millisecond)
	f.seedAttempt("u2", "google", domain.OutcomeFailedRetryable, "network_error", 50*time.Millisecond)
	f.seedAttempt("u2", "google", domain.OutcomeFailedPermanent, "provider_error", 50*time.Millisecond)

	ms, err := f.collector.Collect(context.Background(), "")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	m := ms[0]
	if m.SuccessRate != 50 {
		t.Errorf("expected 50%% success rate, got %.1f", m.SuccessRate)
	}
	if m.FailedRefreshes != 2 {
		t.Errorf("expected 2 failures, got %d", m.FailedRefreshes)
	}
	if m.AverageRefreshMs != 200 {
		t.Errorf("expected 200ms average, got %.1f", m.AverageRefreshMs)
	}
	if m.ErrorDistribution["network_error"] != 1 || m.ErrorDistribution["provider_error"] != 1 {
		t.Errorf("unexpected error distribution: %v", m.ErrorDistribution)
	}
}

func TestCollector_RateLimitedExcluded(t *testing.T) {
	f := newCollectorFixture("google")
	f.seedAttempt("u1", "google", domain.OutcomeSuccess, "", time.Millisecond)
	f.seedAttempt("u1", "google", domain.OutcomeRateLimited, "rate_limit_exceeded", 0)

	ms, err := f.collector.Collect(context.Background(), "")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	// Rejections never reached the provider, so they count neither way.
	if ms[0].SuccessRate != 100 {
		t.Errorf("expected rate-limited rejections excluded, success rate %.1f", ms[0].SuccessRate)
	}
	if ms[0].FailedRefreshes != 0 {
		t.Errorf("expected 0 failures, got %d", ms[0].FailedRefreshes)
	}
}

func TestCollector_NoAttempts(t *testing.T) {
	f := newCollectorFixture("google")

	ms, err := f.collector.Collect(context.Background(), "")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if ms[0].SuccessRate != 100 {
		t.Errorf("no attempts should read as 100%% success, got %.1f", ms[0].SuccessRate)
	}
	if ms[0].HealthScore != 100 {
		t.Errorf("no activity should read as healthy, got %.1f", ms[0].HealthScore)
	}
}

func TestCollector_ProviderFilter(t *testing.T) {
	f := newCollectorFixture("google", "github")
	f.seedConnection("u1", "google", time.Now().Add(time.Hour), domain.ConnectionStatusActive)
	f.seedConnection("u2", "github", time.Now().Add(time.Hour), domain.ConnectionStatusActive)

	ms, err := f.collector.Collect(context.Background(), "github")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if len(ms) != 1 || ms[0].Provider != "github" {
		t.Fatalf("expected only the github snapshot, got %d", len(ms))
	}
}

func TestCollector_PersistsSnapshots(t *testing.T) {
	f := newCollectorFixture("google")

	if _, err := f.collector.Collect(context.Background(), ""); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	latest, err := f.snapshots.Latest(context.Background(), "google")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil {
		t.Fatal("expected a persisted snapshot")
	}
}

func TestAggregateScore(t *testing.T) {
	if s := aggregateScore(100, 0, 0); s != 100 {
		t.Errorf("expected 100, got %.1f", s)
	}
	// 90% success: -5; 15% expired: -30; 10 failures: -10.
	if s := aggregateScore(90, 15, 10); s != 55 {
		t.Errorf("expected 55, got %.1f", s)
	}
	if s := aggregateScore(0, 100, 100); s != 0 {
		t.Errorf("score must clamp at 0, got %.1f", s)
	}
}
