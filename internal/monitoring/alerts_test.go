package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
	"github.com/vietddude/tokenkeeper/internal/infra/storage/memory"
)

type recordingChannel struct {
	mu     sync.Mutex
	alerts []*domain.Alert
	err    error
}

func (c *recordingChannel) Dispatch(ctx context.Context, a *domain.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

func healthySnapshot(provider string) *domain.ProviderMetrics {
	return &domain.ProviderMetrics{
		Provider:        provider,
		Timestamp:       time.Now(),
		TotalIdentities: 100,
		ExpiredTokens:   2,
		FailedRefreshes: 1,
		SuccessRate:     99,
	}
}

func TestAlerter_NoAlertsWhenHealthy(t *testing.T) {
	ch := &recordingChannel{}
	a := NewAlerter(memory.NewAlertRepo(memory.NewMemoryStorage()), ch)

	alerts := a.Check(context.Background(), []*domain.ProviderMetrics{healthySnapshot("google")})

	if len(alerts) != 0 {
		t.Errorf("expected no alerts, got %d", len(alerts))
	}
	if ch.count() != 0 {
		t.Errorf("expected no dispatches, got %d", ch.count())
	}
}

func TestAlerter_SuccessRateThresholds(t *testing.T) {
	a := NewAlerter(memory.NewAlertRepo(memory.NewMemoryStorage()))

	warn := healthySnapshot("google")
	warn.SuccessRate = 75
	alerts := a.Check(context.Background(), []*domain.ProviderMetrics{warn})
	if len(alerts) != 1 || alerts[0].Severity != domain.AlertWarning {
		t.Fatalf("expected one warning, got %+v", alerts)
	}
	if alerts[0].Type != domain.AlertLowSuccessRate {
		t.Errorf("expected low_success_rate, got %s", alerts[0].Type)
	}

	crit := healthySnapshot("google")
	crit.SuccessRate = 40
	alerts = a.Check(context.Background(), []*domain.ProviderMetrics{crit})
	if len(alerts) != 1 || alerts[0].Severity != domain.AlertCritical {
		t.Fatalf("expected one critical, got %+v", alerts)
	}
}

func TestAlerter_ExpiredAndErrorThresholds(t *testing.T) {
	a := NewAlerter(memory.NewAlertRepo(memory.NewMemoryStorage()))

	m := healthySnapshot("google")
	m.ExpiredTokens = 30   // 30% expired: critical
	m.FailedRefreshes = 25 // 25% error rate: warning
	alerts := a.Check(context.Background(), []*domain.ProviderMetrics{m})

	if len(alerts) != 2 {
		t.Fatalf("expected 2 independent alerts, got %d", len(alerts))
	}

	byType := map[domain.AlertType]domain.AlertSeverity{}
	for _, al := range alerts {
		byType[al.Type] = al.Severity
	}
	if byType[domain.AlertExpiredTokens] != domain.AlertCritical {
		t.Errorf("expected critical expired_tokens, got %s", byType[domain.AlertExpiredTokens])
	}
	if byType[domain.AlertHighErrorRate] != domain.AlertWarning {
		t.Errorf("expected warning high_error_rate, got %s", byType[domain.AlertHighErrorRate])
	}
}

func TestAlerter_DeterministicID(t *testing.T) {
	a := NewAlerter(memory.NewAlertRepo(memory.NewMemoryStorage()))

	m := healthySnapshot("google")
	m.SuccessRate = 40

	first := a.Check(context.Background(), []*domain.ProviderMetrics{m})
	second := a.Check(context.Background(), []*domain.ProviderMetrics{m})

	if first[0].ID != second[0].ID {
		t.Errorf("same rule, scope and timestamp must yield the same ID: %s vs %s",
			first[0].ID, second[0].ID)
	}
}

func TestAlerter_DispatchFailureDoesNotBlock(t *testing.T) {
	failing := &recordingChannel{err: errors.New("webhook down")}
	working := &recordingChannel{}
	repo := memory.NewAlertRepo(memory.NewMemoryStorage())
	a := NewAlerter(repo, failing, working)

	m := healthySnapshot("google")
	m.SuccessRate = 40
	alerts := a.Check(context.Background(), []*domain.ProviderMetrics{m})

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if working.count() != 1 {
		t.Errorf("remaining channels must still receive the alert, got %d", working.count())
	}

	// The alert is persisted despite the channel failure.
	hist, err := a.History(context.Background(), "google", 1)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist) != 1 {
		t.Errorf("expected 1 persisted alert, got %d", len(hist))
	}
}

func TestAlerter_HistoryNewestFirst(t *testing.T) {
	repo := memory.NewAlertRepo(memory.NewMemoryStorage())
	a := NewAlerter(repo)
	ctx := context.Background()

	old := &domain.Alert{
		ID:        "old",
		Type:      domain.AlertLowSuccessRate,
		Timestamp: time.Now().Add(-2 * time.Hour),
		Scope:     domain.AlertScope{Provider: "google"},
	}
	recent := &domain.Alert{
		ID:        "recent",
		Type:      domain.AlertLowSuccessRate,
		Timestamp: time.Now().Add(-10 * time.Minute),
		Scope:     domain.AlertScope{Provider: "google"},
	}
	_ = repo.Save(ctx, old)
	_ = repo.Save(ctx, recent)

	hist, err := a.History(ctx, "", 24)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(hist))
	}
	if hist[0].ID != "recent" {
		t.Errorf("expected newest first, got %s", hist[0].ID)
	}

	// Cutoff excludes the older alert.
	hist, _ = a.History(ctx, "", 1)
	if len(hist) != 1 || hist[0].ID != "recent" {
		t.Errorf("expected only the recent alert within 1h, got %d", len(hist))
	}
}
