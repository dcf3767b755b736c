package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
	"github.com/vietddude/tokenkeeper/internal/infra/storage"
)

// MemoryStorage backs all repositories with in-process maps. Used in
// memory mode and in tests.
type MemoryStorage struct {
	connections map[string]*domain.Connection
	attempts    []*domain.RefreshAttempt
	healthByID  map[string]*domain.HealthMetrics
	snapshots   []*domain.ProviderMetrics
	alerts      []*domain.Alert
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		connections: make(map[string]*domain.Connection),
		healthByID:  make(map[string]*domain.HealthMetrics),
	}
}

// -----------------------------------------------------------------------------
// Connection Repository
// -----------------------------------------------------------------------------

type ConnectionRepo struct {
	store *MemoryStorage
}

func NewConnectionRepo(store *MemoryStorage) *ConnectionRepo {
	return &ConnectionRepo{store: store}
}

// Seed inserts a connection directly, bypassing the repository interface.
func (r *ConnectionRepo) Seed(conns ...*domain.Connection) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, c := range conns {
		r.store.connections[c.Identity.String()] = c
	}
}

func (r *ConnectionRepo) Get(ctx context.Context, id domain.Identity) (*domain.Connection, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.connections[id.String()]
	if !ok {
		return nil, storage.ErrConnectionNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *ConnectionRepo) Scan(ctx context.Context, providerFilter string, activeOnly bool) ([]*domain.Connection, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Connection
	for _, c := range r.store.connections {
		if providerFilter != "" && c.Identity.Provider != providerFilter {
			continue
		}
		if activeOnly && c.Status != domain.ConnectionStatusActive {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity.String() < out[j].Identity.String()
	})
	return out, nil
}

func (r *ConnectionRepo) UpdateToken(ctx context.Context, id domain.Identity, upd storage.TokenUpdate) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.connections[id.String()]
	if !ok {
		return storage.ErrConnectionNotFound
	}
	c.AccessToken = upd.AccessToken
	if upd.RefreshToken != "" {
		c.RefreshToken = upd.RefreshToken
	}
	c.ExpiresAt = upd.ExpiresAt
	c.Status = domain.ConnectionStatusActive
	c.UpdatedAt = time.Now()
	return nil
}

func (r *ConnectionRepo) UpdateStatus(ctx context.Context, id domain.Identity, status domain.ConnectionStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.connections[id.String()]
	if !ok {
		return storage.ErrConnectionNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

// -----------------------------------------------------------------------------
// Attempt Repository
// -----------------------------------------------------------------------------

type AttemptRepo struct {
	store *MemoryStorage
}

func NewAttemptRepo(store *MemoryStorage) *AttemptRepo {
	return &AttemptRepo{store: store}
}

func (r *AttemptRepo) Append(ctx context.Context, a *domain.RefreshAttempt) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *a
	r.store.attempts = append(r.store.attempts, &cp)
	return nil
}

func (r *AttemptRepo) QueryByProvider(ctx context.Context, provider string, since time.Time) ([]*domain.RefreshAttempt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.RefreshAttempt
	for _, a := range r.store.attempts {
		if a.Identity.Provider == provider && !a.Timestamp.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *AttemptRepo) QueryByIdentity(ctx context.Context, id domain.Identity, since time.Time) ([]*domain.RefreshAttempt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.RefreshAttempt
	for _, a := range r.store.attempts {
		if a.Identity == id && !a.Timestamp.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *AttemptRepo) CountSince(ctx context.Context, id domain.Identity, since time.Time) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, a := range r.store.attempts {
		if a.Identity == id && !a.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *AttemptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.attempts[:0]
	deleted := 0
	for _, a := range r.store.attempts {
		if a.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	r.store.attempts = kept
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Health Repository
// -----------------------------------------------------------------------------

type HealthRepo struct {
	store *MemoryStorage
}

func NewHealthRepo(store *MemoryStorage) *HealthRepo {
	return &HealthRepo{store: store}
}

func (r *HealthRepo) Get(ctx context.Context, id domain.Identity) (*domain.HealthMetrics, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.healthByID[id.String()]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *HealthRepo) Put(ctx context.Context, m *domain.HealthMetrics) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *m
	r.store.healthByID[m.Identity.String()] = &cp
	return nil
}

// -----------------------------------------------------------------------------
// Provider Metrics Repository
// -----------------------------------------------------------------------------

type ProviderMetricsRepo struct {
	store *MemoryStorage
}

func NewProviderMetricsRepo(store *MemoryStorage) *ProviderMetricsRepo {
	return &ProviderMetricsRepo{store: store}
}

func (r *ProviderMetricsRepo) Save(ctx context.Context, m *domain.ProviderMetrics) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *m
	r.store.snapshots = append(r.store.snapshots, &cp)
	return nil
}

func (r *ProviderMetricsRepo) Latest(ctx context.Context, provider string) (*domain.ProviderMetrics, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var latest *domain.ProviderMetrics
	for _, m := range r.store.snapshots {
		if m.Provider != provider {
			continue
		}
		if latest == nil || m.Timestamp.After(latest.Timestamp) {
			latest = m
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *ProviderMetricsRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.snapshots[:0]
	deleted := 0
	for _, m := range r.store.snapshots {
		if m.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.store.snapshots = kept
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Alert Repository
// -----------------------------------------------------------------------------

type AlertRepo struct {
	store *MemoryStorage
}

func NewAlertRepo(store *MemoryStorage) *AlertRepo {
	return &AlertRepo{store: store}
}

func (r *AlertRepo) Save(ctx context.Context, a *domain.Alert) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *a
	r.store.alerts = append(r.store.alerts, &cp)
	return nil
}

func (r *AlertRepo) History(ctx context.Context, providerFilter string, since time.Time) ([]*domain.Alert, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Alert
	for _, a := range r.store.alerts {
		if providerFilter != "" && a.Scope.Provider != providerFilter {
			continue
		}
		if a.Timestamp.Before(since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (r *AlertRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.alerts[:0]
	deleted := 0
	for _, a := range r.store.alerts {
		if a.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	r.store.alerts = kept
	return deleted, nil
}
