package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/config"
	"github.com/vietddude/tokenkeeper/internal/infra/storage"
)

// Pruner deletes old data based on retention policy: refresh attempts,
// provider metric snapshots and alert history.
type Pruner struct {
	cfg       config.MonitoringConfig
	attempts  storage.AttemptRepository
	snapshots storage.ProviderMetricsRepository
	alerts    storage.AlertRepository
}

// NewPruner creates a new Pruner worker.
func NewPruner(
	cfg config.MonitoringConfig,
	attempts storage.AttemptRepository,
	snapshots storage.ProviderMetricsRepository,
	alerts storage.AlertRepository,
) *Pruner {
	return &Pruner{
		cfg:       cfg,
		attempts:  attempts,
		snapshots: snapshots,
		alerts:    alerts,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	// Check interval derived from the shortest retention window, bounded
	// to [1m, 1h].
	shortest := min(p.cfg.AttemptRetention, p.cfg.MetricsRetention, p.cfg.AlertRetention)
	if shortest <= 0 {
		return // Retention disabled
	}
	interval := min(shortest/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	now := time.Now()

	if n, err := p.attempts.DeleteOlderThan(ctx, now.Add(-p.cfg.AttemptRetention)); err != nil {
		slog.Warn("Failed to prune refresh attempts", "error", err)
	} else if n > 0 {
		slog.Info("Pruned refresh attempts", "deleted", n)
	}

	if n, err := p.snapshots.DeleteOlderThan(ctx, now.Add(-p.cfg.MetricsRetention)); err != nil {
		slog.Warn("Failed to prune provider metrics", "error", err)
	} else if n > 0 {
		slog.Info("Pruned provider metrics", "deleted", n)
	}

	if n, err := p.alerts.DeleteOlderThan(ctx, now.Add(-p.cfg.AlertRetention)); err != nil {
		slog.Warn("Failed to prune alerts", "error", err)
	} else if n > 0 {
		slog.Info("Pruned alerts", "deleted", n)
	}
}
