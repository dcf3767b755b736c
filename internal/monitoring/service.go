package monitoring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// Service runs the collect-and-check cycle on a fixed interval and keeps
// the latest snapshots for the HTTP surface.
type Service struct {
	interval  time.Duration
	collector *Collector
	alerter   *Alerter
	log       *slog.Logger

	mu     sync.RWMutex
	latest []*domain.ProviderMetrics
}

// NewService creates the monitoring loop.
func NewService(interval time.Duration, collector *Collector, alerter *Alerter) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{
		interval:  interval,
		collector: collector,
		alerter:   alerter,
		log:       slog.Default().With("component", "monitoring"),
	}
}

// Start runs the monitoring loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// Latest returns the snapshots from the most recent cycle.
func (s *Service) Latest() []*domain.ProviderMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Alerter exposes the alert history lookup.
func (s *Service) Alerter() *Alerter { return s.alerter }

func (s *Service) runOnce(ctx context.Context) {
	ms, err := s.collector.Collect(ctx, "")
	if err != nil {
		s.log.Error("Metrics collection failed", "error", err)
		return
	}

	s.mu.Lock()
	s.latest = ms
	s.mu.Unlock()

	alerts := s.alerter.Check(ctx, ms)
	if len(alerts) > 0 {
		s.log.Info("Alert check finished", "triggered", len(alerts))
	}
}
