// Package control wires the subsystem together and manages its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/tokenkeeper/internal/core/config"
	"github.com/vietddude/tokenkeeper/internal/core/worker"
	"github.com/vietddude/tokenkeeper/internal/health"
	"github.com/vietddude/tokenkeeper/internal/infra/provider"
	redisclient "github.com/vietddude/tokenkeeper/internal/infra/redis"
	"github.com/vietddude/tokenkeeper/internal/infra/storage"
	"github.com/vietddude/tokenkeeper/internal/infra/storage/memory"
	"github.com/vietddude/tokenkeeper/internal/infra/storage/postgres"
	"github.com/vietddude/tokenkeeper/internal/monitoring"
	"github.com/vietddude/tokenkeeper/internal/refresh"
)

// Config holds the application configuration.
type Config struct {
	Port       int
	Database   postgres.Config
	Redis      redisclient.Config
	Refresh    config.RefreshConfig
	Monitoring config.MonitoringConfig
	Providers  []config.ProviderConfig
}

// Keeper is the main application struct managing the refresh and
// monitoring lifecycle.
type Keeper struct {
	cfg          Config
	orchestrator *refresh.Orchestrator
	bulkCfg      refresh.BulkConfig
	tracker      *health.Tracker
	monitor      *monitoring.Service
	server       *monitoring.Server
	pruner       *worker.Pruner
	db           *postgres.DB
	redisClient  *redisclient.Client
	cancel       context.CancelFunc
	log          *slog.Logger
}

// NewKeeper creates a new Keeper instance with all dependencies initialized.
func NewKeeper(cfg Config) (*Keeper, error) {
	// 1. Initialize Storage
	var (
		connRepo    storage.ConnectionRepository
		attemptRepo storage.AttemptRepository
		healthRepo  storage.HealthRepository
		metricsRepo storage.ProviderMetricsRepository
		alertRepo   storage.AlertRepository
		db          *postgres.DB
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		connRepo = postgres.NewConnectionRepo(db)
		attemptRepo = postgres.NewAttemptRepo(db)
		healthRepo = postgres.NewHealthRepo(db)
		metricsRepo = postgres.NewProviderMetricsRepo(db)
		alertRepo = postgres.NewAlertRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		connRepo = memory.NewConnectionRepo(store)
		attemptRepo = memory.NewAttemptRepo(store)
		healthRepo = memory.NewHealthRepo(store)
		metricsRepo = memory.NewProviderMetricsRepo(store)
		alertRepo = memory.NewAlertRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Optional Redis-backed per-identity refresh lock
	var redisClient *redisclient.Client
	var locker refresh.IdentityLocker
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		locker = redisclient.NewIdentityLock(redisClient)
		slog.Info("Per-identity refresh locking enabled")
	}

	// 3. OAuth provider client
	endpoints := make(map[string]provider.Endpoint, len(cfg.Providers))
	providerNames := make([]string, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		endpoints[p.Name] = provider.Endpoint{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			TokenURL:     p.TokenURL,
		}
		providerNames = append(providerNames, p.Name)
	}
	client := provider.NewOAuth2Client(endpoints, 30*time.Second)

	// 4. Core components
	tracker := health.NewTracker(healthRepo)
	orchestrator := refresh.NewOrchestrator(
		refresh.Config{
			MaxRetries:      cfg.Refresh.MaxRetries,
			BaseDelay:       cfg.Refresh.BaseDelay,
			RateLimitMax:    cfg.Refresh.RateLimitMax,
			RateLimitWindow: cfg.Refresh.RateLimitWindow,
		},
		client, connRepo, attemptRepo, tracker, locker,
	)

	collector := monitoring.NewCollector(providerNames, connRepo, attemptRepo, metricsRepo)
	alerter := monitoring.NewAlerter(alertRepo, monitoring.NewLogChannel())
	monitor := monitoring.NewService(cfg.Monitoring.Interval, collector, alerter)
	server := monitoring.NewServer(monitor, cfg.Port)
	pruner := worker.NewPruner(cfg.Monitoring, attemptRepo, metricsRepo, alertRepo)

	return &Keeper{
		cfg:          cfg,
		orchestrator: orchestrator,
		bulkCfg: refresh.BulkConfig{
			BatchSize:    cfg.Refresh.BatchSize,
			BatchPause:   cfg.Refresh.BatchPause,
			ExpiryWindow: cfg.Refresh.ExpiryWindow,
		},
		tracker:     tracker,
		monitor:     monitor,
		server:      server,
		pruner:      pruner,
		db:          db,
		redisClient: redisClient,
		log:         slog.Default().With("component", "control"),
	}, nil
}

// Orchestrator exposes the refresh orchestrator (CLI, API handlers).
func (k *Keeper) Orchestrator() *refresh.Orchestrator { return k.orchestrator }

// BulkConfig exposes the configured bulk execution settings.
func (k *Keeper) BulkConfig() refresh.BulkConfig { return k.bulkCfg }

// Tracker exposes the health tracker.
func (k *Keeper) Tracker() *health.Tracker { return k.tracker }

// Monitor exposes the monitoring service.
func (k *Keeper) Monitor() *monitoring.Service { return k.monitor }

// Start launches the background workers and the HTTP server.
func (k *Keeper) Start(ctx context.Context) error {
	ctx, k.cancel = context.WithCancel(ctx)

	go k.monitor.Start(ctx)
	go k.pruner.Start(ctx)
	go k.refreshLoop(ctx)

	go func() {
		if err := k.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			k.log.Error("Monitoring server failed", "error", err)
		}
	}()

	k.log.Info("Keeper started", "port", k.cfg.Port, "providers", len(k.cfg.Providers))
	return nil
}

// refreshLoop periodically refreshes connections nearing expiry.
func (k *Keeper) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(k.cfg.Refresh.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sum, err := k.orchestrator.BulkRefresh(ctx, "", k.bulkCfg)
			if err != nil {
				k.log.Error("Scheduled bulk refresh failed", "error", err)
				continue
			}
			k.log.Info("Scheduled bulk refresh finished",
				"total", sum.Total,
				"successful", sum.Successful,
				"failed", sum.Failed,
				"skipped", sum.Skipped)
		}
	}
}

// Stop shuts the Keeper down gracefully.
func (k *Keeper) Stop(ctx context.Context) error {
	if k.cancel != nil {
		k.cancel()
	}

	if err := k.server.Stop(ctx); err != nil {
		k.log.Warn("Monitoring server shutdown failed", "error", err)
	}
	if k.redisClient != nil {
		if err := k.redisClient.Close(); err != nil {
			k.log.Warn("Redis close failed", "error", err)
		}
	}
	if k.db != nil {
		if err := k.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
