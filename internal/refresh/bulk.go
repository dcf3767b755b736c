package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// BulkConfig defines batch execution behavior for bulk refreshes.
type BulkConfig struct {
	BatchSize    int           // connections refreshed concurrently
	BatchPause   time.Duration // pause between batches
	ExpiryWindow time.Duration // only refresh tokens expiring within this
}

// DefaultBulkConfig provides sensible defaults.
var DefaultBulkConfig = BulkConfig{
	BatchSize:    10,
	BatchPause:   1 * time.Second,
	ExpiryWindow: 1 * time.Hour,
}

func (c BulkConfig) withDefaults() BulkConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBulkConfig.BatchSize
	}
	if c.BatchPause <= 0 {
		c.BatchPause = DefaultBulkConfig.BatchPause
	}
	if c.ExpiryWindow <= 0 {
		c.ExpiryWindow = DefaultBulkConfig.ExpiryWindow
	}
	return c
}

// BulkError captures one identity's failure inside a bulk run.
type BulkError struct {
	Identity domain.Identity `json:"identity"`
	Status   Status          `json:"status,omitempty"`
	Message  string          `json:"message"`
}

// BulkSummary is the result of one bulk refresh run.
// Successful + Failed + Skipped always equals Total.
type BulkSummary struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	Errors     []BulkError `json:"errors,omitempty"`
}

// BulkRefresh refreshes all active connections matching providerFilter
// (empty = all providers) whose token expires within the configured window.
// Connections are processed in fixed-size batches; each batch runs
// concurrently and completes before the next starts, with a short pause
// between batches to avoid provider bursts. Individual refresh failures are
// collected in the summary; only enumeration faults fail the whole call.
func (o *Orchestrator) BulkRefresh(
	ctx context.Context,
	providerFilter string,
	cfg BulkConfig,
) (*BulkSummary, error) {
	cfg = cfg.withDefaults()

	conns, err := o.connections.Scan(ctx, providerFilter, true)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate connections: %w", err)
	}

	sum := &BulkSummary{Total: len(conns)}
	var mu sync.Mutex

	for start := 0; start < len(conns); start += cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+cfg.BatchSize, len(conns))
		batch := conns[start:end]

		g := new(errgroup.Group)
		g.SetLimit(cfg.BatchSize)

		for _, conn := range batch {
			if !conn.ExpiresWithin(cfg.ExpiryWindow) {
				sum.Skipped++
				continue
			}

			g.Go(func() error {
				res, err := o.RefreshWithBackoff(ctx, conn.Identity, "")

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					sum.Failed++
					sum.Errors = append(sum.Errors, BulkError{
						Identity: conn.Identity,
						Message:  err.Error(),
					})
				case res.Succeeded():
					sum.Successful++
				default:
					sum.Failed++
					sum.Errors = append(sum.Errors, BulkError{
						Identity: conn.Identity,
						Status:   res.Status,
						Message:  bulkErrorMessage(res),
					})
				}
				return nil
			})
		}

		// Barrier: the whole batch finishes before the next one starts.
		_ = g.Wait()

		if end < len(conns) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.BatchPause):
			}
		}
	}

	o.log.Info("Bulk refresh finished",
		"provider", providerFilter,
		"total", sum.Total,
		"successful", sum.Successful,
		"failed", sum.Failed,
		"skipped", sum.Skipped)
	return sum, nil
}

func bulkErrorMessage(res *Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	return string(res.Status)
}
