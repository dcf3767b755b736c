// Package health maintains rolling reliability metrics per identity and
// computes a 0-100 health score.
package health

import "github.com/vietddude/tokenkeeper/internal/core/domain"

// Status represents the health state of an identity's connection.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// HealthStatus is the per-identity view returned to callers.
type HealthStatus struct {
	Identity domain.Identity       `json:"identity"`
	Status   Status                `json:"status"`
	Metrics  *domain.HealthMetrics `json:"metrics,omitempty"`
}

// StatusForScore buckets a health score into a status.
func StatusForScore(score float64) Status {
	switch {
	case score >= 80:
		return StatusHealthy
	case score >= 50:
		return StatusDegraded
	default:
		return StatusCritical
	}
}
