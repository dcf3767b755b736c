package domain

import "time"

// HealthMetrics holds rolling reliability metrics for one identity.
// Created on the first refresh attempt, updated on every attempt after,
// never deleted.
type HealthMetrics struct {
	Identity              Identity      `json:"identity"`
	LastSuccessfulRefresh *time.Time    `json:"last_successful_refresh,omitempty"`
	ConsecutiveFailures   int           `json:"consecutive_failures"`
	TotalAttempts         int           `json:"total_attempts"`
	SuccessfulAttempts    int           `json:"successful_attempts"`
	AverageLatency        time.Duration `json:"average_latency"`
	HealthScore           float64       `json:"health_score"`
	LastError             string        `json:"last_error,omitempty"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// SuccessRate returns the percentage of successful attempts [0,100].
func (m *HealthMetrics) SuccessRate() float64 {
	if m.TotalAttempts == 0 {
		return 0
	}
	return float64(m.SuccessfulAttempts) / float64(m.TotalAttempts) * 100
}
