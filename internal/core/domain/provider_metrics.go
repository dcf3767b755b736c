package domain

import "time"

// ProviderMetrics is a periodic aggregate snapshot for one provider,
// retained as a time series.
type ProviderMetrics struct {
	Provider          string         `json:"provider"`
	Timestamp         time.Time      `json:"timestamp"`
	TotalIdentities   int            `json:"total_identities"`
	ActiveConnections int            `json:"active_connections"`
	ExpiredTokens     int            `json:"expired_tokens"`
	FailedRefreshes   int            `json:"failed_refreshes_24h"`
	SuccessRate       float64        `json:"success_rate_24h"`
	AverageRefreshMs  float64        `json:"average_refresh_time_ms"`
	ErrorDistribution map[string]int `json:"error_distribution"`
	HealthScore       float64        `json:"health_score"`
}

// ExpiredRatio returns the percentage of connections whose token is expired.
func (m *ProviderMetrics) ExpiredRatio() float64 {
	if m.TotalIdentities == 0 {
		return 0
	}
	return float64(m.ExpiredTokens) / float64(m.TotalIdentities) * 100
}

// ErrorRate returns failed refreshes as a percentage of total identities.
func (m *ProviderMetrics) ErrorRate() float64 {
	if m.TotalIdentities == 0 {
		return 0
	}
	return float64(m.FailedRefreshes) / float64(m.TotalIdentities) * 100
}
