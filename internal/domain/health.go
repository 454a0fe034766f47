package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LastChecked string `json:"lastChecked"`
}

// ReportMetrics is returned by GET /v1/metrics/report.
type ReportMetrics struct {
	TotalRuns      int64   `json:"totalRuns"`
	FailedRuns     int64   `json:"failedRuns"`
	ErrorRate      float64 `json:"errorRate"`
	RowsNormalized int64   `json:"rowsNormalized"`
	Deliveries     int64   `json:"deliveries"`
	FailedDelivery int64   `json:"failedDeliveries"`
	CacheHitRate   float64 `json:"cacheHitRate"`
	ExternalErrors int64   `json:"externalErrors"`
	Period         string  `json:"period"`
}
