// Package models defines request and response types for the goresolv
// status API. All types are JSON-serializable.
package models

import "time"

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse represents a simple status response.
type StatusResponse struct {
	Status string `json:"status"`
}

// CacheStatsResponse is the response for GET /status/cache.
type CacheStatsResponse struct {
	Entries      int `json:"entries"`
	NegEntries   int `json:"neg_entries"`
	Hits         int `json:"hits"`
	Misses       int `json:"misses"`
	NegativeHits int `json:"negative_hits"`
}

// QueriesStatsResponse is the response for GET /status/queries.
type QueriesStatsResponse struct {
	Active int `json:"active"`
}

// UpstreamStatResponse is one upstream's tallied health, keyed by dial
// address in UpstreamsResponse.
type UpstreamStatResponse struct {
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
}

// UpstreamsResponse is the response for GET /status/upstreams.
type UpstreamsResponse struct {
	Upstreams map[string]UpstreamStatResponse `json:"upstreams"`
}

// CPUStats reports host CPU usage as sampled by gopsutil.
type CPUStats struct {
	NumCPU      int     `json:"num_cpu"`
	UsedPercent float64 `json:"used_percent"`
	IdlePercent float64 `json:"idle_percent"`
}

// MemoryStats reports host memory usage as sampled by gopsutil.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// StatsResponse is the response for GET /status/stats: host resource
// usage plus the same counters served individually by the other
// /status/* endpoints, bundled for a single dashboard request.
type StatsResponse struct {
	Uptime        string            `json:"uptime"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartTime     time.Time         `json:"start_time"`
	CPU           CPUStats          `json:"cpu"`
	Memory        MemoryStats       `json:"memory"`
	Cache         CacheStatsResponse `json:"cache"`
	Queries       QueriesStatsResponse `json:"queries"`
}
