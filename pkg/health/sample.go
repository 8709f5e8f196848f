package health

import "strings"

// Status is the two-way health classification of a service at one instant.
// StatusUnknown never appears in a stored history; it is only produced by the
// bucket sampler for positions with no data.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// Sample is one timestamped health observation for a service. Immutable once
// created. Timestamps are epoch milliseconds.
type Sample struct {
	Timestamp int64  `json:"timestamp"`
	Status    Status `json:"status"`
}

// ServiceState is the raw per-service state reported by the backend's status
// snapshot. Console marks services that expose an interactive console screen.
type ServiceState struct {
	Status  string `json:"status"`
	Console bool   `json:"console,omitempty"`
}

// Classify maps a service's raw run-state string to a health status. Any
// "up"/"running"-like state is healthy, everything else is unhealthy; no
// partial or degraded state is modeled at this layer.
func Classify(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up", "running", "ok", "healthy", "online", "active":
		return StatusHealthy
	}
	return StatusUnhealthy
}

// Record holds the reconciled health data for one monitored service.
type Record struct {
	// History is ordered strictly ascending by timestamp with no duplicate
	// timestamps, bounded by the retention window and sample cap.
	History []Sample

	// ServerUptime is the authoritative uptime percentage supplied by the
	// backend. When present it overrides any client-computed value.
	ServerUptime *float64
}
