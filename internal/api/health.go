package api

import (
	"net/http"
	"runtime"
	"time"
)

// Health status values.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string         `json:"status"`
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Device        DeviceHealth   `json:"device"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          *MQTTMetrics   `json:"mqtt,omitempty"`
}

// DeviceHealth summarises the coordinator's view of the speaker.
type DeviceHealth struct {
	ID                  string `json:"id"`
	Available           bool   `json:"available"`
	Phase               string `json:"phase"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// handleHealth reports bridge health. It always answers 200 so that a
// down speaker does not get the bridge itself restarted; Status carries
// the verdict.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:        HealthOK,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Device: DeviceHealth{
			ID:                  s.deviceID,
			Available:           s.coord.Available(),
			Phase:               s.coord.Phase().String(),
			ConsecutiveFailures: s.coord.ConsecutiveFailures(),
		},
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
	}
	if err := s.coord.LastError(); err != nil {
		resp.Device.LastError = err.Error()
	}
	if !resp.Device.Available {
		resp.Status = HealthDegraded
	}

	if s.mqtt != nil {
		resp.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
		if !resp.MQTT.Connected {
			resp.Status = HealthDegraded
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
