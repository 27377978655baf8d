package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/govee-bridge/internal/discovery"
)

// DropCounter reports how many telemetry jobs were discarded.
type DropCounter interface {
	Dropped() uint64
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	Devices       DeviceMetrics   `json:"devices"`
	Routing       discovery.Stats `json:"routing"`
	Scanner       ScannerMetrics  `json:"scanner"`
	Telemetry     TelemetryStats  `json:"telemetry"`
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

// DeviceMetrics summarises the tracked sensors.
type DeviceMetrics struct {
	Total      int `json:"total"`
	LowBattery int `json:"low_battery"`
}

// ScannerMetrics contains scheduler counters.
type ScannerMetrics struct {
	State  string `json:"state"`
	Cycles uint64 `json:"cycles"`
	Stalls uint64 `json:"stalls"`
}

// TelemetryStats contains publishing counters.
type TelemetryStats struct {
	Dropped uint64 `json:"dropped"`
}

// handleMetrics returns runtime and platform counters.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
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

	devices, err := s.source.Devices(ctx)
	if err != nil {
		s.writeSourceError(w, err, "failed to collect metrics")
		return
	}
	metrics.Devices.Total = len(devices)
	for _, d := range devices {
		if d.LowBattery {
			metrics.Devices.LowBattery++
		}
	}

	stats, err := s.source.Stats(ctx)
	if err != nil {
		s.writeSourceError(w, err, "failed to collect metrics")
		return
	}
	metrics.Routing = stats

	snap, err := s.source.Scanner(ctx)
	if err != nil {
		s.writeSourceError(w, err, "failed to collect metrics")
		return
	}
	metrics.Scanner = ScannerMetrics{
		State:  snap.State.String(),
		Cycles: snap.Cycles,
		Stalls: snap.Stalls,
	}

	if s.telemetry != nil {
		metrics.Telemetry.Dropped = s.telemetry.Dropped()
	}

	writeJSON(w, http.StatusOK, metrics)
}
