package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/service"
	"github.com/StimpyDev/EconomyCraft/pkg/response"
)

// Handler contains the health and status handlers.
type Handler struct {
	eco       *service.Economy
	service   string
	version   string
	startTime time.Time
}

// New creates a new handler.
func New(eco *service.Economy, serviceName, version string) *Handler {
	return &Handler{
		eco:       eco,
		service:   serviceName,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (h *Handler) checks() []Check {
	checks := []Check{{Name: "api", Status: "ok"}}

	persistence := Check{Name: "persistence", Status: "ok"}
	if pending := h.eco.Persister().Pending(); len(pending) > 0 {
		persistence.Status = "degraded"
		if err := h.eco.Persister().LastError(); err != nil {
			persistence.Detail = err.Error()
		}
	}
	return append(checks, persistence)
}

// Ready handles GET /api/v1/ready. Unsaved economy state makes the
// instance not ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := h.checks()

	allReady := true
	for _, check := range checks {
		if check.Status != "ok" {
			allReady = false
			break
		}
	}

	status := http.StatusOK
	if !allReady {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, ReadyResponse{
		Ready:     allReady,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Persistence string  `json:"persistence"`
	MemoryMB    float64 `json:"memory_mb"`
	Accounts    int     `json:"accounts"`
	Listings    int     `json:"listings"`
	Requests    int     `json:"requests"`
}

// StatusResponse represents the unified status response for monitoring bots.
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	status, persistence := "ok", "ok"
	if len(h.eco.Persister().Pending()) > 0 {
		status, persistence = "degraded", "retrying"
	}

	resp := StatusResponse{
		Service:       h.service,
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		PingMS:        time.Since(requestStart).Milliseconds(),
		Checks: StatusChecks{
			Persistence: persistence,
			MemoryMB:    float64(int(memoryMB*100)) / 100,
			Accounts:    h.eco.Ledger.AccountCount(),
			Listings:    h.eco.Listings.Count(),
			Requests:    h.eco.Orders.Count(),
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
