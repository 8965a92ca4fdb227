package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/cache"
	"github.com/StimpyDev/EconomyCraft/internal/service"
	"github.com/StimpyDev/EconomyCraft/pkg/response"
)

// AdminHandler handles operator HTTP requests.
type AdminHandler struct {
	eco         *service.Economy
	redisBuffer *cache.RedisRecordBuffer
	storeType   string
	startTime   time.Time
}

// NewAdminHandler creates a new admin handler. redisBuffer may be nil.
func NewAdminHandler(eco *service.Economy, redisBuffer *cache.RedisRecordBuffer, storeType string) *AdminHandler {
	return &AdminHandler{
		eco:         eco,
		redisBuffer: redisBuffer,
		storeType:   storeType,
		startTime:   time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType
	stats["economy"] = h.eco.Stats(ctx)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.redisBuffer != nil {
		count, err := h.redisBuffer.Count(ctx)
		if err == nil {
			stats["redis_buffer"] = map[string]interface{}{
				"pending_records": count,
				"status":          "connected",
			}
		} else {
			stats["redis_buffer"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["redis_buffer"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// Flush handles POST /api/v1/admin/flush. It retries every unsaved concern.
func (h *AdminHandler) Flush(w http.ResponseWriter, r *http.Request) {
	if err := h.eco.Flush(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"flushed": true,
		"time":    time.Now().Format(time.RFC3339),
	})
}
