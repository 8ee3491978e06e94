package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/clipstream/backend/internal/logging"
)

// HealthHandler reports process liveness and database connectivity.
type HealthHandler struct {
	Pinger  Pinger
	Started time.Time
}

// Check handles GET /healthz. The endpoint stays 200 as long as the process
// is serving; a failed database ping is reported in the payload instead of
// failing the probe.
func (h HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus := "ok"
	if h.Pinger != nil {
		if err := h.Pinger.Ping(ctx); err != nil {
			dbStatus = "unreachable"
			logging.FromContext(ctx).Warn("health check database ping", "error", err)
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	respondJSON(ctx, w, http.StatusOK, "health", map[string]any{
		"status":        "ok",
		"database":      dbStatus,
		"uptimeSeconds": int64(time.Since(h.Started).Seconds()),
		"goroutines":    runtime.NumGoroutine(),
		"heapAllocMB":   mem.HeapAlloc / (1 << 20),
	})
}
