package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/insightql/insightql/internal/models"
	"github.com/insightql/insightql/internal/schemaindex"
	"github.com/insightql/insightql/internal/warehouse"
)

const version = "1.0.0"

// HealthHandler handles GET /health with dependency checks
type HealthHandler struct {
	wh warehouse.Runner
	ix *schemaindex.Index
}

func NewHealthHandler(wh warehouse.Runner, ix *schemaindex.Index) *HealthHandler {
	return &HealthHandler{wh: wh, ix: ix}
}

// Health handles GET /health. Reports per-dependency connectivity instead of
// always returning 200.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	// Use a short timeout for health checks so they don't block
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.wh != nil {
		if err := h.wh.Ping(ctx); err != nil {
			checks["warehouse"] = "unavailable: " + err.Error()
			overallStatus = "degraded"
		} else {
			checks["warehouse"] = h.wh.Name() + ": ok"
		}
	} else {
		checks["warehouse"] = "disabled"
	}

	if h.ix != nil {
		if err := h.ix.Ping(ctx); err != nil {
			checks["schema_index"] = "unavailable: " + err.Error()
			overallStatus = "degraded"
		} else {
			checks["schema_index"] = "ok"
		}
	} else {
		checks["schema_index"] = "disabled"
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: version,
		Checks:  checks,
	})
}
