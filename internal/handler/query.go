package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/insightql/insightql/internal/guardrails"
	"github.com/insightql/insightql/internal/insights"
	"github.com/insightql/insightql/internal/models"
	"github.com/insightql/insightql/internal/security"
	"github.com/insightql/insightql/internal/warehouse"
)

// QueryHandler handles direct SQL query execution
type QueryHandler struct {
	wh          warehouse.Runner
	guard       *guardrails.Validator
	costTracker *security.CostTracker
	dataMasker  *security.DataMasker
	auditLogger *security.AuditLogger
	enableMask  bool
}

func NewQueryHandler(
	wh warehouse.Runner,
	guard *guardrails.Validator,
	costTracker *security.CostTracker,
	dataMasker *security.DataMasker,
	auditLogger *security.AuditLogger,
	enableMask bool,
) *QueryHandler {
	return &QueryHandler{
		wh:          wh,
		guard:       guard,
		costTracker: costTracker,
		dataMasker:  dataMasker,
		auditLogger: auditLogger,
		enableMask:  enableMask,
	}
}

// Execute handles POST /api/v1/query
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults()

	apiKey := r.Header.Get("X-API-Key")

	// Validation gate. Rejections carry a machine-readable reason so
	// callers can distinguish a blocked keyword from a disallowed table.
	verdict := h.guard.Validate(req.SQL)
	if !verdict.Accepted {
		h.auditLogger.LogRejectedSQL(req.SQL, apiKey, string(verdict.Reason), verdict.Detail)
		models.WriteRejection(w, string(verdict.Reason), verdict.Detail)
		return
	}

	start := time.Now()

	result, err := h.wh.Query(r.Context(), verdict.SanitizedSQL, warehouse.QueryOptions{
		DryRun:    req.DryRun,
		TimeoutMs: req.TimeoutMs,
		UseCache:  req.UseQueryCache,
	})
	if err != nil {
		execMs := time.Since(start).Milliseconds()
		h.auditLogger.LogQuery(verdict.SanitizedSQL, apiKey, "", execMs, 0, 0, false, err.Error())
		models.WriteError(w, http.StatusInternalServerError, "query execution failed: "+err.Error())
		return
	}

	execMs := time.Since(start).Milliseconds()

	// Cost check
	if ok, errMsg := h.costTracker.CheckLimits(result.BytesProcessed, apiKey); !ok {
		h.auditLogger.LogQuery(verdict.SanitizedSQL, apiKey, "", execMs, 0, result.BytesProcessed, false, errMsg)
		models.WriteError(w, http.StatusTooManyRequests, errMsg)
		return
	}

	h.costTracker.LogQueryCost(verdict.SanitizedSQL, result.BytesProcessed, apiKey, execMs)

	// Data masking
	data := result.Data
	if h.enableMask {
		data = h.dataMasker.MaskRows(data)
	}

	h.auditLogger.LogQuery(verdict.SanitizedSQL, apiKey, "", execMs, len(data), result.BytesProcessed, true, "")

	resp := models.QueryResponse{
		Status:   "success",
		SQL:      verdict.SanitizedSQL,
		Data:     data,
		Columns:  result.Columns,
		RowCount: len(data),
		Metadata: models.QueryMetadata{
			Engine:          h.wh.Name(),
			JobID:           result.JobID,
			BytesProcessed:  result.BytesProcessed,
			CacheHit:        result.CacheHit,
			ExecutionTimeMs: execMs,
		},
	}
	if req.SuggestChart && !req.DryRun {
		chart := insights.AutoSelect(result.Columns, data)
		resp.Chart = &chart
	}

	models.WriteJSON(w, http.StatusOK, resp)
}
