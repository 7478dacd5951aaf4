package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/insightql/insightql/internal/models"
	"github.com/insightql/insightql/internal/schemaindex"
	"github.com/insightql/insightql/internal/warehouse"
)

// SchemaHandler handles the schema catalog endpoints. The index is searched
// by the agent at question time and refreshed here via reindex.
type SchemaHandler struct {
	ix         *schemaindex.Index
	wh         warehouse.Runner
	invalidate func() // drops the cached agent system prompt after reindex
}

func NewSchemaHandler(ix *schemaindex.Index, wh warehouse.Runner, invalidate func()) *SchemaHandler {
	return &SchemaHandler{ix: ix, wh: wh, invalidate: invalidate}
}

// Search handles GET /api/v1/schema/search?q=...&size=...&kind=tables|metrics
func (h *SchemaHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.ix == nil {
		models.WriteError(w, http.StatusServiceUnavailable, "schema index is not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		models.WriteError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	size := 5
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 50 {
			models.WriteError(w, http.StatusBadRequest, "size must be an integer between 1 and 50")
			return
		}
		size = n
	}

	var hits []models.SchemaSearchHit
	var err error
	if r.URL.Query().Get("kind") == "metrics" {
		hits, err = h.ix.SearchMetrics(r.Context(), query, size)
	} else {
		hits, err = h.ix.SearchTables(r.Context(), query, size)
	}
	if err != nil {
		models.WriteError(w, http.StatusInternalServerError, "schema search failed: "+err.Error())
		return
	}

	models.WriteJSON(w, http.StatusOK, models.SchemaSearchResponse{
		Status: "success",
		Query:  query,
		Hits:   hits,
	})
}

// Reindex handles POST /api/v1/schema/reindex. With an empty body the tables
// are introspected from the warehouse; a body with explicit docs replaces
// that, which is how curated descriptions and metrics get in.
func (h *SchemaHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.ix == nil {
		models.WriteError(w, http.StatusServiceUnavailable, "schema index is not configured")
		return
	}

	var req models.ReindexRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	tables := req.Tables
	if len(tables) == 0 {
		docs, err := h.wh.ListTables(r.Context())
		if err != nil {
			models.WriteError(w, http.StatusInternalServerError, "warehouse introspection failed: "+err.Error())
			return
		}
		tables = docs
	}

	indexedTables, err := h.ix.IndexTables(r.Context(), tables)
	if err != nil {
		models.WriteError(w, http.StatusInternalServerError, "indexing tables failed: "+err.Error())
		return
	}
	var indexedMetrics int
	if len(req.Metrics) > 0 {
		indexedMetrics, err = h.ix.IndexMetrics(r.Context(), req.Metrics)
		if err != nil {
			models.WriteError(w, http.StatusInternalServerError, "indexing metrics failed: "+err.Error())
			return
		}
	}

	if h.invalidate != nil {
		h.invalidate()
	}

	models.WriteJSON(w, http.StatusOK, models.ReindexResponse{
		Status:  "success",
		Tables:  indexedTables,
		Metrics: indexedMetrics,
	})
}
