package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/insightql/insightql/internal/models"
	"github.com/insightql/insightql/internal/warehouse"
)

// TablesHandler exposes warehouse table metadata
type TablesHandler struct {
	wh warehouse.Runner
}

func NewTablesHandler(wh warehouse.Runner) *TablesHandler {
	return &TablesHandler{wh: wh}
}

// ListTables handles GET /api/v1/tables
func (h *TablesHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	docs, err := h.wh.ListTables(r.Context())
	if err != nil {
		models.WriteError(w, http.StatusInternalServerError, "failed to list tables: "+err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"tables": docs,
		"count":  len(docs),
	})
}

// GetTable handles GET /api/v1/tables/{table}
func (h *TablesHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")

	docs, err := h.wh.ListTables(r.Context())
	if err != nil {
		models.WriteError(w, http.StatusInternalServerError, "failed to list tables: "+err.Error())
		return
	}
	for _, doc := range docs {
		if doc.Table == name {
			models.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"status": "success",
				"table":  doc,
			})
			return
		}
	}
	models.WriteError(w, http.StatusNotFound, "table not found: "+name)
}
