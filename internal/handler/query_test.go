package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/insightql/insightql/internal/guardrails"
	"github.com/insightql/insightql/internal/handler"
	"github.com/insightql/insightql/internal/models"
	"github.com/insightql/insightql/internal/security"
	"github.com/insightql/insightql/internal/warehouse"
)

func newQueryHandler(t *testing.T) (*handler.QueryHandler, *warehouse.LocalRunner) {
	t.Helper()

	wh, err := warehouse.NewLocalRunner(":memory:")
	if err != nil {
		t.Fatalf("NewLocalRunner: %v", err)
	}
	t.Cleanup(func() { wh.Close() })

	fixtures := []string{
		`CREATE TABLE dim_employees (employee_id INTEGER, name TEXT, department TEXT)`,
		`INSERT INTO dim_employees VALUES (1, 'Ada', 'Engineering'), (2, 'Grace', 'Engineering'), (3, 'Lin', 'Sales')`,
	}
	for _, stmt := range fixtures {
		if _, err := wh.DB().ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}

	guard, err := guardrails.New(guardrails.Config{
		MaxRows:           100,
		AllowedNamespaces: []string{"dim_*"},
	})
	if err != nil {
		t.Fatalf("guardrails.New: %v", err)
	}

	h := handler.NewQueryHandler(
		wh, guard,
		security.NewCostTracker(0),
		security.NewDataMasker(nil),
		security.NewAuditLogger(false),
		false,
	)
	return h, wh
}

func postQuery(t *testing.T, h *handler.QueryHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Execute(rr, req)
	return rr
}

// ─── Accepted Queries ─────────────────────────────────────────────────────────

func TestQueryExecute(t *testing.T) {
	h, _ := newQueryHandler(t)

	rr := postQuery(t, h, `{"sql": "SELECT department, COUNT(*) AS n FROM dim_employees GROUP BY department ORDER BY department"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.QueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.RowCount != 2 {
		t.Errorf("row_count = %d, want 2", resp.RowCount)
	}
	// The executed SQL carries the enforced limit
	if !strings.Contains(resp.SQL, "LIMIT 100") {
		t.Errorf("response SQL should carry the enforced limit, got %q", resp.SQL)
	}
	if resp.Metadata.Engine != "local" {
		t.Errorf("engine = %q", resp.Metadata.Engine)
	}
}

func TestQueryExecuteWithChart(t *testing.T) {
	h, _ := newQueryHandler(t)

	rr := postQuery(t, h, `{"sql": "SELECT department, COUNT(*) AS n FROM dim_employees GROUP BY department", "suggest_chart": true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.QueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Chart == nil {
		t.Fatal("chart suggestion missing")
	}
	if resp.Chart.Type != "bar" {
		t.Errorf("chart type = %q, want bar", resp.Chart.Type)
	}
}

// ─── Rejected Queries ─────────────────────────────────────────────────────────

func TestQueryRejectedKeyword(t *testing.T) {
	h, _ := newQueryHandler(t)

	rr := postQuery(t, h, `{"sql": "DELETE FROM dim_employees"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	var resp models.RejectionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "rejected" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Reason != string(guardrails.ReasonBlockedKeyword) {
		t.Errorf("reason = %q, want %q", resp.Reason, guardrails.ReasonBlockedKeyword)
	}
}

func TestQueryRejectedTable(t *testing.T) {
	h, _ := newQueryHandler(t)

	rr := postQuery(t, h, `{"sql": "SELECT * FROM secrets"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	var resp models.RejectionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reason != string(guardrails.ReasonSchemaNotAllowed) {
		t.Errorf("reason = %q, want %q", resp.Reason, guardrails.ReasonSchemaNotAllowed)
	}
}

func TestQueryInvalidBody(t *testing.T) {
	h, _ := newQueryHandler(t)

	rr := postQuery(t, h, `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

// ─── Dry Run ──────────────────────────────────────────────────────────────────

func TestQueryDryRun(t *testing.T) {
	h, _ := newQueryHandler(t)

	rr := postQuery(t, h, `{"sql": "SELECT name FROM dim_employees", "dry_run": true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.QueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RowCount != 0 {
		t.Errorf("dry run should return no rows, got %d", resp.RowCount)
	}
}
