package eval

import (
	"context"
	"testing"

	"github.com/insightql/insightql/internal/guardrails"
	"github.com/insightql/insightql/internal/warehouse"
)

func newValidator(t *testing.T) *guardrails.Validator {
	t.Helper()
	v, err := guardrails.New(guardrails.Config{
		MaxRows:           1000,
		AllowedNamespaces: []string{"*"},
	})
	if err != nil {
		t.Fatalf("guardrails.New: %v", err)
	}
	return v
}

// ─── SQL Normalization & Similarity ───────────────────────────────────────────

func TestNormalizeSQL(t *testing.T) {
	got := normalizeSQL("select  department,\n\tcount(*)   from dim_employees")
	want := "SELECT DEPARTMENT, COUNT(*) FROM DIM_EMPLOYEES"
	if got != want {
		t.Errorf("normalizeSQL = %q, want %q", got, want)
	}
}

func TestSQLSimilarityIdentical(t *testing.T) {
	sql := "SELECT department, COUNT(*) FROM dim_employees GROUP BY department"
	if sim := sqlSimilarity(sql, "select department,\n count(*) from dim_employees group by department"); sim < 0.99 {
		t.Errorf("identical queries should score ~1.0, got %f", sim)
	}
}

func TestSQLSimilarityDisjoint(t *testing.T) {
	sim := sqlSimilarity(
		"SELECT name FROM dim_employees",
		"DELETE one two three four five six",
	)
	if sim > 0.2 {
		t.Errorf("disjoint queries should score low, got %f", sim)
	}
}

func TestSQLSimilarityEmptyExpected(t *testing.T) {
	if sim := sqlSimilarity("SELECT 1", ""); sim != 0 {
		t.Errorf("empty expected SQL should score 0, got %f", sim)
	}
}

// ─── Schema Compliance ────────────────────────────────────────────────────────

func TestSchemaComplianceFullMatch(t *testing.T) {
	e := &Evaluator{guard: newValidator(t)}
	c := Case{
		ExpectedTables:       []string{"dim_employees"},
		ExpectedAggregations: []string{"COUNT"},
		ExpectedFilters:      []string{"department"},
	}
	sql := "SELECT department, COUNT(*) FROM dim_employees WHERE department = 'Sales' GROUP BY department"

	if score := e.schemaCompliance(sql, c); score != 1.0 {
		t.Errorf("full match should score 1.0, got %f", score)
	}
}

func TestSchemaComplianceBlockedSQL(t *testing.T) {
	e := &Evaluator{guard: newValidator(t)}
	c := Case{ExpectedTables: []string{"dim_employees"}}
	sql := "DELETE FROM dim_employees"

	// Table matches (30) but validation fails (no 25): 30/100
	score := e.schemaCompliance(sql, c)
	if score < 0.29 || score > 0.31 {
		t.Errorf("blocked SQL with matching table should score 0.30, got %f", score)
	}
}

// ─── Result Accuracy ──────────────────────────────────────────────────────────

func TestResultAccuracyEmptyRows(t *testing.T) {
	if score := resultAccuracy([]string{"a"}, nil, Case{}); score != 0 {
		t.Errorf("empty result should score 0, got %f", score)
	}
}

func TestResultAccuracyMatchingColumns(t *testing.T) {
	columns := []string{"department", "headcount"}
	rows := []map[string]interface{}{
		{"department": "Sales", "headcount": int64(12)},
	}
	c := Case{ExpectedColumns: []string{"department", "headcount"}}

	if score := resultAccuracy(columns, rows, c); score != 1.0 {
		t.Errorf("matching columns should score 1.0, got %f", score)
	}
}

// ─── Store ────────────────────────────────────────────────────────────────────

func TestStoreSaveAndHistory(t *testing.T) {
	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	run := &RunResult{
		RunID:        "eval_test_run",
		TotalCases:   2,
		PassedCases:  1,
		FailedCases:  1,
		OverallScore: 0.65,
		CaseResults: []CaseResult{
			{CaseID: "c1", Question: "q1", GeneratedSQL: "SELECT 1", OverallScore: 0.9, ExecutionSuccess: true},
			{CaseID: "c2", Question: "q2", ErrorMessage: "translation failed", OverallScore: 0.4},
		},
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	history, err := store.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 run in history, got %d", len(history))
	}
	if history[0].RunID != "eval_test_run" || history[0].PassedCases != 1 {
		t.Errorf("unexpected history row: %+v", history[0])
	}

	cases, err := store.CaseHistory(ctx, "eval_test_run")
	if err != nil {
		t.Fatalf("CaseHistory: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 case rows, got %d", len(cases))
	}
	if cases[0].CaseID != "c1" || !cases[0].ExecutionSuccess {
		t.Errorf("unexpected case row: %+v", cases[0])
	}
}

// ─── Evaluator End To End ─────────────────────────────────────────────────────

type cannedTranslator struct {
	sql string
	err error
}

func (ct cannedTranslator) TranslateToSQL(ctx context.Context, question string) (string, error) {
	return ct.sql, ct.err
}

func TestEvaluatorRun(t *testing.T) {
	wh, err := warehouse.NewLocalRunner(":memory:")
	if err != nil {
		t.Fatalf("NewLocalRunner: %v", err)
	}
	defer wh.Close()

	ctx := context.Background()
	fixtures := []string{
		`CREATE TABLE dim_employees (employee_id INTEGER, department TEXT)`,
		`INSERT INTO dim_employees VALUES (1, 'Sales'), (2, 'Sales'), (3, 'Engineering')`,
	}
	for _, stmt := range fixtures {
		if _, err := wh.DB().ExecContext(ctx, stmt); err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}

	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	sql := "SELECT department, COUNT(*) AS headcount FROM dim_employees GROUP BY department"
	cases := []Case{{
		ID:                   "headcount_by_department",
		Question:             "How many employees are in each department?",
		ExpectedSQL:          sql,
		ExpectedTables:       []string{"dim_employees"},
		ExpectedAggregations: []string{"COUNT"},
		ExpectedColumns:      []string{"department", "headcount"},
	}}

	e := NewEvaluator(cases, cannedTranslator{sql: sql}, newValidator(t), wh, store)
	result, err := e.Run(ctx, "run_1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.PassedCases != 1 || result.FailedCases != 0 {
		t.Errorf("expected 1 pass, got %d pass / %d fail", result.PassedCases, result.FailedCases)
	}
	cr := result.CaseResults[0]
	if !cr.ExecutionSuccess {
		t.Errorf("execution should succeed: %s", cr.ErrorMessage)
	}
	if cr.SQLSimilarity < 0.99 {
		t.Errorf("similarity should be ~1.0, got %f", cr.SQLSimilarity)
	}
	if cr.OverallScore < passThreshold {
		t.Errorf("case should pass threshold, got %f", cr.OverallScore)
	}

	// Persisted
	history, err := store.History(ctx, 1)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected persisted run, got %v (err %v)", history, err)
	}
}

func TestEvaluatorTranslationError(t *testing.T) {
	wh, err := warehouse.NewLocalRunner(":memory:")
	if err != nil {
		t.Fatalf("NewLocalRunner: %v", err)
	}
	defer wh.Close()

	cases := []Case{{ID: "c1", Question: "q"}}
	e := NewEvaluator(cases, cannedTranslator{err: context.DeadlineExceeded}, newValidator(t), wh, nil)

	result, err := e.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.FailedCases != 1 {
		t.Errorf("translation error should fail the case")
	}
	if result.CaseResults[0].ErrorMessage == "" {
		t.Error("error message should be recorded")
	}
}
