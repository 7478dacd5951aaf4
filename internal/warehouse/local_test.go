package warehouse

import (
	"context"
	"testing"
)

func newLocal(t *testing.T) *LocalRunner {
	t.Helper()
	r, err := NewLocalRunner(":memory:")
	if err != nil {
		t.Fatalf("NewLocalRunner: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	stmts := []string{
		`CREATE TABLE dim_employees (employee_id INTEGER PRIMARY KEY, department TEXT, is_active INTEGER)`,
		`INSERT INTO dim_employees VALUES (1, 'Engineering', 1), (2, 'Sales', 1), (3, 'Sales', 0)`,
	}
	for _, s := range stmts {
		if _, err := r.DB().Exec(s); err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	return r
}

func TestLocalRunnerQuery(t *testing.T) {
	r := newLocal(t)

	res, err := r.Query(context.Background(),
		"SELECT department, COUNT(*) AS n FROM dim_employees GROUP BY department ORDER BY department", QueryOptions{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", res.RowCount)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "department" || res.Columns[1] != "n" {
		t.Errorf("Columns = %v", res.Columns)
	}
	if res.Data[0]["department"] != "Engineering" {
		t.Errorf("first row = %v", res.Data[0])
	}
}

func TestLocalRunnerDryRun(t *testing.T) {
	r := newLocal(t)

	res, err := r.Query(context.Background(), "SELECT * FROM dim_employees", QueryOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if res.RowCount != 0 || res.Data != nil {
		t.Errorf("dry run returned data: %+v", res)
	}

	if _, err := r.Query(context.Background(), "SELECT * FROM no_such_table", QueryOptions{DryRun: true}); err == nil {
		t.Error("dry run of invalid SQL should fail")
	}
}

func TestLocalRunnerListTables(t *testing.T) {
	r := newLocal(t)

	docs, err := r.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("tables = %d, want 1", len(docs))
	}
	if docs[0].Table != "dim_employees" {
		t.Errorf("table = %q", docs[0].Table)
	}
	if len(docs[0].Columns) != 3 {
		t.Errorf("columns = %v", docs[0].Columns)
	}
}
