package insights

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func monthlyRows(n int) []map[string]interface{} {
	rows := make([]map[string]interface{}, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = map[string]interface{}{
			"month":           base.AddDate(0, i, 0),
			"attrition_count": int64(15 + i),
			"headcount":       int64(1000 - 5*i),
		}
	}
	return rows
}

func TestAutoSelectTimeSeries(t *testing.T) {
	sug := AutoSelect([]string{"month", "attrition_count", "headcount"}, monthlyRows(12))
	if sug.Type != "line" {
		t.Fatalf("type = %q, want line", sug.Type)
	}
	if sug.XAxis != "month" || sug.YAxis != "attrition_count" {
		t.Errorf("axes = %q/%q", sug.XAxis, sug.YAxis)
	}
}

func TestAutoSelectDateStrings(t *testing.T) {
	rows := []map[string]interface{}{
		{"month": "2024-01", "hires": int64(25)},
		{"month": "2024-02", "hires": int64(30)},
		{"month": "2024-03", "hires": int64(22)},
		{"month": "2024-04", "hires": int64(35)},
	}
	sug := AutoSelect([]string{"month", "hires"}, rows)
	if sug.Type != "line" {
		t.Errorf("type = %q, want line", sug.Type)
	}
}

func TestAutoSelectCategorical(t *testing.T) {
	rows := []map[string]interface{}{
		{"department": "Engineering", "headcount": int64(150), "avg_salary": 95000.0},
		{"department": "Sales", "headcount": int64(120), "avg_salary": 75000.0},
		{"department": "Marketing", "headcount": int64(80), "avg_salary": 68000.0},
		{"department": "HR", "headcount": int64(45), "avg_salary": 62000.0},
		{"department": "Finance", "headcount": int64(35), "avg_salary": 70000.0},
	}
	sug := AutoSelect([]string{"department", "headcount", "avg_salary"}, rows)
	if sug.Type != "bar" {
		t.Fatalf("type = %q, want bar", sug.Type)
	}
	if sug.XAxis != "department" || sug.YAxis != "headcount" {
		t.Errorf("axes = %q/%q", sug.XAxis, sug.YAxis)
	}
}

func TestAutoSelectKPI(t *testing.T) {
	rows := []map[string]interface{}{
		{"total_employees": int64(1250), "attrition_rate": 12.5, "avg_tenure_years": 3.2},
	}
	sug := AutoSelect([]string{"total_employees", "attrition_rate", "avg_tenure_years"}, rows)
	if sug.Type != "kpi" {
		t.Errorf("type = %q, want kpi", sug.Type)
	}
}

func TestAutoSelectEmpty(t *testing.T) {
	sug := AutoSelect([]string{"a", "b"}, nil)
	if sug.Type != "table" {
		t.Errorf("type = %q, want table", sug.Type)
	}
}

func TestAutoSelectPercentagePie(t *testing.T) {
	rows := []map[string]interface{}{
		{"reason": "Career Growth", "attrition_pct": 35.2},
		{"reason": "Compensation", "attrition_pct": 28.5},
		{"reason": "Work-Life Balance", "attrition_pct": 20.1},
		{"reason": "Management", "attrition_pct": 16.2},
	}
	sug := AutoSelect([]string{"reason", "attrition_pct"}, rows)
	if sug.Type != "pie" {
		t.Errorf("type = %q, want pie", sug.Type)
	}
}

func TestAutoSelectScatter(t *testing.T) {
	rows := []map[string]interface{}{
		{"salary": 50000.0, "tenure_years": 1.0},
		{"salary": 60000.0, "tenure_years": 2.0},
		{"salary": 70000.0, "tenure_years": 3.0},
		{"salary": 80000.0, "tenure_years": 5.0},
		{"salary": 90000.0, "tenure_years": 7.0},
	}
	sug := AutoSelect([]string{"salary", "tenure_years"}, rows)
	if sug.Type != "scatter" {
		t.Fatalf("type = %q, want scatter", sug.Type)
	}
	if sug.XAxis != "salary" || sug.YAxis != "tenure_years" {
		t.Errorf("axes = %q/%q", sug.XAxis, sug.YAxis)
	}
}

func TestAutoSelectHeatmap(t *testing.T) {
	rows := []map[string]interface{}{
		{"department": "Engineering", "region": "North", "avg_salary": 95000.0},
		{"department": "Engineering", "region": "South", "avg_salary": 92000.0},
		{"department": "Sales", "region": "North", "avg_salary": 75000.0},
		{"department": "Sales", "region": "South", "avg_salary": 73000.0},
	}
	sug := AutoSelect([]string{"department", "region", "avg_salary"}, rows)
	if sug.Type != "heatmap" {
		t.Errorf("type = %q, want heatmap", sug.Type)
	}
}

func TestAutoSelectLargeDataset(t *testing.T) {
	rows := make([]map[string]interface{}, 1000)
	for i := range rows {
		rows[i] = map[string]interface{}{
			"id":       int64(i),
			"value":    int64(i),
			"category": fmt.Sprintf("cat-%d", i%3),
		}
	}
	sug := AutoSelect([]string{"id", "value", "category"}, rows)
	if sug.Type != "table" {
		t.Errorf("type = %q, want table for large datasets", sug.Type)
	}
}

func TestBasicNarrative(t *testing.T) {
	rows := []map[string]interface{}{
		{"department": "Engineering", "headcount": int64(150)},
		{"department": "Sales", "headcount": int64(50)},
	}
	got := basicNarrative([]string{"department", "headcount"}, rows)
	want := "Found 2 records with 2 attributes. Average headcount: 100.0 (range: 50.0 - 150.0)"
	if got != want {
		t.Errorf("narrative = %q, want %q", got, want)
	}
}

func TestRuleBasedFollowUps(t *testing.T) {
	qs := ruleBasedFollowUps("what is the attrition rate by department this quarter?")
	if len(qs) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(qs))
	}
	// Time keywords match first, so the leading suggestion is the period
	// comparison.
	if qs[0] != "How do these trends compare to the previous period?" {
		t.Errorf("first suggestion = %q", qs[0])
	}
	seen := make(map[string]bool)
	for _, q := range qs {
		if seen[q] {
			t.Errorf("duplicate suggestion %q", q)
		}
		seen[q] = true
	}
}

func TestFollowUpsWithoutLLM(t *testing.T) {
	g := NewGenerator("", "", "")

	if got := g.FollowUps(context.Background(), "attrition by department", nil, nil); len(got) != 4 {
		t.Errorf("empty rows should yield the 4 fallback questions, got %d", len(got))
	}

	rows := []map[string]interface{}{{"n": int64(1)}, {"n": int64(2)}}
	got := g.FollowUps(context.Background(), "headcount trend per month", []string{"n"}, rows)
	if len(got) == 0 || len(got) > 3 {
		t.Errorf("rule-based follow-ups = %d, want 1-3", len(got))
	}
}

func TestNarrativeEmptyRows(t *testing.T) {
	g := NewGenerator("", "", "")
	got := g.Narrative(context.Background(), "anything", nil, nil)
	if got != "No data was found matching your query criteria." {
		t.Errorf("narrative = %q", got)
	}
}
