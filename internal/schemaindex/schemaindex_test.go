package schemaindex

import (
	"encoding/json"
	"testing"

	"github.com/insightql/insightql/internal/models"
)

func TestRawHitsParsing(t *testing.T) {
	payload := `{
		"took": 3,
		"hits": {
			"total": {"value": 2},
			"hits": [
				{"_score": 8.1, "_source": {"table": "marts.people.dim_employees", "columns": [{"name": "employee_id", "type": "INTEGER"}]}},
				{"_score": 2.4, "_source": {"table": "staging.events", "columns": []}}
			]
		}
	}`
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	hits := rawHits(raw)
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].score != 8.1 {
		t.Errorf("score = %v, want 8.1", hits[0].score)
	}

	var doc models.SchemaDoc
	if err := remarshal(hits[0].source, &doc); err != nil {
		t.Fatalf("remarshal: %v", err)
	}
	if doc.Table != "marts.people.dim_employees" {
		t.Errorf("table = %q", doc.Table)
	}
	if len(doc.Columns) != 1 || doc.Columns[0].Name != "employee_id" {
		t.Errorf("columns = %v", doc.Columns)
	}
}

func TestRawHitsEmptyResponse(t *testing.T) {
	if got := rawHits(map[string]interface{}{}); got != nil {
		t.Errorf("rawHits on empty body = %v, want nil", got)
	}
}

func TestDocID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"marts.people.dim_employees", "marts.people.dim_employees"},
		{"Monthly Attrition Rate", "monthly_attrition_rate"},
	}
	for _, tt := range tests {
		if got := docID(tt.in); got != tt.want {
			t.Errorf("docID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
