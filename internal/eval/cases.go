package eval

import (
	"encoding/json"
	"fmt"
	"os"
)

// Case is one NL→SQL evaluation case. Expectations are partial: a case may
// pin tables only, or tables plus aggregations, and scoring weights adjust.
type Case struct {
	ID                   string   `json:"id"`
	Category             string   `json:"category,omitempty"`
	Question             string   `json:"question"`
	ExpectedSQL          string   `json:"expected_sql,omitempty"`
	ExpectedTables       []string `json:"expected_tables,omitempty"`
	ExpectedAggregations []string `json:"expected_aggregations,omitempty"`
	ExpectedFilters      []string `json:"expected_filters,omitempty"`
	ExpectedColumns      []string `json:"expected_columns,omitempty"`
}

// LoadCases reads evaluation cases from a JSON file of the form
// {"cases": [...]}.
func LoadCases(path string) ([]Case, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cases file: %w", err)
	}
	var doc struct {
		Cases []Case `json:"cases"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parsing cases file: %w", err)
	}
	if len(doc.Cases) == 0 {
		return nil, fmt.Errorf("cases file %s contains no cases", path)
	}
	for i, c := range doc.Cases {
		if c.ID == "" || c.Question == "" {
			return nil, fmt.Errorf("case %d: id and question are required", i)
		}
	}
	return doc.Cases, nil
}
