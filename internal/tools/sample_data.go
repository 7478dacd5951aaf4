package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/insightql/insightql/internal/guardrails"
	"github.com/insightql/insightql/internal/warehouse"
)

// SampleDataTool fetches a few sample rows from a table so the agent can
// understand actual data values, types, and join key relationships. The
// generated query goes through the same validation as any other SQL, so
// tables outside the allowlist cannot be sampled.
func SampleDataTool(v *guardrails.Validator, wh warehouse.Runner) Tool {
	return Tool{
		Name:        "get_sample_data",
		Description: "Get 3 sample rows from a table to understand actual data values, formats, and relationships. Use this before writing JOIN queries to verify foreign key values match across tables.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"table": map[string]interface{}{
					"type":        "string",
					"description": "Fully qualified table name, e.g. marts.people.dim_employees",
				},
			},
			"required": []string{"table"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			table, _ := input["table"].(string)
			if table == "" {
				return "", fmt.Errorf("table is required")
			}

			verdict := v.Validate(fmt.Sprintf("SELECT * FROM %s LIMIT 3", table))
			if !verdict.Accepted {
				return "", fmt.Errorf("query rejected (%s): %s", verdict.Reason, verdict.Detail)
			}

			result, err := wh.Query(ctx, verdict.SanitizedSQL, warehouse.QueryOptions{TimeoutMs: 10000, UseCache: true})
			if err != nil {
				return "", fmt.Errorf("sample data: %w", err)
			}

			out := map[string]interface{}{
				"table":   table,
				"columns": result.Columns,
				"sample":  result.Data,
				"note":    "These are sample rows only. Use these to understand data format and join key values.",
			}
			b, err := json.Marshal(out)
			if err != nil {
				return "", fmt.Errorf("marshal sample: %w", err)
			}
			return string(b), nil
		},
	}
}
