package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/insightql/insightql/internal/guardrails"
	"github.com/insightql/insightql/internal/warehouse"
)

// ExecuteSQLTool validates a SQL query against the guardrails pipeline and,
// if accepted, runs the sanitized form on the warehouse. The rejection
// detail is surfaced to the model so it can correct the query.
func ExecuteSQLTool(v *guardrails.Validator, wh warehouse.Runner) Tool {
	return Tool{
		Name:        "execute_sql",
		Description: "Execute a SQL SELECT query on the warehouse and return the results. Only SELECT queries against allowed tables are permitted; a row limit is applied automatically.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sql": map[string]interface{}{
					"type":        "string",
					"description": "The SQL SELECT query to execute",
				},
			},
			"required": []string{"sql"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			sql, _ := input["sql"].(string)
			if sql == "" {
				return "", fmt.Errorf("sql is required")
			}

			verdict := v.Validate(sql)
			if !verdict.Accepted {
				return "", fmt.Errorf("query rejected (%s): %s", verdict.Reason, verdict.Detail)
			}

			result, err := wh.Query(ctx, verdict.SanitizedSQL, warehouse.QueryOptions{TimeoutMs: 60000, UseCache: true})
			if err != nil {
				return "", fmt.Errorf("execute query: %w", err)
			}

			out := map[string]interface{}{
				"sql":       verdict.SanitizedSQL,
				"row_count": len(result.Data),
				"columns":   result.Columns,
				"data":      result.Data,
			}
			b, _ := json.Marshal(out)
			return string(b), nil
		},
	}
}
