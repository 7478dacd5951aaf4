package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightql/insightql/internal/warehouse"
)

// ListTablesTool lists every table in the warehouse with its columns.
func ListTablesTool(wh warehouse.Runner) Tool {
	return Tool{
		Name:        "list_tables",
		Description: "List all tables in the warehouse with their column names and types. Use this before writing SQL to understand what data is available.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			docs, err := wh.ListTables(ctx)
			if err != nil {
				return "", fmt.Errorf("list tables: %w", err)
			}

			var b strings.Builder
			for _, doc := range docs {
				fmt.Fprintf(&b, "Table: %s\n", doc.Table)
				if doc.Description != "" {
					fmt.Fprintf(&b, "  %s\n", doc.Description)
				}
				for _, col := range doc.Columns {
					fmt.Fprintf(&b, "  %s %s\n", col.Name, col.Type)
				}
			}
			if b.Len() == 0 {
				return "No tables found in the warehouse.", nil
			}
			return b.String(), nil
		},
	}
}
