package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightql/insightql/internal/schemaindex"
)

// SchemaSearchTool finds the tables most relevant to a natural-language
// question via the schema index.
func SchemaSearchTool(ix *schemaindex.Index) Tool {
	return Tool{
		Name:        "search_schema",
		Description: "Search the schema catalog for tables relevant to a question. Returns table names, descriptions, and columns ranked by relevance. Prefer this over list_tables when the warehouse has many tables.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What data you are looking for, in plain language",
				},
				"size": map[string]interface{}{
					"type":        "integer",
					"description": "Number of tables to return (default: 5)",
				},
			},
			"required": []string{"query"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			query, _ := input["query"].(string)
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			size := 5
			if s, ok := input["size"].(float64); ok && s > 0 {
				size = int(s)
			}

			hits, err := ix.SearchTables(ctx, query, size)
			if err != nil {
				return "", fmt.Errorf("schema search: %w", err)
			}
			if len(hits) == 0 {
				return "No matching tables found.", nil
			}

			var b strings.Builder
			for _, hit := range hits {
				if hit.Table == nil {
					continue
				}
				fmt.Fprintf(&b, "Table: %s (score %.2f)\n", hit.Table.Table, hit.Score)
				if hit.Table.Description != "" {
					fmt.Fprintf(&b, "  %s\n", hit.Table.Description)
				}
				for _, col := range hit.Table.Columns {
					fmt.Fprintf(&b, "  %s %s\n", col.Name, col.Type)
				}
			}
			return b.String(), nil
		},
	}
}

// MetricsSearchTool finds curated metric definitions matching a question.
// Metric SQL is a vetted starting point the agent can adapt.
func MetricsSearchTool(ix *schemaindex.Index) Tool {
	return Tool{
		Name:        "search_metrics",
		Description: "Search curated metric definitions (name, description, reference SQL) relevant to a question. Use a matching metric's SQL as the starting point instead of writing a query from scratch.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The business metric you are looking for",
				},
			},
			"required": []string{"query"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			query, _ := input["query"].(string)
			if query == "" {
				return "", fmt.Errorf("query is required")
			}

			hits, err := ix.SearchMetrics(ctx, query, 3)
			if err != nil {
				return "", fmt.Errorf("metrics search: %w", err)
			}
			if len(hits) == 0 {
				return "No matching metrics found.", nil
			}

			var b strings.Builder
			for _, hit := range hits {
				if hit.Metric == nil {
					continue
				}
				fmt.Fprintf(&b, "Metric: %s (score %.2f)\n", hit.Metric.Name, hit.Score)
				if hit.Metric.Description != "" {
					fmt.Fprintf(&b, "  %s\n", hit.Metric.Description)
				}
				fmt.Fprintf(&b, "  SQL: %s\n", hit.Metric.SQL)
			}
			return b.String(), nil
		},
	}
}
