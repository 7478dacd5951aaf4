package models

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// QueryMetadata describes one warehouse execution
type QueryMetadata struct {
	Engine          string `json:"engine"`
	JobID           string `json:"job_id,omitempty"`
	BytesProcessed  int64  `json:"bytes_processed,omitempty"`
	CacheHit        bool   `json:"cache_hit"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// ChartSuggestion is a renderer-agnostic visualization hint derived from the
// shape of a result set
type ChartSuggestion struct {
	Type   string `json:"type"` // "line" | "bar" | "scatter" | "pie" | "table"
	XAxis  string `json:"x_axis,omitempty"`
	YAxis  string `json:"y_axis,omitempty"`
	Series string `json:"series,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// QueryResponse is returned by POST /api/v1/query
type QueryResponse struct {
	Status   string                   `json:"status"`
	SQL      string                   `json:"sql"` // sanitized form that actually ran
	Data     []map[string]interface{} `json:"data"`
	Metadata QueryMetadata            `json:"metadata"`
	RowCount int                      `json:"row_count"`
	Columns  []string                 `json:"columns"`
	Chart    *ChartSuggestion         `json:"chart,omitempty"`
}

// AskResponse is returned by POST /api/v1/ask
type AskResponse struct {
	Status          string                 `json:"status"`
	Question        string                 `json:"question"`
	GeneratedSQL    *string                `json:"generated_sql,omitempty"`
	ExecutionResult *QueryResponse         `json:"execution_result,omitempty"`
	AgentMetadata   map[string]interface{} `json:"agent_metadata"`
	Answer          *string                `json:"answer,omitempty"`
	FollowUps       []string               `json:"follow_ups,omitempty"`
}

// SchemaDoc is one table in the schema index
type SchemaDoc struct {
	Table       string   `json:"table"`
	Description string   `json:"description,omitempty"`
	Columns     []Column `json:"columns"`
	RowCount    int64    `json:"row_count,omitempty"`
}

// Column is one column of an indexed table
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// MetricDoc is one curated metric definition in the metrics index
type MetricDoc struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	SQL         string   `json:"sql"`
	Tables      []string `json:"tables,omitempty"`
}

// SchemaSearchHit is one relevance-ranked result of a schema search
type SchemaSearchHit struct {
	Score  float64    `json:"score"`
	Table  *SchemaDoc `json:"table,omitempty"`
	Metric *MetricDoc `json:"metric,omitempty"`
}

// SchemaSearchResponse is returned by GET /api/v1/schema/search
type SchemaSearchResponse struct {
	Status string            `json:"status"`
	Query  string            `json:"query"`
	Hits   []SchemaSearchHit `json:"hits"`
}

// ReindexResponse is returned by POST /api/v1/schema/reindex
type ReindexResponse struct {
	Status  string `json:"status"`
	Tables  int    `json:"tables_indexed"`
	Metrics int    `json:"metrics_indexed"`
}
