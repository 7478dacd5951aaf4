package models

// QueryRequest for POST /api/v1/query (direct SQL)
type QueryRequest struct {
	SQL           string `json:"sql"`
	DryRun        bool   `json:"dry_run"`
	TimeoutMs     int    `json:"timeout_ms"`
	UseQueryCache bool   `json:"use_query_cache"`
	SuggestChart  bool   `json:"suggest_chart"`
}

func (r *QueryRequest) SetDefaults() {
	if r.TimeoutMs == 0 {
		r.TimeoutMs = 60000
	}
	if r.TimeoutMs < 1000 {
		r.TimeoutMs = 1000
	}
	if r.TimeoutMs > 300000 {
		r.TimeoutMs = 300000
	}
	if !r.DryRun {
		r.UseQueryCache = true
	}
}

// AskRequest for POST /api/v1/ask (natural language)
type AskRequest struct {
	Question string `json:"question"`
	DryRun   bool   `json:"dry_run"`
	Timeout  int    `json:"timeout"`
}

func (r *AskRequest) SetDefaults() {
	if r.Timeout == 0 {
		r.Timeout = 300
	}
	if r.Timeout < 10 {
		r.Timeout = 10
	}
	if r.Timeout > 600 {
		r.Timeout = 600
	}
}

// ReindexRequest for POST /api/v1/schema/reindex
type ReindexRequest struct {
	Tables  []SchemaDoc `json:"tables,omitempty"`
	Metrics []MetricDoc `json:"metrics,omitempty"`
}
