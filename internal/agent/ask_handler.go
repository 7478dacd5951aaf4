package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/insightql/insightql/internal/guardrails"
	"github.com/insightql/insightql/internal/insights"
	"github.com/insightql/insightql/internal/models"
	"github.com/insightql/insightql/internal/schemaindex"
	"github.com/insightql/insightql/internal/security"
	"github.com/insightql/insightql/internal/tools"
	"github.com/insightql/insightql/internal/warehouse"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const schemaCacheTTL = 5 * time.Minute

// schemaCache holds the pre-built system prompt with warehouse schemas.
type schemaCacheEntry struct {
	prompt    string
	expiresAt time.Time
}

type schemaCache struct {
	mu    sync.RWMutex
	store map[string]schemaCacheEntry
	sf    singleflight.Group // deduplicate concurrent fetches for the same key
}

func newSchemaCache() *schemaCache {
	return &schemaCache{store: make(map[string]schemaCacheEntry)}
}

func (c *schemaCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.prompt, true
}

func (c *schemaCache) set(key, prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = schemaCacheEntry{
		prompt:    prompt,
		expiresAt: time.Now().Add(schemaCacheTTL),
	}
}

func (c *schemaCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

const baseSystemPromptFmt = `You are InsightQL, an expert data analyst who answers business questions by querying the data warehouse.

RULES:
1. Generate only SELECT queries - never INSERT, UPDATE, DELETE, DROP, or DDL
2. Query only the tables listed in the schema; other tables will be rejected
3. Always add a LIMIT clause (max %d rows) unless the user asks otherwise
4. ALWAYS wrap your final SQL in a code block exactly like this:
` + "```sql" + `
SELECT ...
` + "```" + `
5. Execute the SQL exactly once after writing it
6. Explain results in plain language
7. For JOIN queries: use get_sample_data to verify join key values match before executing`

// AskHandler orchestrates the NL→SQL→execute pipeline
type AskHandler struct {
	agent       *Agent
	wh          warehouse.Runner
	guard       *guardrails.Validator
	index       *schemaindex.Index // nil when the schema index is disabled
	gen         *insights.Generator
	piiDetector *security.PIIDetector
	promptVal   *security.PromptValidator
	costTracker *security.CostTracker
	dataMasker  *security.DataMasker
	auditLogger *security.AuditLogger
	schemaCache *schemaCache
}

// NewAskHandler creates a handler with all security components wired in
func NewAskHandler(
	agent *Agent,
	wh warehouse.Runner,
	guard *guardrails.Validator,
	index *schemaindex.Index,
	gen *insights.Generator,
	piiDetector *security.PIIDetector,
	promptVal *security.PromptValidator,
	costTracker *security.CostTracker,
	dataMasker *security.DataMasker,
	auditLogger *security.AuditLogger,
) *AskHandler {
	return &AskHandler{
		agent:       agent,
		wh:          wh,
		guard:       guard,
		index:       index,
		gen:         gen,
		piiDetector: piiDetector,
		promptVal:   promptVal,
		costTracker: costTracker,
		dataMasker:  dataMasker,
		auditLogger: auditLogger,
		schemaCache: newSchemaCache(),
	}
}

// InvalidateSchemaCache drops the cached system prompt, forcing a re-fetch
// on the next question. Called after a schema reindex.
func (h *AskHandler) InvalidateSchemaCache() {
	h.schemaCache.invalidate(h.wh.Name())
}

// buildSystemPrompt returns a cached system prompt pre-loaded with the
// warehouse schema. Cache TTL is 5 minutes. Concurrent requests share a
// single introspection via singleflight, so only one warehouse round trip
// is made regardless of how many goroutines call this simultaneously.
func (h *AskHandler) buildSystemPrompt(ctx context.Context) string {
	base := fmt.Sprintf(baseSystemPromptFmt, h.guard.MaxRows())
	key := h.wh.Name()

	// Cache hit, fast path
	if prompt, ok := h.schemaCache.get(key); ok {
		log.Debug().Str("warehouse", key).Msg("schema cache hit")
		return prompt
	}

	// Cache miss. Use singleflight so concurrent requests share one fetch
	// instead of all hitting the warehouse at the same time.
	v, err, _ := h.schemaCache.sf.Do(key, func() (interface{}, error) {
		// Double-check cache inside singleflight in case another goroutine
		// already populated it while we were waiting to enter.
		if prompt, ok := h.schemaCache.get(key); ok {
			return prompt, nil
		}

		log.Debug().Str("warehouse", key).Msg("schema cache miss, introspecting warehouse")
		fetchStart := time.Now()

		docs, err := h.wh.ListTables(ctx)
		if err != nil {
			return base, nil // soft fail: return base prompt, do not cache
		}

		var sb strings.Builder
		sb.WriteString(base)
		sb.WriteString("\n\n## Available Tables\n")
		sb.WriteString("The following tables and schemas are already available to you:\n\n")

		for _, doc := range docs {
			if doc.RowCount > 0 {
				sb.WriteString(fmt.Sprintf("### %s (%d rows)\n", doc.Table, doc.RowCount))
			} else {
				sb.WriteString(fmt.Sprintf("### %s\n", doc.Table))
			}
			if doc.Description != "" {
				sb.WriteString(doc.Description + "\n")
			}
			for _, col := range doc.Columns {
				sb.WriteString(fmt.Sprintf("  %s %s\n", col.Name, col.Type))
			}
			sb.WriteString("\n")
		}

		sb.WriteString("\nSince schemas are already provided above, you can skip the list_tables tool call. Go directly to get_sample_data for JOIN queries, then write and execute the SQL.")

		prompt := sb.String()
		h.schemaCache.set(key, prompt)

		log.Info().
			Str("warehouse", key).
			Int("tables", len(docs)).
			Dur("fetch_ms", time.Since(fetchStart)).
			Msg("schema cached")

		return prompt, nil
	})

	if err != nil || v == nil {
		return base
	}
	return v.(string)
}

// Handle answers one natural-language question.
func (h *AskHandler) Handle(ctx context.Context, req *models.AskRequest, apiKey string) (*models.AskResponse, error) {
	start := time.Now()
	metadata := map[string]interface{}{
		"warehouse": h.wh.Name(),
		"model":     h.agent.Model(),
		"method":    "agent",
	}

	// 1. PII detection
	if found, kw := h.piiDetector.Detect(req.Question); found {
		metadata["pii_check"] = "blocked: " + kw
		return &models.AskResponse{
			Status:        "error",
			Question:      req.Question,
			AgentMetadata: metadata,
		}, fmt.Errorf("PII detected in question: %s", kw)
	}
	metadata["pii_check"] = "passed"

	// 2. Prompt validation
	vr := h.promptVal.Validate(req.Question)
	if !vr.Valid {
		metadata["prompt_validation"] = "blocked: " + vr.Message
		return &models.AskResponse{
			Status:        "error",
			Question:      req.Question,
			AgentMetadata: metadata,
		}, fmt.Errorf("prompt validation failed: %s", vr.Message)
	}
	metadata["prompt_validation"] = "passed"

	// 3. Build tools
	agentTools := []tools.Tool{
		tools.ListTablesTool(h.wh),
		tools.SampleDataTool(h.guard, h.wh),
		tools.ExecuteSQLTool(h.guard, h.wh),
	}
	if h.index != nil {
		agentTools = append(agentTools,
			tools.SchemaSearchTool(h.index),
			tools.MetricsSearchTool(h.index),
		)
	}

	// 4. Build system prompt with pre-loaded schema (cached)
	systemPrompt := h.buildSystemPrompt(ctx)

	// 5. Run agent loop
	agentCtx, cancel := context.WithTimeout(ctx, time.Duration(req.Timeout)*time.Second)
	defer cancel()

	output, toolsUsed, lastSQL, err := h.agent.Run(agentCtx, systemPrompt, req.Question, agentTools)
	if err != nil {
		return nil, fmt.Errorf("agent run: %w", err)
	}

	metadata["tools_used"] = toolsUsed

	// 6. Extract SQL from output, falling back to the last tool-executed SQL if not
	// in a code block
	generatedSQL := extractSQL(output)
	if generatedSQL == "" && lastSQL != "" {
		generatedSQL = lastSQL
		log.Debug().Str("sql", truncate(generatedSQL, 60)).Msg("using lastExecutedSQL as fallback")
	}
	metadata["sql_validation"] = "n/a"
	metadata["cost_tracking"] = "n/a"
	metadata["data_masking"] = "n/a"

	var execResult *models.QueryResponse

	if generatedSQL != "" && !req.DryRun {
		// 7. Validate and execute the final SQL. The model already ran it
		// through the execute_sql tool, but the extracted statement is
		// validated again: nothing reaches the warehouse unvetted.
		verdict := h.guard.Validate(generatedSQL)
		if !verdict.Accepted {
			metadata["sql_validation"] = fmt.Sprintf("blocked (%s): %s", verdict.Reason, verdict.Detail)
			h.auditLogger.LogRejectedSQL(generatedSQL, apiKey, string(verdict.Reason), verdict.Detail)
			return &models.AskResponse{
				Status:        "error",
				Question:      req.Question,
				GeneratedSQL:  &generatedSQL,
				AgentMetadata: metadata,
			}, fmt.Errorf("SQL validation failed (%s): %s", verdict.Reason, verdict.Detail)
		}
		metadata["sql_validation"] = "passed"
		generatedSQL = verdict.SanitizedSQL

		queryStart := time.Now()
		result, qErr := h.wh.Query(agentCtx, verdict.SanitizedSQL, warehouse.QueryOptions{TimeoutMs: 60000, UseCache: true})
		if qErr == nil {
			queryMs := time.Since(queryStart).Milliseconds()

			// Cost check
			if ok, costErr := h.costTracker.CheckLimits(result.BytesProcessed, apiKey); !ok {
				metadata["cost_tracking"] = "blocked: " + costErr
			} else {
				h.costTracker.LogQueryCost(verdict.SanitizedSQL, result.BytesProcessed, apiKey, queryMs)
				metadata["cost_tracking"] = "ok"

				// Data masking
				data := h.dataMasker.MaskRows(result.Data)
				metadata["data_masking"] = "applied"

				chart := insights.AutoSelect(result.Columns, data)
				execResult = &models.QueryResponse{
					Status:   "success",
					SQL:      verdict.SanitizedSQL,
					Data:     data,
					Columns:  result.Columns,
					RowCount: len(data),
					Chart:    &chart,
					Metadata: models.QueryMetadata{
						Engine:          h.wh.Name(),
						JobID:           result.JobID,
						BytesProcessed:  result.BytesProcessed,
						CacheHit:        result.CacheHit,
						ExecutionTimeMs: queryMs,
					},
				}
			}
		}
	}

	execTimeMs := time.Since(start).Milliseconds()
	h.auditLogger.LogAIAgentRequest(req.Question, apiKey, generatedSQL, true, execTimeMs)

	answer := output
	resp := &models.AskResponse{
		Status:        "success",
		Question:      req.Question,
		AgentMetadata: metadata,
		Answer:        &answer,
	}
	if generatedSQL != "" {
		resp.GeneratedSQL = &generatedSQL
	}
	if execResult != nil {
		resp.ExecutionResult = execResult
		resp.FollowUps = h.gen.FollowUps(ctx, req.Question, execResult.Columns, execResult.Data)
		// Models occasionally stop after the tool call with no prose.
		if strings.TrimSpace(output) == "" {
			narrative := h.gen.Narrative(ctx, req.Question, execResult.Columns, execResult.Data)
			resp.Answer = &narrative
		}
	}
	return resp, nil
}

// TranslateToSQL answers a question and returns only the generated SQL,
// without executing it against the warehouse. The evaluation harness uses
// this to score translation quality.
func (h *AskHandler) TranslateToSQL(ctx context.Context, question string) (string, error) {
	req := &models.AskRequest{Question: question, DryRun: true}
	req.SetDefaults()

	resp, err := h.Handle(ctx, req, "eval")
	if err != nil {
		return "", err
	}
	if resp.GeneratedSQL == nil || *resp.GeneratedSQL == "" {
		return "", fmt.Errorf("no SQL generated")
	}
	return *resp.GeneratedSQL, nil
}

// extractSQL pulls SQL from model output using 4 strategies in order:
// 1. ```sql ... ``` code block (preferred)
// 2. ``` ... ``` generic code block containing SELECT/WITH
// 3. SELECT/WITH statement spanning multiple lines (greedy until LIMIT or end)
// 4. Single-line SELECT statement as last resort
var (
	// CTE: WITH name AS ( ... ) SELECT ...
	reMultilineSQL = regexp.MustCompile(`(?is)(WITH\s+\w+\s+AS\s*\(.+?(?:LIMIT\s+\d+|;\s*$|\z))`)
	// Plain SELECT spanning multiple lines ending with LIMIT or semicolon
	reSelectBlock = regexp.MustCompile(`(?is)(SELECT\s+.+?FROM\s+.+?(?:LIMIT\s+\d+|;\s*$|\z))`)
	reSingleSQL   = regexp.MustCompile(`(?i)(SELECT\s+\S.+?\bFROM\b\s+\S+)`)
)

func extractSQL(text string) string {
	// Strategy 1: ```sql / ```SQL block
	lower := strings.ToLower(text)
	for _, tag := range []string{"```sql", "```SQL"} {
		idx := strings.Index(lower, strings.ToLower(tag))
		if idx == -1 {
			continue
		}
		// skip past the tag and optional newline
		body := text[idx+len(tag):]
		if len(body) > 0 && body[0] == '\n' {
			body = body[1:]
		}
		end := strings.Index(body, "```")
		if end != -1 {
			if sql := strings.TrimSpace(body[:end]); sql != "" {
				return sql
			}
		}
	}

	// Strategy 2: any ``` block whose content starts with SELECT or WITH
	parts := strings.Split(text, "```")
	for i := 1; i < len(parts); i += 2 {
		candidate := strings.TrimSpace(parts[i])
		// strip language tag line if present (e.g. "python\nSELECT")
		if nl := strings.Index(candidate, "\n"); nl != -1 {
			firstLine := strings.TrimSpace(candidate[:nl])
			if !strings.Contains(strings.ToUpper(firstLine), "SELECT") &&
				!strings.Contains(strings.ToUpper(firstLine), "WITH") {
				candidate = strings.TrimSpace(candidate[nl:])
			}
		}
		up := strings.ToUpper(candidate)
		if strings.HasPrefix(up, "SELECT") || strings.HasPrefix(up, "WITH") {
			return strings.TrimSuffix(strings.TrimSpace(candidate), ";")
		}
	}

	// Strategy 3a: proper CTE (WITH name AS ...)
	if m := reMultilineSQL.FindString(text); m != "" {
		return strings.TrimSuffix(strings.TrimSpace(m), ";")
	}

	// Strategy 3b: multi-line SELECT ... FROM ... LIMIT
	if m := reSelectBlock.FindString(text); m != "" {
		candidate := strings.TrimSuffix(strings.TrimSpace(m), ";")
		// sanity check: must contain FROM keyword
		if strings.Contains(strings.ToUpper(candidate), " FROM ") {
			return candidate
		}
	}

	// Strategy 4: single-line SELECT as last resort
	if m := reSingleSQL.FindString(text); m != "" {
		return strings.TrimSuffix(strings.TrimSpace(m), ";")
	}

	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
