package eval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/insightql/insightql/internal/guardrails"
	"github.com/insightql/insightql/internal/warehouse"
	"github.com/rs/zerolog/log"
)

// passThreshold is the minimum overall case score counted as a pass.
const passThreshold = 0.7

// Score weights. Result accuracy dominates: a query that runs and returns
// the right shape matters more than textual similarity to a reference.
const (
	weightSchemaCompliance = 0.3
	weightSQLSimilarity    = 0.3
	weightResultAccuracy   = 0.4
)

// Translator turns a natural-language question into SQL. In production this
// is the agent; tests supply a canned implementation.
type Translator interface {
	TranslateToSQL(ctx context.Context, question string) (string, error)
}

// CaseResult holds per-case scores for one evaluation run.
type CaseResult struct {
	CaseID           string  `json:"case_id"`
	Question         string  `json:"question"`
	GeneratedSQL     string  `json:"generated_sql"`
	ExpectedSQL      string  `json:"expected_sql,omitempty"`
	ExecutionSuccess bool    `json:"execution_success"`
	SQLSimilarity    float64 `json:"sql_similarity_score"`
	SchemaCompliance float64 `json:"schema_compliance_score"`
	ResultAccuracy   float64 `json:"result_accuracy_score"`
	OverallScore     float64 `json:"overall_case_score"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	ExecutionTimeMs  int64   `json:"execution_time_ms"`
}

// RunResult summarizes one evaluation run.
type RunResult struct {
	RunID        string       `json:"run_id"`
	Timestamp    time.Time    `json:"timestamp"`
	TotalCases   int          `json:"total_cases"`
	PassedCases  int          `json:"passed_cases"`
	FailedCases  int          `json:"failed_cases"`
	OverallScore float64      `json:"overall_score"`
	CaseResults  []CaseResult `json:"case_results"`
}

// Evaluator scores NL→SQL translation quality against a case suite.
type Evaluator struct {
	cases      []Case
	translator Translator
	guard      *guardrails.Validator
	wh         warehouse.Runner
	store      *Store // nil disables persistence
}

func NewEvaluator(cases []Case, translator Translator, guard *guardrails.Validator, wh warehouse.Runner, store *Store) *Evaluator {
	return &Evaluator{
		cases:      cases,
		translator: translator,
		guard:      guard,
		wh:         wh,
		store:      store,
	}
}

// Run executes the full case suite. runID defaults to a timestamped ID.
func (e *Evaluator) Run(ctx context.Context, runID string) (*RunResult, error) {
	if runID == "" {
		runID = "eval_" + time.Now().Format("20060102_150405")
	}

	result := &RunResult{
		RunID:      runID,
		Timestamp:  time.Now(),
		TotalCases: len(e.cases),
	}

	for i, c := range e.cases {
		log.Info().
			Str("run_id", runID).
			Str("case_id", c.ID).
			Int("case", i+1).
			Int("total", len(e.cases)).
			Msg("evaluating case")

		cr := e.evaluateCase(ctx, c)
		result.CaseResults = append(result.CaseResults, cr)

		if cr.OverallScore >= passThreshold {
			result.PassedCases++
		} else {
			result.FailedCases++
		}
	}

	var sum float64
	for _, cr := range result.CaseResults {
		sum += cr.OverallScore
	}
	if len(result.CaseResults) > 0 {
		result.OverallScore = sum / float64(len(result.CaseResults))
	}

	if e.store != nil {
		if err := e.store.SaveRun(ctx, result); err != nil {
			return result, fmt.Errorf("saving results: %w", err)
		}
	}

	log.Info().
		Str("run_id", runID).
		Int("passed", result.PassedCases).
		Int("failed", result.FailedCases).
		Float64("overall_score", result.OverallScore).
		Msg("evaluation complete")

	return result, nil
}

func (e *Evaluator) evaluateCase(ctx context.Context, c Case) (cr CaseResult) {
	cr = CaseResult{
		CaseID:      c.ID,
		Question:    c.Question,
		ExpectedSQL: c.ExpectedSQL,
	}
	start := time.Now()
	defer func() {
		cr.ExecutionTimeMs = time.Since(start).Milliseconds()
	}()

	sql, err := e.translator.TranslateToSQL(ctx, c.Question)
	if err != nil {
		cr.ErrorMessage = err.Error()
		return cr
	}
	cr.GeneratedSQL = sql

	cr.SchemaCompliance = e.schemaCompliance(sql, c)
	if c.ExpectedSQL != "" {
		cr.SQLSimilarity = sqlSimilarity(sql, c.ExpectedSQL)
	}

	verdict := e.guard.Validate(sql)
	if verdict.Accepted {
		result, qErr := e.wh.Query(ctx, verdict.SanitizedSQL, warehouse.QueryOptions{TimeoutMs: 60000})
		if qErr != nil {
			cr.ErrorMessage = "execution failed: " + qErr.Error()
		} else {
			cr.ExecutionSuccess = true
			cr.ResultAccuracy = resultAccuracy(result.Columns, result.Data, c)
		}
	} else {
		cr.ErrorMessage = fmt.Sprintf("validation failed (%s): %s", verdict.Reason, verdict.Detail)
	}

	cr.OverallScore = weightSchemaCompliance*cr.SchemaCompliance +
		weightSQLSimilarity*cr.SQLSimilarity +
		weightResultAccuracy*cr.ResultAccuracy

	return cr
}

// schemaCompliance scores how well the SQL matches structural expectations:
// tables 30, aggregations 20, filter columns 25, passing validation 25,
// normalized to 0..1.
func (e *Evaluator) schemaCompliance(sql string, c Case) float64 {
	var score float64
	lower := strings.ToLower(sql)
	upper := strings.ToUpper(sql)

	if len(c.ExpectedTables) > 0 {
		matches := 0
		for _, table := range c.ExpectedTables {
			if strings.Contains(lower, strings.ToLower(table)) {
				matches++
			}
		}
		score += float64(matches) / float64(len(c.ExpectedTables)) * 30
	}

	if len(c.ExpectedAggregations) > 0 {
		matches := 0
		for _, agg := range c.ExpectedAggregations {
			if strings.Contains(upper, strings.ToUpper(agg)) {
				matches++
			}
		}
		score += float64(matches) / float64(len(c.ExpectedAggregations)) * 20
	}

	if len(c.ExpectedFilters) > 0 {
		matches := 0
		for _, col := range c.ExpectedFilters {
			if strings.Contains(lower, strings.ToLower(col)) {
				matches++
			}
		}
		score += float64(matches) / float64(len(c.ExpectedFilters)) * 25
	}

	if e.guard.Validate(sql).Accepted {
		score += 25
	}

	if score > 100 {
		score = 100
	}
	return score / 100
}

// sqlSimilarity is token overlap between normalized queries: the fraction of
// expected tokens present in the generated SQL.
func sqlSimilarity(generated, expected string) float64 {
	genTokens := tokenSet(normalizeSQL(generated))
	expTokens := tokenSet(normalizeSQL(expected))
	if len(expTokens) == 0 {
		return 0
	}
	matches := 0
	for tok := range expTokens {
		if genTokens[tok] {
			matches++
		}
	}
	sim := float64(matches) / float64(len(expTokens))
	if sim > 1 {
		sim = 1
	}
	return sim
}

// resultAccuracy scores the shape of the result set: expected columns 0.6,
// non-empty 0.2, at least two columns 0.2.
func resultAccuracy(columns []string, rows []map[string]interface{}, c Case) float64 {
	if len(rows) == 0 {
		return 0
	}

	var score float64
	if len(c.ExpectedColumns) > 0 {
		matches := 0
		for _, want := range c.ExpectedColumns {
			for _, col := range columns {
				if strings.Contains(strings.ToLower(col), strings.ToLower(want)) {
					matches++
					break
				}
			}
		}
		score += float64(matches) / float64(len(c.ExpectedColumns)) * 0.6
	}

	score += 0.2 // non-empty result
	if len(columns) >= 2 {
		score += 0.2
	}

	if score > 1 {
		score = 1
	}
	return score
}

// normalizeSQL uppercases and collapses whitespace so comparisons are not
// thrown off by formatting.
func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(strings.ToUpper(sql)), " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
