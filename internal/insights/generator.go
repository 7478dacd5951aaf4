package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
)

// Generator produces narrative summaries and follow-up questions for query
// results. Without an API key it degrades to rule-based output, so results
// pages never fail because the LLM is unavailable.
type Generator struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func NewGenerator(apiKey, model, baseURL string) *Generator {
	g := &Generator{model: model, maxTokens: 1024}
	if g.model == "" {
		g.model = "claude-sonnet-4-6"
	}
	if apiKey == "" {
		return g
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	g.client = anthropic.NewClient(opts...)
	return g
}

// Narrative explains what the result set shows in plain language.
func (g *Generator) Narrative(ctx context.Context, question string, columns []string, rows []map[string]interface{}) string {
	if len(rows) == 0 {
		return "No data was found matching your query criteria."
	}

	basic := basicNarrative(columns, rows)
	if g.client == nil {
		return basic
	}

	prompt := fmt.Sprintf(`Based on the following business question and data results, provide a concise narrative explanation of what the data shows. Focus on key insights, trends, and business implications.

Original Question: %q

Data Summary:
%s

Generate a 2-3 sentence business-focused narrative. Keep it concise and business-friendly. Do not mention technical details like SQL or data processing.`,
		question, dataSummary(columns, rows))

	text, err := g.complete(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("narrative generation failed, using rule-based summary")
		return basic
	}
	return text
}

// FollowUps suggests questions worth asking next, at most five.
func (g *Generator) FollowUps(ctx context.Context, question string, columns []string, rows []map[string]interface{}) []string {
	if len(rows) == 0 {
		return fallbackQuestions()
	}

	ruleBased := ruleBasedFollowUps(question)
	if g.client == nil {
		return ruleBased
	}

	prompt := fmt.Sprintf(`Based on this business analysis, suggest 4-5 specific follow-up questions that would provide additional valuable insights.

Original Question: %q
Data Summary: %s

Generate follow-up questions that drill down into specific dimensions, compare segments or periods, explore root causes, or identify next steps. Return only the questions, one per line, without numbering or bullets.`,
		question, dataSummary(columns, rows))

	text, err := g.complete(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("follow-up generation failed, using rule-based suggestions")
		return ruleBased
	}

	var questions []string
	for _, line := range strings.Split(text, "\n") {
		if q := strings.TrimSpace(line); q != "" {
			questions = append(questions, q)
		}
	}
	return dedupe(append(questions, ruleBased...), 5)
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(g.model)),
		MaxTokens: anthropic.F(int64(g.maxTokens)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	})
	if err != nil {
		return "", err
	}
	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
			text += b.Text
		}
	}
	return strings.TrimSpace(text), nil
}

func basicNarrative(columns []string, rows []map[string]interface{}) string {
	parts := []string{fmt.Sprintf("Found %d records with %d attributes.", len(rows), len(columns))}

	p := profileColumns(columns, rows)
	limit := len(p.numeric)
	if limit > 2 {
		limit = 2
	}
	for _, col := range p.numeric[:limit] {
		min, max, mean, ok := columnStats(col, rows)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("Average %s: %.1f (range: %.1f - %.1f)",
			strings.ReplaceAll(col, "_", " "), mean, min, max))
	}
	return strings.Join(parts, " ")
}

func dataSummary(columns []string, rows []map[string]interface{}) string {
	p := profileColumns(columns, rows)
	parts := []string{fmt.Sprintf("Rows: %d, Columns: %d", len(rows), len(columns))}
	if len(p.numeric) > 0 {
		parts = append(parts, "Numeric columns: "+strings.Join(head(p.numeric, 3), ", "))
	}
	if len(p.categorical) > 0 {
		parts = append(parts, "Categories: "+strings.Join(head(p.categorical, 3), ", "))
	}
	if len(p.date) > 0 {
		parts = append(parts, "Date columns: "+strings.Join(head(p.date, 2), ", "))
	}
	return strings.Join(parts, " | ")
}

func columnStats(col string, rows []map[string]interface{}) (min, max, mean float64, ok bool) {
	var sum float64
	n := 0
	for _, row := range rows {
		v, found := toFloat(row[col])
		if !found {
			continue
		}
		if n == 0 || v < min {
			min = v
		}
		if n == 0 || v > max {
			max = v
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0, 0, false
	}
	return min, max, sum / float64(n), true
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

func ruleBasedFollowUps(question string) []string {
	var suggestions []string
	lower := strings.ToLower(question)

	contains := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	if contains("trend", "time", "month", "quarter", "year") {
		suggestions = append(suggestions,
			"How do these trends compare to the previous period?",
			"What seasonal patterns exist in this data?")
	}
	if contains("region", "department", "location") {
		suggestions = append(suggestions,
			"Which specific regions drive these results?",
			"How do department-level metrics compare?")
	}
	if contains("attrition", "turnover", "retention", "leaving") {
		suggestions = append(suggestions,
			"What are the top reasons for employee departures?",
			"How does attrition vary by tenure and salary band?",
			"Which departments have the highest retention risk?")
	}
	if contains("headcount", "hire", "employee count", "workforce") {
		suggestions = append(suggestions,
			"What is the current hiring velocity trend?",
			"How does workforce distribution look across regions?")
	}
	if contains("salary", "compensation", "performance") {
		suggestions = append(suggestions,
			"How do compensation levels compare by role and region?",
			"What factors correlate with higher performance ratings?")
	}

	suggestions = append(suggestions,
		"What external factors might influence these patterns?",
		"How can we benchmark these results against industry standards?")

	return dedupe(suggestions, 3)
}

func fallbackQuestions() []string {
	return []string{
		"What time period should we analyze instead?",
		"Are there alternative metrics we should consider?",
		"Should we examine different organizational segments?",
		"What data quality issues might be affecting results?",
	}
}

func dedupe(qs []string, limit int) []string {
	seen := make(map[string]bool, len(qs))
	var out []string
	for _, q := range qs {
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}

func head(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
