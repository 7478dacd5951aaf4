// Package insights derives presentation hints and narrative summaries from
// query results: which chart fits the data shape, what the numbers say, and
// what to ask next.
package insights

import (
	"strings"
	"time"

	"github.com/insightql/insightql/internal/models"
)

// columnProfile groups result columns by the role they can play in a chart.
type columnProfile struct {
	numeric     []string
	date        []string
	categorical []string
}

// profileSample caps how many rows are inspected when classifying columns.
const profileSample = 50

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
}

var dateNameHints = []string{"date", "month", "week", "quarter", "year", "day", "_at", "time"}

func profileColumns(columns []string, rows []map[string]interface{}) columnProfile {
	var p columnProfile
	for _, col := range columns {
		switch classifyColumn(col, rows) {
		case "numeric":
			p.numeric = append(p.numeric, col)
		case "date":
			p.date = append(p.date, col)
		case "categorical":
			p.categorical = append(p.categorical, col)
		}
	}
	return p
}

func classifyColumn(col string, rows []map[string]interface{}) string {
	n := len(rows)
	if n > profileSample {
		n = profileSample
	}

	sawNumeric, sawDate, sawString := false, false, false
	for i := 0; i < n; i++ {
		v, ok := rows[i][col]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case int, int32, int64, float32, float64, uint, uint32, uint64:
			sawNumeric = true
		case time.Time:
			sawDate = true
		case string:
			if looksLikeDate(t) {
				sawDate = true
			} else {
				sawString = true
			}
		default:
			sawString = true
		}
	}

	switch {
	case sawDate && !sawNumeric && !sawString:
		return "date"
	case sawNumeric && !sawDate && !sawString:
		return "numeric"
	case !sawNumeric && !sawDate && !sawString:
		// All nulls; fall back to the column name.
		if hasDateName(col) {
			return "date"
		}
		return "categorical"
	default:
		if sawString && hasDateName(col) && sawDate {
			return "date"
		}
		return "categorical"
	}
}

func looksLikeDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func hasDateName(col string) bool {
	lower := strings.ToLower(col)
	for _, hint := range dateNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func hasRateName(cols []string) bool {
	for _, col := range cols {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "pct") || strings.Contains(lower, "percent") || strings.Contains(lower, "rate") {
			return true
		}
	}
	return false
}

// AutoSelect picks the chart type best matching the shape of a result set
// and names the columns to bind to each axis.
func AutoSelect(columns []string, rows []map[string]interface{}) models.ChartSuggestion {
	if len(rows) == 0 {
		return models.ChartSuggestion{Type: "table", Reason: "no rows to plot"}
	}

	// A single short row reads best as headline numbers.
	if len(rows) == 1 && len(columns) <= 3 {
		return models.ChartSuggestion{Type: "kpi", Reason: "single-row summary"}
	}

	p := profileColumns(columns, rows)

	if len(p.date) >= 1 && len(p.numeric) >= 1 {
		return models.ChartSuggestion{
			Type:   "line",
			XAxis:  p.date[0],
			YAxis:  p.numeric[0],
			Reason: "time series",
		}
	}

	if len(columns) > 6 || len(rows) > 50 {
		return models.ChartSuggestion{Type: "table", Reason: "too many rows or columns to chart"}
	}

	if len(p.categorical) == 1 && len(p.numeric) >= 1 {
		if len(rows) <= 8 && hasRateName(p.numeric) {
			return models.ChartSuggestion{
				Type:   "pie",
				XAxis:  p.categorical[0],
				YAxis:  p.numeric[0],
				Reason: "proportional breakdown",
			}
		}
		return models.ChartSuggestion{
			Type:   "bar",
			XAxis:  p.categorical[0],
			YAxis:  p.numeric[0],
			Reason: "category comparison",
		}
	}

	if len(p.numeric) >= 2 && len(p.categorical) <= 1 {
		sug := models.ChartSuggestion{
			Type:   "scatter",
			XAxis:  p.numeric[0],
			YAxis:  p.numeric[1],
			Reason: "numeric relationship",
		}
		if len(p.categorical) == 1 {
			sug.Series = p.categorical[0]
		}
		return sug
	}

	if len(p.categorical) >= 2 && len(p.numeric) >= 1 {
		return models.ChartSuggestion{
			Type:   "heatmap",
			XAxis:  p.categorical[0],
			YAxis:  p.categorical[1],
			Series: p.numeric[0],
			Reason: "two-dimensional comparison",
		}
	}

	return models.ChartSuggestion{Type: "bar", Reason: "default"}
}
