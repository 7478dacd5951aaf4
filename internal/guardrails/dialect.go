package guardrails

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavor the parser accepts. The set is closed:
// adding a dialect means teaching the tokenizer its quoting rules.
type Dialect int

const (
	DialectDuckDB Dialect = iota
	DialectBigQuery
	DialectSnowflake
	DialectPostgres
)

func (d Dialect) String() string {
	switch d {
	case DialectDuckDB:
		return "duckdb"
	case DialectBigQuery:
		return "bigquery"
	case DialectSnowflake:
		return "snowflake"
	case DialectPostgres:
		return "postgres"
	default:
		return "unknown"
	}
}

// ParseDialect maps a config string to a Dialect. Matching is
// case-insensitive and the empty string selects DuckDB.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "duckdb", "":
		return DialectDuckDB, nil
	case "bigquery":
		return DialectBigQuery, nil
	case "snowflake":
		return DialectSnowflake, nil
	case "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return DialectDuckDB, fmt.Errorf("unsupported SQL dialect: %q", s)
	}
}

// backtickIdents reports whether the dialect quotes identifiers with
// backticks (BigQuery) in addition to double quotes.
func (d Dialect) backtickIdents() bool {
	return d == DialectBigQuery || d == DialectDuckDB
}
