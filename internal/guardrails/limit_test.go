package guardrails

import "testing"

func TestEnforceLimit(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		maxRows int
		want    string
	}{
		{
			name:    "appended when absent",
			sql:     "SELECT * FROM t",
			maxRows: 100,
			want:    "SELECT * FROM t LIMIT 100",
		},
		{
			name:    "semicolon stripped before append",
			sql:     "SELECT * FROM t;",
			maxRows: 100,
			want:    "SELECT * FROM t LIMIT 100",
		},
		{
			name:    "within cap unchanged",
			sql:     "SELECT * FROM t LIMIT 50",
			maxRows: 100,
			want:    "SELECT * FROM t LIMIT 50",
		},
		{
			name:    "at cap unchanged",
			sql:     "SELECT * FROM t LIMIT 100",
			maxRows: 100,
			want:    "SELECT * FROM t LIMIT 100",
		},
		{
			name:    "above cap rewritten in place",
			sql:     "SELECT * FROM t LIMIT 5000 OFFSET 20",
			maxRows: 100,
			want:    "SELECT * FROM t LIMIT 100 OFFSET 20",
		},
		{
			name:    "limit in string literal not a clause",
			sql:     "SELECT 'LIMIT 999999' FROM t",
			maxRows: 10,
			want:    "SELECT 'LIMIT 999999' FROM t LIMIT 10",
		},
		{
			name:    "subquery limit untouched",
			sql:     "SELECT * FROM (SELECT * FROM t LIMIT 5000) sub",
			maxRows: 100,
			want:    "SELECT * FROM (SELECT * FROM t LIMIT 5000) sub LIMIT 100",
		},
		{
			name:    "outer limit of union governs",
			sql:     "SELECT a FROM t UNION SELECT b FROM u LIMIT 9000",
			maxRows: 100,
			want:    "SELECT a FROM t UNION SELECT b FROM u LIMIT 100",
		},
		{
			name:    "limit all rewritten to cap",
			sql:     "SELECT * FROM t LIMIT ALL",
			maxRows: 100,
			want:    "SELECT * FROM t LIMIT 100",
		},
		{
			name:    "negative limit rewritten to cap",
			sql:     "SELECT * FROM t LIMIT -5",
			maxRows: 100,
			want:    "SELECT * FROM t LIMIT 100",
		},
		{
			name:    "column named limit without number",
			sql:     "SELECT LIMIT FROM t WHERE LIMIT > 3",
			maxRows: 10,
			want:    "SELECT LIMIT FROM t WHERE LIMIT > 3 LIMIT 10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enforceLimit(tt.sql, tt.maxRows, DialectDuckDB)
			if err != nil {
				t.Fatalf("enforceLimit: %v", err)
			}
			if got != tt.want {
				t.Errorf("enforceLimit(%q, %d) = %q, want %q", tt.sql, tt.maxRows, got, tt.want)
			}
		})
	}
}

func TestEnforceLimitTokenizeError(t *testing.T) {
	if _, err := enforceLimit("SELECT 'oops FROM t", 10, DialectDuckDB); err == nil {
		t.Error("unterminated string should surface a tokenize error")
	}
}

func TestAllowlistMatching(t *testing.T) {
	al, err := compileAllowlist([]string{"marts.people.*", "staging.?", "seeds.lookup"})
	if err != nil {
		t.Fatalf("compileAllowlist: %v", err)
	}

	allowed := []string{
		"marts.people.dim_employees",
		"MARTS.PEOPLE.FCT_EVENTS",
		"staging.a",
		"seeds.lookup",
		"SEEDS.LOOKUP",
	}
	for _, ref := range allowed {
		if !al.allows(ref) {
			t.Errorf("allows(%q) = false, want true", ref)
		}
	}

	denied := []string{
		"marts.finance.salaries",
		"martsXpeople.t",
		"staging.ab",
		"seeds.lookup2",
		"dim_employees",
		"",
	}
	for _, ref := range denied {
		if al.allows(ref) {
			t.Errorf("allows(%q) = true, want false", ref)
		}
	}
}

func TestAllowlistBadPattern(t *testing.T) {
	// Glob metacharacters are the only special syntax; regexp specials in a
	// pattern are quoted, so nothing a caller writes should fail to compile.
	al, err := compileAllowlist([]string{"a+b.(c)"})
	if err != nil {
		t.Fatalf("compileAllowlist: %v", err)
	}
	if !al.allows("a+b.(c)") {
		t.Error("literal pattern should match itself")
	}
	if al.allows("aab.c") {
		t.Error("regexp specials must be treated literally")
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"", DialectDuckDB},
		{"duckdb", DialectDuckDB},
		{"bigquery", DialectBigQuery},
		{"snowflake", DialectSnowflake},
		{"postgres", DialectPostgres},
		{"BigQuery", DialectBigQuery},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if err != nil {
			t.Errorf("ParseDialect(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDialect(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Error("unknown dialect should be rejected")
	}
}
