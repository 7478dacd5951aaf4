// Package guardrails decides whether untrusted SQL text is safe to run
// against a warehouse. It never executes SQL or opens a connection: the
// verdict is produced purely by text and parse-tree inspection, so the same
// input and config always yield the same result and a Validator may be
// shared across any number of goroutines.
package guardrails

import (
	"fmt"
	"regexp"
	"strings"
)

// Reason enumerates the rejection classes a Verdict can carry.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonEmptyQuery       Reason = "EMPTY_QUERY"
	ReasonBlockedKeyword   Reason = "BLOCKED_KEYWORD"
	ReasonBlockedFunction  Reason = "BLOCKED_FUNCTION"
	ReasonParseError       Reason = "PARSE_ERROR"
	ReasonNotSelectOnly    Reason = "NOT_SELECT_ONLY"
	ReasonSchemaNotAllowed Reason = "SCHEMA_NOT_ALLOWED"
)

// Verdict is the sole output of a validation call. SanitizedSQL is set if
// and only if Accepted is true; it is comment-free and carries exactly one
// top-level LIMIT within the configured cap.
type Verdict struct {
	Accepted     bool
	Reason       Reason
	Detail       string
	SanitizedSQL string
}

func reject(reason Reason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

// DefaultBlockedKeywords are statement keywords rejected wherever they
// appear as a whole word, parsed or not.
var DefaultBlockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"GRANT", "REVOKE", "EXEC", "EXECUTE", "CALL", "MERGE", "REPLACE",
}

// DefaultBlockedFunctions are function and operation names rejected on a
// case-insensitive substring match.
var DefaultBlockedFunctions = []string{
	"LOAD_FILE", "INTO OUTFILE", "INTO DUMPFILE", "LOAD DATA",
	"SYSTEM", "SHELL", "EVAL", "EXEC",
}

// Config is read-only after New; a zero BlockedKeywords/BlockedFunctions
// slice selects the defaults so tests can substitute smaller sets.
type Config struct {
	MaxRows           int
	AllowedNamespaces []string
	Dialect           Dialect
	BlockedKeywords   []string
	BlockedFunctions  []string
}

// Validator runs the validation pipeline. Construct once, share freely.
type Validator struct {
	cfg        Config
	keywordRes []*regexp.Regexp
	keywords   []string
	functions  []string
	allow      *allowlist
}

func New(cfg Config) (*Validator, error) {
	if cfg.MaxRows <= 0 {
		return nil, fmt.Errorf("max rows must be positive, got %d", cfg.MaxRows)
	}
	if cfg.BlockedKeywords == nil {
		cfg.BlockedKeywords = DefaultBlockedKeywords
	}
	if cfg.BlockedFunctions == nil {
		cfg.BlockedFunctions = DefaultBlockedFunctions
	}

	v := &Validator{cfg: cfg}
	for _, kw := range cfg.BlockedKeywords {
		v.keywords = append(v.keywords, strings.ToUpper(kw))
		v.keywordRes = append(v.keywordRes, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	for _, fn := range cfg.BlockedFunctions {
		v.functions = append(v.functions, strings.ToUpper(fn))
	}

	allow, err := compileAllowlist(cfg.AllowedNamespaces)
	if err != nil {
		return nil, err
	}
	v.allow = allow
	return v, nil
}

// MaxRows returns the configured row cap.
func (v *Validator) MaxRows() int { return v.cfg.MaxRows }

// Validate runs the pipeline on one candidate statement and returns the
// verdict. Checks run cheapest first and short-circuit on the first
// failure, but each check rejects dangerous input on its own: none of them
// relies on another having run before it.
func (v *Validator) Validate(sql string) Verdict {
	normalized := normalize(sql)
	if normalized == "" {
		return reject(ReasonEmptyQuery, "empty SQL query")
	}

	// Lexical keyword scan runs before parsing so malformed or
	// multi-statement input carrying a dangerous keyword is still caught.
	if i := v.blockedKeyword(normalized); i >= 0 {
		return reject(ReasonBlockedKeyword, "blocked keyword detected: "+v.keywords[i])
	}

	stmt, err := parseStatement(normalized, v.cfg.Dialect)
	if err != nil {
		return reject(ReasonParseError, "SQL parsing error: "+err.Error())
	}
	if stmt.kind == KindOther {
		return reject(ReasonNotSelectOnly, "only SELECT statements are allowed")
	}

	for _, ref := range stmt.tables {
		if !v.allow.allows(ref.String()) {
			return reject(ReasonSchemaNotAllowed,
				fmt.Sprintf("access to table '%s' is not allowed", ref))
		}
	}

	sanitized, err := enforceLimit(normalized, v.cfg.MaxRows, v.cfg.Dialect)
	if err != nil {
		return reject(ReasonParseError, "SQL parsing error: "+err.Error())
	}

	// Placed after the rewrite so nothing the rewrite produced escapes it.
	if fn := v.blockedFunction(sanitized); fn != "" {
		return reject(ReasonBlockedFunction, "blocked function detected: "+fn)
	}

	return Verdict{Accepted: true, SanitizedSQL: sanitized}
}

func (v *Validator) blockedKeyword(sql string) int {
	for i, re := range v.keywordRes {
		if re.MatchString(sql) {
			return i
		}
	}
	return -1
}

func (v *Validator) blockedFunction(sql string) string {
	upper := strings.ToUpper(sql)
	for _, fn := range v.functions {
		if strings.Contains(upper, fn) {
			return fn
		}
	}
	return ""
}
