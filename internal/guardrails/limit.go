package guardrails

import (
	"fmt"
	"strconv"
	"strings"
)

// enforceLimit rewrites the trailing LIMIT clause of normalized SQL so the
// effective row cap never exceeds maxRows:
//
//   - no LIMIT at the top level: append "LIMIT maxRows" (after stripping a
//     trailing semicolon),
//   - existing LIMIT <= maxRows: text returned unchanged,
//   - existing LIMIT > maxRows: the numeric value alone is replaced,
//     preserving all surrounding text,
//   - LIMIT ALL or a negative limit: treated as over the cap and replaced
//     the same way.
//
// The scan is token-based rather than a raw substring search, so a LIMIT
// inside a string literal never binds, and only the last occurrence at
// parenthesis depth zero governs; LIMITs inside subqueries cannot raise the
// outer result cardinality and are left to the query author.
func enforceLimit(sql string, maxRows int, dialect Dialect) (string, error) {
	toks, err := tokenize(sql, dialect)
	if err != nil {
		return "", err
	}

	depth := 0
	numStart, numEnd := -1, -1
	current := 0
	for i, t := range toks {
		switch {
		case t.kind == tokSymbol && t.text == "(":
			depth++
		case t.kind == tokSymbol && t.text == ")":
			depth--
		case depth == 0 && t.isKeyword("LIMIT") && i+1 < len(toks):
			next := toks[i+1]
			switch {
			case next.kind == tokNumber:
				if n, convErr := strconv.Atoi(next.text); convErr == nil {
					numStart, numEnd = next.pos, next.end
					current = n
				}
			case next.isKeyword("ALL"):
				// LIMIT ALL lifts the cap entirely; rewrite it like an
				// over-cap numeric limit.
				numStart, numEnd = next.pos, next.end
				current = maxRows + 1
			case next.kind == tokSymbol && next.text == "-" && i+2 < len(toks) && toks[i+2].kind == tokNumber:
				numStart, numEnd = next.pos, toks[i+2].end
				current = maxRows + 1
			}
		}
	}

	if numStart < 0 {
		trimmed := strings.TrimRight(strings.TrimSpace(sql), ";")
		return fmt.Sprintf("%s LIMIT %d", strings.TrimSpace(trimmed), maxRows), nil
	}
	if current <= maxRows {
		return sql, nil
	}
	return sql[:numStart] + strconv.Itoa(maxRows) + sql[numEnd:], nil
}
