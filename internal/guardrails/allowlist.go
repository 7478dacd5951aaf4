package guardrails

import (
	"fmt"
	"regexp"
	"strings"
)

// allowlist holds compiled namespace patterns. Glob syntax: * matches zero
// or more characters, ? matches exactly one; everything else is literal.
// Matching is case-insensitive and anchored against the full dotted
// reference, so marts.people.* admits marts.people.dim_employees but not
// martsXpeople or a bare dim_employees.
type allowlist struct {
	patterns []string
	res      []*regexp.Regexp
}

func compileAllowlist(patterns []string) (*allowlist, error) {
	al := &allowlist{patterns: patterns}
	for _, pat := range patterns {
		re, err := regexp.Compile("(?i)^" + globToRegexp(pat) + "$")
		if err != nil {
			return nil, fmt.Errorf("invalid namespace pattern %q: %w", pat, err)
		}
		al.res = append(al.res, re)
	}
	return al, nil
}

// allows reports whether the reference matches at least one pattern.
func (al *allowlist) allows(ref string) bool {
	for _, re := range al.res {
		if re.MatchString(ref) {
			return true
		}
	}
	return false
}

func globToRegexp(pat string) string {
	var b strings.Builder
	for _, c := range pat {
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
