package guardrails

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent // "name" or `name` depending on dialect
	tokNumber
	tokString
	tokSymbol // single operator/punctuation character or two-char operator
)

type token struct {
	kind  tokenKind
	text  string // raw text, quotes stripped for quoted idents and strings
	upper string // upper-cased text for keyword comparison (idents only)
	pos   int    // byte offset of the token start in the scanned text
	end   int    // byte offset one past the token end
}

func (t token) isKeyword(kw string) bool {
	return t.kind == tokIdent && t.upper == kw
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// tokenize splits normalized SQL into tokens. Input is expected to be
// comment-free (the normalizer runs first), so only literals, identifiers,
// numbers, and operator characters remain.
func tokenize(sql string, dialect Dialect) ([]token, error) {
	var toks []token
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < n {
				if sql[i] == '\'' {
					if i+1 < n && sql[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(sql[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal at offset %d", start)
			}
			toks = append(toks, token{kind: tokString, text: sb.String(), pos: start, end: i})
		case c == '"' || (c == '`' && dialect.backtickIdents()):
			quote := c
			start := i
			i++
			j := strings.IndexByte(sql[i:], quote)
			if j < 0 {
				return nil, fmt.Errorf("unterminated quoted identifier at offset %d", start)
			}
			body := sql[i : i+j]
			i += j + 1
			toks = append(toks, token{kind: tokQuotedIdent, text: body, upper: strings.ToUpper(body), pos: start, end: i})
		case isDigit(rune(c)):
			start := i
			for i < n && (isDigit(rune(sql[i])) || sql[i] == '.' || sql[i] == 'e' || sql[i] == 'E' ||
				((sql[i] == '+' || sql[i] == '-') && (sql[i-1] == 'e' || sql[i-1] == 'E'))) {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: sql[start:i], pos: start, end: i})
		case isIdentStart(rune(c)):
			start := i
			for i < n && isIdentPart(rune(sql[i])) {
				i++
			}
			text := sql[start:i]
			toks = append(toks, token{kind: tokIdent, text: text, upper: strings.ToUpper(text), pos: start, end: i})
		default:
			start := i
			// Two-character operators are kept whole so the parser never
			// misreads e.g. <= as < followed by =.
			if i+1 < n {
				two := sql[i : i+2]
				switch two {
				case "<=", ">=", "<>", "!=", "||", "::", "->":
					toks = append(toks, token{kind: tokSymbol, text: two, pos: start, end: i + 2})
					i += 2
					continue
				}
			}
			toks = append(toks, token{kind: tokSymbol, text: string(c), pos: start, end: i + 1})
			i++
		}
	}

	toks = append(toks, token{kind: tokEOF, pos: n, end: n})
	return toks, nil
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isIdentPart(c rune) bool {
	return c == '_' || c == '$' || unicode.IsLetter(c) || unicode.IsDigit(c)
}
