package guardrails

import "strings"

// scanState tracks where the normalizer is inside the input. String and
// quoted-identifier states exist so comment markers inside literals
// (e.g. 'a--b') survive normalization intact.
type scanState int

const (
	scanNormal scanState = iota
	scanSingleQuote
	scanDoubleQuote
	scanBacktick
	scanLineComment
	scanBlockComment
)

// normalize strips -- and /* */ comments and collapses whitespace runs to a
// single space. Comment bodies are replaced by one space so adjacent tokens
// do not fuse ("SELECT/**/1" stays two tokens). The scan is state-aware:
// quote characters open literal states in which comment markers are plain
// text, and a '' pair inside a single-quoted string is an escaped quote,
// not a string boundary.
func normalize(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	state := scanNormal
	runes := []rune(sql)

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case scanNormal:
			switch {
			case c == '-' && next == '-':
				state = scanLineComment
				i++
			case c == '/' && next == '*':
				state = scanBlockComment
				i++
			case c == '\'':
				state = scanSingleQuote
				b.WriteRune(c)
			case c == '"':
				state = scanDoubleQuote
				b.WriteRune(c)
			case c == '`':
				state = scanBacktick
				b.WriteRune(c)
			default:
				b.WriteRune(c)
			}
		case scanSingleQuote:
			b.WriteRune(c)
			if c == '\'' {
				if next == '\'' {
					b.WriteRune(next)
					i++
				} else {
					state = scanNormal
				}
			}
		case scanDoubleQuote:
			b.WriteRune(c)
			if c == '"' {
				state = scanNormal
			}
		case scanBacktick:
			b.WriteRune(c)
			if c == '`' {
				state = scanNormal
			}
		case scanLineComment:
			if c == '\n' {
				state = scanNormal
				b.WriteRune(' ')
			}
		case scanBlockComment:
			if c == '*' && next == '/' {
				state = scanNormal
				b.WriteRune(' ')
				i++
			}
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
