package guardrails

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n\t ", ""},
		{"collapse whitespace", "SELECT  a,\n\tb  FROM t", "SELECT a, b FROM t"},
		{"line comment", "SELECT a -- comment\nFROM t", "SELECT a FROM t"},
		{"line comment at end", "SELECT a FROM t -- done", "SELECT a FROM t"},
		{"block comment", "SELECT /* inline */ a FROM t", "SELECT a FROM t"},
		{"multiline block comment", "SELECT a /* one\ntwo */ FROM t", "SELECT a FROM t"},
		{"comment only", "-- nothing here", ""},
		{"block comment only", "/* nothing */", ""},
		{"dash inside string", "SELECT '--not a comment' FROM t", "SELECT '--not a comment' FROM t"},
		{"slash-star inside string", "SELECT '/*kept*/' FROM t", "SELECT '/*kept*/' FROM t"},
		{"escaped quote in string", "SELECT 'it''s -- fine' FROM t", "SELECT 'it''s -- fine' FROM t"},
		{"dash inside quoted ident", `SELECT "a--b" FROM t`, `SELECT "a--b" FROM t`},
		{"single dash not a comment", "SELECT a - b FROM t", "SELECT a - b FROM t"},
		{"comment splits tokens", "SELECT a/*x*/b FROM t", "SELECT a b FROM t"},
		{"unterminated block comment dropped", "SELECT a FROM t /* trailing", "SELECT a FROM t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize(tt.in); got != tt.want {
				t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
