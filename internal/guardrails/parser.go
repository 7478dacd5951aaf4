package guardrails

import (
	"fmt"
	"strings"
)

// StatementKind is the structural classification of a parsed statement's root.
type StatementKind int

const (
	KindSelect StatementKind = iota
	KindSetOperation
	KindCTE
	KindOther
)

func (k StatementKind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindSetOperation:
		return "SET_OPERATION"
	case KindCTE:
		return "CTE"
	default:
		return "OTHER"
	}
}

// TableRef is a table reference extracted from the statement tree, with
// qualifiers in catalog.schema.name order as written. Case is preserved;
// case folding is the allowlist matcher's job.
type TableRef struct {
	Parts []string
}

func (r TableRef) String() string {
	return strings.Join(r.Parts, ".")
}

// statement is the parse result: the root classification plus every table
// reference encountered in traversal order (subqueries and CTE bodies
// included, duplicates allowed).
type statement struct {
	kind   StatementKind
	tables []TableRef
}

type parser struct {
	toks    []token
	pos     int
	dialect Dialect
	tables  []TableRef
	// cteScopes is a stack of lower-cased CTE name sets, one frame per WITH
	// clause currently open. A name is visible only while its frame is on
	// the stack, so a bare reference outside the scope (or inside the body
	// of a non-recursive CTE of the same name) resolves to the real table.
	cteScopes []map[string]bool
}

func (p *parser) pushCTEScope() {
	p.cteScopes = append(p.cteScopes, make(map[string]bool))
}

func (p *parser) popCTEScope() {
	p.cteScopes = p.cteScopes[:len(p.cteScopes)-1]
}

func (p *parser) declareCTE(name string) {
	p.cteScopes[len(p.cteScopes)-1][strings.ToLower(name)] = true
}

func (p *parser) isCTE(name string) bool {
	lower := strings.ToLower(name)
	for _, scope := range p.cteScopes {
		if scope[lower] {
			return true
		}
	}
	return false
}

// parseStatement parses exactly one top-level statement. Anything that is
// not lexically a SELECT/WITH/( opener but starts with an identifier
// (EXPLAIN, SHOW, PRAGMA, vendor commands) classifies as KindOther without
// a parse error so the facade can report NOT_SELECT_ONLY instead of
// PARSE_ERROR.
func parseStatement(sql string, dialect Dialect) (*statement, error) {
	toks, err := tokenize(sql, dialect)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks, dialect: dialect}

	cur := p.cur()
	stmt := &statement{}
	switch {
	case cur.isKeyword("WITH"):
		if err := p.parseWith(); err != nil {
			return nil, err
		}
		stmt.kind = KindCTE
	case cur.isKeyword("SELECT") || cur.kind == tokSymbol && cur.text == "(":
		hadSetOp, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if hadSetOp {
			stmt.kind = KindSetOperation
		} else {
			stmt.kind = KindSelect
		}
	case cur.kind == tokIdent:
		stmt.kind = KindOther
		stmt.tables = p.tables
		return stmt, nil
	default:
		return nil, fmt.Errorf("expected SELECT or WITH, found %s", cur)
	}

	// One optional trailing semicolon, then the input must end: multiple
	// statements per validation call are a parse error.
	if p.cur().kind == tokSymbol && p.cur().text == ";" {
		p.pos++
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("unexpected %s after statement end", p.cur())
	}

	stmt.tables = p.tables
	return stmt, nil
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) peek() token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) expectSymbol(sym string) error {
	if p.cur().kind == tokSymbol && p.cur().text == sym {
		p.pos++
		return nil
	}
	return fmt.Errorf("expected %q, found %s", sym, p.cur())
}

// parseWith parses a WITH clause and its trailing body query. The clause's
// CTE names live in a scope frame that covers later CTE bodies and the
// trailing query, and is popped when the clause ends. Without RECURSIVE a
// CTE's own name is declared only after its body parses, so a same-named
// reference inside the body counts as a real table.
func (p *parser) parseWith() error {
	p.pos++ // WITH
	recursive := false
	if p.cur().isKeyword("RECURSIVE") {
		recursive = true
		p.pos++
	}

	p.pushCTEScope()
	defer p.popCTEScope()

	for {
		name := p.cur()
		if name.kind != tokIdent && name.kind != tokQuotedIdent {
			return fmt.Errorf("expected CTE name, found %s", name)
		}
		if recursive {
			p.declareCTE(name.text)
		}
		p.pos++

		if p.cur().kind == tokSymbol && p.cur().text == "(" {
			if err := p.skipBalanced(); err != nil {
				return err
			}
		}
		if !p.cur().isKeyword("AS") {
			return fmt.Errorf("expected AS in CTE definition, found %s", p.cur())
		}
		p.pos++
		if p.cur().isKeyword("MATERIALIZED") || p.cur().isKeyword("NOT") {
			// AS [NOT] MATERIALIZED ( ... )
			p.pos++
			if p.cur().isKeyword("MATERIALIZED") {
				p.pos++
			}
		}
		if err := p.expectSymbol("("); err != nil {
			return err
		}
		if p.cur().isKeyword("WITH") {
			if err := p.parseWith(); err != nil {
				return err
			}
		} else if _, err := p.parseQuery(); err != nil {
			return err
		}
		if err := p.expectSymbol(")"); err != nil {
			return err
		}
		if !recursive {
			p.declareCTE(name.text)
		}

		if p.cur().kind == tokSymbol && p.cur().text == "," {
			p.pos++
			continue
		}
		break
	}

	if _, err := p.parseQuery(); err != nil {
		return err
	}
	return nil
}

// parseQuery parses a select expression with optional set operations,
// reporting whether a set operation was present.
func (p *parser) parseQuery() (bool, error) {
	if err := p.parseQueryTerm(); err != nil {
		return false, err
	}
	hadSetOp := false
	for {
		cur := p.cur()
		if cur.isKeyword("UNION") || cur.isKeyword("INTERSECT") || cur.isKeyword("EXCEPT") {
			hadSetOp = true
			p.pos++
			if p.cur().isKeyword("ALL") || p.cur().isKeyword("DISTINCT") {
				p.pos++
			}
			if err := p.parseQueryTerm(); err != nil {
				return hadSetOp, err
			}
			continue
		}
		// Trailing ORDER BY / LIMIT of a set operation.
		if cur.isKeyword("ORDER") || cur.isKeyword("LIMIT") || cur.isKeyword("OFFSET") || cur.isKeyword("FETCH") {
			if err := p.skipClauseBody(); err != nil {
				return hadSetOp, err
			}
			continue
		}
		return hadSetOp, nil
	}
}

func (p *parser) parseQueryTerm() error {
	cur := p.cur()
	switch {
	case cur.kind == tokSymbol && cur.text == "(":
		p.pos++
		if p.cur().isKeyword("WITH") {
			if err := p.parseWith(); err != nil {
				return err
			}
		} else if _, err := p.parseQuery(); err != nil {
			return err
		}
		return p.expectSymbol(")")
	case cur.isKeyword("SELECT"):
		return p.parseSelectCore()
	default:
		return fmt.Errorf("expected SELECT, found %s", cur)
	}
}

// clause keywords that terminate tolerant expression scanning at depth zero.
var clauseBoundary = map[string]bool{
	"FROM": true, "WHERE": true, "GROUP": true, "HAVING": true,
	"QUALIFY": true, "WINDOW": true, "ORDER": true, "LIMIT": true,
	"OFFSET": true, "FETCH": true, "UNION": true, "INTERSECT": true, "EXCEPT": true,
}

var joinKeyword = map[string]bool{
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"CROSS": true, "NATURAL": true, "ASOF": true, "ANTI": true, "SEMI": true,
	"POSITIONAL": true, "LATERAL": true,
}

func (p *parser) parseSelectCore() error {
	p.pos++ // SELECT
	if p.cur().isKeyword("DISTINCT") || p.cur().isKeyword("ALL") {
		p.pos++
	}

	// Select list: scanned tolerantly, recursing into scalar subqueries so
	// their table references are still collected.
	if err := p.skipExpr(); err != nil {
		return err
	}

	if p.cur().isKeyword("FROM") {
		p.pos++
		if err := p.parseFromList(); err != nil {
			return err
		}
	}

	// Remaining clauses up to the end of this query term.
	for {
		cur := p.cur()
		if cur.kind == tokEOF {
			return nil
		}
		if cur.kind == tokSymbol && (cur.text == ")" || cur.text == ";") {
			return nil
		}
		if cur.isKeyword("UNION") || cur.isKeyword("INTERSECT") || cur.isKeyword("EXCEPT") {
			return nil
		}
		if err := p.skipClauseBody(); err != nil {
			return err
		}
	}
}

// skipClauseBody consumes one clause keyword and its tolerant expression body.
func (p *parser) skipClauseBody() error {
	p.pos++
	return p.skipExpr()
}

// skipExpr consumes tokens until a clause boundary, closing paren, comma-free
// end of input, or set operator at depth zero. Parenthesized groups are
// consumed whole; a group opening with SELECT or WITH is parsed as a
// subquery so its tables are extracted.
func (p *parser) skipExpr() error {
	for {
		cur := p.cur()
		switch {
		case cur.kind == tokEOF:
			return nil
		case cur.kind == tokSymbol && cur.text == "(":
			if err := p.skipBalanced(); err != nil {
				return err
			}
		case cur.kind == tokSymbol && (cur.text == ")" || cur.text == ";"):
			return nil
		case cur.kind == tokIdent && clauseBoundary[cur.upper]:
			return nil
		default:
			p.pos++
		}
	}
}

// skipBalanced consumes a parenthesized group, recursing into subqueries.
func (p *parser) skipBalanced() error {
	open := p.cur()
	p.pos++ // (
	if p.cur().isKeyword("SELECT") || p.cur().isKeyword("WITH") {
		if p.cur().isKeyword("WITH") {
			if err := p.parseWith(); err != nil {
				return err
			}
		} else if _, err := p.parseQuery(); err != nil {
			return err
		}
		return p.expectSymbol(")")
	}
	for {
		cur := p.cur()
		switch {
		case cur.kind == tokEOF:
			return fmt.Errorf("unbalanced parenthesis opened at offset %d", open.pos)
		case cur.kind == tokSymbol && cur.text == "(":
			if err := p.skipBalanced(); err != nil {
				return err
			}
		case cur.kind == tokSymbol && cur.text == ")":
			p.pos++
			return nil
		default:
			p.pos++
		}
	}
}

// parseFromList parses comma-separated table expressions with joins.
func (p *parser) parseFromList() error {
	for {
		if err := p.parseTableExpr(); err != nil {
			return err
		}

		for p.cur().kind == tokIdent && joinKeyword[p.cur().upper] {
			// Consume join modifiers (LEFT, FULL OUTER, NATURAL, ...) up to
			// and including JOIN itself.
			sawJoin := false
			for !sawJoin {
				cur := p.cur()
				switch {
				case cur.isKeyword("JOIN"):
					sawJoin = true
					p.pos++
				case cur.kind == tokIdent && (joinKeyword[cur.upper] || cur.upper == "OUTER"):
					p.pos++
				default:
					return fmt.Errorf("expected JOIN, found %s", cur)
				}
			}
			if err := p.parseTableExpr(); err != nil {
				return err
			}
			if p.cur().isKeyword("ON") {
				p.pos++
				if err := p.skipJoinCondition(); err != nil {
					return err
				}
			} else if p.cur().isKeyword("USING") {
				p.pos++
				if err := p.skipBalanced(); err != nil {
					return err
				}
			}
		}

		if p.cur().kind == tokSymbol && p.cur().text == "," {
			p.pos++
			continue
		}
		return nil
	}
}

// skipJoinCondition consumes an ON expression, stopping before the next join
// or clause keyword at depth zero.
func (p *parser) skipJoinCondition() error {
	for {
		cur := p.cur()
		switch {
		case cur.kind == tokEOF:
			return nil
		case cur.kind == tokSymbol && cur.text == "(":
			if err := p.skipBalanced(); err != nil {
				return err
			}
		case cur.kind == tokSymbol && (cur.text == ")" || cur.text == ";" || cur.text == ","):
			return nil
		case cur.kind == tokIdent && (clauseBoundary[cur.upper] || joinKeyword[cur.upper]):
			return nil
		default:
			p.pos++
		}
	}
}

// parseTableExpr parses one item of a FROM clause: a qualified table name,
// a derived table (subquery), or a table function call. Only plain
// qualified names are recorded as table references.
func (p *parser) parseTableExpr() error {
	cur := p.cur()

	if cur.kind == tokSymbol && cur.text == "(" {
		if err := p.skipBalanced(); err != nil {
			return err
		}
		return p.skipAlias()
	}
	if cur.isKeyword("LATERAL") {
		p.pos++
		return p.parseTableExpr()
	}
	if cur.kind != tokIdent && cur.kind != tokQuotedIdent {
		return fmt.Errorf("expected table name, found %s", cur)
	}

	parts := p.parseQualifiedName()

	// A parenthesis directly after the name makes this a table function
	// (UNNEST, read_parquet, GENERATE_SERIES): not a table reference.
	if p.cur().kind == tokSymbol && p.cur().text == "(" {
		if err := p.skipBalanced(); err != nil {
			return err
		}
		return p.skipAlias()
	}

	// CTE names in scope are query-local, not warehouse tables.
	if !(len(parts) == 1 && p.isCTE(parts[0])) {
		p.tables = append(p.tables, TableRef{Parts: parts})
	}

	return p.skipAlias()
}

// parseQualifiedName consumes ident(.ident)* and returns the parts. A
// BigQuery backtick identifier may hold a full dotted path in one token;
// it is split so `proj.dataset.table` yields three qualifiers.
func (p *parser) parseQualifiedName() []string {
	var parts []string
	appendTok := func(t token) {
		if t.kind == tokQuotedIdent && strings.Contains(t.text, ".") {
			parts = append(parts, strings.Split(t.text, ".")...)
		} else {
			parts = append(parts, t.text)
		}
	}

	appendTok(p.cur())
	p.pos++
	for p.cur().kind == tokSymbol && p.cur().text == "." {
		next := p.peek()
		if next.kind != tokIdent && next.kind != tokQuotedIdent {
			break
		}
		p.pos++ // .
		appendTok(p.cur())
		p.pos++
	}
	return parts
}

// skipAlias consumes an optional [AS] alias and optional column alias list.
func (p *parser) skipAlias() error {
	if p.cur().isKeyword("AS") {
		p.pos++
		if p.cur().kind == tokIdent || p.cur().kind == tokQuotedIdent {
			p.pos++
		}
	} else if c := p.cur(); (c.kind == tokIdent && !clauseBoundary[c.upper] && !joinKeyword[c.upper] &&
		c.upper != "ON" && c.upper != "USING") || c.kind == tokQuotedIdent {
		p.pos++
	}
	if p.cur().kind == tokSymbol && p.cur().text == "(" {
		// column alias list, e.g. t(a, b)
		return p.skipBalanced()
	}
	return nil
}
