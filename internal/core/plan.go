package core

import (
	"strconv"
	"strings"

	"github.com/coregx/adjacency/internal/dialects"
)

const (
	cteName        = "adjacency_tree"
	reservedPrefix = "adjacency_reserved_"
	seedAlias      = "adjacency_seed"
	affectedAlias  = "adjacency_affected"
	affectedKey    = "adjacency_key"
)

// CTE is one named recursive common table expression.
type CTE struct {
	Name string
	SQL  string
	Args []interface{}
}

// Fragment is a rendered predicate plus the CTEs it expects to be declared
// by the enclosing statement.
type Fragment struct {
	SQL  string
	Args []interface{}
	CTEs []CTE
}

// QueryPlan is a complete statement. SQL and CTE bodies use "?" placeholders;
// Statement renumbers them for the dialect.
type QueryPlan struct {
	CTEs []CTE
	SQL  string
	Args []interface{}

	dialect dialects.Dialect
}

// Statement renders the WITH list and the main statement with dialect
// placeholders. Arguments follow textual order.
func (p *QueryPlan) Statement() (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(p.Args))

	if len(p.CTEs) > 0 {
		sb.WriteString(withClause(p.dialect, p.CTEs))
		sb.WriteByte(' ')
		for _, c := range p.CTEs {
			args = append(args, c.Args...)
		}
	}
	sb.WriteString(p.SQL)
	args = append(args, p.Args...)

	return renumber(sb.String(), p.dialect), args
}

// String returns the rendered SQL.
func (p *QueryPlan) String() string {
	s, _ := p.Statement()
	return s
}

func withClause(d dialects.Dialect, ctes []CTE) string {
	parts := make([]string, len(ctes))
	for i, c := range ctes {
		parts[i] = d.QuoteIdentifier(c.Name) + " AS (" + c.SQL + ")"
	}
	return "WITH RECURSIVE " + strings.Join(parts, ", ")
}

// nameSeq hands out CTE names and reserved aliases unique within one
// statement.
type nameSeq struct {
	ctes     int
	reserved int
}

func (s *nameSeq) cte() string {
	s.ctes++
	if s.ctes == 1 {
		return cteName
	}
	return cteName + "_" + strconv.Itoa(s.ctes)
}

func (s *nameSeq) alias() string {
	s.reserved++
	return reservedPrefix + strconv.Itoa(s.reserved)
}

// renumber rewrites "?" placeholders outside quoted literals and
// identifiers into the dialect's placeholder syntax.
func renumber(sql string, d dialects.Dialect) string {
	if d.Placeholder(1) == "?" {
		return sql
	}

	var sb strings.Builder
	sb.Grow(len(sql) + 16)
	n := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			n++
			sb.WriteString(d.Placeholder(n))
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// joinConds joins non-empty conditions with AND.
func joinConds(conds []string) string {
	out := conds[:0:0]
	for _, c := range conds {
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, " AND ")
}

func where(conds []string) string {
	if s := joinConds(conds); s != "" {
		return " WHERE " + s
	}
	return ""
}
