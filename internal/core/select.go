package core

import (
	"context"
	"strconv"
	"strings"

	"github.com/coregx/adjacency/internal/dialects"
)

// SelectQuery selects owner rows, optionally filtered by the existence of
// related rows.
//
// Example:
//
//	rows, err := db.Select().From("users").
//	    Where(adjacency.Eq("users.active", true)).
//	    Has(db.Descendants(users), ">=", 1).
//	    All(ctx)
type SelectQuery struct {
	db      *DB
	dialect dialects.Dialect
	columns []string
	table   string
	where   []Expression
	has     []existsFilter
	orderBy []string
	limit   int64
	err     error
}

// NewSelectQuery creates a query that is only rendered, never executed.
func NewSelectQuery(dialect dialects.Dialect, columns ...string) *SelectQuery {
	return &SelectQuery{dialect: dialect, columns: columns, limit: -1}
}

// Select starts an owner query on this DB.
func (db *DB) Select(columns ...string) *SelectQuery {
	q := NewSelectQuery(db.dialect, columns...)
	q.db = db
	return q
}

// From sets the owner table.
func (q *SelectQuery) From(table string) *SelectQuery {
	q.table = table
	return q
}

// Where adds a condition. Multiple calls are combined with AND.
func (q *SelectQuery) Where(exp Expression) *SelectQuery {
	q.where = append(q.where, exp)
	return q
}

// Has keeps owners whose relation yields a row count satisfying op n.
func (q *SelectQuery) Has(rel Relation, op string, n int) *SelectQuery {
	if !validCountOperator(op) {
		if q.err == nil {
			q.err = configErrorf("unsupported count operator %q", op)
		}
		return q
	}
	q.has = append(q.has, existsFilter{rel: rel, op: op, n: n})
	return q
}

// OrderBy sets the ORDER BY clause.
func (q *SelectQuery) OrderBy(columns ...string) *SelectQuery {
	q.orderBy = append(q.orderBy, columns...)
	return q
}

// Limit caps the number of returned rows.
func (q *SelectQuery) Limit(n int64) *SelectQuery {
	q.limit = n
	return q
}

// Build renders the query. CTEs required by existence filters are declared
// in a leading WITH RECURSIVE clause.
func (q *SelectQuery) Build() (*QueryPlan, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.dialect == nil {
		return nil, configErrorf("select query has no dialect")
	}
	if err := validator.ValidateIdentifier(q.table); err != nil {
		return nil, configErrorf("select table: %v", err)
	}

	d := q.dialect
	quote := d.QuoteIdentifier

	cols := make([]string, 0, len(q.columns))
	for _, col := range q.columns {
		if col == "*" {
			cols = append(cols, col)
			continue
		}
		if err := validator.ValidateIdentifier(strings.TrimSuffix(col, ".*")); err != nil {
			return nil, configErrorf("select column: %v", err)
		}
		cols = append(cols, quote(col))
	}
	if len(cols) == 0 {
		cols = append(cols, quote(q.table)+".*")
	}

	var (
		conds []string
		args  []interface{}
		ctes  []CTE
	)
	for _, exp := range q.where {
		if exp == nil {
			continue
		}
		sql, expArgs := exp.Build(d)
		if sql == "" {
			continue
		}
		conds = append(conds, "("+sql+")")
		args = append(args, expArgs...)
	}

	seq := &nameSeq{}
	for _, h := range q.has {
		if err := sameDialect(d, h.rel); err != nil {
			return nil, err
		}
		frag, err := h.rel.existence(seq, quote(q.table+"."+h.rel.chain.ownerKey()), h.op, h.n)
		if err != nil {
			return nil, err
		}
		conds = append(conds, frag.SQL)
		args = append(args, frag.Args...)
		ctes = append(ctes, frag.CTEs...)
	}

	sql := "SELECT " + strings.Join(cols, ", ") + " FROM " + quote(q.table) + where(conds)

	if len(q.orderBy) > 0 {
		terms := make([]string, 0, len(q.orderBy))
		for _, col := range q.orderBy {
			term, err := Relation{dialect: d}.orderTerm(col)
			if err != nil {
				return nil, err
			}
			terms = append(terms, term)
		}
		sql += " ORDER BY " + strings.Join(terms, ", ")
	}
	if q.limit >= 0 {
		sql += " LIMIT " + strconv.FormatInt(q.limit, 10)
	}

	return &QueryPlan{CTEs: ctes, SQL: sql, Args: args, dialect: d}, nil
}

// All runs the query and returns every row.
func (q *SelectQuery) All(ctx context.Context) ([]Row, error) {
	if q.db == nil {
		return nil, configErrorf("select query is not bound to a database")
	}
	plan, err := q.Build()
	if err != nil {
		return nil, err
	}
	return q.db.newQuery(plan, "adjacency.select.all", nil).all(ctx)
}

func sameDialect(d dialects.Dialect, r Relation) error {
	if r.dialect != nil && r.dialect.Name() != d.Name() {
		return configErrorf("relation renders for %s, enclosing query for %s", r.dialect.Name(), d.Name())
	}
	return nil
}
