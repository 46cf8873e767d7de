// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"sort"
	"strings"

	"github.com/coregx/adjacency/internal/dialects"
)

// Expression is a predicate on the rows a relation or owner query returns.
// It never constrains the traversal itself; use an intermediate scope for
// that.
//
// On tree relations, columns qualified with the hierarchy table
// ("users.active") resolve to the recursive result, so the same expression
// works whether or not the relation is deep:
//
//	db.Descendants(users).Where(adjacency.Eq("users.active", 1))
//	db.Relation(adjacency.DescendantsOf(users), posts).Where(adjacency.GreaterThan("posts.votes", 10))
type Expression interface {
	// Build renders the predicate with "?" placeholders.
	Build(dialect dialects.Dialect) (sql string, args []interface{})
}

type rawExp struct {
	sql  string
	args []interface{}
}

// NewExp wraps a literal SQL predicate. Identifiers are not quoted.
func NewExp(sql string, args ...interface{}) Expression {
	return rawExp{sql: sql, args: args}
}

func (e rawExp) Build(dialects.Dialect) (string, []interface{}) {
	return e.sql, e.args
}

type compareExp struct {
	col   string
	op    string
	value interface{}
}

// Eq renders col=value, or col IS NULL for a nil value.
func Eq(col string, value interface{}) Expression { return compareExp{col, "=", value} }

// NotEq renders col<>value, or col IS NOT NULL for a nil value.
func NotEq(col string, value interface{}) Expression { return compareExp{col, "<>", value} }

func GreaterThan(col string, value interface{}) Expression    { return compareExp{col, ">", value} }
func LessThan(col string, value interface{}) Expression       { return compareExp{col, "<", value} }
func GreaterOrEqual(col string, value interface{}) Expression { return compareExp{col, ">=", value} }
func LessOrEqual(col string, value interface{}) Expression    { return compareExp{col, "<=", value} }

func (e compareExp) Build(d dialects.Dialect) (string, []interface{}) {
	col := d.QuoteIdentifier(e.col)

	switch v := e.value.(type) {
	case nil:
		switch e.op {
		case "=":
			return col + " IS NULL", nil
		case "<>":
			return col + " IS NOT NULL", nil
		}
	case Expression:
		sql, args := v.Build(d)
		return col + e.op + "(" + sql + ")", args
	}
	return col + e.op + "?", []interface{}{e.value}
}

type inExp struct {
	col    string
	values []interface{}
	not    bool
}

// In renders col IN (...). No values match nothing; one value renders as
// an equality.
func In(col string, values ...interface{}) Expression {
	return inExp{col: col, values: values}
}

// NotIn renders col NOT IN (...). No values renders an empty predicate.
func NotIn(col string, values ...interface{}) Expression {
	return inExp{col: col, values: values, not: true}
}

func (e inExp) Build(d dialects.Dialect) (string, []interface{}) {
	switch len(e.values) {
	case 0:
		if e.not {
			return "", nil
		}
		return "0=1", nil
	case 1:
		op := "="
		if e.not {
			op = "<>"
		}
		return compareExp{e.col, op, e.values[0]}.Build(d)
	}

	var sb strings.Builder
	args := make([]interface{}, 0, len(e.values))

	sb.WriteString(d.QuoteIdentifier(e.col))
	if e.not {
		sb.WriteString(" NOT")
	}
	sb.WriteString(" IN (")
	for i, v := range e.values {
		if i > 0 {
			sb.WriteString(", ")
		}
		if v == nil {
			sb.WriteString("NULL")
			continue
		}
		sb.WriteByte('?')
		args = append(args, v)
	}
	sb.WriteByte(')')

	return sb.String(), args
}

// HashExp ANDs column/value pairs in column order. Values follow Eq, except
// that a []interface{} renders as In and an Expression is nested.
type HashExp map[string]interface{}

func (e HashExp) Build(d dialects.Dialect) (string, []interface{}) {
	cols := make([]string, 0, len(e))
	for col := range e {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]Expression, len(cols))
	for i, col := range cols {
		switch v := e[col].(type) {
		case []interface{}:
			parts[i] = In(col, v...)
		case Expression:
			parts[i] = v
		default:
			parts[i] = Eq(col, v)
		}
	}
	return junction{op: " AND ", exps: parts, bare: true}.Build(d)
}

type junction struct {
	op   string
	exps []Expression
	// bare joins a single-level list without parenthesising plain terms.
	bare bool
}

// And joins exps with AND, skipping nil and empty ones.
func And(exps ...Expression) Expression { return junction{op: " AND ", exps: exps} }

// Or joins exps with OR, skipping nil and empty ones.
func Or(exps ...Expression) Expression { return junction{op: " OR ", exps: exps} }

func (j junction) Build(d dialects.Dialect) (string, []interface{}) {
	var (
		parts []string
		args  []interface{}
	)
	for _, exp := range j.exps {
		if exp == nil {
			continue
		}
		sql, a := exp.Build(d)
		if sql == "" {
			continue
		}
		if j.bare {
			if _, nested := exp.(compareExp); !nested {
				if _, in := exp.(inExp); !in {
					sql = "(" + sql + ")"
				}
			}
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}

	switch {
	case len(parts) == 0:
		return "", nil
	case len(parts) == 1 || j.bare:
		return strings.Join(parts, j.op), args
	}
	return "(" + strings.Join(parts, ")"+j.op+"(") + ")", args
}

type notExp struct{ exp Expression }

// Not negates exp. An empty expression stays empty.
func Not(exp Expression) Expression { return notExp{exp} }

func (e notExp) Build(d dialects.Dialect) (string, []interface{}) {
	if e.exp == nil {
		return "", nil
	}
	sql, args := e.exp.Build(d)
	if sql == "" {
		return "", nil
	}
	return "NOT (" + sql + ")", args
}

// resultDialect resolves identifiers qualified with table to alias, so
// expressions written against a hierarchy table apply to its recursive
// result.
type resultDialect struct {
	dialects.Dialect
	table, alias string
}

func (r resultDialect) QuoteIdentifier(s string) string {
	if rest, ok := strings.CutPrefix(s, r.table+"."); ok {
		s = r.alias + "." + rest
	}
	return r.Dialect.QuoteIdentifier(s)
}
