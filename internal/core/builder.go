package core

import (
	"sort"
	"strconv"
	"strings"

	"github.com/coregx/adjacency/internal/dialects"
)

type anchorKind int

const (
	// anchorKeys anchors at owners with the given keys.
	anchorKeys anchorKind = iota
	// anchorCorrelated anchors at the owner referenced by an outer column.
	anchorCorrelated
	// anchorAll anchors at every row, each forming its own group.
	anchorAll
)

type anchorFilter struct {
	kind  anchorKind
	keys  []interface{}
	outer string // quoted outer column for anchorCorrelated
}

// closure is the hierarchy row source of a statement: a CTE reference, or
// an inline derived table on dialects without recursive CTEs.
type closure struct {
	name  string
	from  string
	args  []interface{}
	ctes  []CTE
	depth bool
	path  bool
}

// Plan renders the lazy-load statement for one owner key.
func (r Relation) Plan(key interface{}) (*QueryPlan, error) {
	return r.plan(anchorFilter{kind: anchorKeys, keys: []interface{}{key}}, false)
}

// EagerPlan renders one statement loading the relation for all keys. Rows
// carry the owner key they belong to in the adjacency_group column.
func (r Relation) EagerPlan(keys []interface{}) (*QueryPlan, error) {
	if len(keys) == 0 {
		return nil, configErrorf("eager load needs at least one owner key")
	}
	return r.plan(anchorFilter{kind: anchorKeys, keys: keys}, true)
}

func (r Relation) plan(f anchorFilter, perOwner bool) (*QueryPlan, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	seq := &nameSeq{}
	cl, err := r.buildClosure(seq, f)
	if err != nil {
		return nil, err
	}

	sql, args, ctes, err := r.finalSelect(seq, cl, finalOptions{ordered: true, perOwner: perOwner})
	if err != nil {
		return nil, err
	}

	return &QueryPlan{
		CTEs:    append(cl.ctes, ctes...),
		SQL:     sql,
		Args:    args,
		dialect: r.dialect,
	}, nil
}

// cyclePlan renders a probe returning one row when traversal from the
// anchors revisits a row.
func (r Relation) cyclePlan(f anchorFilter) (*QueryPlan, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	seq := &nameSeq{}
	cl, err := r.buildClosure(seq, f)
	if err != nil {
		return nil, err
	}

	col := r.dialect.QuoteIdentifier(cl.name + "." + ColumnCycle)
	return &QueryPlan{
		CTEs:    cl.ctes,
		SQL:     "SELECT 1 FROM " + cl.from + " WHERE " + r.dialect.IsTrue(col) + " LIMIT 1",
		Args:    cl.args,
		dialect: r.dialect,
	}, nil
}

// UpdatePlan renders a bulk update of the rows the relation yields for key.
func (r Relation) UpdatePlan(key interface{}, values map[string]interface{}) (*QueryPlan, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, configErrorf("update needs at least one column")
	}

	d := r.dialect
	q := d.QuoteIdentifier

	columns := make([]string, 0, len(values))
	for col := range values {
		if err := validator.ValidateIdentifier(col); err != nil {
			return nil, configErrorf("update column: %v", err)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	sets := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns))
	for i, col := range columns {
		sets[i] = q(col) + " = ?"
		args = append(args, values[col])
	}

	seq := &nameSeq{}
	cl, err := r.buildClosure(seq, anchorFilter{kind: anchorKeys, keys: []interface{}{key}})
	if err != nil {
		return nil, err
	}

	target := r.chain.targetTable()
	keyCol := r.chain.targetKey()
	cols := q(r.resultAlias(cl)+"."+keyCol) + " AS " + q(affectedKey)
	if r.limit < 0 {
		// Keeps MySQL from merging the derived table into the UPDATE.
		cols = "DISTINCT " + cols
	}
	body, bodyArgs, ctes, err := r.finalSelect(seq, cl, finalOptions{cols: cols, ordered: r.limit >= 0})
	if err != nil {
		return nil, err
	}

	sql := "UPDATE " + q(target) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + q(target+"."+keyCol) + " IN (SELECT " + q(affectedAlias+"."+affectedKey) +
		" FROM (" + body + ") AS " + q(affectedAlias) + ")"

	return &QueryPlan{
		CTEs:    append(cl.ctes, ctes...),
		SQL:     sql,
		Args:    append(args, bodyArgs...),
		dialect: d,
	}, nil
}

func (r Relation) buildClosure(seq *nameSeq, f anchorFilter) (closure, error) {
	if r.degraded() {
		return r.buildDegraded(seq, f)
	}

	name := seq.cte()
	cte, err := r.buildCTE(seq, name, f)
	if err != nil {
		return closure{}, err
	}
	return closure{
		name:  name,
		from:  r.dialect.QuoteIdentifier(name),
		ctes:  []CTE{cte},
		depth: r.tracking.tracksDepth(),
		path:  r.tracking.tracksPath(),
	}, nil
}

func (r Relation) buildCTE(seq *nameSeq, name string, f anchorFilter) (CTE, error) {
	rec := r.scopes.Apply(newStep(r.dialect, r.chain.tree.Table))
	if rec.err != nil {
		return CTE{}, rec.err
	}

	var (
		anchor string
		args   []interface{}
		err    error
	)
	if r.tracking == TrackNone && !r.includeSelf {
		anchor, args, err = r.seedAnchor(seq, f)
	} else {
		alias := r.chain.tree.Table
		if f.kind == anchorCorrelated {
			alias = seq.alias()
		}
		anchor, args, err = r.selfAnchor(alias, f)
	}
	if err != nil {
		return CTE{}, err
	}

	recursive, recArgs := r.recursiveClause(name, rec)

	return CTE{
		Name: name,
		SQL:  anchor + " " + dialects.RecursiveUnion(r.tracking.tracksDepth()) + " " + recursive,
		Args: append(args, recArgs...),
	}, nil
}

// anchorSource returns the FROM item of the anchor rows aliased as alias,
// including joins through leading has-many links, the unquoted owner group
// column and soft-delete conditions of the leading links.
func (r Relation) anchorSource(alias string) (from, group string, conds []string) {
	q := r.dialect.QuoteIdentifier
	c := r.chain

	from = q(c.tree.Table)
	if alias != c.tree.Table {
		from += " AS " + q(alias)
	}

	m := len(c.leading)
	if m == 0 {
		return from, alias + "." + c.tree.key(), nil
	}

	child := alias
	for j := m - 1; j > 0; j-- {
		l := c.leading[j]
		if l.softDelete != "" {
			conds = append(conds, q(child+"."+l.softDelete)+" IS NULL")
		}
		parent := "adjacency_l" + strconv.Itoa(j-1)
		from += " INNER JOIN " + q(c.leading[j-1].table) + " AS " + q(parent) +
			" ON " + q(child+"."+l.foreignKey) + " = " + q(parent+"."+l.localKey)
		child = parent
	}

	first := c.leading[0]
	if first.softDelete != "" {
		conds = append(conds, q(child+"."+first.softDelete)+" IS NULL")
	}
	return from, child + "." + first.foreignKey, conds
}

func (r Relation) anchorCondition(f anchorFilter, group string) (string, []interface{}) {
	switch f.kind {
	case anchorKeys:
		return In(group, f.keys...).Build(r.dialect)
	case anchorCorrelated:
		return r.dialect.QuoteIdentifier(group) + " = " + f.outer, nil
	}
	return "", nil
}

// selfAnchor selects the owner rows themselves at depth 0.
func (r Relation) selfAnchor(alias string, f anchorFilter) (string, []interface{}, error) {
	d := r.dialect
	q := d.QuoteIdentifier
	t := r.chain.tree

	from, group, leadConds := r.anchorSource(alias)

	cols := []string{q(alias) + ".*"}
	if r.tracking.tracksDepth() {
		cols = append(cols, "0 AS "+q(ColumnDepth))
	}
	if r.tracking.tracksPath() {
		cols = append(cols,
			d.PathSeed(q(alias+"."+t.key()))+" AS "+q(ColumnPath),
			d.Bool(false)+" AS "+q(ColumnCycle),
		)
	}
	cols = append(cols, q(group)+" AS "+q(ColumnGroup))

	cond, args := r.anchorCondition(f, group)
	conds := append([]string{cond}, leadConds...)

	if r.includeSelf {
		step := r.scopes.Apply(newStep(d, alias))
		if step.err != nil {
			return "", nil, step.err
		}
		conds = append(conds, step.conds...)
		args = append(args, step.args...)
	}

	return "SELECT " + strings.Join(cols, ", ") + " FROM " + from + where(conds), args, nil
}

// seedAnchor selects the first step below (or above) the owners without
// emitting the owners. Used when no depth is tracked, so the owner rows
// cannot be filtered out afterwards.
func (r Relation) seedAnchor(seq *nameSeq, f anchorFilter) (string, []interface{}, error) {
	d := r.dialect
	q := d.QuoteIdentifier
	t := r.chain.tree

	seed, rows := seedAlias, t.Table
	if f.kind == anchorCorrelated {
		seed, rows = seq.alias(), seq.alias()
	}

	from, group, leadConds := r.anchorSource(seed)
	from += " INNER JOIN " + q(t.Table)
	if rows != t.Table {
		from += " AS " + q(rows)
	}
	from += " ON " + r.edge(rows, seed)

	cond, args := r.anchorCondition(f, group)
	conds := append([]string{cond}, leadConds...)

	step := r.scopes.Apply(newStep(d, rows))
	if step.err != nil {
		return "", nil, step.err
	}
	conds = append(conds, step.conds...)
	args = append(args, step.args...)

	sql := "SELECT " + q(rows) + ".*, " + q(group) + " AS " + q(ColumnGroup) + " FROM " + from + where(conds)
	return sql, args, nil
}

// edge joins next rows to rows of prev one step further in the traversal
// direction.
func (r Relation) edge(next, prev string) string {
	q := r.dialect.QuoteIdentifier
	t := r.chain.tree
	if r.chain.dir == Ancestors {
		return q(next+"."+t.key()) + " = " + q(prev+"."+t.parentKey())
	}
	return q(next+"."+t.parentKey()) + " = " + q(prev+"."+t.key())
}

func (r Relation) recursiveClause(name string, rec Step) (string, []interface{}) {
	d := r.dialect
	q := d.QuoteIdentifier
	t := r.chain.tree
	key := q(t.Table + "." + t.key())

	cols := []string{q(t.Table) + ".*"}
	var conds []string
	var args []interface{}

	if r.tracking.tracksDepth() {
		depth := q(name + "." + ColumnDepth)
		if r.chain.dir == Ancestors {
			cols = append(cols, depth+" - 1")
		} else {
			cols = append(cols, depth+" + 1")
		}
	}
	if r.tracking.tracksPath() {
		path := q(name + "." + ColumnPath)
		if r.chain.dir == Ancestors {
			cols = append(cols, d.PathPrepend(path, key))
		} else {
			cols = append(cols, d.PathAppend(path, key))
		}
		cols = append(cols, d.PathContains(path, key))
		conds = append(conds, d.IsFalse(q(name+"."+ColumnCycle)))
	}
	cols = append(cols, q(name+"."+ColumnGroup))

	if r.maxDepth > 0 {
		depth := q(name + "." + ColumnDepth)
		if r.chain.dir == Ancestors {
			conds = append(conds, depth+" > ?")
			args = append(args, -r.maxDepth)
		} else {
			conds = append(conds, depth+" < ?")
			args = append(args, r.maxDepth)
		}
	}

	conds = append(conds, rec.conds...)
	args = append(args, rec.args...)

	sql := "SELECT " + strings.Join(cols, ", ") + " FROM " + q(t.Table) +
		" INNER JOIN " + q(name) + " ON " + r.edge(t.Table, name) + where(conds)
	return sql, args
}

type finalOptions struct {
	// cols replaces the select list.
	cols string
	// extra conditions precede all others.
	extra     []string
	extraArgs []interface{}
	// ordered adds ORDER BY and LIMIT.
	ordered bool
	// perOwner applies LIMIT to each adjacency_group separately.
	perOwner bool
}

// resultAlias is the alias of the table the relation returns rows of.
func (r Relation) resultAlias(cl closure) string {
	if r.chain.deep() {
		return r.chain.targetTable()
	}
	return cl.name
}

// finalSelect selects the relation's rows from a closure. It returns the
// CTEs hoisted by nested existence filters.
func (r Relation) finalSelect(seq *nameSeq, cl closure, opt finalOptions) (string, []interface{}, []CTE, error) {
	d := r.dialect
	q := d.QuoteIdentifier
	c := r.chain
	name := cl.name

	var from, cols string
	args := append([]interface{}(nil), cl.args...)

	if !c.deep() {
		cols = q(name) + ".*"
		from = cl.from
	} else {
		n := len(c.trailing) - 1
		last := c.trailing[n].table
		list := []string{q(last) + ".*", q(name+"."+ColumnGroup) + " AS " + q(ColumnGroup)}
		if cl.depth {
			list = append(list, q(name+"."+ColumnDepth)+" AS "+q(ColumnDepth))
		}
		if cl.path {
			list = append(list,
				q(name+"."+ColumnPath)+" AS "+q(ColumnPath),
				q(name+"."+ColumnCycle)+" AS "+q(ColumnCycle),
			)
		}
		cols = strings.Join(list, ", ")

		from = q(last)
		for i := n; i > 0; i-- {
			l, prev := c.trailing[i], c.trailing[i-1]
			from += " INNER JOIN " + q(prev.table) + " ON " + q(l.table+"."+l.foreignKey) + " = " + q(prev.table+"."+l.localKey)
		}
		first := c.trailing[0]
		from += " INNER JOIN " + cl.from + " ON " + q(first.table+"."+first.foreignKey) + " = " + q(name+"."+first.localKey)
	}
	if opt.cols != "" {
		cols = opt.cols
	}

	conds := append([]string(nil), opt.extra...)
	args = append(args, opt.extraArgs...)

	if !r.includeSelf && cl.depth {
		conds = append(conds, q(name+"."+ColumnDepth)+" <> 0")
	}
	if c.deep() && cl.path {
		conds = append(conds, d.IsFalse(q(name+"."+ColumnCycle)))
	}
	if c.tree.SoftDelete != "" && !r.withTrashed {
		conds = append(conds, q(name+"."+c.tree.SoftDelete)+" IS NULL")
	}
	for _, l := range c.trailing {
		if l.softDelete != "" {
			conds = append(conds, q(l.table+"."+l.softDelete)+" IS NULL")
		}
	}
	var wd dialects.Dialect = resultDialect{Dialect: d, table: c.tree.Table, alias: name}
	for _, l := range c.trailing {
		if l.table == c.tree.Table {
			wd = d
		}
	}
	for _, exp := range r.where {
		if exp == nil {
			continue
		}
		sql, expArgs := exp.Build(wd)
		if sql == "" {
			continue
		}
		conds = append(conds, "("+sql+")")
		args = append(args, expArgs...)
	}

	var hoisted []CTE
	outer := r.resultAlias(cl)
	for _, h := range r.has {
		if err := sameDialect(d, h.rel); err != nil {
			return "", nil, nil, err
		}
		frag, err := h.rel.existence(seq, q(outer+"."+h.rel.chain.ownerKey()), h.op, h.n)
		if err != nil {
			return "", nil, nil, err
		}
		conds = append(conds, frag.SQL)
		args = append(args, frag.Args...)
		hoisted = append(hoisted, frag.CTEs...)
	}

	if opt.ordered && opt.perOwner && r.limit >= 0 {
		sql, err := r.rankedSelect(cl, cols, from+where(conds))
		if err != nil {
			return "", nil, nil, err
		}
		return sql, args, hoisted, nil
	}

	sql := "SELECT " + cols + " FROM " + from + where(conds)

	if opt.ordered {
		terms, err := r.orderTerms(cl)
		if err != nil {
			return "", nil, nil, err
		}
		if len(terms) > 0 {
			sql += " ORDER BY " + strings.Join(terms, ", ")
		}
		if r.limit >= 0 {
			sql += " LIMIT " + strconv.FormatInt(r.limit, 10)
		}
	}

	return sql, args, hoisted, nil
}

// rankedSelect numbers rows within each owner group in relation order and
// keeps the first r.limit of every group.
func (r Relation) rankedSelect(cl closure, cols, body string) (string, error) {
	if r.degraded() {
		return "", &UnsupportedOperationError{Dialect: r.dialect.Name(), Operation: "per-owner limit in eager load"}
	}
	q := r.dialect.QuoteIdentifier

	terms, err := r.rankTerms(cl)
	if err != nil {
		return "", err
	}
	over := "PARTITION BY " + q(cl.name+"."+ColumnGroup)
	if len(terms) > 0 {
		over += " ORDER BY " + strings.Join(terms, ", ")
	}

	inner := "SELECT " + cols + ", ROW_NUMBER() OVER (" + over + ") AS " + q(ColumnRank) + " FROM " + body
	return "SELECT * FROM (" + inner + ") AS " + q("adjacency_ranked") +
		" WHERE " + q(ColumnRank) + " <= " + strconv.FormatInt(r.limit, 10) +
		" ORDER BY " + q(ColumnGroup) + ", " + q(ColumnRank), nil
}

// rankTerms qualifies bare order columns with the result alias. Window
// ordering sees the joined inputs, not the select list.
func (r Relation) rankTerms(cl closure) ([]string, error) {
	if len(r.orderBy) == 0 {
		return r.orderTerms(cl)
	}
	alias := r.resultAlias(cl)
	terms := make([]string, 0, len(r.orderBy))
	for _, col := range r.orderBy {
		col = strings.TrimSpace(col)
		if f := strings.Fields(col); len(f) > 0 && !strings.Contains(f[0], ".") {
			col = alias + "." + col
		}
		term, err := r.orderTerm(col)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func (r Relation) orderTerms(cl closure) ([]string, error) {
	q := r.dialect.QuoteIdentifier

	var terms []string
	switch {
	case len(r.orderBy) > 0:
		for _, col := range r.orderBy {
			term, err := r.orderTerm(col)
			if err != nil {
				return nil, err
			}
			terms = append(terms, term)
		}
	case cl.depth:
		terms = append(terms,
			q(cl.name+"."+ColumnDepth),
			q(r.resultAlias(cl)+"."+r.chain.targetKey()),
		)
	default:
		return nil, nil
	}
	return terms, nil
}
