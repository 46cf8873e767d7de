package core

import (
	"strconv"
	"strings"
)

func degradedAlias(j int) string {
	return "adjacency_t" + strconv.Itoa(j)
}

// buildDegraded renders the closure as a UNION ALL of fixed-length
// self-join chains, one per depth up to the hop bound. It always tracks
// depth, path and cycles.
func (r Relation) buildDegraded(seq *nameSeq, f anchorFilter) (closure, error) {
	if f.kind == anchorCorrelated {
		return closure{}, &UnsupportedOperationError{Dialect: r.dialect.Name(), Operation: "correlated existence subquery"}
	}

	hops := r.maxDepth
	if hops == 0 {
		hops = r.hopLimit
	}
	if hops <= 0 {
		return closure{}, configErrorf("dialect %s has no recursive CTEs: set a max depth or hop limit", r.dialect.Name())
	}

	selects := make([]string, 0, hops+1)
	var args []interface{}
	for k := 0; k <= hops; k++ {
		sql, a, err := r.degradedSelect(k, f)
		if err != nil {
			return closure{}, err
		}
		selects = append(selects, sql)
		args = append(args, a...)
	}

	name := seq.cte()
	return closure{
		name:  name,
		from:  "(" + strings.Join(selects, " UNION ALL ") + ") AS " + r.dialect.QuoteIdentifier(name),
		args:  args,
		depth: true,
		path:  true,
	}, nil
}

// degradedSelect renders the rows exactly k steps from the anchor.
func (r Relation) degradedSelect(k int, f anchorFilter) (string, []interface{}, error) {
	d := r.dialect
	q := d.QuoteIdentifier
	t := r.chain.tree

	from, group, leadConds := r.anchorSource(degradedAlias(0))

	keys := make([]string, k+1)
	keys[0] = q(degradedAlias(0) + "." + t.key())
	for j := 1; j <= k; j++ {
		alias := degradedAlias(j)
		from += " INNER JOIN " + q(t.Table) + " AS " + q(alias) + " ON " + r.edge(alias, degradedAlias(j-1))
		keys[j] = q(alias + "." + t.key())
	}

	path := append([]string(nil), keys...)
	depth := k
	if r.chain.dir == Ancestors {
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		depth = -k
	}

	cycle := d.Bool(false)
	if k > 0 {
		cycle = "(" + keys[k] + " IN (" + strings.Join(keys[:k], ", ") + "))"
	}

	cols := []string{
		q(degradedAlias(k)) + ".*",
		strconv.Itoa(depth) + " AS " + q(ColumnDepth),
		d.PathJoin(path) + " AS " + q(ColumnPath),
		cycle + " AS " + q(ColumnCycle),
		q(group) + " AS " + q(ColumnGroup),
	}

	cond, args := r.anchorCondition(f, group)
	conds := append([]string{cond}, leadConds...)

	if r.includeSelf {
		step := r.scopes.Apply(newStep(d, degradedAlias(0)))
		if step.err != nil {
			return "", nil, step.err
		}
		conds = append(conds, step.conds...)
		args = append(args, step.args...)
	}

	// A row that closed a cycle is emitted but not expanded.
	for j := 1; j < k; j++ {
		conds = append(conds, keys[j]+" NOT IN ("+strings.Join(keys[:j], ", ")+")")
	}

	for j := 1; j <= k; j++ {
		step := r.scopes.Apply(newStep(d, degradedAlias(j)))
		if step.err != nil {
			return "", nil, step.err
		}
		conds = append(conds, step.conds...)
		args = append(args, step.args...)
	}

	return "SELECT " + strings.Join(cols, ", ") + " FROM " + from + where(conds), args, nil
}
