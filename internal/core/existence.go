package core

// existence renders the relation as a predicate on an outer row whose key
// column is outer. ">= 1" and "> 0" render as EXISTS, "< 1" and "= 0" as
// NOT EXISTS, anything else as a count comparison.
func (r Relation) existence(seq *nameSeq, outer string, op string, n int) (Fragment, error) {
	if err := r.check(); err != nil {
		return Fragment{}, err
	}
	if !validCountOperator(op) {
		return Fragment{}, configErrorf("unsupported count operator %q", op)
	}

	prefix, cols := "", "COUNT(*)"
	switch {
	case (op == ">=" && n == 1) || (op == ">" && n == 0):
		prefix, cols = "EXISTS ", "1"
	case (op == "<" && n == 1) || (op == "=" && n == 0):
		prefix, cols = "NOT EXISTS ", "1"
	}

	var (
		frag Fragment
		err  error
	)
	if r.correlated() {
		if !r.dialect.Capabilities().CorrelatedCTE || r.degraded() {
			return Fragment{}, &UnsupportedOperationError{Dialect: r.dialect.Name(), Operation: "correlated existence subquery"}
		}
		frag, err = r.correlatedSubquery(seq, outer, cols)
	} else {
		frag, err = r.groupedSubquery(seq, outer, cols)
	}
	if err != nil {
		return Fragment{}, err
	}

	if prefix != "" {
		frag.SQL = prefix + frag.SQL
		return frag, nil
	}
	frag.SQL += " " + op + " ?"
	frag.Args = append(frag.Args, n)
	return frag, nil
}

func (r Relation) correlated() bool {
	switch r.existenceMode {
	case ExistenceCorrelated:
		return true
	case ExistenceAuto:
		return r.dialect.Capabilities().CorrelatedCTE && !r.degraded()
	}
	return false
}

// correlatedSubquery nests the whole WITH RECURSIVE statement, anchored at
// the outer row, in a scalar subquery.
func (r Relation) correlatedSubquery(seq *nameSeq, outer, cols string) (Fragment, error) {
	cl, err := r.buildClosure(seq, anchorFilter{kind: anchorCorrelated, outer: outer})
	if err != nil {
		return Fragment{}, err
	}

	body, bodyArgs, nested, err := r.finalSelect(seq, cl, finalOptions{cols: cols})
	if err != nil {
		return Fragment{}, err
	}

	ctes := append(cl.ctes, nested...)
	var args []interface{}
	for _, c := range ctes {
		args = append(args, c.Args...)
	}

	return Fragment{
		SQL:  "(" + withClause(r.dialect, ctes) + " " + body + ")",
		Args: append(args, bodyArgs...),
	}, nil
}

// groupedSubquery anchors one closure at every row and filters it on the
// group column. The closure CTE is returned for the enclosing statement to
// declare; dialects without recursive CTEs inline it.
func (r Relation) groupedSubquery(seq *nameSeq, outer, cols string) (Fragment, error) {
	cl, err := r.buildClosure(seq, anchorFilter{kind: anchorAll})
	if err != nil {
		return Fragment{}, err
	}

	extra := r.dialect.QuoteIdentifier(cl.name+"."+ColumnGroup) + " = " + outer
	body, args, nested, err := r.finalSelect(seq, cl, finalOptions{cols: cols, extra: []string{extra}})
	if err != nil {
		return Fragment{}, err
	}

	return Fragment{
		SQL:  "(" + body + ")",
		Args: args,
		CTEs: append(cl.ctes, nested...),
	}, nil
}

// ExistsPredicate renders the relation as a WHERE predicate on an outer
// query whose owner key column is outerColumn. CTEs returned in the
// fragment must be declared by the enclosing statement; their names start
// at adjacency_tree, so the enclosing statement must not declare its own.
// SelectQuery.Has handles this automatically.
func (r Relation) ExistsPredicate(outerColumn, op string, n int) (Fragment, error) {
	if err := validator.ValidateIdentifier(outerColumn); err != nil {
		return Fragment{}, configErrorf("outer column: %v", err)
	}
	if r.dialect == nil {
		return Fragment{}, configErrorf("relation has no dialect")
	}
	return r.existence(&nameSeq{}, r.dialect.QuoteIdentifier(outerColumn), op, n)
}

// ExistsPlan wraps ExistsPredicate in a plan so the predicate and its CTEs
// can be rendered with dialect placeholders.
func (r Relation) ExistsPlan(outerColumn, op string, n int) (*QueryPlan, error) {
	frag, err := r.ExistsPredicate(outerColumn, op, n)
	if err != nil {
		return nil, err
	}
	return &QueryPlan{CTEs: frag.CTEs, SQL: frag.SQL, Args: frag.Args, dialect: r.dialect}, nil
}
