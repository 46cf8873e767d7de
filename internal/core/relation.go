package core

import (
	"strconv"
	"strings"

	"github.com/coregx/adjacency/internal/dialects"
)

// ExistenceMode selects how Has renders a relation inside a WHERE clause.
type ExistenceMode int

const (
	// ExistenceAuto uses a correlated subquery where the dialect supports
	// one and a grouped CTE otherwise.
	ExistenceAuto ExistenceMode = iota
	// ExistenceCorrelated nests a WITH RECURSIVE subquery whose anchor is
	// correlated to the outer row.
	ExistenceCorrelated
	// ExistenceGrouped hoists one CTE anchored at every candidate owner and
	// correlates on the owner group column.
	ExistenceGrouped
)

func (m ExistenceMode) String() string {
	switch m {
	case ExistenceCorrelated:
		return "correlated"
	case ExistenceGrouped:
		return "grouped"
	}
	return "auto"
}

// ParseExistenceMode parses "auto", "correlated" or "grouped".
func ParseExistenceMode(s string) (ExistenceMode, error) {
	switch s {
	case "", "auto":
		return ExistenceAuto, nil
	case "correlated":
		return ExistenceCorrelated, nil
	case "grouped":
		return ExistenceGrouped, nil
	}
	return ExistenceAuto, configErrorf("unknown existence mode %q", s)
}

type existsFilter struct {
	rel Relation
	op  string
	n   int
}

// Relation describes rows reached from an owner through a chain of links
// containing one hierarchy traversal. Relations are immutable: every
// builder method returns a modified copy, so a base relation can be shared.
//
// Example:
//
//	rel := db.Relation(
//	    adjacency.DescendantsOf(users),
//	    adjacency.HasMany("posts", "user_id", "id"),
//	).MaxDepth(5)
//	rows, err := rel.Get(ctx, user)
type Relation struct {
	db       *DB
	dialect  dialects.Dialect
	hopLimit int

	chain         chain
	includeSelf   bool
	maxDepth      int
	tracking      PathTracking
	cycles        CyclePolicy
	existenceMode ExistenceMode
	scopes        *ScopeRegistry
	withTrashed   bool

	where   []Expression
	orderBy []string
	limit   int64
	has     []existsFilter

	err error
}

// NewRelation creates a relation that is only rendered, never executed.
// Use DB.Relation for executable relations.
func NewRelation(dialect dialects.Dialect, links ...Link) Relation {
	r := Relation{
		dialect: dialect,
		scopes:  NewScopeRegistry(),
		limit:   -1,
	}
	r.chain, r.err = newChain(links)
	return r
}

func (r Relation) clone() Relation {
	r.scopes = r.scopes.Clone()
	return r
}

func (r Relation) fail(err error) Relation {
	if r.err == nil {
		r.err = err
	}
	return r
}

// WithSelf includes the owner row itself (depth 0) in the results.
func (r Relation) WithSelf() Relation {
	r = r.clone()
	r.includeSelf = true
	return r
}

// MaxDepth bounds traversal to n steps from the owner. Zero removes the bound.
func (r Relation) MaxDepth(n int) Relation {
	r = r.clone()
	if n < 0 {
		return r.fail(configErrorf("max depth must not be negative, got %d", n))
	}
	r.maxDepth = n
	return r
}

// HopLimit sets the bound used by dialects without recursive CTEs when no
// max depth is configured.
func (r Relation) HopLimit(n int) Relation {
	r = r.clone()
	r.hopLimit = n
	return r
}

// Tracking selects the per-row bookkeeping.
func (r Relation) Tracking(t PathTracking) Relation {
	r = r.clone()
	r.tracking = t
	return r
}

// OnCycle sets the cycle policy.
func (r Relation) OnCycle(p CyclePolicy) Relation {
	r = r.clone()
	r.cycles = p
	return r
}

// Existence sets how the relation renders when used with Has.
func (r Relation) Existence(m ExistenceMode) Relation {
	r = r.clone()
	r.existenceMode = m
	return r
}

// WithIntermediateScope restricts which rows the traversal may pass
// through. An empty name keys the scope by its kind, replacing any other
// unnamed scope of the same kind.
func (r Relation) WithIntermediateScope(name string, scope Scope) Relation {
	r = r.clone()
	if scope == nil {
		return r.fail(configErrorf("intermediate scope %q is nil", name))
	}
	r.scopes.Add(name, scope)
	return r
}

// WithoutIntermediateScope removes a scope by name or by instance.
func (r Relation) WithoutIntermediateScope(nameOrScope interface{}) Relation {
	r = r.clone()
	if err := r.scopes.Remove(nameOrScope); err != nil {
		return r.fail(err)
	}
	return r
}

// WithoutIntermediateScopes removes all intermediate scopes.
func (r Relation) WithoutIntermediateScopes() Relation {
	r = r.clone()
	r.scopes.RemoveAll()
	return r
}

// WithTrashedDescendants keeps soft-deleted hierarchy rows in the results.
func (r Relation) WithTrashedDescendants() Relation {
	r = r.clone()
	r.withTrashed = true
	return r
}

// Where adds a condition on the final rows. Multiple calls are combined
// with AND. Conditions never affect traversal.
func (r Relation) Where(exp Expression) Relation {
	r = r.clone()
	r.where = append(r.where[:len(r.where):len(r.where)], exp)
	return r
}

// OrderBy replaces the default depth ordering. Columns may carry an ASC or
// DESC suffix.
func (r Relation) OrderBy(columns ...string) Relation {
	r = r.clone()
	r.orderBy = append(r.orderBy[:len(r.orderBy):len(r.orderBy)], columns...)
	return r
}

// Limit caps the number of returned rows. Negative removes the cap.
func (r Relation) Limit(n int64) Relation {
	r = r.clone()
	r.limit = n
	return r
}

// Has keeps only result rows whose own inner relation yields a row count
// satisfying op n. Supported operators are =, <>, !=, <, <=, > and >=.
func (r Relation) Has(inner Relation, op string, n int) Relation {
	r = r.clone()
	if !validCountOperator(op) {
		return r.fail(configErrorf("unsupported count operator %q", op))
	}
	r.has = append(r.has[:len(r.has):len(r.has)], existsFilter{rel: inner, op: op, n: n})
	return r
}

// IntermediateScopes returns the registered intermediate scopes by name.
func (r Relation) IntermediateScopes() map[string]Scope {
	return r.scopes.List()
}

// RemovedIntermediateScopes returns the names of removed intermediate scopes.
func (r Relation) RemovedIntermediateScopes() []string {
	return r.scopes.Removed()
}

// Err returns the first error recorded while building the relation.
func (r Relation) Err() error { return r.err }

// Direction returns the hierarchy traversal direction.
func (r Relation) Direction() Direction { return r.chain.dir }

// IncludesSelf reports whether the owner row is part of the results.
func (r Relation) IncludesSelf() bool { return r.includeSelf }

// Dialect returns the dialect the relation renders for.
func (r Relation) Dialect() dialects.Dialect { return r.dialect }

// OwnerKey returns the owner column the relation is keyed by.
func (r Relation) OwnerKey() string { return r.chain.ownerKey() }

func (r Relation) degraded() bool {
	return !r.dialect.Capabilities().RecursiveCTE
}

// check reports configurations that can never execute.
func (r Relation) check() error {
	if r.err != nil {
		return r.err
	}
	if r.dialect == nil {
		return configErrorf("relation has no dialect")
	}

	switch r.tracking {
	case TrackPath:
	case TrackDepth:
		if r.maxDepth == 0 && !r.degraded() {
			return configErrorf("depth-only tracking requires a max depth")
		}
	case TrackNone:
		if r.maxDepth > 0 {
			return configErrorf("max depth requires depth or path tracking")
		}
	default:
		return configErrorf("unknown path tracking mode %d", int(r.tracking))
	}

	if r.cycles == CycleStrict && r.tracking != TrackPath {
		return configErrorf("strict cycle policy requires path tracking")
	}

	if r.degraded() && r.maxDepth == 0 && r.hopLimit <= 0 {
		return configErrorf("dialect %s has no recursive CTEs: set a max depth or hop limit", r.dialect.Name())
	}

	for _, col := range r.orderBy {
		if _, err := r.orderTerm(col); err != nil {
			return err
		}
	}
	return nil
}

func (r Relation) orderTerm(term string) (string, error) {
	fields := strings.Fields(term)
	if len(fields) == 0 || len(fields) > 2 {
		return "", configErrorf("invalid order term %q", term)
	}
	if err := validator.ValidateIdentifier(fields[0]); err != nil {
		return "", configErrorf("order term: %v", err)
	}
	out := r.dialect.QuoteIdentifier(fields[0])
	if len(fields) == 2 {
		dir := strings.ToUpper(fields[1])
		if dir != "ASC" && dir != "DESC" {
			return "", configErrorf("invalid order direction %q", fields[1])
		}
		out += " " + dir
	}
	return out, nil
}

func validCountOperator(op string) bool {
	switch op {
	case "=", "<>", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (r Relation) describe() string {
	return r.chain.dir.String() + " of " + r.chain.tree.Table + " (max depth " + strconv.Itoa(r.maxDepth) + ")"
}
