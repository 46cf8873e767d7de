package core

import (
	"context"

	"github.com/coregx/adjacency/internal/tracer"
	"github.com/coregx/adjacency/internal/util"
)

// Keyer is implemented by owners that expose their key directly.
type Keyer interface {
	Key() interface{}
}

// Groups holds eager-loaded rows per owner.
type Groups struct {
	relation Relation
	rows     map[string][]Row
}

// Get returns the rows loaded for owner, which may be a key, a Keyer or a
// struct.
func (g Groups) Get(owner interface{}) []Row {
	key, ok := g.relation.ownerKeyOf(owner)
	if !ok {
		return nil
	}
	return g.rows[keyString(key)]
}

// Len returns the number of owners with at least one row.
func (g Groups) Len() int { return len(g.rows) }

// ownerKeyOf extracts the value the relation is anchored at. The second
// result is false for owners without a persisted key.
func (r Relation) ownerKeyOf(owner interface{}) (interface{}, bool) {
	if k, ok := owner.(Keyer); ok {
		return util.KeyValue(k.Key(), "")
	}
	return util.KeyValue(owner, r.chain.ownerKey())
}

func (r Relation) bound() error {
	if r.db == nil {
		return configErrorf("relation is not bound to a database")
	}
	return r.check()
}

func (r Relation) metadata(owners int) *tracer.RelationMetadata {
	return &tracer.RelationMetadata{
		Direction:   r.chain.dir.String(),
		IncludeSelf: r.includeSelf,
		MaxDepth:    r.maxDepth,
		Owners:      owners,
		Degraded:    r.degraded(),
	}
}

// Get loads the relation for owner. An owner without a key yields no rows
// and runs no query.
func (r Relation) Get(ctx context.Context, owner interface{}) ([]Row, error) {
	if err := r.bound(); err != nil {
		return nil, err
	}

	key, ok := r.ownerKeyOf(owner)
	if !ok {
		return []Row{}, nil
	}
	keys := []interface{}{key}

	if err := r.probeCycles(ctx, keys); err != nil {
		return nil, err
	}

	plan, err := r.Plan(key)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.newQuery(plan, "adjacency.relation.get", r.metadata(1)).all(ctx)
	if err != nil {
		return nil, WrapError(err, "loading "+r.describe())
	}
	if err := r.checkCycles(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// First loads the first row of the relation for owner. It returns
// ErrNoRows when there is none.
func (r Relation) First(ctx context.Context, owner interface{}) (Row, error) {
	rows, err := r.Limit(1).Get(ctx, owner)
	if err != nil {
		return Row{}, err
	}
	if len(rows) == 0 {
		return Row{}, ErrNoRows
	}
	return rows[0], nil
}

// Eager loads the relation for all owners with one statement. Owners
// without a key are skipped; duplicate keys are loaded once.
func (r Relation) Eager(ctx context.Context, owners ...interface{}) (Groups, error) {
	groups := Groups{relation: r, rows: make(map[string][]Row)}
	if err := r.bound(); err != nil {
		return groups, err
	}

	seen := make(map[string]bool, len(owners))
	keys := make([]interface{}, 0, len(owners))
	for _, owner := range owners {
		key, ok := r.ownerKeyOf(owner)
		if !ok || seen[keyString(key)] {
			continue
		}
		seen[keyString(key)] = true
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return groups, nil
	}

	if err := r.probeCycles(ctx, keys); err != nil {
		return groups, err
	}

	plan, err := r.EagerPlan(keys)
	if err != nil {
		return groups, err
	}

	rows, err := r.db.newQuery(plan, "adjacency.relation.eager", r.metadata(len(keys))).all(ctx)
	if err != nil {
		return groups, WrapError(err, "eager loading "+r.describe())
	}
	if err := r.checkCycles(rows); err != nil {
		return groups, err
	}

	for _, row := range rows {
		groups.rows[row.group] = append(groups.rows[row.group], row)
	}
	return groups, nil
}

// Update sets values on every row the relation yields for owner and
// returns the number of affected rows. Intermediate scopes and final
// conditions apply as they do for Get.
func (r Relation) Update(ctx context.Context, owner interface{}, values map[string]interface{}) (int64, error) {
	if err := r.bound(); err != nil {
		return 0, err
	}

	key, ok := r.ownerKeyOf(owner)
	if !ok {
		return 0, nil
	}

	if err := r.probeCycles(ctx, []interface{}{key}); err != nil {
		return 0, err
	}

	plan, err := r.UpdatePlan(key, values)
	if err != nil {
		return 0, err
	}

	n, err := r.db.newQuery(plan, "adjacency.relation.update", r.metadata(1)).exec(ctx)
	if err != nil {
		return 0, WrapError(err, "updating "+r.describe())
	}
	return n, nil
}

// probeCycles fails with ErrCycleDetected under CycleStrict when traversal
// from keys revisits a row. Tree relations check the returned rows
// instead; deep relations drop cyclic rows before they can be seen.
func (r Relation) probeCycles(ctx context.Context, keys []interface{}) error {
	if r.cycles != CycleStrict || !r.chain.deep() {
		return nil
	}

	plan, err := r.cyclePlan(anchorFilter{kind: anchorKeys, keys: keys})
	if err != nil {
		return err
	}

	rows, err := r.db.newQuery(plan, "adjacency.relation.cycle_probe", r.metadata(len(keys))).all(ctx)
	if err != nil {
		return WrapError(err, "probing "+r.describe())
	}
	if len(rows) > 0 {
		return WrapError(ErrCycleDetected, r.describe())
	}
	return nil
}

// checkCycles reports the first cyclic row. CycleTolerate keeps the rows
// and logs a warning; CycleStrict fails with ErrCycleDetected.
func (r Relation) checkCycles(rows []Row) error {
	if r.chain.deep() {
		return nil
	}
	for _, row := range rows {
		if !row.Cycle {
			continue
		}
		r.db.logger.Warn("cycle detected", "relation", r.describe(), "path", row.Path, "policy", r.cycles.String())
		if r.cycles == CycleStrict {
			return WrapError(ErrCycleDetected, r.describe())
		}
		return nil
	}
	return nil
}
