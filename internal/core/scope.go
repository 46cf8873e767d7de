package core

import (
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/coregx/adjacency/internal/dialects"
	"github.com/coregx/adjacency/internal/security"
)

var (
	// columnRefRegex matches [[column]] references inside scope fragments.
	columnRefRegex = regexp.MustCompile(`\[\[([\w\-. ]+)\]\]`)

	validator = security.NewValidator()
)

// Step is one row source of a recursive traversal (the anchor or the
// recursive clause) as seen by intermediate scopes. Conditions added to a
// step restrict which rows may propagate through the hierarchy.
type Step struct {
	dialect dialects.Dialect
	alias   string
	conds   []string
	args    []interface{}
	err     error
}

func newStep(d dialects.Dialect, alias string) Step {
	return Step{dialect: d, alias: alias}
}

// Alias returns the table alias rows of this step are read from.
func (s Step) Alias() string { return s.alias }

// Dialect returns the dialect the step renders for.
func (s Step) Dialect() dialects.Dialect { return s.dialect }

// Column returns column qualified with the step alias and quoted.
// Already-qualified names are only quoted.
func (s Step) Column(column string) string {
	if strings.Contains(column, ".") {
		return s.dialect.QuoteIdentifier(column)
	}
	return s.dialect.QuoteIdentifier(s.alias + "." + column)
}

// Where returns a copy of the step with an extra condition.
func (s Step) Where(sql string, args ...interface{}) Step {
	s.conds = append(s.conds[:len(s.conds):len(s.conds)], sql)
	s.args = append(s.args[:len(s.args):len(s.args)], args...)
	return s
}

// Fail returns a copy of the step carrying err. The first error wins.
func (s Step) Fail(err error) Step {
	if s.err == nil {
		s.err = err
	}
	return s
}

// Err returns the first error raised by a scope.
func (s Step) Err() error { return s.err }

// qualify replaces [[column]] references with step-qualified identifiers.
func (s Step) qualify(sql string) string {
	return columnRefRegex.ReplaceAllStringFunc(sql, func(match string) string {
		return s.Column(strings.TrimSpace(match[2 : len(match)-2]))
	})
}

// Scope is an intermediate-scope predicate. The set of implementations is
// closed: ColumnScope, SoftDeleteScope, RawScope and SqlizerScope.
type Scope interface {
	// Apply adds the predicate to a recursion step.
	Apply(step Step) Step
	// identity keys the scope in a registry when it is added without a name.
	identity() string
}

// ColumnScope compares one column of the traversed rows with a value.
type ColumnScope struct {
	Column   string
	Operator string
	Value    interface{}
}

// Compare creates a ColumnScope. Supported operators are =, <>, !=, <, <=,
// >, >=, IN, NOT IN, IS NULL and IS NOT NULL; IN takes a []interface{}.
func Compare(column, operator string, value interface{}) ColumnScope {
	return ColumnScope{Column: column, Operator: operator, Value: value}
}

func (c ColumnScope) identity() string { return "where" }

// Apply adds the comparison to step.
func (c ColumnScope) Apply(step Step) Step {
	if err := validator.ValidateIdentifier(c.Column); err != nil {
		return step.Fail(configErrorf("scope column: %v", err))
	}

	col := step.Column(c.Column)
	op := strings.ToUpper(strings.TrimSpace(c.Operator))

	switch op {
	case "=", "<>", "!=", "<", "<=", ">", ">=":
		if c.Value != nil {
			return step.Where(col+" "+op+" ?", c.Value)
		}
		switch op {
		case "=":
			return step.Where(col + " IS NULL")
		case "<>", "!=":
			return step.Where(col + " IS NOT NULL")
		}
		return step.Fail(configErrorf("scope on %s: %s needs a value", c.Column, op))
	case "IS NULL", "IS NOT NULL":
		return step.Where(col + " " + op)
	case "IN", "NOT IN":
		values, ok := c.Value.([]interface{})
		if !ok || len(values) == 0 {
			return step.Fail(configErrorf("scope on %s: %s needs a non-empty []interface{}", c.Column, op))
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return step.Where(col+" "+op+" ("+placeholders+")", values...)
	}

	return step.Fail(configErrorf("unsupported scope operator %q", c.Operator))
}

// SoftDeleteScope keeps only rows whose soft-delete column is NULL. Used as
// an intermediate scope it stops traversal at deleted rows; by default
// deleted rows are traversed and only removed from the output.
type SoftDeleteScope struct {
	Column string
}

// SoftDeletes creates a SoftDeleteScope. An empty column means "deleted_at".
func SoftDeletes(column string) SoftDeleteScope {
	if column == "" {
		column = "deleted_at"
	}
	return SoftDeleteScope{Column: column}
}

func (s SoftDeleteScope) identity() string { return "soft_deletes" }

// Apply adds "column IS NULL" to step.
func (s SoftDeleteScope) Apply(step Step) Step {
	column := s.Column
	if column == "" {
		column = "deleted_at"
	}
	if err := validator.ValidateIdentifier(column); err != nil {
		return step.Fail(configErrorf("soft delete column: %v", err))
	}
	return step.Where(step.Column(column) + " IS NULL")
}

// RawScope is a SQL fragment with "?" placeholders. Column references
// written as [[column]] are qualified with the step alias.
type RawScope struct {
	SQL  string
	Args []interface{}
}

// Raw creates a RawScope.
//
// Example:
//
//	adjacency.Raw("[[id]] < ?", 8)
func Raw(sql string, args ...interface{}) RawScope {
	return RawScope{SQL: sql, Args: args}
}

func (r RawScope) identity() string { return "raw" }

// Apply adds the qualified fragment to step.
func (r RawScope) Apply(step Step) Step {
	return applyFragment(step, r.SQL, r.Args)
}

// SqlizerScope adapts a squirrel predicate. Column names may use the
// [[column]] form to be qualified with the step alias.
//
// Example:
//
//	adjacency.Sqlizer(sq.Eq{"[[active]]": true})
type SqlizerScope struct {
	Sqlizer sq.Sqlizer
}

// Sqlizer creates a SqlizerScope.
func Sqlizer(s sq.Sqlizer) SqlizerScope {
	return SqlizerScope{Sqlizer: s}
}

func (s SqlizerScope) identity() string { return "sqlizer" }

// Apply renders the squirrel predicate into step.
func (s SqlizerScope) Apply(step Step) Step {
	if s.Sqlizer == nil {
		return step.Fail(configErrorf("sqlizer scope without predicate"))
	}
	sql, args, err := s.Sqlizer.ToSql()
	if err != nil {
		return step.Fail(WrapError(err, "rendering sqlizer scope"))
	}
	return applyFragment(step, sql, args)
}

func applyFragment(step Step, sql string, args []interface{}) Step {
	if strings.TrimSpace(sql) == "" {
		return step
	}
	if err := validator.ValidateFragment(sql); err != nil {
		return step.Fail(configErrorf("scope fragment: %v", err))
	}
	return step.Where("("+step.qualify(sql)+")", args...)
}

// ScopeRegistry holds the intermediate scopes of one relation. Names are
// unique; scopes added without a name are keyed by their variant identity.
type ScopeRegistry struct {
	order   []string
	scopes  map[string]Scope
	removed []string
}

// NewScopeRegistry creates an empty registry.
func NewScopeRegistry() *ScopeRegistry {
	return &ScopeRegistry{scopes: make(map[string]Scope)}
}

// Clone returns an independent copy.
func (r *ScopeRegistry) Clone() *ScopeRegistry {
	c := &ScopeRegistry{
		order:   append([]string(nil), r.order...),
		scopes:  make(map[string]Scope, len(r.scopes)),
		removed: append([]string(nil), r.removed...),
	}
	for k, v := range r.scopes {
		c.scopes[k] = v
	}
	return c
}

// Add registers scope under name, replacing any scope with the same name.
// An empty name keys the scope by its variant identity.
func (r *ScopeRegistry) Add(name string, scope Scope) {
	if name == "" {
		name = scope.identity()
	}
	if _, ok := r.scopes[name]; !ok {
		r.order = append(r.order, name)
	}
	r.scopes[name] = scope
}

// Remove removes a scope by name (string) or by instance (Scope). Instances
// match the scope registered without a name under their variant identity;
// no such scope is a ConfigurationError. Names are recorded as removed
// whether or not they were registered.
func (r *ScopeRegistry) Remove(nameOrScope interface{}) error {
	switch v := nameOrScope.(type) {
	case string:
		r.drop(v)
		return nil
	case Scope:
		key := v.identity()
		if _, ok := r.scopes[key]; !ok {
			return configErrorf("no unnamed %q intermediate scope to remove", key)
		}
		r.drop(key)
		return nil
	}
	return configErrorf("cannot remove intermediate scope by %T", nameOrScope)
}

// RemoveAll removes every scope and records all their names as removed.
func (r *ScopeRegistry) RemoveAll() {
	for _, name := range append([]string(nil), r.order...) {
		r.drop(name)
	}
}

func (r *ScopeRegistry) drop(name string) {
	if _, ok := r.scopes[name]; ok {
		delete(r.scopes, name)
		for i, n := range r.order {
			if n == name {
				r.order = append(r.order[:i:i], r.order[i+1:]...)
				break
			}
		}
	}
	for _, n := range r.removed {
		if n == name {
			return
		}
	}
	r.removed = append(r.removed, name)
}

// List returns a copy of the name to scope mapping.
func (r *ScopeRegistry) List() map[string]Scope {
	out := make(map[string]Scope, len(r.scopes))
	for k, v := range r.scopes {
		out[k] = v
	}
	return out
}

// Names returns the registered names in insertion order.
func (r *ScopeRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// Removed returns the names removed since the registry was created, in
// removal order.
func (r *ScopeRegistry) Removed() []string {
	return append([]string(nil), r.removed...)
}

// Apply applies all scopes to step in insertion order.
func (r *ScopeRegistry) Apply(step Step) Step {
	for _, name := range r.order {
		step = r.scopes[name].Apply(step)
	}
	return step
}
