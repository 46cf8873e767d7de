// Package adjacency loads recursive relations over adjacency-list tables:
// descendants and ancestors of a row, rows related to them through has-many
// links, and existence filters on them. Relations render to one WITH
// RECURSIVE statement for PostgreSQL, MySQL 8 and SQLite, and to a bounded
// self-join chain for MySQL 5.7.
//
// Example:
//
//	db, err := adjacency.Open("postgres", dsn)
//	users := adjacency.Tree{Table: "users", SoftDelete: "deleted_at"}
//
//	rows, err := db.Descendants(users).
//	    MaxDepth(3).
//	    WithIntermediateScope("active", adjacency.Compare("active", "=", true)).
//	    Get(ctx, user)
package adjacency

import (
	"github.com/coregx/adjacency/internal/core"
	"github.com/coregx/adjacency/internal/dialects"
	"github.com/coregx/adjacency/internal/logger"
	"github.com/coregx/adjacency/internal/tracer"
)

type (
	// DB executes relations against one database.
	DB = core.DB
	// Option is a functional option for configuring DB.
	Option = core.Option
	// Tx represents a database transaction.
	Tx = core.Tx
	// TxOptions represents transaction options including isolation level.
	TxOptions = core.TxOptions

	// Tree describes a self-referential table.
	Tree = core.Tree
	// Link is one step of a relation chain.
	Link = core.Link
	// Direction is the traversal direction of a hierarchy link.
	Direction = core.Direction
	// Relation is an immutable recursive relation description.
	Relation = core.Relation
	// Groups holds eager-loaded rows per owner.
	Groups = core.Groups
	// Keyer is implemented by owners that expose their key directly.
	Keyer = core.Keyer
	// Row is one related row plus its depth, path and cycle flag.
	Row = core.Row
	// PathState is the recursion bookkeeping of one row.
	PathState = core.PathState

	// PathTracking selects the per-row bookkeeping computed during recursion.
	PathTracking = core.PathTracking
	// CyclePolicy decides what happens when traversal revisits a key.
	CyclePolicy = core.CyclePolicy
	// ExistenceMode selects how Has renders a relation.
	ExistenceMode = core.ExistenceMode

	// Scope restricts the rows a traversal may pass through.
	Scope = core.Scope
	// Step is one recursion step a Scope is applied to.
	Step = core.Step
	// ScopeRegistry holds the intermediate scopes of one relation.
	ScopeRegistry = core.ScopeRegistry

	// SelectQuery selects owner rows filtered by relation existence.
	SelectQuery = core.SelectQuery
	// QueryPlan is a rendered statement.
	QueryPlan = core.QueryPlan
	// Fragment is a rendered predicate plus the CTEs it needs.
	Fragment = core.Fragment
	// CTE is one named recursive common table expression.
	CTE = core.CTE

	// QueryEvent describes one executed statement.
	QueryEvent = core.QueryEvent
	// QueryHook is invoked after every statement.
	QueryHook = core.QueryHook

	// Expression is a condition on the final rows.
	Expression = core.Expression
	// HashExp maps columns to values combined with AND.
	HashExp = core.HashExp

	// Dialect renders backend specific SQL.
	Dialect = dialects.Dialect
	// Logger receives one entry per executed statement.
	Logger = logger.Logger
	// Tracer starts a span per executed statement.
	Tracer = tracer.Tracer

	// ConfigurationError reports an inconsistent relation.
	ConfigurationError = core.ConfigurationError
	// UnsupportedOperationError reports what a dialect cannot express.
	UnsupportedOperationError = core.UnsupportedOperationError
)

const (
	Descendants = core.Descendants
	Ancestors   = core.Ancestors

	TrackPath  = core.TrackPath
	TrackDepth = core.TrackDepth
	TrackNone  = core.TrackNone

	CycleTolerate = core.CycleTolerate
	CycleStrict   = core.CycleStrict

	ExistenceAuto       = core.ExistenceAuto
	ExistenceCorrelated = core.ExistenceCorrelated
	ExistenceGrouped    = core.ExistenceGrouped

	ColumnDepth = core.ColumnDepth
	ColumnPath  = core.ColumnPath
	ColumnCycle = core.ColumnCycle
	ColumnGroup = core.ColumnGroup
)

// Re-export core functions.
var (
	Open             = core.Open
	WrapDB           = core.WrapDB
	WithMaxOpenConns = core.WithMaxOpenConns
	WithMaxIdleConns = core.WithMaxIdleConns
	WithLogger       = core.WithLogger
	WithTracer       = core.WithTracer
	WithSanitizer    = core.WithSanitizer
	WithHopLimit     = core.WithHopLimit
	WithQueryHook    = core.WithQueryHook
	WithStmtCache    = core.WithStmtCache

	// Relation descriptors
	DescendantsOf  = core.DescendantsOf
	AncestorsOf    = core.AncestorsOf
	HasMany        = core.HasMany
	NewRelation    = core.NewRelation
	NewSelectQuery = core.NewSelectQuery

	// Intermediate scopes
	Compare          = core.Compare
	SoftDeletes      = core.SoftDeletes
	Raw              = core.Raw
	Sqlizer          = core.Sqlizer
	NewScopeRegistry = core.NewScopeRegistry

	ParsePathTracking  = core.ParsePathTracking
	ParseCyclePolicy   = core.ParseCyclePolicy
	ParseExistenceMode = core.ParseExistenceMode

	ScanRows = core.ScanRows

	// Expression builders
	NewExp         = core.NewExp
	Eq             = core.Eq
	NotEq          = core.NotEq
	GreaterThan    = core.GreaterThan
	LessThan       = core.LessThan
	GreaterOrEqual = core.GreaterOrEqual
	LessOrEqual    = core.LessOrEqual
	In             = core.In
	NotIn          = core.NotIn
	And            = core.And
	Or             = core.Or
	Not            = core.Not

	// Errors
	IsConfigurationError   = core.IsConfigurationError
	IsUnsupportedOperation = core.IsUnsupportedOperation
)

// Sentinel errors.
var (
	ErrNoRows               = core.ErrNoRows
	ErrUnsupportedDialect   = core.ErrUnsupportedDialect
	ErrConfiguration        = core.ErrConfiguration
	ErrUnsupportedOperation = core.ErrUnsupportedOperation
	ErrCycleDetected        = core.ErrCycleDetected
)

// Dialects returns the registered dialect names.
func Dialects() []string {
	return dialects.Names()
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, bool) {
	return dialects.Lookup(name)
}

// NewSlogLogger adapts a *slog.Logger for WithLogger.
var NewSlogLogger = logger.FromSlog

// NewOtelTracer adapts an OpenTelemetry tracer for WithTracer.
var NewOtelTracer = tracer.NewOtelTracer
