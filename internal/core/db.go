// Package core implements recursive hierarchy relations over adjacency-list
// tables: relation descriptors, intermediate scopes, the recursive query
// builder, existence subqueries, and their execution against database/sql.
package core

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coregx/adjacency/internal/cache"
	"github.com/coregx/adjacency/internal/dialects"
	"github.com/coregx/adjacency/internal/logger"
	"github.com/coregx/adjacency/internal/tracer"
)

// DB executes relations against one database.
type DB struct {
	sqlDB      *sql.DB
	tx         *sql.Tx
	driverName string
	dialect    dialects.Dialect
	logger     logger.Logger
	sanitizer  *logger.Sanitizer
	tracer     tracer.Tracer
	queryHook  QueryHook
	hopLimit   int
	stmts      *cache.StmtCache
}

// Tx is a transaction whose DB runs relations inside it.
type Tx struct {
	tx *sql.Tx
	db *DB
}

// TxOptions are passed to the driver unchanged.
type TxOptions = sql.TxOptions

// Option configures a DB at Open or WrapDB.
type Option func(*DB)

// WithMaxOpenConns caps the pool. In-memory sqlite needs 1 so every
// statement sees the same database.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) { db.sqlDB.SetMaxOpenConns(n) }
}

func WithMaxIdleConns(n int) Option {
	return func(db *DB) { db.sqlDB.SetMaxIdleConns(n) }
}

// WithLogger sets the statement logger.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// WithTracer sets the span tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(db *DB) {
		if t != nil {
			db.tracer = t
		}
	}
}

// WithSanitizer masks logged parameters of statements referencing any of
// fields. No fields means logger.DefaultSensitiveFields.
func WithSanitizer(fields ...string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithHopLimit bounds traversal on dialects without recursive CTEs when a
// relation sets no max depth.
func WithHopLimit(n int) Option {
	return func(db *DB) {
		db.hopLimit = n
	}
}

// WithStmtCache prepares every rendered statement once and reuses it for
// later loads of the same relation shape. Statements inside a transaction
// are prepared on the transaction and closed after use.
func WithStmtCache(capacity int) Option {
	return func(db *DB) {
		db.stmts = cache.New(capacity)
	}
}

// Open opens a database and selects the dialect registered for driverName.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	if _, ok := dialects.Lookup(driverName); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, driverName)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	return WrapDB(sqlDB, driverName, opts...)
}

// WrapDB wraps an existing connection pool. dialectName selects the
// dialect and need not match the driver the pool was opened with.
func WrapDB(sqlDB *sql.DB, dialectName string, opts ...Option) (*DB, error) {
	dialect, ok := dialects.Lookup(dialectName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialectName)
	}

	db := &DB{
		sqlDB:      sqlDB,
		driverName: dialectName,
		dialect:    dialect,
		logger:     logger.Discard,
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     tracer.NoopTracer{},
	}

	for _, opt := range opts {
		opt(db)
	}

	return db, nil
}

// Close closes the underlying pool.
func (db *DB) Close() error {
	if db.stmts != nil {
		db.stmts.Clear()
	}
	return db.sqlDB.Close()
}

// Dialect returns the dialect statements are rendered for.
func (db *DB) Dialect() dialects.Dialect { return db.dialect }

// DriverName returns the dialect name the DB was opened with.
func (db *DB) DriverName() string { return db.driverName }

// StmtCacheStats reports statement cache counters. ok is false when the
// DB was opened without WithStmtCache.
func (db *DB) StmtCacheStats() (stats cache.Stats, ok bool) {
	if db.stmts == nil {
		return cache.Stats{}, false
	}
	return db.stmts.Stats(), true
}

// SQLDB returns the underlying pool.
func (db *DB) SQLDB() *sql.DB { return db.sqlDB }

// WithTx returns a DB executing every statement inside tx.
func (db *DB) WithTx(tx *sql.Tx) *DB {
	c := *db
	c.tx = tx
	return &c
}

// Begin starts a transaction with default options.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	return db.BeginTx(ctx, nil)
}

// BeginTx starts a transaction. opts may be nil.
func (db *DB) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	tx, err := db.sqlDB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, db: db.WithTx(tx)}, nil
}

// DB returns a DB bound to the transaction. Relations created from it run
// inside the transaction.
func (tx *Tx) DB() *DB { return tx.db }

func (tx *Tx) Commit() error   { return tx.tx.Commit() }
func (tx *Tx) Rollback() error { return tx.tx.Rollback() }

// Relation creates a relation executed on this DB.
func (db *DB) Relation(links ...Link) Relation {
	r := NewRelation(db.dialect, links...)
	r.db = db
	r.hopLimit = db.hopLimit
	return r
}

// Descendants is shorthand for db.Relation(DescendantsOf(tree)).
func (db *DB) Descendants(tree Tree) Relation {
	return db.Relation(DescendantsOf(tree))
}

// Ancestors is shorthand for db.Relation(AncestorsOf(tree)).
func (db *DB) Ancestors(tree Tree) Relation {
	return db.Relation(AncestorsOf(tree))
}
