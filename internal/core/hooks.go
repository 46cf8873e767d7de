package core

import (
	"context"
	"time"
)

// QueryEvent describes one executed statement.
type QueryEvent struct {
	SQL  string
	Args []interface{}
	// Duration is how long the statement took, including row reads.
	Duration time.Duration
	// Rows is the number of rows read, or affected for updates.
	Rows int64
	// Error is nil on success.
	Error error
	// Operation is SELECT or UPDATE.
	Operation string
	// Span names the relation operation (adjacency.relation.get, ...).
	Span string
	// Direction is the traversal direction; empty for owner queries.
	Direction string
	// Owners is the number of owner keys the statement was anchored at.
	Owners int
}

// QueryHook is invoked after every statement.
//
// Example:
//
//	db, _ := adjacency.Open("postgres", dsn,
//	    adjacency.WithQueryHook(func(ctx context.Context, e adjacency.QueryEvent) {
//	        slog.Info("relation", "span", e.Span, "rows", e.Rows, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

// WithQueryHook registers a hook called after every statement.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		db.queryHook = hook
	}
}

func (q *query) invokeHook(ctx context.Context, event QueryEvent) {
	if q.db.queryHook == nil {
		return
	}
	event.SQL = q.sql
	event.Args = q.params
	event.Span = q.span
	if q.relation != nil {
		event.Direction = q.relation.Direction
		event.Owners = q.relation.Owners
	}
	q.db.queryHook(ctx, event)
}
