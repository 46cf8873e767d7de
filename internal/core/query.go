package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/adjacency/internal/tracer"
)

type executor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (db *DB) conn() executor {
	if db.tx != nil {
		return db.tx
	}
	return db.sqlDB
}

// prepare returns a statement for q.sql. done releases it: cached
// statements stay open, transaction statements are closed.
func (q *query) prepare(ctx context.Context) (stmt *sql.Stmt, done func(), err error) {
	if q.db.tx != nil {
		stmt, err = q.db.tx.PrepareContext(ctx, q.sql)
		if err != nil {
			return nil, nil, err
		}
		return stmt, func() { _ = stmt.Close() }, nil
	}

	stmt, err = q.db.stmts.Prepare(ctx, q.db.sqlDB, q.sql)
	if err != nil {
		return nil, nil, err
	}
	return stmt, func() {}, nil
}

func (q *query) queryContext(ctx context.Context) (*sql.Rows, func(), error) {
	if q.db.stmts == nil {
		rows, err := q.db.conn().QueryContext(ctx, q.sql, q.params...)
		return rows, func() {}, err
	}

	stmt, done, err := q.prepare(ctx)
	if err != nil {
		return nil, nil, err
	}
	rows, err := stmt.QueryContext(ctx, q.params...)
	if err != nil {
		done()
		return nil, nil, err
	}
	return rows, done, nil
}

func (q *query) execContext(ctx context.Context) (sql.Result, error) {
	if q.db.stmts == nil {
		return q.db.conn().ExecContext(ctx, q.sql, q.params...)
	}

	stmt, done, err := q.prepare(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	return stmt.ExecContext(ctx, q.params...)
}

// query is one rendered statement bound to a DB.
type query struct {
	db       *DB
	sql      string
	params   []interface{}
	span     string
	relation *tracer.RelationMetadata
}

func (db *DB) newQuery(plan *QueryPlan, span string, relation *tracer.RelationMetadata) *query {
	stmt, params := plan.Statement()
	return &query{db: db, sql: stmt, params: params, span: span, relation: relation}
}

// log writes one line per statement. Parameters pass through the
// sanitizer first.
func (q *query) log(rows int64, err error, elapsed time.Duration) {
	attrs := []any{
		"sql", q.sql,
		"params", q.db.sanitizer.FormatParams(q.db.sanitizer.MaskParams(q.sql, q.params)),
		"duration_ms", elapsed.Milliseconds(),
		"dialect", q.db.driverName,
	}
	if err != nil {
		q.db.logger.Error("statement failed", append(attrs, "error", err)...)
		return
	}
	q.db.logger.Info("statement executed", append(attrs, "rows", rows)...)
}

func (q *query) finish(ctx context.Context, span tracer.Span, rows int64, err error, elapsed time.Duration) {
	q.log(rows, err, elapsed)

	operation := tracer.DetectOperation(q.sql)
	q.invokeHook(ctx, QueryEvent{
		Duration:  elapsed,
		Rows:      rows,
		Error:     err,
		Operation: operation,
	})

	if q.relation != nil {
		tracer.AddRelationAttributes(span, q.relation)
	}
	tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
		SQL:       q.sql,
		Duration:  elapsed,
		Rows:      rows,
		Error:     err,
		Database:  q.db.driverName,
		Operation: operation,
	})
}

// all runs the statement and reads every row.
func (q *query) all(ctx context.Context) ([]Row, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := q.db.tracer.StartSpan(ctx, q.span)
	defer span.End()

	start := time.Now()

	rows, done, err := q.queryContext(ctx)
	if err != nil {
		q.finish(ctx, span, 0, err, time.Since(start))
		return nil, err
	}
	defer func() {
		_ = rows.Close()
		done()
	}()

	result, err := readRows(rows, q.db.dialect)
	q.finish(ctx, span, int64(len(result)), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// exec runs the statement and returns the number of affected rows.
func (q *query) exec(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := q.db.tracer.StartSpan(ctx, q.span)
	defer span.End()

	start := time.Now()

	var affected int64
	result, err := q.execContext(ctx)
	if err == nil {
		affected, err = result.RowsAffected()
	}
	q.finish(ctx, span, affected, err, time.Since(start))
	if err != nil {
		return 0, err
	}
	return affected, nil
}
