// Package cache keeps prepared statements for rendered relation SQL.
//
// A relation renders the same text for every owner it is loaded for, so a
// statement prepared once serves all later loads of that relation shape.
package cache

import (
	"context"
	"database/sql"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 256

// Preparer prepares statements. *sql.DB and *sql.Conn satisfy it.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// StmtCache is an LRU of prepared statements keyed by SQL text. Statements
// are closed when they fall out of the cache.
type StmtCache struct {
	stmts    *lru.Cache[string, *sql.Stmt]
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding at most capacity statements.
func New(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	stmts, err := lru.NewWithEvict(capacity, func(_ string, stmt *sql.Stmt) {
		_ = stmt.Close()
	})
	if err != nil {
		// only reachable with a non-positive size
		panic(err)
	}
	return &StmtCache{stmts: stmts, capacity: capacity}
}

// Prepare returns the cached statement for query, preparing it with p on a
// miss. The returned statement is owned by the cache and must not be closed.
func (c *StmtCache) Prepare(ctx context.Context, p Preparer, query string) (*sql.Stmt, error) {
	if stmt, ok := c.get(query); ok {
		return stmt, nil
	}

	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	// A concurrent miss on the same query may have stored first.
	prev, found, evicted := c.stmts.PeekOrAdd(query, stmt)
	if found {
		_ = stmt.Close()
		return prev, nil
	}
	if evicted {
		c.evictions.Add(1)
	}
	return stmt, nil
}

func (c *StmtCache) get(query string) (*sql.Stmt, bool) {
	stmt, ok := c.stmts.Get(query)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return stmt, ok
}

// Clear closes and removes every cached statement.
func (c *StmtCache) Clear() {
	c.stmts.Purge()
}

// Stats holds cache counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the counters.
func (c *StmtCache) Stats() Stats {
	return Stats{
		Size:      c.stmts.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
