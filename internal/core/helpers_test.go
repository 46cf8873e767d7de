package core

import (
	"github.com/coregx/adjacency/internal/dialects"
	"github.com/coregx/adjacency/internal/logger"
	"github.com/coregx/adjacency/internal/tracer"
)

var (
	users = Tree{Table: "users", SoftDelete: "deleted_at"}
	plain = Tree{Table: "users"}
	posts = HasMany("posts", "user_id", "id")
)

// mockDB creates a minimal DB for SQL generation testing
func mockDB(dialectName string) *DB {
	return &DB{
		driverName: dialectName,
		dialect:    dialects.GetDialect(dialectName),
		logger:     logger.Discard,
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     tracer.NoopTracer{},
	}
}
