//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coregx/adjacency"
)

// database is what the postgres and mysql modules' containers share.
type database interface {
	ConnectionString(ctx context.Context, args ...string) (string, error)
	Terminate(ctx context.Context, opts ...testcontainers.TerminateOption) error
}

// dsn prefers the DSN in env and otherwise starts a container, skipping
// the test when Docker is unavailable.
func dsn(t *testing.T, env string, start func(context.Context) (database, error), args ...string) string {
	t.Helper()
	if v := os.Getenv(env); v != "" {
		return v
	}

	ctx := context.Background()
	c, err := start(ctx)
	if err != nil {
		t.Skipf("no %s and no Docker: %v", env, err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	v, err := c.ConnectionString(ctx, args...)
	require.NoError(t, err)
	return v
}

// PostgresDSN returns POSTGRES_TEST_DSN or a fresh postgres:16 container.
func PostgresDSN(t *testing.T) string {
	return dsn(t, "POSTGRES_TEST_DSN", func(ctx context.Context) (database, error) {
		return postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("adjacency"),
			postgres.WithUsername("adjacency"),
			postgres.WithPassword("adjacency"),
			postgres.BasicWaitStrategies(),
		)
	}, "sslmode=disable")
}

// MySQLDSN returns MYSQL_TEST_DSN or a fresh mysql:8 container.
func MySQLDSN(t *testing.T) string {
	return dsn(t, "MYSQL_TEST_DSN", func(ctx context.Context) (database, error) {
		return mysql.Run(ctx, "mysql:8.0",
			mysql.WithDatabase("adjacency"),
			mysql.WithUsername("adjacency"),
			mysql.WithPassword("adjacency"),
			testcontainers.WithWaitStrategy(wait.ForListeningPort("3306/tcp").WithStartupTimeout(90*time.Second)),
		)
	})
}

// Open opens driver and registers cleanup.
func Open(t *testing.T, driver, dsn string, opts ...adjacency.Option) *adjacency.DB {
	t.Helper()
	db, err := adjacency.Open(driver, dsn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return db
}

// Seed recreates the users and posts fixture. Statements run one at a time
// since the MySQL driver rejects multi-statement strings by default.
//
// Users 1..9 form a tree rooted at 1: user 5 is soft-deleted, user 8 is
// inactive. Users 10 and 11 are each other's parent.
func Seed(t *testing.T, db *adjacency.DB, family string) {
	t.Helper()

	deletedAt := "TIMESTAMP NULL"
	if family == "sqlite" {
		deletedAt = "TEXT"
	}

	stmts := []string{
		`DROP TABLE IF EXISTS posts`,
		`DROP TABLE IF EXISTS users`,
		`CREATE TABLE users (
			id BIGINT PRIMARY KEY,
			parent_id BIGINT NULL,
			name VARCHAR(64) NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			deleted_at ` + deletedAt + `
		)`,
		`CREATE TABLE posts (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			title VARCHAR(64) NOT NULL,
			deleted_at ` + deletedAt + `
		)`,
		`INSERT INTO users (id, parent_id, name, active, deleted_at) VALUES
			(1, NULL, 'root', 1, NULL),
			(2, 1, 'a', 1, NULL),
			(3, 1, 'b', 1, NULL),
			(4, 2, 'aa', 1, NULL),
			(5, 2, 'ab', 1, '2024-01-01 00:00:00'),
			(6, 4, 'aaa', 1, NULL),
			(7, 5, 'aba', 1, NULL),
			(8, 3, 'ba', 0, NULL),
			(9, 8, 'baa', 1, NULL),
			(10, 11, 'loop-a', 1, NULL),
			(11, 10, 'loop-b', 1, NULL)`,
		`INSERT INTO posts (id, user_id, title, deleted_at) VALUES
			(50, 2, 'p50', NULL),
			(51, 4, 'p51', NULL),
			(52, 6, 'p52', NULL),
			(53, 7, 'p53', NULL),
			(54, 9, 'p54', NULL),
			(55, 4, 'p55', '2024-01-01 00:00:00'),
			(80, 11, 'p80', NULL),
			(81, 10, 'p81', NULL)`,
	}

	for _, stmt := range stmts {
		_, err := db.SQLDB().Exec(stmt)
		require.NoError(t, err, strings.SplitN(stmt, "(", 2)[0])
	}
}
