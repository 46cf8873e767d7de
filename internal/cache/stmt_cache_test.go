package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStmtCache_Prepare(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("SELECT 1")

	c := New(4)
	ctx := context.Background()

	first, err := c.Prepare(ctx, db, "SELECT 1")
	require.NoError(t, err)
	second, err := c.Prepare(ctx, db, "SELECT 1")
	require.NoError(t, err)
	assert.Same(t, first, second)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStmtCache_PrepareError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectPrepare("SELECT 1").WillReturnError(boom)

	c := New(4)
	_, err = c.Prepare(context.Background(), db, "SELECT 1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Stats().Size)
}

func TestStmtCache_Eviction(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("SELECT 1").WillBeClosed()
	mock.ExpectPrepare("SELECT 2")
	mock.ExpectPrepare("SELECT 3")

	c := New(2)
	ctx := context.Background()
	for _, q := range []string{"SELECT 1", "SELECT 2", "SELECT 3"} {
		_, err := c.Prepare(ctx, db, q)
		require.NoError(t, err)
	}

	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, uint64(1), stats.Evictions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStmtCache_LRUOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("SELECT 1")
	mock.ExpectPrepare("SELECT 2").WillBeClosed()
	mock.ExpectPrepare("SELECT 3")

	c := New(2)
	ctx := context.Background()
	for _, q := range []string{"SELECT 1", "SELECT 2", "SELECT 1", "SELECT 3"} {
		_, err := c.Prepare(ctx, db, q)
		require.NoError(t, err)
	}

	_, hit := c.get("SELECT 1")
	assert.True(t, hit)
	_, hit = c.get("SELECT 2")
	assert.False(t, hit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStmtCache_Clear(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("SELECT 1").WillBeClosed()

	c := New(0)
	assert.Equal(t, DefaultCapacity, c.Stats().Capacity)

	_, err = c.Prepare(context.Background(), db, "SELECT 1")
	require.NoError(t, err)
	c.Clear()

	assert.Equal(t, 0, c.Stats().Size)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStmtCache_Concurrent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 8; i++ {
		mock.ExpectPrepare("SELECT 1")
	}

	c := New(4)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Prepare(context.Background(), db, "SELECT 1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Stats().Size)
}
