package core

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/coregx/adjacency/internal/tracer"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *recordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.level + ": " + e.msg
	}
	return out
}

func newMockDB(t *testing.T, dialect string, opts ...Option) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := WrapDB(sqlDB, dialect, opts...)
	require.NoError(t, err)
	return db, mock
}

var treeColumns = []string{"id", "parent_id", "name", ColumnDepth, ColumnPath, ColumnCycle, ColumnGroup}

type owner struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func TestWrapDB_UnknownDialect(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = WrapDB(sqlDB, "oracle")
	assert.ErrorIs(t, err, ErrUnsupportedDialect)

	_, err = Open("oracle", "")
	assert.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestRelation_Get(t *testing.T) {
	db, mock := newMockDB(t, "sqlite")

	mock.ExpectQuery(`^WITH RECURSIVE "adjacency_tree" AS \(`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(treeColumns).
			AddRow(int64(2), int64(1), "b", int64(1), "1.2", int64(0), int64(1)).
			AddRow(int64(3), int64(2), "c", int64(2), "1.2.3", int64(0), int64(1)))

	rows, err := db.Descendants(plain).Get(context.Background(), owner{ID: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, map[string]interface{}{"id": int64(2), "parent_id": int64(1), "name": "b"}, rows[0].Columns)
	assert.Equal(t, 1, rows[0].Depth)
	assert.Equal(t, []string{"1", "2"}, rows[0].Path)
	assert.False(t, rows[0].Cycle)
	assert.Equal(t, 2, rows[1].Depth)
	assert.Equal(t, []string{"1", "2", "3"}, rows[1].Path)
	assert.Equal(t, "c", rows[1].Get("name"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelation_StmtCache(t *testing.T) {
	db, mock := newMockDB(t, "sqlite", WithStmtCache(8))

	prep := mock.ExpectPrepare(`^WITH RECURSIVE "adjacency_tree" AS \(`)
	prep.ExpectQuery().WithArgs(1).
		WillReturnRows(sqlmock.NewRows(treeColumns).AddRow(int64(2), int64(1), "b", int64(1), "1.2", int64(0), int64(1)))
	prep.ExpectQuery().WithArgs(2).
		WillReturnRows(sqlmock.NewRows(treeColumns))

	rel := db.Descendants(plain)
	rows, err := rel.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = rel.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, rows)

	stats, ok := db.StmtCacheStats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelation_StmtCacheInTransaction(t *testing.T) {
	db, mock := newMockDB(t, "sqlite", WithStmtCache(8))

	mock.ExpectBegin()
	mock.ExpectPrepare(`^WITH RECURSIVE "adjacency_tree" AS \(`).WillBeClosed().
		ExpectExec().WithArgs(1, "x").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	tx, err := db.Begin(context.Background())
	require.NoError(t, err)

	n, err := tx.DB().Descendants(plain).Update(context.Background(), 1, map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Rollback())

	stats, _ := db.StmtCacheStats()
	assert.Zero(t, stats.Size)
	require.NoError(t, mock.ExpectationsWereMet())

	_, ok := mockDB("sqlite").StmtCacheStats()
	assert.False(t, ok)
}

func TestRelation_GetWithoutKeyRunsNoQuery(t *testing.T) {
	db, mock := newMockDB(t, "postgres")
	rel := db.Descendants(plain)

	for _, o := range []interface{}{nil, 0, "", owner{}, (*owner)(nil)} {
		rows, err := rel.Get(context.Background(), o)
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.NotNil(t, rows)
	}

	n, err := rel.Update(context.Background(), owner{}, map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	assert.Zero(t, n)

	groups, err := rel.Eager(context.Background(), owner{}, nil)
	require.NoError(t, err)
	assert.Zero(t, groups.Len())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelation_Unbound(t *testing.T) {
	rel := NewRelation(mockDB("sqlite").Dialect(), DescendantsOf(plain))

	_, err := rel.Get(context.Background(), 1)
	assert.True(t, IsConfigurationError(err))

	_, err = rel.Update(context.Background(), 1, map[string]interface{}{"a": 1})
	assert.True(t, IsConfigurationError(err))
}

func TestRelation_ConfigErrorRunsNoQuery(t *testing.T) {
	db, mock := newMockDB(t, "sqlite")

	_, err := db.Descendants(plain).Tracking(TrackNone).MaxDepth(2).Get(context.Background(), 1)
	assert.True(t, IsConfigurationError(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelation_First(t *testing.T) {
	db, mock := newMockDB(t, "sqlite")
	rel := db.Descendants(plain)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY "adjacency_tree"."adjacency_depth", "adjacency_tree"."id" LIMIT 1`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(treeColumns).
			AddRow(int64(2), int64(1), "b", int64(1), "1.2", int64(0), int64(1)))
	mock.ExpectQuery(`LIMIT 1$`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows(treeColumns))

	row, err := rel.First(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), row.Get("id"))

	_, err = rel.First(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNoRows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelation_Eager(t *testing.T) {
	db, mock := newMockDB(t, "sqlite")
	rel := db.Relation(DescendantsOf(plain), posts)

	columns := []string{"id", "user_id", ColumnGroup, ColumnDepth, ColumnPath, ColumnCycle}
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE "users"."id" IN (?, ?)`)).
		WithArgs(1, 4).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(50), int64(2), int64(1), int64(1), "1.2", int64(0)).
			AddRow(int64(51), int64(3), int64(1), int64(2), "1.2.3", int64(0)).
			AddRow(int64(80), int64(5), int64(4), int64(1), "4.5", int64(0)))

	groups, err := rel.Eager(context.Background(), owner{ID: 1}, &owner{ID: 4}, owner{ID: 1}, owner{})
	require.NoError(t, err)
	assert.Equal(t, 2, groups.Len())

	first := groups.Get(owner{ID: 1})
	require.Len(t, first, 2)
	assert.Equal(t, int64(50), first[0].Get("id"))
	assert.Equal(t, int64(51), first[1].Get("id"))
	assert.NotContains(t, first[0].Columns, ColumnGroup)

	second := groups.Get(4)
	require.Len(t, second, 1)
	assert.Equal(t, []string{"4", "5"}, second[0].Path)

	assert.Empty(t, groups.Get(7))
	assert.Empty(t, groups.Get(owner{}))

	require.NoError(t, mock.ExpectationsWereMet())
}

type keyed string

func (k keyed) Key() interface{} { return string(k) }

func TestGroups_Keyer(t *testing.T) {
	g := Groups{
		relation: mockDB("sqlite").Descendants(plain),
		rows:     map[string][]Row{"abc": {{Columns: map[string]interface{}{"id": "d"}}}},
	}
	assert.Len(t, g.Get(keyed("abc")), 1)
	assert.Empty(t, g.Get(keyed("")))
}

func TestRelation_Update(t *testing.T) {
	db, mock := newMockDB(t, "postgres")
	rel := db.Relation(DescendantsOf(users), posts).Where(Eq("posts.draft", true))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "title" = $2 WHERE "posts"."id" IN (SELECT "adjacency_affected"."adjacency_key"`)).
		WithArgs(1, "x", true).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := rel.Update(context.Background(), 1, map[string]interface{}{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelation_QueryErrorIsWrapped(t *testing.T) {
	rec := &recordingLogger{}
	db, mock := newMockDB(t, "sqlite", WithLogger(rec))

	boom := errors.New("boom")
	mock.ExpectQuery(`^WITH RECURSIVE`).WillReturnError(boom)

	_, err := db.Ancestors(plain).Get(context.Background(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "loading ancestors of users")

	assert.Equal(t, []string{"error: statement failed"}, rec.messages())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelation_StrictCycleTree(t *testing.T) {
	rec := &recordingLogger{}
	db, mock := newMockDB(t, "sqlite", WithLogger(rec))
	rel := db.Descendants(plain).OnCycle(CycleStrict)

	mock.ExpectQuery(`^WITH RECURSIVE`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(treeColumns).
			AddRow(int64(2), int64(1), "b", int64(1), "1.2", int64(0), int64(1)).
			AddRow(int64(1), int64(2), "a", int64(2), "1.2.1", int64(1), int64(1)))

	_, err := rel.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrCycleDetected)
	assert.Contains(t, rec.messages(), "warn: cycle detected")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelation_TolerantCycleKeepsRows(t *testing.T) {
	rec := &recordingLogger{}
	db, mock := newMockDB(t, "sqlite", WithLogger(rec))

	mock.ExpectQuery(`^WITH RECURSIVE`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(treeColumns).
			AddRow(int64(2), int64(1), "b", int64(1), "1.2", int64(0), int64(1)).
			AddRow(int64(1), int64(2), "a", int64(2), "1.2.1", int64(1), int64(1)))

	rows, err := db.Descendants(plain).Get(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[1].Cycle)
	assert.Equal(t, []string{"info: statement executed", "warn: cycle detected"}, rec.messages())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelation_StrictCycleDeepProbe(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	db, mock := newMockDB(t, "sqlite", WithTracer(tracer.NewOtelTracer(tp.Tracer("test"))))
	rel := db.Relation(DescendantsOf(plain), posts).OnCycle(CycleStrict)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM "adjacency_tree" WHERE "adjacency_tree"."adjacency_is_cycle" = 1 LIMIT 1`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))

	_, err := rel.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrCycleDetected)

	mock.ExpectQuery(`LIMIT 1$`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "posts".*`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", ColumnGroup}).AddRow(int64(50), int64(2)))

	rows, err := rel.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, mock.ExpectationsWereMet())

	spans := exporter.GetSpans()
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"adjacency.relation.cycle_probe",
		"adjacency.relation.cycle_probe",
		"adjacency.relation.get",
	}, names)
}

func TestRelation_SpanAttributes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	db, mock := newMockDB(t, "sqlite", WithTracer(tracer.NewOtelTracer(tp.Tracer("test"))))

	mock.ExpectQuery(`^WITH RECURSIVE`).
		WithArgs(5, -3).
		WillReturnRows(sqlmock.NewRows(treeColumns))

	_, err := db.Ancestors(plain).WithSelf().MaxDepth(3).Get(context.Background(), 5)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "adjacency.relation.get", spans[0].Name)

	attrs := make(map[string]interface{})
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "ancestors", attrs["adjacency.direction"])
	assert.Equal(t, true, attrs["adjacency.include_self"])
	assert.Equal(t, int64(3), attrs["adjacency.max_depth"])
	assert.Equal(t, int64(1), attrs["adjacency.owners"])
	assert.Equal(t, "SELECT", attrs["db.operation"])
}

func TestQueryHook(t *testing.T) {
	var events []QueryEvent
	db, mock := newMockDB(t, "sqlite", WithQueryHook(func(_ context.Context, e QueryEvent) {
		events = append(events, e)
	}))

	mock.ExpectQuery(`^WITH RECURSIVE`).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows(treeColumns).
			AddRow(int64(3), int64(1), "c", int64(1), "1.3", int64(0), int64(1)))
	mock.ExpectExec(`UPDATE "users"`).
		WithArgs(1, "z").
		WillReturnResult(sqlmock.NewResult(0, 2))

	rel := db.Descendants(plain)
	_, err := rel.Eager(context.Background(), 1, 2)
	require.NoError(t, err)
	_, err = rel.Update(context.Background(), 1, map[string]interface{}{"name": "z"})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "adjacency.relation.eager", events[0].Span)
	assert.Equal(t, "SELECT", events[0].Operation)
	assert.Equal(t, int64(1), events[0].Rows)
	assert.Equal(t, 2, events[0].Owners)
	assert.Equal(t, "descendants", events[0].Direction)
	assert.Equal(t, []interface{}{1, 2}, events[0].Args)

	assert.Equal(t, "adjacency.relation.update", events[1].Span)
	assert.Equal(t, "UPDATE", events[1].Operation)
	assert.Equal(t, int64(2), events[1].Rows)
	assert.NoError(t, events[1].Error)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryLogging_MasksSensitiveParams(t *testing.T) {
	rec := &recordingLogger{}
	db, mock := newMockDB(t, "sqlite", WithLogger(rec), WithSanitizer("secret"))

	mock.ExpectQuery(`^SELECT`).
		WithArgs("hidden").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := db.Select().From("users").Where(Eq("secret", "hidden")).All(context.Background())
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "statement executed", rec.entries[0].msg)
	assert.Contains(t, rec.entries[0].args, "[***REDACTED***]")
	assert.NotContains(t, rec.entries[0].args, "[hidden]")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction(t *testing.T) {
	db, mock := newMockDB(t, "sqlite")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users"`).
		WithArgs(1, 1).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), &TxOptions{Isolation: sql.LevelDefault})
	require.NoError(t, err)

	n, err := tx.DB().Descendants(plain).Update(context.Background(), 1, map[string]interface{}{"flag": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, tx.Commit())

	require.NoError(t, mock.ExpectationsWereMet())
}
