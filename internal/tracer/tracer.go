// Package tracer provides the tracing abstraction used when relation plans
// are executed. It adapts OpenTelemetry and allows custom implementations.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is the subset of an OpenTelemetry span the executor uses.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer is the default tracer.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, NoopSpan{}
}

// NoopSpan discards everything.
type NoopSpan struct{}

func (NoopSpan) SetAttributes(...attribute.KeyValue) {}
func (NoopSpan) RecordError(error)                   {}
func (NoopSpan) SetStatus(codes.Code, string)        {}
func (NoopSpan) End()                                {}

// OtelTracer starts OpenTelemetry spans.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer adapts tracer, which must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, otelSpan{span}
}

type otelSpan struct{ trace.Span }

func (s otelSpan) RecordError(err error) { s.Span.RecordError(err) }
func (s otelSpan) End()                  { s.Span.End() }

// QueryMetadata describes one executed statement.
type QueryMetadata struct {
	SQL       string
	Duration  time.Duration
	Rows      int64 // returned or affected
	Error     error
	Database  string
	Operation string
}

// AddQueryAttributes records meta with the OpenTelemetry db.* attribute
// names and sets the span status from meta.Error.
func AddQueryAttributes(span Span, meta *QueryMetadata) {
	ms := float64(meta.Duration.Microseconds()) / 1000
	span.SetAttributes(
		attribute.String("db.system", meta.Database),
		attribute.String("db.operation", meta.Operation),
		attribute.String("db.statement", meta.SQL),
		attribute.Float64("db.duration_ms", ms),
	)
	if meta.Rows > 0 {
		span.SetAttributes(attribute.Int64("db.rows", meta.Rows))
	}

	if err := meta.Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// RelationMetadata describes the relation a plan was built for.
type RelationMetadata struct {
	Direction   string
	IncludeSelf bool
	MaxDepth    int
	Owners      int
	Degraded    bool
}

// AddRelationAttributes records relation settings on a span.
func AddRelationAttributes(span Span, meta *RelationMetadata) {
	span.SetAttributes(
		attribute.String("adjacency.direction", meta.Direction),
		attribute.Bool("adjacency.include_self", meta.IncludeSelf),
		attribute.Int("adjacency.max_depth", meta.MaxDepth),
		attribute.Int("adjacency.owners", meta.Owners),
		attribute.Bool("adjacency.degraded", meta.Degraded),
	)
}

// DetectOperation returns SELECT, INSERT, UPDATE, DELETE or UNKNOWN.
// Statements starting with a WITH clause are classified by the statement
// that follows the CTE list.
func DetectOperation(sql string) string {
	stmt := strings.ToUpper(strings.TrimSpace(sql))
	if strings.HasPrefix(stmt, "WITH") {
		stmt = afterCTEs(stmt)
	}
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(stmt, op) {
			return op
		}
	}
	return "UNKNOWN"
}

// afterCTEs skips "WITH [RECURSIVE] a AS (...), b AS (...)" and returns the
// remaining statement.
func afterCTEs(sql string) string {
	depth := 0
	for i, r := range sql {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				rest := strings.TrimSpace(sql[i+1:])
				if !strings.HasPrefix(rest, ",") {
					return rest
				}
			}
		}
	}
	return ""
}
