package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const auditScopeName = "github.com/steveyegge/crashaudit/audit"

// AuditInstruments carries the spans and counters recorded across one audit
// run. Construct it once per invocation with NewAuditInstruments; all methods
// are safe to call when telemetry is disabled (the no-op providers absorb
// everything).
type AuditInstruments struct {
	tracer    trace.Tracer
	stages    metric.Int64Counter
	stageDur  metric.Float64Histogram
	deletions metric.Int64Counter
	openSeen  metric.Int64Counter
	drift     metric.Int64Counter
}

// NewAuditInstruments builds the instruments for a single audit run.
func NewAuditInstruments() *AuditInstruments {
	m := Meter(auditScopeName)
	stages, _ := m.Int64Counter("crashaudit.stage.runs",
		metric.WithDescription("Pipeline stages executed"),
	)
	stageDur, _ := m.Float64Histogram("crashaudit.stage.duration",
		metric.WithDescription("Pipeline stage duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	deletions, _ := m.Int64Counter("crashaudit.deletions.scanned",
		metric.WithDescription("Crash file deletion records found in history"),
	)
	openSeen, _ := m.Int64Counter("crashaudit.issues.open",
		metric.WithDescription("Open tracker issues fetched or loaded from cache"),
	)
	drift, _ := m.Int64Counter("crashaudit.issues.drifted",
		metric.WithDescription("Issues classified as out of sync or partially cleaned"),
	)
	return &AuditInstruments{
		tracer:    Tracer(auditScopeName),
		stages:    stages,
		stageDur:  stageDur,
		deletions: deletions,
		openSeen:  openSeen,
		drift:     drift,
	}
}

// Stage starts a span for one pipeline stage. The returned func ends the span,
// records its duration, and marks the error if the stage failed.
func (a *AuditInstruments) Stage(ctx context.Context, name string) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{attribute.String("audit.stage", name)}
	ctx, span := a.tracer.Start(ctx, "audit."+name, trace.WithAttributes(attrs...))
	a.stages.Add(ctx, 1, metric.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		a.stageDur.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attrs...))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// RecordScan notes how many deletion records the history walk produced.
func (a *AuditInstruments) RecordScan(ctx context.Context, n int) {
	a.deletions.Add(ctx, int64(n))
}

// RecordOpenIssues notes the open-issue set size and whether it came from cache.
func (a *AuditInstruments) RecordOpenIssues(ctx context.Context, n int, fromCache bool) {
	a.openSeen.Add(ctx, int64(n),
		metric.WithAttributes(attribute.Bool("audit.from_cache", fromCache)))
}

// RecordDrift notes how many issues were classified as drifted.
func (a *AuditInstruments) RecordDrift(ctx context.Context, n int) {
	a.drift.Add(ctx, int64(n))
}
