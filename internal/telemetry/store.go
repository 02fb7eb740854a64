package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowctl/flowctl/internal/flowdef"
	"github.com/flowctl/flowctl/internal/graphsync"
)

const storeScopeName = "github.com/flowctl/flowctl/store"

// InstrumentedStore wraps graphsync.Store with OTel tracing and metrics.
// Every method gets a span and is counted in flowctl.store.* metrics.
// Use WrapStore to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStore struct {
	inner     graphsync.Store
	tracer    trace.Tracer
	ops       metric.Int64Counter
	dur       metric.Float64Histogram
	errs      metric.Int64Counter
	conflicts metric.Int64Counter
}

// WrapStore returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStore(s graphsync.Store) graphsync.Store {
	if !Enabled() {
		return s
	}
	return newInstrumentedStore(s)
}

func newInstrumentedStore(s graphsync.Store) *InstrumentedStore {
	m := Meter(storeScopeName)
	ops, _ := m.Int64Counter("flowctl.store.operations",
		metric.WithDescription("Total workflow store operations executed"),
	)
	dur, _ := m.Float64Histogram("flowctl.store.operation.duration",
		metric.WithDescription("Workflow store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("flowctl.store.errors",
		metric.WithDescription("Total workflow store operation errors"),
	)
	conflicts, _ := m.Int64Counter("flowctl.store.conflicts",
		metric.WithDescription("Definition updates rejected for a stale lock version"),
	)
	return &InstrumentedStore{
		inner:     s,
		tracer:    Tracer(storeScopeName),
		ops:       ops,
		dur:       dur,
		errs:      errs,
		conflicts: conflicts,
	}
}

// op starts a span and records a metric for the named store operation.
func (s *InstrumentedStore) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("flowctl.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "store."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (s *InstrumentedStore) GetDefinition(ctx context.Context, id string) (*flowdef.Workflow, error) {
	attrs := []attribute.KeyValue{attribute.String("flowctl.workflow.id", id)}
	ctx, span, t := s.op(ctx, "GetDefinition", attrs...)
	wf, err := s.inner.GetDefinition(ctx, id)
	if err == nil {
		span.SetAttributes(
			attribute.Int64("flowctl.lock_version", int64(wf.LockVersion)),
			attribute.Int("flowctl.definition.bytes", len(wf.Definition)),
		)
	}
	s.done(ctx, span, t, err, attrs...)
	return wf, err
}

func (s *InstrumentedStore) GetWorkflow(ctx context.Context, id string) (*flowdef.Workflow, error) {
	attrs := []attribute.KeyValue{attribute.String("flowctl.workflow.id", id)}
	ctx, span, t := s.op(ctx, "GetWorkflow", attrs...)
	wf, err := s.inner.GetWorkflow(ctx, id)
	if err == nil {
		span.SetAttributes(attribute.Int64("flowctl.lock_version", int64(wf.LockVersion)))
	}
	s.done(ctx, span, t, err, attrs...)
	return wf, err
}

func (s *InstrumentedStore) UpdateDefinition(ctx context.Context, id string, def json.RawMessage, expected flowdef.LockVersion) (*flowdef.Workflow, error) {
	attrs := []attribute.KeyValue{
		attribute.String("flowctl.workflow.id", id),
		attribute.Int64("flowctl.lock_version.expected", int64(expected)),
	}
	ctx, span, t := s.op(ctx, "UpdateDefinition", attrs...)
	wf, err := s.inner.UpdateDefinition(ctx, id, def, expected)
	if errors.Is(err, flowdef.ErrConflict) {
		s.conflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	s.done(ctx, span, t, err, attrs...)
	return wf, err
}
