// Package telemetry holds the simulation counters and the SDK provider that
// exports them. When metrics are disabled every instrument comes from the
// no-op meter.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ScopeName is the instrumentation scope of every instrument.
const ScopeName = "github.com/wricardo/bridge-it-together"

// Metrics groups the counters recorded by the engine.
type Metrics struct {
	ticks           metric.Int64Counter
	classifications metric.Int64Counter
	ignores         metric.Int64Counter
	interactions    metric.Int64Counter
	deaths          metric.Int64Counter
}

// New creates the counters on meter.
func New(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.ticks, err = meter.Int64Counter("bridgeit.ticks",
		metric.WithDescription("Fixed simulation steps executed")); err != nil {
		return nil, err
	}
	if m.classifications, err = meter.Int64Counter("bridgeit.classifications",
		metric.WithDescription("Entity classifications by resulting category")); err != nil {
		return nil, err
	}
	if m.ignores, err = meter.Int64Counter("bridgeit.ignores_applied",
		metric.WithDescription("Owners newly filtered by a collision filter")); err != nil {
		return nil, err
	}
	if m.interactions, err = meter.Int64Counter("bridgeit.interactions",
		metric.WithDescription("Interaction handlers dispatched")); err != nil {
		return nil, err
	}
	if m.deaths, err = meter.Int64Counter("bridgeit.deaths",
		metric.WithDescription("Entity deaths, split by whether they count")); err != nil {
		return nil, err
	}
	return &m, nil
}

// Noop returns counters that record nothing.
func Noop() *Metrics {
	m, _ := New(noop.Meter{})
	return m
}

// Tick records one fixed step.
func (m *Metrics) Tick(ctx context.Context) {
	if m == nil {
		return
	}
	m.ticks.Add(ctx, 1)
}

// Classified records one classification.
func (m *Metrics) Classified(ctx context.Context, kind, category string) {
	if m == nil {
		return
	}
	m.classifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("category", category),
	))
}

// IgnoresApplied records owners newly filtered.
func (m *Metrics) IgnoresApplied(ctx context.Context, kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ignores.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

// Interactions records dispatched interaction handlers.
func (m *Metrics) Interactions(ctx context.Context, point string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.interactions.Add(ctx, int64(n), metric.WithAttributes(attribute.String("point", point)))
}

// Death records a death.
func (m *Metrics) Death(ctx context.Context, kind string, counts bool) {
	if m == nil {
		return
	}
	m.deaths.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("counts", counts),
	))
}
