package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// DefaultInterval is how often the periodic reader exports.
const DefaultInterval = time.Minute

// Config selects how counters are exported.
type Config struct {
	Enabled     bool
	ServiceName string
	Interval    time.Duration
	Writer      io.Writer // export target; required when enabled
}

// Provider owns the SDK meter provider behind the counters. A disabled
// provider hands out no-op counters and has nothing to shut down.
type Provider struct {
	mp      *sdkmetric.MeterProvider
	metrics *Metrics
}

// NewProvider exports counters to cfg.Writer every cfg.Interval and installs
// the provider as the global one. Disabled configs get Noop counters.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{metrics: Noop()}, nil
	}
	if cfg.Writer == nil {
		return nil, fmt.Errorf("metrics enabled but no writer configured")
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	p, err := NewWithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(p.mp)
	return p, nil
}

// NewWithReader creates the counters on an SDK provider collected by reader.
func NewWithReader(reader sdkmetric.Reader, serviceName string) (*Provider, error) {
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	m, err := New(mp.Meter(ScopeName))
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create counters: %w", err)
	}
	return &Provider{mp: mp, metrics: m}, nil
}

// Metrics returns the counters the engine records into.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Enabled reports whether counters reach an exporter.
func (p *Provider) Enabled() bool {
	return p.mp != nil
}

// Shutdown flushes pending data points and stops the reader.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.mp == nil {
		return nil
	}
	if err := p.mp.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics shutdown failed: %w", err)
	}
	return nil
}
