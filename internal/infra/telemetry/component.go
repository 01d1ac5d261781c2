package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
)

const shutdownTimeout = 5 * time.Second

// TelemetryComponent installs the global otel providers that snapshot builds, the chi router
// and the aktools client report to. Without it every span is a no-op.
type TelemetryComponent struct {
	*core.BaseComponent
	cfg Config

	tp   *sdktrace.TracerProvider
	mp   *sdkmetric.MeterProvider
	sink func() error
}

func NewTelemetryComponent(cfg *Config) *TelemetryComponent {
	tc := &TelemetryComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_TELEMETRY, consts.COMPONENT_LOGGING),
	}
	if cfg != nil {
		tc.cfg = cfg.withDefaults()
	}
	return tc
}

func (tc *TelemetryComponent) Start(ctx context.Context) error {
	if err := tc.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if !tc.cfg.Enabled {
		return errors.New("telemetry: disabled")
	}
	if err := tc.cfg.validate(); err != nil {
		return err
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(tc.cfg.ServiceName)}
	if tc.cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment.name", tc.cfg.Environment))
	}
	res, err := resource.New(ctx, resource.WithFromEnv(), resource.WithHost(), resource.WithAttributes(attrs...))
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}
	exp, err := newExporters(ctx, tc.cfg)
	if err != nil {
		return err
	}

	tc.sink = exp.close
	tc.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp.spans),
		sdktrace.WithSampler(newBuildSampler(tc.cfg.SampleRatio)),
		sdktrace.WithResource(res),
	)
	tc.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp.metrics, sdkmetric.WithInterval(tc.cfg.MetricInterval))),
	)
	otel.SetTracerProvider(tc.tp)
	otel.SetMeterProvider(tc.mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logging.Info(ctx, "telemetry component started",
		zap.String("exporter", string(tc.cfg.Exporter)),
		zap.Float64("sample_ratio", tc.cfg.SampleRatio),
		zap.String("service_name", tc.cfg.ServiceName),
	)
	return nil
}

// Stop flushes pending spans and metrics before closing the exporter sink.
func (tc *TelemetryComponent) Stop(ctx context.Context) error {
	defer func() { _ = tc.BaseComponent.Stop(ctx) }()
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if tc.mp != nil {
		errs = append(errs, tc.mp.Shutdown(ctx))
	}
	if tc.tp != nil {
		errs = append(errs, tc.tp.Shutdown(ctx))
	}
	if tc.sink != nil {
		errs = append(errs, tc.sink())
	}
	tc.tp, tc.mp, tc.sink = nil, nil, nil
	err := errors.Join(errs...)
	if err != nil {
		logging.Warn(ctx, "telemetry shutdown", zap.Error(err))
	}
	return err
}

func (tc *TelemetryComponent) HealthCheck() error {
	if err := tc.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	if tc.tp == nil || tc.mp == nil {
		return errors.New("telemetry: providers not initialized")
	}
	return nil
}
