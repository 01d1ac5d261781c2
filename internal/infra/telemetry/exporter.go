package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
)

// exporters pairs the span and metric exporters of one backend with the sink they write to.
type exporters struct {
	spans   sdktrace.SpanExporter
	metrics sdkmetric.Exporter
	close   func() error
}

func newExporters(ctx context.Context, cfg Config) (*exporters, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		return newStdoutExporters(cfg)
	case ExporterOTLP:
		return newOTLPExporters(ctx, cfg)
	}
	return nil, fmt.Errorf("telemetry: unsupported exporter %q", cfg.Exporter)
}

func newStdoutExporters(cfg Config) (*exporters, error) {
	var w io.Writer = os.Stdout
	closeFn := func() error { return nil }
	if cfg.StdoutFile != "" {
		f, err := os.OpenFile(cfg.StdoutFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("telemetry: open %s: %w", cfg.StdoutFile, err)
		}
		w, closeFn = f, f.Close
	}
	traceOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.StdoutPretty {
		traceOpts = append(traceOpts, stdouttrace.WithPrettyPrint())
	}
	spans, err := stdouttrace.New(traceOpts...)
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("telemetry: stdout trace exporter: %w", err)
	}
	metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("telemetry: stdout metric exporter: %w", err)
	}
	return &exporters{spans: spans, metrics: metrics, close: closeFn}, nil
}

func newOTLPExporters(ctx context.Context, cfg Config) (*exporters, error) {
	traceOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLP.Endpoint),
		otlptracegrpc.WithTimeout(cfg.OTLP.Timeout),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(cfg.ServiceName)),
	}
	metricOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.OTLP.Endpoint),
		otlpmetricgrpc.WithTimeout(cfg.OTLP.Timeout),
	}
	if cfg.OTLP.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	spans, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: otlp trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: otlp metric exporter: %w", err)
	}
	return &exporters{spans: spans, metrics: metrics, close: func() error { return nil }}, nil
}
