package telemetry

import (
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// BuildSpanPrefix names the root span of every snapshot build run.
const BuildSpanPrefix = "snapshot.build."

// buildSampler records every build span. Its children follow through the parent-based base.
type buildSampler struct {
	base sdktrace.Sampler
}

func newBuildSampler(ratio float64) sdktrace.Sampler {
	return buildSampler{base: sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))}
}

func (s buildSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if strings.HasPrefix(p.Name, BuildSpanPrefix) {
		return sdktrace.AlwaysSample().ShouldSample(p)
	}
	return s.base.ShouldSample(p)
}

func (s buildSampler) Description() string {
	return "BuildSampler{" + s.base.Description() + "}"
}
