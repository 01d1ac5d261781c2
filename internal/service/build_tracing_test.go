package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/telemetry"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

func TestBuildRunsExportSpanWithRunID(t *testing.T) {
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "spans.jsonl")
	tc := telemetry.NewTelemetryComponent(&telemetry.Config{Enabled: true, StdoutFile: out, SampleRatio: 1e-12})
	require.NoError(t, tc.Start(ctx))

	b, _ := newTestBuilder(t, &fakeSource{
		roster: []model.RosterRow{{Code: "600000", Name: "浦发银行", ListDate: "1999-11-10"}},
	})
	rep, err := b.BuildBasicInfo(ctx)
	require.NoError(t, err)
	require.NoError(t, tc.Stop(ctx))

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	spans := string(body)
	assert.Contains(t, spans, `"Name":"snapshot.build.basic_info"`)
	assert.Contains(t, spans, "norns.run_id")
	assert.Contains(t, spans, rep.RunID)
	assert.Contains(t, spans, "norns.inserted")
	assert.Contains(t, spans, "norns.snapshot.builds", "run counter flushed on shutdown")
}
