package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/synthcheck/internal/schema"
)

var stamp = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func sampleReport() *schema.Report {
	measured := 800
	return &schema.Report{
		GeneratedAt: stamp,
		Input:       schema.Input{Profile: "fft"},
		Modules: []schema.ModuleEntry{
			{Name: "memory_interface", Stats: schema.StatsArtifact{Present: true, Metrics: schema.MetricRecord{
				schema.MetricCells: 800, schema.MetricMemoryBits: 4096,
			}}},
			{Name: "fft_control", Stats: schema.StatsArtifact{Present: false}},
		},
		Totals: schema.MetricRecord{schema.MetricCells: 800, schema.MetricMemoryBits: 4096},
		Estimate: schema.DerivedEstimate{
			Transistors: 5000,
			ASIC:        schema.ASICEstimate{TotalArea: 0.5},
		},
		Results: []schema.Result{
			{Scope: "memory_interface", Metric: schema.MetricCells, Measured: &measured, Expected: 1000, Direction: schema.DirectionBelow, Status: schema.StatusPass},
			{Scope: "fft_control", Metric: schema.MetricCells, Expected: 10, Direction: schema.DirectionBelow, Status: schema.StatusNoData},
		},
		Summary: schema.Summary{Overall: schema.StatusNoData},
	}
}

func TestGauges_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	g, err := NewGauges(reg)
	require.NoError(t, err)
	g.Observe(sampleReport())

	assert.InDelta(t, 800, testutil.ToFloat64(g.Metric.WithLabelValues("memory_interface", "cells")), 0)
	assert.InDelta(t, 4096, testutil.ToFloat64(g.Metric.WithLabelValues("total", "memory_bits")), 0)
	assert.InDelta(t, 5000, testutil.ToFloat64(g.Transistors), 0)
	assert.InDelta(t, 0.5, testutil.ToFloat64(g.ASICArea), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(g.Verdict.WithLabelValues("memory_interface", "cells")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(g.Verdict.WithLabelValues("fft_control", "cells")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(g.Overall), 0)

	// memory_interface x2 + total x2
	assert.Equal(t, 4, testutil.CollectAndCount(g.Metric))
}

func TestNewGauges_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewGauges(reg)
	require.NoError(t, err)
	_, err = NewGauges(reg)
	assert.Error(t, err)
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synthcheck.prom")
	require.NoError(t, WriteTextfile(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# TYPE synthcheck_metric gauge")
	assert.Contains(t, text, `synthcheck_metric{metric="cells",scope="memory_interface"} 800`)
	assert.Contains(t, text, "synthcheck_transistors_estimate 5000")
	assert.Contains(t, text, `synthcheck_verdict_status{metric="cells",scope="fft_control"} 1`)
}

func TestPoints(t *testing.T) {
	points := Points(sampleReport(), stamp)
	require.Len(t, points, 2, "absent modules produce no point")

	mod := write.PointToLineProtocol(points[0], time.Second)
	assert.True(t, strings.HasPrefix(mod, Measurement+","), mod)
	assert.Contains(t, mod, "scope=memory_interface")
	assert.Contains(t, mod, "profile=fft")
	assert.Contains(t, mod, "cells=800i")
	assert.Contains(t, mod, "memory_bits=4096i")

	total := write.PointToLineProtocol(points[1], time.Second)
	assert.Contains(t, total, "scope=total")
	assert.Contains(t, total, "transistors=5000i")
	assert.Contains(t, total, `overall="NO_DATA"`)
	assert.Equal(t, stamp, points[1].Time())
}

type recordingWriter struct {
	points []*write.Point
	err    error
}

func (w *recordingWriter) WritePoint(_ context.Context, p ...*write.Point) error {
	w.points = append(w.points, p...)
	return w.err
}

func TestPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisherWithWriter(w)
	defer p.Close()

	require.NoError(t, p.Publish(context.Background(), sampleReport()))
	assert.Len(t, w.points, 2)

	w.err = errors.New("401 unauthorized")
	err := p.Publish(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: influx write")
}

func TestNewPublisher_RequiresTarget(t *testing.T) {
	_, err := NewPublisher("", "", "org", "bucket")
	assert.Error(t, err)

	p, err := NewPublisher("http://localhost:8086", "token", "hw", "synth")
	require.NoError(t, err)
	p.Close()
}
