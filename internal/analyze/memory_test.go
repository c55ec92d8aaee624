package analyze

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/synthcheck/internal/render"
	"github.com/dshills/synthcheck/internal/schema"
)

func TestLoadMemory_Fixture(t *testing.T) {
	a, err := LoadMemory(MemoryOptions{
		Project:      "FFT",
		SynthesisDir: fixtureDir,
		GateReport:   filepath.Join(fixtureDir, "gate_analysis_report.md"),
		Now:          fixedNow,
	})
	require.NoError(t, err)

	assert.True(t, a.Interface.Present)
	assert.Equal(t, 800, a.Interface.Metrics[schema.MetricCells])
	assert.Equal(t, 4096, a.Interface.Metrics[schema.MetricMemoryBits])
	assert.True(t, a.ROM.Present)
	assert.Equal(t, 2500, a.ROM.Metrics[schema.MetricCells])
	require.NotNil(t, a.TotalGates)
	assert.Equal(t, 7500, *a.TotalGates)
	assert.Equal(t, fixedNow(), a.GeneratedAt)
}

func TestLoadMemory_NothingPresent(t *testing.T) {
	dir := t.TempDir()
	a, err := LoadMemory(MemoryOptions{
		SynthesisDir: dir,
		GateReport:   filepath.Join(dir, "gate_analysis_report.md"),
	})
	require.NoError(t, err)
	assert.False(t, a.Interface.Present)
	assert.False(t, a.ROM.Present)
	assert.Nil(t, a.TotalGates)

	doc := render.RenderMemoryMarkdown(a)
	assert.Contains(t, doc, "Overall gate count not available")
	assert.Contains(t, doc, render.NoSynthesisData)
}

func TestGateCountFromReport_Forms(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
		ok   bool
	}{
		{"bold label", "## Overall\n\n**Total Gate Count:** 12,345\n", 12345, true},
		{"list item", "- Total Gate Count: 42 gates\n", 42, true},
		{"summary table", "## Summary\n\n| Item | Value |\n|---|---|\n| Total Gate Count | 900 |\n", 900, true},
		{"not available", "## Summary\n\n| Item | Value |\n|---|---|\n| Total Gate Count | not available |\n", 0, false},
		{"absent", "# Report\n\nnothing here\n", 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "gates.md")
			require.NoError(t, os.WriteFile(path, []byte(c.body), 0o644))
			got, ok, err := GateCountFromReport(path)
			require.NoError(t, err)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestGateCountFromReport_RenderedReport(t *testing.T) {
	report, err := Run(context.Background(), baseOptions(t, mustProfile(t, "fft")))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, render.WriteFile(path, []byte(render.RenderMarkdown(report))))

	got, ok, err := GateCountFromReport(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7500, got)
}
