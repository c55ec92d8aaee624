package schema_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dshills/synthcheck/internal/schema"
)

func TestReport_JSONRoundTrip(t *testing.T) {
	measured := 900
	original := &schema.Report{
		Tool:        "synthcheck",
		Version:     "0.1.0",
		Title:       "FFT IP",
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Input:       schema.Input{SynthesisDir: "flow/synthesis", Profile: "fft"},
		Modules: []schema.ModuleEntry{
			{
				Name:    "fft_control",
				Display: "FFT Control",
				Stats: schema.StatsArtifact{
					Path:    "reports/fft_control_stats.txt",
					Present: true,
					Metrics: schema.MetricRecord{schema.MetricCells: 900, schema.MetricWires: 40},
					Cells:   schema.CellBreakdown{schema.GateNOT: 10},
				},
			},
		},
		Netlists: []schema.NetlistScan{
			{File: "top.v", Present: true, Gates: schema.CellBreakdown{schema.GateMUX: 2}, TotalPrimitiveGates: 2, Transistors: 24},
		},
		Totals:    schema.MetricRecord{schema.MetricCells: 900},
		GateCosts: map[schema.GateType]int{schema.GateNOT: 2, schema.GateMUX: 12},
		Results: []schema.Result{
			{
				Scope:     schema.ScopeTotal,
				Metric:    schema.MetricCells,
				Measured:  &measured,
				Expected:  1000,
				Direction: schema.DirectionBelow,
				Status:    schema.StatusPass,
			},
		},
		Summary: schema.Summary{Overall: schema.StatusPass, PassCount: 1},
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var got schema.Report
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}

	if !got.GeneratedAt.Equal(original.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, original.GeneratedAt)
	}
	if len(got.Modules) != 1 {
		t.Fatalf("modules = %d, want 1", len(got.Modules))
	}
	if v, ok := got.Modules[0].Stats.Metrics.Get(schema.MetricWires); !ok || v != 40 {
		t.Errorf("wires = %d (present %v), want 40", v, ok)
	}
	if _, ok := got.Modules[0].Stats.Metrics.Get(schema.MetricPorts); ok {
		t.Error("ports should stay absent after round trip")
	}
	if got.Results[0].Measured == nil || *got.Results[0].Measured != 900 {
		t.Errorf("measured = %v, want 900", got.Results[0].Measured)
	}
	if len(got.Netlists) != 1 || got.Netlists[0].Transistors != 24 {
		t.Errorf("netlists = %+v, want one scan with 24 transistors", got.Netlists)
	}
	if got.GateCosts[schema.GateMUX] != 12 {
		t.Errorf("gate costs = %v, want MUX 12", got.GateCosts)
	}
	if got.Summary.Overall != schema.StatusPass {
		t.Errorf("overall = %q, want PASS", got.Summary.Overall)
	}
}

func TestCellBreakdown_Total(t *testing.T) {
	b := schema.CellBreakdown{schema.GateNOT: 10, schema.GateMUX: 5, schema.GateDFF: 2}
	if got := b.Total(); got != 17 {
		t.Errorf("Total() = %d, want 17", got)
	}
	if got := (schema.CellBreakdown{}).Total(); got != 0 {
		t.Errorf("empty Total() = %d, want 0", got)
	}
}

func TestCellBreakdown_Add(t *testing.T) {
	a := schema.CellBreakdown{schema.GateNOT: 1, schema.GateAND: 2}
	b := schema.CellBreakdown{schema.GateNOT: 3, schema.GateRAM: 1}
	sum := a.Add(b)
	want := map[schema.GateType]int{schema.GateNOT: 4, schema.GateAND: 2, schema.GateRAM: 1}
	if len(sum) != len(want) {
		t.Fatalf("Add() has %d keys, want %d", len(sum), len(want))
	}
	for g, n := range want {
		if sum[g] != n {
			t.Errorf("Add()[%s] = %d, want %d", g, sum[g], n)
		}
	}
	if a[schema.GateNOT] != 1 {
		t.Error("Add() must not mutate the receiver")
	}
}

func TestGateType_Marker(t *testing.T) {
	cases := []struct {
		g    schema.GateType
		want string
	}{
		{schema.GateAND, "$_AND_"},
		{schema.GateLATCH, "$_DLATCH_"},
		{schema.GateALDFFE, "$_ALDFFE_"},
	}
	for _, c := range cases {
		if got := c.g.Marker(); got != c.want {
			t.Errorf("%s.Marker() = %q, want %q", c.g, got, c.want)
		}
	}
}

func TestMetric_IsKnown(t *testing.T) {
	for _, m := range schema.AllMetrics {
		if !m.IsKnown() {
			t.Errorf("%q should be known", m)
		}
	}
	if schema.Metric("luts").IsKnown() {
		t.Error(`"luts" should not be known`)
	}
}

func TestDirection_Symbol(t *testing.T) {
	if got := schema.DirectionBelow.Symbol(); got != "<" {
		t.Errorf("DirectionBelow.Symbol() = %q, want <", got)
	}
	if got := schema.DirectionAbove.Symbol(); got != ">" {
		t.Errorf("DirectionAbove.Symbol() = %q, want >", got)
	}
}
