// Package export publishes report figures to metric systems: a Prometheus
// textfile for node_exporter's textfile collector and InfluxDB points.
package export

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/synthcheck/internal/schema"
	"github.com/dshills/synthcheck/internal/verdict"
)

const namespace = "synthcheck"

// Gauges are the Prometheus collectors for one report.
type Gauges struct {
	Metric      *prometheus.GaugeVec
	Transistors prometheus.Gauge
	ASICArea    prometheus.Gauge
	Verdict     *prometheus.GaugeVec
	Overall     prometheus.Gauge
}

// NewGauges creates the collectors and registers them with reg.
func NewGauges(reg prometheus.Registerer) (*Gauges, error) {
	g := &Gauges{
		Metric: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric",
			Help:      "Synthesis summary value per scope and metric.",
		}, []string{"scope", "metric"}),
		Transistors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transistors_estimate",
			Help:      "Estimated transistor count of the design.",
		}),
		ASICArea: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "asic_total_area",
			Help:      "Estimated ASIC die area including the fixed memory area.",
		}),
		Verdict: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "verdict_status",
			Help:      "Verdict per expectation: 0 PASS, 1 NO_DATA, 2 WARN, 3 FAIL.",
		}, []string{"scope", "metric"}),
		Overall: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overall_status",
			Help:      "Overall status: 0 PASS, 1 NO_DATA, 2 WARN, 3 FAIL.",
		}),
	}
	for _, c := range []prometheus.Collector{g.Metric, g.Transistors, g.ASICArea, g.Verdict, g.Overall} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("export: register: %w", err)
		}
	}
	return g, nil
}

// Observe sets every gauge from report.
func (g *Gauges) Observe(report *schema.Report) {
	for _, m := range report.Modules {
		if !m.Stats.Present {
			continue
		}
		for k, v := range m.Stats.Metrics {
			g.Metric.WithLabelValues(m.Name, string(k)).Set(float64(v))
		}
	}
	for k, v := range report.Totals {
		g.Metric.WithLabelValues(schema.ScopeTotal, string(k)).Set(float64(v))
	}
	g.Transistors.Set(float64(report.Estimate.Transistors))
	g.ASICArea.Set(report.Estimate.ASIC.TotalArea)
	for _, r := range report.Results {
		g.Verdict.WithLabelValues(r.Scope, string(r.Metric)).Set(float64(verdict.StatusOrdinal(r.Status)))
	}
	g.Overall.Set(float64(verdict.StatusOrdinal(report.Summary.Overall)))
}

// WriteTextfile writes the report's gauges to path in the Prometheus text
// exposition format.
func WriteTextfile(path string, report *schema.Report) error {
	reg := prometheus.NewRegistry()
	g, err := NewGauges(reg)
	if err != nil {
		return err
	}
	g.Observe(report)
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("export: textfile %s: %w", path, err)
	}
	return nil
}
