package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/dshills/synthcheck/internal/schema"
)

// Measurement is the InfluxDB measurement written for every scope.
const Measurement = "synthesis_metrics"

// Points converts report into one point per scope at time t. Module points
// carry the module's summary values; the total point also carries the
// transistor and area estimates.
func Points(report *schema.Report, t time.Time) []*write.Point {
	var points []*write.Point
	for _, m := range report.Modules {
		if !m.Stats.Present || len(m.Stats.Metrics) == 0 {
			continue
		}
		points = append(points, influxdb2.NewPoint(
			Measurement,
			pointTags(report, m.Name),
			metricFields(m.Stats.Metrics),
			t,
		))
	}

	fields := metricFields(report.Totals)
	fields["transistors"] = report.Estimate.Transistors
	fields["asic_total_area"] = report.Estimate.ASIC.TotalArea
	fields["overall"] = string(report.Summary.Overall)
	points = append(points, influxdb2.NewPoint(Measurement, pointTags(report, schema.ScopeTotal), fields, t))
	return points
}

func pointTags(report *schema.Report, scope string) map[string]string {
	tags := map[string]string{"scope": scope}
	if report.Input.Profile != "" {
		tags["profile"] = report.Input.Profile
	}
	return tags
}

func metricFields(rec schema.MetricRecord) map[string]interface{} {
	fields := make(map[string]interface{}, len(rec)+3)
	for k, v := range rec {
		fields[string(k)] = v
	}
	return fields
}

// PointWriter writes points synchronously. api.WriteAPIBlocking satisfies it.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Publisher pushes report points to InfluxDB.
type Publisher struct {
	client influxdb2.Client
	writer PointWriter
	now    func() time.Time
}

// NewPublisher connects a publisher to the InfluxDB server at url.
func NewPublisher(url, token, org, bucket string) (*Publisher, error) {
	if url == "" || org == "" || bucket == "" {
		return nil, errors.New("export: influx url, org and bucket are required")
	}
	client := influxdb2.NewClient(url, token)
	return &Publisher{
		client: client,
		writer: client.WriteAPIBlocking(org, bucket),
		now:    time.Now,
	}, nil
}

// NewPublisherWithWriter returns a publisher that writes through w.
func NewPublisherWithWriter(w PointWriter) *Publisher {
	return &Publisher{writer: w, now: time.Now}
}

// Publish writes the report's points, stamped with the report's generation
// time (or the current time when it is unset).
func (p *Publisher) Publish(ctx context.Context, report *schema.Report) error {
	t := report.GeneratedAt
	if t.IsZero() {
		t = p.now()
	}
	if err := p.writer.WritePoint(ctx, Points(report, t)...); err != nil {
		return fmt.Errorf("export: influx write: %w", err)
	}
	return nil
}

// Close releases the underlying client, if any.
func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
