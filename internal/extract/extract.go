// Package extract pulls named numeric fields out of synthesis-summary text.
// It never fails on content: a field that cannot be found or parsed is
// omitted from the result.
package extract

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"

	"github.com/dshills/synthcheck/internal/schema"
)

// labels maps each metric to the exact label printed by the synthesizer.
var labels = map[schema.Metric]string{
	schema.MetricCells:          "Number of cells",
	schema.MetricWires:          "Number of wires",
	schema.MetricWireBits:       "Number of wire bits",
	schema.MetricPublicWires:    "Number of public wires",
	schema.MetricPublicWireBits: "Number of public wire bits",
	schema.MetricPorts:          "Number of ports",
	schema.MetricPortBits:       "Number of port bits",
	schema.MetricMemories:       "Number of memories",
	schema.MetricMemoryBits:     "Number of memory bits",
	schema.MetricProcesses:      "Number of processes",
}

var (
	fieldPatterns = compileFieldPatterns()
	cellPatterns  = compileCellPatterns()
)

func compileFieldPatterns() map[schema.Metric]*regexp.Regexp {
	out := make(map[schema.Metric]*regexp.Regexp, len(labels))
	for m, label := range labels {
		out[m] = regexp.MustCompile(regexp.QuoteMeta(label) + `:\s+(\d+)`)
	}
	return out
}

// compileCellPatterns builds one pattern per gate type. The escaping
// backslash netlist writers put in front of the marker is optional.
func compileCellPatterns() map[schema.GateType]*regexp.Regexp {
	out := make(map[schema.GateType]*regexp.Regexp, len(schema.AllGateTypes))
	for _, g := range schema.AllGateTypes {
		out[g] = regexp.MustCompile(`\\?` + regexp.QuoteMeta(g.Marker()) + `\s+(\d+)`)
	}
	return out
}

// ParseSummary extracts the metric record and cell breakdown from the full
// text of a synthesis summary. The first match of each label wins.
func ParseSummary(text string) (schema.MetricRecord, schema.CellBreakdown) {
	return parseMetrics(text), parseCells(text)
}

func parseMetrics(text string) schema.MetricRecord {
	rec := make(schema.MetricRecord)
	for _, m := range schema.AllMetrics {
		if v, ok := firstInt(fieldPatterns[m], text); ok {
			rec[m] = v
		}
	}
	return rec
}

func parseCells(text string) schema.CellBreakdown {
	cells := make(schema.CellBreakdown)
	for _, g := range schema.AllGateTypes {
		// Zero counts stay absent so every present key is >= 1.
		if v, ok := firstInt(cellPatterns[g], text); ok && v > 0 {
			cells[g] = v
		}
	}
	return cells
}

// firstInt returns the integer captured by the first match of re in text.
// Values that overflow int are treated as malformed.
func firstInt(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseSummaryFile reads and parses the summary at path. A path that does not
// exist yields an artifact with Present == false and a nil error; any other
// filesystem failure is returned.
func ParseSummaryFile(path string) (schema.StatsArtifact, error) {
	art := schema.StatsArtifact{Path: path}
	text, err := ReadArtifact(path)
	if errors.Is(err, fs.ErrNotExist) {
		return art, nil
	}
	if err != nil {
		return art, err
	}
	art.Present = true
	art.Metrics, art.Cells = ParseSummary(text)
	return art, nil
}

// ReadArtifact returns the full text of the file at path. The file is closed
// before returning on every path.
func ReadArtifact(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("extract: open %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("extract: read %s: %w", path, err)
	}
	return string(b), nil
}
