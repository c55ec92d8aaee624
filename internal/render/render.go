// Package render produces output from a fully assembled schema.Report.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/synthcheck/internal/schema"
)

const (
	// TimestampPrefix starts the single generation-time line of a Markdown
	// document. It is the only line that differs between identical runs.
	TimestampPrefix = "Generated: "

	// NotAvailable fills a table cell whose value is missing.
	NotAvailable = "not available"

	// NoSynthesisData replaces a section whose artifact does not exist.
	NoSynthesisData = "No synthesis data available"
)

// DefaultRecommendations is the fixed guidance printed when a report carries
// no recommendations of its own.
var DefaultRecommendations = []string{
	"Verify synthesis reports for memory macro usage.",
	"Check timing constraints for the optimized design.",
	"Validate functionality with comprehensive simulation.",
	"Compare gate count with the previous baseline.",
	"Use vendor-specific synthesis tools for production sign-off.",
}

// RenderJSON produces a pretty-printed JSON representation of the report.
// The output round-trips through json.Unmarshal back to an equal Report.
func RenderJSON(report *schema.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("render: nil report")
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderMarkdown produces the Markdown report. Sections appear in a fixed
// order: summary, cell breakdown, derived estimates, regression verdicts,
// baseline comparison (when present) and recommendations. Repeated calls with
// the same report produce the same bytes.
func RenderMarkdown(report *schema.Report) string {
	if report == nil {
		return ""
	}
	var sb strings.Builder

	title := singleLine(report.Title)
	if title == "" {
		title = "Synthesis Report"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "%s%s\n\n", TimestampPrefix, report.GeneratedAt.UTC().Format(time.RFC3339))

	writeSummary(&sb, report)
	writeBreakdown(&sb, report)
	writeEstimates(&sb, report)
	writeVerdicts(&sb, report.Results)
	if report.Baseline != nil {
		writeBaseline(&sb, report.Baseline)
	}
	writeRecommendations(&sb, report.Recommendations)

	return sb.String()
}

// MaskTimestamp replaces the generation-time line of doc with a fixed marker.
func MaskTimestamp(doc string) string {
	lines := strings.Split(doc, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, TimestampPrefix) {
			lines[i] = TimestampPrefix + "<masked>"
		}
	}
	return strings.Join(lines, "\n")
}

// HasData reports whether any stats artifact or netlist in report exists.
func HasData(report *schema.Report) bool {
	for _, m := range report.Modules {
		if m.Stats.Present {
			return true
		}
	}
	for _, n := range report.Netlists {
		if n.Present {
			return true
		}
	}
	return false
}

// TotalGateCount is the design-wide cell count: the summed stats when any
// module has a cells field, otherwise the netlist primitive-gate total.
func TotalGateCount(report *schema.Report) (int, bool) {
	if v, ok := report.Totals.Get(schema.MetricCells); ok {
		return v, true
	}
	total, found := 0, false
	for _, n := range report.Netlists {
		if n.Present {
			total += n.TotalPrimitiveGates
			found = true
		}
	}
	return total, found
}

func writeSummary(sb *strings.Builder, report *schema.Report) {
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Item | Value |\n")
	sb.WriteString("|---|---|\n")
	fmt.Fprintf(sb, "| Overall Status | %s |\n", report.Summary.Overall)
	if report.Input.Profile != "" {
		fmt.Fprintf(sb, "| Profile | %s |\n", mdEscape(report.Input.Profile))
	}
	present := 0
	for _, m := range report.Modules {
		if m.Stats.Present {
			present++
		}
	}
	fmt.Fprintf(sb, "| Modules | %d |\n", len(report.Modules))
	fmt.Fprintf(sb, "| Modules With Data | %d |\n", present)
	fmt.Fprintf(sb, "| Netlists | %d |\n", len(report.Netlists))
	if n, ok := TotalGateCount(report); ok {
		fmt.Fprintf(sb, "| Total Gate Count | %d |\n", n)
	} else {
		fmt.Fprintf(sb, "| Total Gate Count | %s |\n", NotAvailable)
	}
	if HasData(report) {
		fmt.Fprintf(sb, "| Estimated Transistors | %d |\n", report.Estimate.Transistors)
	} else {
		fmt.Fprintf(sb, "| Estimated Transistors | %s |\n", NotAvailable)
	}
	fmt.Fprintf(sb, "| Passed | %d |\n", report.Summary.PassCount)
	fmt.Fprintf(sb, "| Warnings | %d |\n", report.Summary.WarnCount)
	fmt.Fprintf(sb, "| Failures | %d |\n", report.Summary.FailCount)
	fmt.Fprintf(sb, "| No Data | %d |\n", report.Summary.NoDataCount)
	sb.WriteString("\n")

	if len(report.Modules) > 0 {
		sb.WriteString("### Totals\n\n")
		writeMetricTable(sb, report.Totals)
	}
}

func writeBreakdown(sb *strings.Builder, report *schema.Report) {
	sb.WriteString("## Cell Breakdown\n\n")
	if len(report.Modules) == 0 && len(report.Netlists) == 0 {
		sb.WriteString(NoSynthesisData + "\n\n")
		return
	}
	for _, m := range report.Modules {
		display := m.Display
		if display == "" {
			display = m.Name
		}
		fmt.Fprintf(sb, "### %s (`%s`)\n\n", mdEscape(display), m.Name)
		if m.Components != "" {
			fmt.Fprintf(sb, "Key components: %s\n\n", mdEscape(m.Components))
		}
		if !m.Stats.Present {
			sb.WriteString(NoSynthesisData + "\n\n")
			continue
		}
		writeMetricTable(sb, m.Stats.Metrics)
		writeGateTable(sb, m.Stats.Cells, report.GateCosts)
	}
	if len(report.Netlists) > 1 {
		writeNetlistSummary(sb, report.Netlists)
	}
	for _, n := range report.Netlists {
		fmt.Fprintf(sb, "### Netlist `%s`\n\n", n.File)
		if !n.Present {
			sb.WriteString(NoSynthesisData + "\n\n")
			continue
		}
		fmt.Fprintf(sb, "Design style: %s  \n", n.DesignStyle())
		fmt.Fprintf(sb, "Total primitive gates: %d  \n", n.TotalPrimitiveGates)
		fmt.Fprintf(sb, "Estimated transistors: %d\n\n", n.Transistors)
		writeGateTable(sb, n.Gates, report.GateCosts)
		if len(n.Modules) > 0 {
			sb.WriteString("| Module | Instances |\n")
			sb.WriteString("|---|---|\n")
			names := make([]string, 0, len(n.Modules))
			for name := range n.Modules {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				fmt.Fprintf(sb, "| %s | %d |\n", mdEscape(name), n.Modules[name])
			}
			sb.WriteString("\n")
		}
	}
}

// writeMetricTable lists every known metric, marking absent ones.
func writeMetricTable(sb *strings.Builder, rec schema.MetricRecord) {
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|---|---|\n")
	for _, m := range schema.AllMetrics {
		if v, ok := rec.Get(m); ok {
			fmt.Fprintf(sb, "| %s | %d |\n", m, v)
		} else {
			fmt.Fprintf(sb, "| %s | %s |\n", m, NotAvailable)
		}
	}
	sb.WriteString("\n")
}

// writeGateTable lists gate counts. With a cost table each row also carries
// count × cost transistors.
func writeGateTable(sb *strings.Builder, cells schema.CellBreakdown, costs map[schema.GateType]int) {
	if len(cells) == 0 {
		sb.WriteString("No primitive gate markers found.\n\n")
		return
	}
	if len(costs) == 0 {
		sb.WriteString("| Gate Type | Count |\n")
		sb.WriteString("|---|---|\n")
		for _, g := range orderedGates(cells) {
			fmt.Fprintf(sb, "| %s | %d |\n", g, cells[g])
		}
		sb.WriteString("\n")
		return
	}
	sb.WriteString("| Gate Type | Count | Transistors |\n")
	sb.WriteString("|---|---|---|\n")
	for _, g := range orderedGates(cells) {
		if cost, ok := costs[g]; ok {
			fmt.Fprintf(sb, "| %s | %d | %d |\n", g, cells[g], cells[g]*cost)
		} else {
			fmt.Fprintf(sb, "| %s | %d | %s |\n", g, cells[g], NotAvailable)
		}
	}
	sb.WriteString("\n")
}

// writeNetlistSummary compares the scanned netlists side by side.
func writeNetlistSummary(sb *strings.Builder, scans []schema.NetlistScan) {
	sb.WriteString("### Netlist Summary\n\n")
	sb.WriteString("| Netlist | Design Style | Primitive Gates | Transistors |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, n := range scans {
		if !n.Present {
			fmt.Fprintf(sb, "| %s | %s | %s | %s |\n", mdEscape(n.File), NotAvailable, NotAvailable, NotAvailable)
			continue
		}
		fmt.Fprintf(sb, "| %s | %s | %d | %d |\n", mdEscape(n.File), n.DesignStyle(), n.TotalPrimitiveGates, n.Transistors)
	}
	sb.WriteString("\n")
}

// orderedGates returns the keys of cells in vocabulary order, followed by
// any unknown types sorted by name.
func orderedGates(cells schema.CellBreakdown) []schema.GateType {
	out := make([]schema.GateType, 0, len(cells))
	for _, g := range schema.AllGateTypes {
		if _, ok := cells[g]; ok {
			out = append(out, g)
		}
	}
	var extra []schema.GateType
	for g := range cells {
		if !slices.Contains(schema.AllGateTypes, g) {
			extra = append(extra, g)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

func writeEstimates(sb *strings.Builder, report *schema.Report) {
	sb.WriteString("## Derived Estimates\n\n")
	if !HasData(report) {
		sb.WriteString(NoSynthesisData + "\n\n")
		return
	}
	e := report.Estimate
	sb.WriteString("| Estimate | Value |\n")
	sb.WriteString("|---|---|\n")
	fmt.Fprintf(sb, "| Total Cells | %d |\n", e.TotalCells)
	fmt.Fprintf(sb, "| Transistors | %d |\n", e.Transistors)
	fmt.Fprintf(sb, "| Process Node | %s |\n", mdEscape(e.ASIC.Node))
	fmt.Fprintf(sb, "| Gate Density (gates/mm²) | %s |\n", formatFloat(e.ASIC.GateDensity))
	fmt.Fprintf(sb, "| Logic Area (mm²) | %s |\n", formatFloat(e.ASIC.LogicArea))
	fmt.Fprintf(sb, "| Memory Area (mm²) | %s |\n", formatFloat(e.ASIC.MemoryArea))
	fmt.Fprintf(sb, "| Total Area (mm²) | %s |\n", formatFloat(e.ASIC.TotalArea))
	fmt.Fprintf(sb, "| LUTs | %s |\n", formatFloat(e.FPGA.LUTs))
	fmt.Fprintf(sb, "| Flip-Flops | %s |\n", formatFloat(e.FPGA.FlipFlops))
	fmt.Fprintf(sb, "| BRAM Blocks | %d |\n", e.FPGA.BRAMBlocks)
	fmt.Fprintf(sb, "| DSP Blocks | %d |\n", e.FPGA.DSPBlocks)
	fmt.Fprintf(sb, "| Sequential Units | %d |\n", e.Complexity.Sequential)
	fmt.Fprintf(sb, "| Combinational Units | %d |\n", e.Complexity.Combinational)
	fmt.Fprintf(sb, "| Arithmetic Units | %d |\n", e.Complexity.Arithmetic)
	fmt.Fprintf(sb, "| Memory Units | %d |\n", e.Complexity.Memory)
	fmt.Fprintf(sb, "| Seq/Comb Ratio | %s |\n", formatFloat(e.Complexity.SeqCombRatio))
	sb.WriteString("\n")

	fmt.Fprintf(sb, "At the %s node the design's %d cells occupy an estimated %.4f mm² "+
		"(%.4f mm² of logic at %s gates/mm² plus %.4f mm² of memory). ",
		e.ASIC.Node, e.TotalCells, e.ASIC.TotalArea, e.ASIC.LogicArea,
		formatFloat(e.ASIC.GateDensity), e.ASIC.MemoryArea)
	fmt.Fprintf(sb, "An FPGA mapping would need roughly %.0f LUTs and %.0f flip-flops "+
		"with %d BRAM and %d DSP blocks reserved. ",
		e.FPGA.LUTs, e.FPGA.FlipFlops, e.FPGA.BRAMBlocks, e.FPGA.DSPBlocks)
	fmt.Fprintf(sb, "The estimated transistor count is %d, with a sequential to "+
		"combinational ratio of %.2f.\n\n", e.Transistors, e.Complexity.SeqCombRatio)
	sb.WriteString("All figures are approximations from fixed coefficient tables, " +
		"not placed-and-routed measurements.\n\n")
}

func writeVerdicts(sb *strings.Builder, results []schema.Result) {
	sb.WriteString("## Regression Verdicts\n\n")
	if len(results) == 0 {
		sb.WriteString("No expectations configured.\n\n")
		return
	}
	sb.WriteString("| Scope | Metric | Measured | Expected | Status |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, r := range results {
		measured := NotAvailable
		if r.Measured != nil {
			measured = strconv.Itoa(*r.Measured)
		}
		fmt.Fprintf(sb, "| %s | %s | %s | %s %d | %s |\n",
			mdEscape(r.Scope), r.Metric, measured, r.Direction.Symbol(), r.Expected, r.Status)
	}
	sb.WriteString("\n")
}

func writeBaseline(sb *strings.Builder, b *schema.Baseline) {
	sb.WriteString("## Baseline Comparison\n\n")
	fmt.Fprintf(sb, "Compared with run `%s` recorded %s.\n\n",
		b.RunID, b.RecordedAt.UTC().Format(time.RFC3339))
	if len(b.Deltas) == 0 {
		sb.WriteString("No comparable metrics.\n\n")
		return
	}
	sb.WriteString("| Scope | Metric | Previous | Current | Change |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, d := range b.Deltas {
		fmt.Fprintf(sb, "| %s | %s | %d | %d | %+d |\n",
			mdEscape(d.Scope), d.Metric, d.Previous, d.Current, d.Change())
	}
	sb.WriteString("\n")
}

func writeRecommendations(sb *strings.Builder, recs []string) {
	sb.WriteString("## Recommendations\n\n")
	if len(recs) == 0 {
		recs = DefaultRecommendations
	}
	for i, r := range recs {
		fmt.Fprintf(sb, "%d. %s\n", i+1, mdEscape(r))
	}
	sb.WriteString("\n")
}

// RenderMemoryMarkdown produces the memory usage analysis report.
func RenderMemoryMarkdown(a *schema.MemoryAnalysis) string {
	if a == nil {
		return ""
	}
	var sb strings.Builder
	title := "Memory Usage Analysis Report"
	if a.Project != "" {
		title = a.Project + " " + title
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "%s%s\n\n", TimestampPrefix, a.GeneratedAt.UTC().Format(time.RFC3339))

	sb.WriteString("## Memory Usage Summary\n\n")

	sb.WriteString("### Memory Interface Analysis\n\n")
	writeMemoryArtifact(&sb, a.Interface, schema.MetricCells, schema.MetricMemoryBits)

	sb.WriteString("### Twiddle ROM Analysis\n\n")
	writeMemoryArtifact(&sb, a.ROM, schema.MetricCells)

	sb.WriteString("### Overall Design Analysis\n\n")
	if a.TotalGates != nil {
		fmt.Fprintf(&sb, "**Total Gate Count:** %d\n\n", *a.TotalGates)
	} else {
		sb.WriteString("**Status:** Overall gate count not available\n\n")
	}

	sb.WriteString("## Recommendations\n\n")
	sb.WriteString("### For Production Use\n\n")
	sb.WriteString("1. **Memory Interface:** Use an external memory controller for large arrays.\n")
	sb.WriteString("2. **Synthesis Flow:** Implement incremental synthesis for faster iterations.\n")
	sb.WriteString("3. **Timing Analysis:** Add synthesis constraints for optimization.\n")
	sb.WriteString("4. **Power Analysis:** Perform power analysis with realistic workloads.\n\n")
	sb.WriteString("### Next Steps\n\n")
	sb.WriteString("1. **Synthesis Regression:** Track these figures with `synthcheck report --history`.\n")
	sb.WriteString("2. **Performance Validation:** Test with real workloads.\n")
	sb.WriteString("3. **Documentation Update:** Update design documents with the new metrics.\n")
	return sb.String()
}

var memoryLabels = map[schema.Metric]string{
	schema.MetricCells:      "Cell Count",
	schema.MetricMemoryBits: "Memory Bits",
}

// writeMemoryArtifact lists the requested metrics that art carries. An
// artifact that is missing or has none of them counts as no data.
func writeMemoryArtifact(sb *strings.Builder, art schema.StatsArtifact, metrics ...schema.Metric) {
	var lines []string
	if art.Present {
		for _, m := range metrics {
			if v, ok := art.Metrics.Get(m); ok {
				lines = append(lines, fmt.Sprintf("- **%s:** %d\n", memoryLabels[m], v))
			}
		}
	}
	if len(lines) == 0 {
		sb.WriteString("**Status:** " + NoSynthesisData + "\n\n")
		return
	}
	sb.WriteString("**Current Results:**\n\n")
	for _, l := range lines {
		sb.WriteString(l)
	}
	sb.WriteString("\n")
}

// WriteFile writes data to path through a temporary file in the same
// directory, so readers never observe a partial document. Parent
// directories are created as needed.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("render: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("render: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("render: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("render: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("render: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("render: rename %s: %w", path, err)
	}
	return nil
}

// formatFloat prints the shortest representation that parses back to f.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// singleLine collapses every run of whitespace, line breaks included, to one
// space.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
