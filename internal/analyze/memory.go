package analyze

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/synthcheck/internal/extract"
	"github.com/dshills/synthcheck/internal/logging"
	"github.com/dshills/synthcheck/internal/mdparse"
	"github.com/dshills/synthcheck/internal/schema"
)

// Module names read by the memory report.
const (
	MemoryInterfaceModule = "memory_interface"
	TwiddleROMModule      = "twiddle_rom"
)

// totalGateLabel labels the design gate count in an earlier gate report.
const totalGateLabel = "Total Gate Count"

// MemoryOptions configures LoadMemory.
type MemoryOptions struct {
	Project       string
	SynthesisDir  string
	ReportsSubdir string
	// GateReport is an earlier Markdown gate report. Empty skips it.
	GateReport string
	Logger     *slog.Logger
	Now        func() time.Time
}

// LoadMemory gathers the inputs of the memory usage report. Missing files are
// reported as absent data.
func LoadMemory(opts MemoryOptions) (*schema.MemoryAnalysis, error) {
	log := logging.OrDiscard(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	paths := Options{SynthesisDir: opts.SynthesisDir, ReportsSubdir: opts.ReportsSubdir}

	a := &schema.MemoryAnalysis{Project: opts.Project, GeneratedAt: now().UTC()}
	var err error
	if a.Interface, err = extract.ParseSummaryFile(paths.SummaryPath(MemoryInterfaceModule)); err != nil {
		return nil, fmt.Errorf("analyze: memory interface: %w", err)
	}
	if a.ROM, err = extract.ParseSummaryFile(paths.SummaryPath(TwiddleROMModule)); err != nil {
		return nil, fmt.Errorf("analyze: twiddle rom: %w", err)
	}

	if opts.GateReport != "" {
		n, ok, err := GateCountFromReport(opts.GateReport)
		switch {
		case err != nil:
			return nil, err
		case ok:
			a.TotalGates = &n
		default:
			log.Warn("gate report has no total gate count", "path", opts.GateReport)
		}
	}
	return a, nil
}

// GateCountFromReport reads the design gate count from a Markdown report:
// a "Total Gate Count: N" line, or the matching row of the Summary table
// that RenderMarkdown writes. A missing file reports ok == false.
func GateCountFromReport(path string) (int, bool, error) {
	text, err := extract.ReadArtifact(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("analyze: gate report: %w", err)
	}

	if v, ok := mdparse.FieldValue(text, totalGateLabel); ok {
		if n, ok := leadingInt(v); ok {
			return n, true, nil
		}
	}
	tables, err := mdparse.ParseTables(strings.NewReader(text))
	if err != nil {
		return 0, false, fmt.Errorf("analyze: gate report %s: %w", path, err)
	}
	if t, ok := mdparse.FindTable(tables, "Summary"); ok {
		if v, ok := t.Lookup(totalGateLabel, "Value"); ok {
			if n, ok := leadingInt(v); ok {
				return n, true, nil
			}
		}
	}
	return 0, false, nil
}

// leadingInt parses the first whitespace-separated token of s, ignoring
// thousands separators.
func leadingInt(s string) (int, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
