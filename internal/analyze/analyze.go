// Package analyze runs the report pipeline: it loads module summaries and
// netlists, totals and estimates them, evaluates expectations and assembles a
// schema.Report. Each call to Run is independent.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/synthcheck/internal/estimate"
	"github.com/dshills/synthcheck/internal/extract"
	"github.com/dshills/synthcheck/internal/inventory"
	"github.com/dshills/synthcheck/internal/logging"
	"github.com/dshills/synthcheck/internal/netlist"
	"github.com/dshills/synthcheck/internal/profile"
	"github.com/dshills/synthcheck/internal/render"
	"github.com/dshills/synthcheck/internal/schema"
	"github.com/dshills/synthcheck/internal/verdict"
)

// ToolName is recorded in every report.
const ToolName = "synthcheck"

// maxConcurrentReads bounds the artifact reads in flight during one run.
const maxConcurrentReads = 8

// Advisor supplies recommendations for an assembled report.
type Advisor interface {
	Recommend(ctx context.Context, report *schema.Report) ([]string, error)
}

// Options configures one pipeline run.
type Options struct {
	Title         string
	Version       string
	SynthesisDir  string
	ReportsSubdir string
	// NetlistsSubdir is searched for netlists, relative to SynthesisDir,
	// when Netlists is empty. Defaults to "netlists".
	NetlistsSubdir string
	Netlists       []string
	// Ignore lists extra directory names skipped during discovery.
	Ignore     []string
	ConfigFile string
	Profile    profile.Profile
	Tables     estimate.Tables

	// Scanner defaults to netlist.HeuristicScanner.
	Scanner netlist.Scanner
	// Advisor, when set, replaces the fixed recommendations. Its errors are
	// logged and the fixed text is kept.
	Advisor Advisor
	Logger  *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o Options) reportsDir() string {
	sub := o.ReportsSubdir
	if sub == "" {
		sub = "reports"
	}
	return filepath.Join(o.SynthesisDir, sub)
}

// NetlistsDir is where netlists are discovered when none are configured.
func (o Options) NetlistsDir() string {
	sub := o.NetlistsSubdir
	if sub == "" {
		sub = "netlists"
	}
	return filepath.Join(o.SynthesisDir, sub)
}

// SummaryPath returns where the summary of module is expected.
func (o Options) SummaryPath(module string) string {
	return filepath.Join(o.reportsDir(), module+inventory.StatsSuffix)
}

// Run executes the pipeline once and returns the assembled report. Missing
// artifacts become "no data"; only unreadable files and cancellation are
// errors.
func Run(ctx context.Context, opts Options) (*schema.Report, error) {
	log := logging.OrDiscard(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	scanner := opts.Scanner
	if scanner == nil {
		scanner = netlist.HeuristicScanner{}
	}

	catalog, err := moduleCatalog(opts, log)
	if err != nil {
		return nil, err
	}
	netlists, err := netlistPaths(opts, log)
	if err != nil {
		return nil, err
	}

	modules := make([]schema.ModuleEntry, len(catalog))
	scans := make([]schema.NetlistScan, len(netlists))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, m := range catalog {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			art, err := extract.ParseSummaryFile(m.path)
			if err != nil {
				return fmt.Errorf("analyze: module %s: %w", m.Name, err)
			}
			if !art.Present {
				log.Warn("synthesis summary missing", "module", m.Name, "path", art.Path)
			}
			modules[i] = schema.ModuleEntry{
				Name:       m.Name,
				Display:    displayName(m.Module),
				Components: m.Components,
				Stats:      art,
			}
			return nil
		})
	}
	for i, path := range netlists {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scan, err := netlist.ScanFile(scanner, path)
			if err != nil {
				return fmt.Errorf("analyze: netlist %s: %w", path, err)
			}
			if !scan.Present {
				log.Warn("netlist missing", "path", path)
			}
			scans[i] = scan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &schema.Report{
		Tool:        ToolName,
		Version:     opts.Version,
		Title:       opts.Title,
		GeneratedAt: now().UTC(),
		Input: schema.Input{
			SynthesisDir: opts.SynthesisDir,
			Netlists:     slices.Clone(netlists),
			Profile:      opts.Profile.Name,
			ConfigFile:   opts.ConfigFile,
		},
		Modules:  modules,
		Netlists: scans,
		Totals:   Totals(modules),
	}

	calc := estimate.New(opts.Tables, log)
	for i := range scans {
		if scans[i].Present {
			scans[i].Transistors = calc.Transistors(scans[i].Gates)
		}
	}
	report.GateCosts = gateCosts(calc, modules, scans)

	breakdown, cells := designBreakdown(modules, scans)
	report.Estimate = calc.Derive(breakdown, cells)

	results := Evaluate(opts.Profile.Expectations, modules, report.Totals, scans)
	if opts.Profile.StrictWarnings {
		results = verdict.Escalate(results)
	}
	report.Results = results
	report.Summary = verdict.Summarize(results)

	report.Recommendations = slices.Clone(render.DefaultRecommendations)
	if opts.Advisor != nil {
		recs, err := opts.Advisor.Recommend(ctx, report)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("advisor failed, using fixed recommendations", "error", err)
		case len(recs) > 0:
			report.Recommendations = recs
		}
	}

	log.Debug("analysis complete",
		"modules", len(modules), "netlists", len(scans),
		"results", len(results), "overall", string(report.Summary.Overall))
	return report, nil
}

// catalogEntry is a module to load and where its summary lives.
type catalogEntry struct {
	profile.Module
	path string
}

// moduleCatalog returns the profile's catalog, or one entry per module name
// found anywhere under the reports directory when the catalog is empty.
// Discovered entries keep the path they were found at.
func moduleCatalog(opts Options, log *slog.Logger) ([]catalogEntry, error) {
	if len(opts.Profile.Modules) > 0 {
		out := make([]catalogEntry, 0, len(opts.Profile.Modules))
		for _, m := range opts.Profile.Modules {
			out = append(out, catalogEntry{Module: m, path: opts.SummaryPath(m.Name)})
		}
		return out, nil
	}
	if opts.SynthesisDir == "" {
		return nil, nil
	}
	idx, err := inventory.Build(opts.reportsDir(), opts.Ignore)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("reports directory missing", "path", opts.reportsDir())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	kept, shadowed := idx.UniqueSummaries()
	for _, s := range shadowed {
		log.Warn("duplicate module summary ignored", "module", s.Module, "path", s.Path)
	}
	out := make([]catalogEntry, 0, len(kept))
	for _, s := range kept {
		out = append(out, catalogEntry{Module: profile.Module{Name: s.Module}, path: s.Path})
	}
	return out, nil
}

// netlistPaths returns the configured netlists, or those found under the
// netlists directory when none are configured.
func netlistPaths(opts Options, log *slog.Logger) ([]string, error) {
	if len(opts.Netlists) > 0 || opts.SynthesisDir == "" {
		return opts.Netlists, nil
	}
	idx, err := inventory.Build(opts.NetlistsDir(), opts.Ignore)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug("no netlists directory", "path", opts.NetlistsDir())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return idx.Netlists, nil
}

// gateCosts is the transistor cost of every gate type the report mentions.
func gateCosts(calc *estimate.Calculator, modules []schema.ModuleEntry, scans []schema.NetlistScan) map[schema.GateType]int {
	out := make(map[schema.GateType]int)
	add := func(b schema.CellBreakdown) {
		for g := range b {
			if _, ok := out[g]; !ok {
				out[g], _ = calc.Cost(g)
			}
		}
	}
	for _, m := range modules {
		if m.Stats.Present {
			add(m.Stats.Cells)
		}
	}
	for _, s := range scans {
		if s.Present {
			add(s.Gates)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func displayName(m profile.Module) string {
	if m.Display != "" {
		return m.Display
	}
	return m.Name
}

// Totals sums every metric over the modules whose summary is present. A
// metric no module reports stays absent.
func Totals(modules []schema.ModuleEntry) schema.MetricRecord {
	out := schema.MetricRecord{}
	for _, m := range modules {
		if !m.Stats.Present {
			continue
		}
		for k, v := range m.Stats.Metrics {
			out[k] += v
		}
	}
	return out
}

// designBreakdown picks the breakdown and cell total the estimates are
// derived from: the merged module breakdowns and summed cells when any
// summary exists, otherwise the netlist gate counts.
func designBreakdown(modules []schema.ModuleEntry, scans []schema.NetlistScan) (schema.CellBreakdown, int) {
	merged := schema.CellBreakdown{}
	cells, haveCells := 0, false
	for _, m := range modules {
		if !m.Stats.Present {
			continue
		}
		merged = merged.Add(m.Stats.Cells)
		if v, ok := m.Stats.Metrics.Get(schema.MetricCells); ok {
			cells += v
			haveCells = true
		}
	}
	if haveCells || len(merged) > 0 {
		if !haveCells {
			cells = merged.Total()
		}
		return merged, cells
	}
	gates := schema.CellBreakdown{}
	for _, s := range scans {
		if s.Present {
			gates = gates.Add(s.Gates)
		}
	}
	return gates, gates.Total()
}

// Evaluate judges each expectation. Scope "total" reads the summed record;
// when no summary reports cells, the netlist primitive-gate total stands in
// for the total cell count. Any other scope names a module; a module that is
// not in the catalog or has no summary yields NO_DATA.
func Evaluate(exps []schema.Expectation, modules []schema.ModuleEntry, totals schema.MetricRecord, scans []schema.NetlistScan) []schema.Result {
	results := make([]schema.Result, 0, len(exps))
	for _, exp := range exps {
		if exp.Scope == schema.ScopeTotal {
			if v, ok := totals.Get(exp.Metric); ok {
				results = append(results, verdict.Evaluate(exp, v, true))
				continue
			}
			v, ok := netlistCells(exp.Metric, scans)
			results = append(results, verdict.Evaluate(exp, v, ok))
			continue
		}
		var rec schema.MetricRecord
		for _, m := range modules {
			if m.Name == exp.Scope && m.Stats.Present {
				rec = m.Stats.Metrics
				break
			}
		}
		results = append(results, verdict.EvaluateRecord(exp, rec))
	}
	return results
}

func netlistCells(m schema.Metric, scans []schema.NetlistScan) (int, bool) {
	if m != schema.MetricCells {
		return 0, false
	}
	total, found := 0, false
	for _, s := range scans {
		if s.Present {
			total += s.TotalPrimitiveGates
			found = true
		}
	}
	return total, found
}
