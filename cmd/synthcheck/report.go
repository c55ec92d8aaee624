package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dshills/synthcheck/internal/advise"
	"github.com/dshills/synthcheck/internal/analyze"
	"github.com/dshills/synthcheck/internal/config"
	"github.com/dshills/synthcheck/internal/export"
	"github.com/dshills/synthcheck/internal/history"
	"github.com/dshills/synthcheck/internal/logging"
	"github.com/dshills/synthcheck/internal/render"
	"github.com/dshills/synthcheck/internal/schema"
	"github.com/dshills/synthcheck/internal/verdict"
)

// reportFlags holds the parsed flags of the report family of commands. Empty
// strings and nil slices mean "not given" so config values survive.
type reportFlags struct {
	configFile   string
	synthesisDir string
	netlists     []string
	profileName  string
	title        string
	format       string
	out          string
	failOn       string
	historyDir   string
	promOut      string
	logLevel     string
	logJSON      bool
	strict       bool
	advisor      bool
	advisorModel string

	// netlistOnly skips summary loading entirely.
	netlistOnly bool

	stdout io.Writer
	stderr io.Writer
}

func (f *reportFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.configFile, "config", "", "YAML configuration file")
	fl.StringVar(&f.profileName, "profile", "", "design profile (generic, fft, fft-strict)")
	fl.StringVar(&f.title, "title", "", "report title")
	fl.StringVar(&f.format, "format", "md", "output format: md or json")
	fl.StringVarP(&f.out, "out", "o", "", "output file (default stdout)")
	fl.StringVar(&f.failOn, "fail-on", string(schema.StatusFail), "exit 2 when the overall status is at least this: PASS, NO_DATA, WARN, FAIL")
	fl.StringVar(&f.historyDir, "history", "", "run history directory; enables the baseline comparison")
	fl.StringVar(&f.promOut, "prom-out", "", "write Prometheus textfile metrics to this path")
	fl.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fl.BoolVar(&f.logJSON, "log-json", false, "log as JSON")
	fl.BoolVar(&f.strict, "strict", false, "escalate WARN verdicts to FAIL")
	fl.BoolVar(&f.advisor, "advisor", false, "ask a language model for recommendations")
	fl.StringVar(&f.advisorModel, "advisor-model", "", "model used by --advisor")
}

func newReportCmd() *cobra.Command {
	f := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Analyze synthesis summaries and netlists and write a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.stdout, f.stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return runReport(cmd.Context(), *f)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&f.synthesisDir, "synthesis-dir", "", "synthesis output directory containing reports/")
	cmd.Flags().StringArrayVar(&f.netlists, "netlist", nil, "structural netlist to scan (repeatable)")
	return cmd
}

func newNetlistCmd() *cobra.Command {
	f := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "netlist FILE...",
		Short: "Scan structural netlists and write a gate report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.stdout, f.stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			f.netlists = args
			f.netlistOnly = true
			return runReport(cmd.Context(), *f)
		},
	}
	f.bind(cmd)
	return cmd
}

// runReport executes one full report run.
func runReport(ctx context.Context, f reportFlags) error {
	_, err := runReportOnce(ctx, f)
	return err
}

// runReportOnce returns the assembled report alongside any exit error so the
// watch loop can log it.
func runReportOnce(ctx context.Context, f reportFlags) (*schema.Report, error) {
	if f.stdout == nil {
		f.stdout = os.Stdout
	}
	if f.stderr == nil {
		f.stderr = os.Stderr
	}

	format := strings.ToLower(f.format)
	if format == "" {
		format = "md"
	}
	if format != "md" && format != "json" {
		return nil, badInput("--format must be md or json, got %q", f.format)
	}
	failOn := schema.Status(strings.ToUpper(f.failOn))
	if failOn == "" {
		failOn = schema.StatusFail
	}
	if verdict.StatusOrdinal(failOn) < 0 {
		return nil, badInput("--fail-on must be one of PASS, NO_DATA, WARN, FAIL, got %q", f.failOn)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg, f)
	if err != nil {
		return nil, badInput("%w", err)
	}
	prof, err := cfg.ResolveProfile()
	if err != nil {
		return nil, badInput("%w", err)
	}

	opts := analyze.Options{
		Title:          cfg.Title,
		Version:        version,
		SynthesisDir:   cfg.SynthesisDir,
		ReportsSubdir:  cfg.ReportsSubdir,
		NetlistsSubdir: cfg.NetlistsSubdir,
		Netlists:       cfg.Netlists,
		Ignore:         cfg.Ignore,
		ConfigFile:     f.configFile,
		Profile:        prof,
		Tables:         cfg.Estimate,
		Logger:         log,
	}
	if f.netlistOnly {
		opts.SynthesisDir = ""
		opts.Profile.Modules = nil
	}
	if cfg.Advisor.Enabled {
		opts.Advisor = advise.New(advise.Options{
			Provider:    cfg.Advisor.Provider,
			Model:       cfg.Advisor.Model,
			MaxTokens:   cfg.Advisor.MaxTokens,
			Temperature: cfg.Advisor.Temp,
			Debug:       strings.EqualFold(cfg.LogLevel, "debug"),
		}, log)
	}
	if !f.netlistOnly && opts.SynthesisDir != "" {
		if _, err := os.Stat(opts.SynthesisDir); errors.Is(err, fs.ErrNotExist) {
			log.Warn("synthesis directory missing", "path", opts.SynthesisDir)
		}
	}

	report, err := analyze.Run(ctx, opts)
	if err != nil {
		return nil, &exitError{code: exitCodeUnexpected, err: err}
	}

	if cfg.HistoryDir != "" {
		if err := applyHistory(ctx, cfg.HistoryDir, report, log); err != nil {
			return nil, &exitError{code: exitCodeUnexpected, err: err}
		}
	}

	if err := writeReport(f, format, report); err != nil {
		return nil, &exitError{code: exitCodeUnexpected, err: err}
	}
	if f.promOut != "" {
		if err := export.WriteTextfile(f.promOut, report); err != nil {
			return nil, &exitError{code: exitCodeUnexpected, err: err}
		}
	}
	if cfg.Influx.URL != "" {
		publishInflux(ctx, cfg.Influx, report, log)
	}

	if verdict.StatusOrdinal(report.Summary.Overall) >= verdict.StatusOrdinal(failOn) {
		return report, &exitError{
			code: exitCodeFailOn,
			err:  fmt.Errorf("overall status %s meets --fail-on %s", report.Summary.Overall, failOn),
		}
	}
	return report, nil
}

// loadConfig merges defaults, the config file, the environment and flags.
func loadConfig(f reportFlags) (config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return cfg, badInput("%w", err)
	}
	if f.synthesisDir != "" {
		cfg.SynthesisDir = f.synthesisDir
	}
	if f.netlists != nil {
		cfg.Netlists = f.netlists
	}
	if f.profileName != "" {
		cfg.Profile = f.profileName
	}
	if f.title != "" {
		cfg.Title = f.title
	}
	if f.historyDir != "" {
		cfg.HistoryDir = f.historyDir
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.strict {
		cfg.Strict = true
	}
	if f.advisor {
		cfg.Advisor.Enabled = true
	}
	if f.advisorModel != "" {
		cfg.Advisor.Model = f.advisorModel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, badInput("%w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, f reportFlags) (*slog.Logger, error) {
	return logging.New(logging.Config{Level: cfg.LogLevel, JSON: f.logJSON, Writer: f.stderr})
}

// applyHistory attaches the comparison with the previous run of the same
// profile, then records this run.
func applyHistory(ctx context.Context, dir string, report *schema.Report, log *slog.Logger) error {
	hcfg := history.DefaultConfig(dir)
	hcfg.Logger = log
	store, err := history.Open(hcfg)
	if err != nil {
		return err
	}
	defer store.Close()

	prev, ok, err := store.Latest(ctx, report.Input.Profile)
	if err != nil {
		return err
	}
	if ok {
		report.Baseline = history.Compare(prev, report)
	}
	snap, err := store.Record(ctx, report)
	if err != nil {
		return err
	}
	log.Debug("run recorded", "run_id", snap.RunID, "profile", snap.Profile)
	return nil
}

func publishInflux(ctx context.Context, ic config.InfluxConfig, report *schema.Report, log *slog.Logger) {
	pub, err := export.NewPublisher(ic.URL, ic.Token, ic.Org, ic.Bucket)
	if err != nil {
		log.Warn("influx publisher not created", "error", err)
		return
	}
	defer pub.Close()
	if err := pub.Publish(ctx, report); err != nil {
		log.Warn("influx publish failed", "error", err)
	}
}

// writeReport renders report in format to f.out, or to stdout when no path
// is given. With a path and an interactive stdout, a one-line summary is
// echoed.
func writeReport(f reportFlags, format string, report *schema.Report) error {
	var data []byte
	switch format {
	case "json":
		b, err := render.RenderJSON(report)
		if err != nil {
			return err
		}
		data = append(b, '\n')
	default:
		data = []byte(render.RenderMarkdown(report))
	}

	if f.out == "" {
		_, err := f.stdout.Write(data)
		return err
	}
	if err := render.WriteFile(f.out, data); err != nil {
		return err
	}
	if isTerminal(f.stdout) {
		s := report.Summary
		fmt.Fprintf(f.stdout, "%s: %d passed, %d warnings, %d failures, %d no data -> %s\n",
			s.Overall, s.PassCount, s.WarnCount, s.FailCount, s.NoDataCount, f.out)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
