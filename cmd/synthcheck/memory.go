package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/synthcheck/internal/analyze"
	"github.com/dshills/synthcheck/internal/logging"
	"github.com/dshills/synthcheck/internal/render"
)

const defaultGateReport = "flow/yosys/gate_analysis_report.md"

type memoryFlags struct {
	synthesisDir  string
	reportsSubdir string
	gateReport    string
	project       string
	out           string
	logLevel      string

	stdout io.Writer
	stderr io.Writer
}

func newMemoryCmd() *cobra.Command {
	f := &memoryFlags{}
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Write the memory usage report for the memory interface and twiddle ROM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.stdout, f.stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return runMemory(cmd.Context(), *f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.synthesisDir, "synthesis-dir", "flow/synthesis", "synthesis output directory")
	fl.StringVar(&f.reportsSubdir, "reports-subdir", "reports", "summary directory relative to --synthesis-dir")
	fl.StringVar(&f.gateReport, "gate-report", defaultGateReport, "earlier gate analysis report; empty skips it")
	fl.StringVar(&f.project, "project", "FFT", "project name used in the heading")
	fl.StringVarP(&f.out, "out", "o", "", "output file (default stdout)")
	fl.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return cmd
}

func runMemory(ctx context.Context, f memoryFlags) error {
	if f.stdout == nil {
		f.stdout = os.Stdout
	}
	if f.stderr == nil {
		f.stderr = os.Stderr
	}
	log, err := logging.New(logging.Config{Level: f.logLevel, Writer: f.stderr})
	if err != nil {
		return badInput("%w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a, err := analyze.LoadMemory(analyze.MemoryOptions{
		Project:       f.project,
		SynthesisDir:  f.synthesisDir,
		ReportsSubdir: f.reportsSubdir,
		GateReport:    f.gateReport,
		Logger:        log,
	})
	if err != nil {
		return &exitError{code: exitCodeUnexpected, err: err}
	}
	if !a.Interface.Present {
		log.Warn("memory interface summary missing", "path", a.Interface.Path)
	}
	if !a.ROM.Present {
		log.Warn("twiddle ROM summary missing", "path", a.ROM.Path)
	}

	doc := render.RenderMemoryMarkdown(a)
	if f.out == "" {
		_, err := io.WriteString(f.stdout, doc)
		return err
	}
	if err := render.WriteFile(f.out, []byte(doc)); err != nil {
		return &exitError{code: exitCodeUnexpected, err: err}
	}
	log.Info("memory report written", "path", f.out)
	if isTerminal(f.stdout) {
		fmt.Fprintf(f.stdout, "memory report -> %s\n", f.out)
	}
	return nil
}
