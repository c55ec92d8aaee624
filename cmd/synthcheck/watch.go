package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/synthcheck/internal/watch"
)

func newWatchCmd() *cobra.Command {
	f := &reportFlags{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun the report whenever synthesis summaries or netlists change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.stdout, f.stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return runWatch(cmd.Context(), *f, debounce)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&f.synthesisDir, "synthesis-dir", "", "synthesis output directory containing reports/")
	cmd.Flags().StringArrayVar(&f.netlists, "netlist", nil, "structural netlist to scan (repeatable)")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a rerun")
	return cmd
}

// runWatch runs the report once, then again after every settled batch of
// changes until ctx is cancelled. Threshold exits are logged and watching
// continues.
func runWatch(ctx context.Context, f reportFlags, debounce time.Duration) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, f)
	if err != nil {
		return badInput("%w", err)
	}

	once := func() error {
		report, err := runReportOnce(ctx, f)
		var ee *exitError
		if errors.As(err, &ee) && ee.code == exitCodeFailOn {
			log.Warn("fail-on threshold met", "overall", string(report.Summary.Overall))
			return nil
		}
		return err
	}
	if err := once(); err != nil {
		return err
	}

	var dirs []string
	if cfg.SynthesisDir != "" {
		dirs = append(dirs, filepath.Join(cfg.SynthesisDir, cfg.ReportsSubdir))
		// Discovered netlists are picked up from their directory.
		if len(cfg.Netlists) == 0 {
			nd := filepath.Join(cfg.SynthesisDir, cfg.NetlistsSubdir)
			if info, err := os.Stat(nd); err == nil && info.IsDir() {
				dirs = append(dirs, nd)
			}
		}
	}
	w, err := watch.New(watch.Options{
		Dirs:     dirs,
		Files:    cfg.Netlists,
		Ignore:   cfg.Ignore,
		Debounce: debounce,
		Logger:   log,
	})
	if err != nil {
		return badInput("%w", err)
	}
	defer w.Close()

	log.Info("watching for changes", "dirs", dirs, "netlists", len(cfg.Netlists))
	return w.Run(ctx, func(_ context.Context, changed []string) error {
		log.Info("artifacts changed, rerunning", "count", len(changed))
		return once()
	})
}
