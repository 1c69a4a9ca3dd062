package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/joeycumines/btcore/internal/bt"
	"github.com/joeycumines/btcore/internal/config"
	"github.com/joeycumines/btcore/internal/factory"
	"github.com/joeycumines/btcore/internal/metrics"
	"github.com/joeycumines/btcore/internal/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type runFlags struct {
	trees          []string
	all            bool
	interval       time.Duration
	maxTicks       int
	repeat         bool
	stopOnFailure  bool
	metricsAddr    string
	dumpBlackboard bool
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Build and tick trees until they stop",
		Long: `Builds the main tree of FILE (or the trees named with --tree, or all of them
with --all) and ticks each at its tick interval. Several trees run concurrently.
The command fails when any tree ends in failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], &f)
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVar(&f.trees, "tree", nil, "tree to run, repeatable (default: main_tree)")
	fl.BoolVar(&f.all, "all", false, "run every tree of the document")
	fl.DurationVar(&f.interval, "interval", 0, "tick period, overrides tick-interval")
	fl.IntVar(&f.maxTicks, "max-ticks", 0, "stop after this many ticks, overrides max-ticks")
	fl.BoolVar(&f.repeat, "repeat", false, "start a new episode whenever a tree completes")
	fl.BoolVar(&f.stopOnFailure, "stop-on-failure", false, "with --repeat, stop at the first failed episode")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fl.BoolVar(&f.dumpBlackboard, "dump-blackboard", false, "print each root blackboard as YAML when done")
	cmd.MarkFlagsMutuallyExclusive("tree", "all")
	return cmd
}

func (a *app) run(cmd *cobra.Command, path string, f *runFlags) error {
	ctx := cmd.Context()
	doc, err := factory.ParseFile(path)
	if err != nil {
		return err
	}
	fac, err := factory.New(doc, nil, factory.WithContext(ctx), factory.WithLogger(a.logger))
	if err != nil {
		return err
	}

	ids := f.trees
	switch {
	case f.all:
		ids = fac.TreeIDs()
	case len(ids) == 0:
		id, err := fac.MainTree()
		if err != nil {
			return err
		}
		ids = []string{id}
	}

	var collector *metrics.Collector
	addr := a.settings.MetricsAddr
	if cmd.Flags().Changed("metrics-addr") {
		addr = f.metricsAddr
	}
	if addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if collector, err = metrics.NewCollector(reg); err != nil {
			return err
		}
		_, stop, err := serveMetrics(addr, reg, a.logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	jobs := make([]runner.Job, 0, len(ids))
	for _, id := range ids {
		opts, err := a.runOptions(cmd, id, f)
		if err != nil {
			return fmt.Errorf("tree %s: %w", id, err)
		}
		tree, err := fac.CreateTree(id, bt.WithStatusObserver(bt.NewStatusLogger(a.logger)))
		if err != nil {
			return err
		}
		if collector != nil {
			collector.Instrument(tree)
		}
		jobs = append(jobs, runner.Job{Tree: tree, Options: opts})
	}

	var results []runner.Result
	if len(jobs) == 1 {
		var res runner.Result
		res, err = runner.Run(ctx, jobs[0].Tree, jobs[0].Options)
		results = []runner.Result{res}
	} else {
		results, err = runner.RunAll(ctx, jobs)
	}
	if err != nil {
		return err
	}

	var failed []error
	for i, res := range results {
		_, _ = fmt.Fprintf(a.stdout, "%s: %s (%s after %d ticks, %d episodes)\n",
			res.Tree, res.Status, res.Reason, res.Ticks, res.Episodes)
		if f.dumpBlackboard {
			if err := dumpBlackboard(a, jobs[i].Tree); err != nil {
				return err
			}
		}
		if res.Status == bt.Failure {
			failed = append(failed, fmt.Errorf("tree %s failed", res.Tree))
		}
	}
	return errors.Join(failed...)
}

// runOptions resolves the options of tree: flags, then the environment, the
// tree's config section, global config, and defaults.
func (a *app) runOptions(cmd *cobra.Command, tree string, f *runFlags) (runner.Options, error) {
	ts, err := a.schema.TreeSettings(a.cfg, tree)
	if err != nil {
		return runner.Options{}, err
	}
	fl := cmd.Flags()
	if fl.Changed("interval") {
		ts.TickInterval = f.interval
	}
	if fl.Changed("max-ticks") {
		ts.MaxTicks = f.maxTicks
	}
	if fl.Changed("repeat") {
		ts.Repeat = f.repeat
	}
	if fl.Changed("stop-on-failure") {
		ts.StopOnFailure = f.stopOnFailure
	}
	return toRunnerOptions(ts, a.logger), nil
}

func toRunnerOptions(ts config.TreeSettings, logger *slog.Logger) runner.Options {
	return runner.Options{
		Interval:      ts.TickInterval,
		MaxTicks:      ts.MaxTicks,
		Repeat:        ts.Repeat,
		StopOnFailure: ts.StopOnFailure,
		Logger:        logger,
	}
}

func dumpBlackboard(a *app, tree *bt.Tree) error {
	out, err := yaml.Marshal(map[string]any{tree.Name(): tree.Blackboard().Snapshot()})
	if err != nil {
		return fmt.Errorf("failed to encode blackboard: %w", err)
	}
	_, err = a.stdout.Write(out)
	return err
}

// serveMetrics serves reg at /metrics until stop is called, and returns the
// address it listens on.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[Metrics] server failed", "addr", addr, "error", err)
		}
	}()
	bound := ln.Addr().String()
	logger.Info("[Metrics] serving", "addr", bound)
	return bound, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, nil
}
