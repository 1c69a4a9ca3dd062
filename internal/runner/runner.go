// Package runner drives trees on a fixed tick period, using go-behaviortree
// tickers, and runs groups of trees under one go-behaviortree manager.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joeycumines/btcore/internal/bt"
	"github.com/joeycumines/btcore/internal/leaves"
	gobt "github.com/joeycumines/go-behaviortree"
)

// Reason says why a run stopped.
type Reason int

const (
	// ReasonCompleted: the tree finished an episode, and repeat was off.
	ReasonCompleted Reason = iota
	// ReasonFailure: an episode failed with stop-on-failure set.
	ReasonFailure
	// ReasonMaxTicks: the tick budget ran out.
	ReasonMaxTicks
	// ReasonCancelled: the context was cancelled or the run was stopped.
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonCompleted:
		return "completed"
	case ReasonFailure:
		return "failure"
	case ReasonMaxTicks:
		return "max-ticks"
	case ReasonCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown reason (%d)", int(r))
	}
}

// Options control a run.
type Options struct {
	// Interval is the tick period. Required.
	Interval time.Duration
	// MaxTicks stops the run after this many ticks; 0 means no limit.
	MaxTicks int
	// Repeat starts a new episode each time the tree completes.
	Repeat bool
	// StopOnFailure ends a repeating run at the first failed episode.
	StopOnFailure bool
	Logger        *slog.Logger
}

// Result summarises a finished run.
type Result struct {
	Tree     string
	Status   bt.Status // the last tick's status
	Ticks    int
	Episodes int
	Reason   Reason
}

var (
	errEpisodeDone = errors.New("episode done")
	errMaxTicks    = errors.New("max ticks reached")
)

// AsNode exposes tree as a go-behaviortree node: each tick of the node is one
// ExecuteTick.
func AsNode(tree *bt.Tree) gobt.Node {
	return gobt.New(func([]gobt.Node) (gobt.Status, error) {
		return leaves.ToStatus(tree.ExecuteTick()), nil
	})
}

// run is the accounting around one tree's ticks, shared between the ticker
// goroutine and the caller waiting for it.
type run struct {
	tree *bt.Tree
	opts Options

	mu       sync.Mutex
	status   bt.Status
	ticks    int
	episodes int
	failed   bool
}

func (r *run) node() gobt.Node {
	return gobt.New(func([]gobt.Node) (gobt.Status, error) {
		status := r.tree.ExecuteTick()

		r.mu.Lock()
		r.status = status
		r.ticks++
		if status.Completed() {
			r.episodes++
			r.failed = status == bt.Failure
		}
		ticks := r.ticks
		r.mu.Unlock()

		if status.Completed() && !r.opts.Repeat {
			return leaves.ToStatus(status), errEpisodeDone
		}
		if r.opts.MaxTicks > 0 && ticks >= r.opts.MaxTicks {
			return leaves.ToStatus(status), errMaxTicks
		}
		return leaves.ToStatus(status), nil
	})
}

func (r *run) ticker(ctx context.Context) gobt.Ticker {
	if r.opts.Repeat && r.opts.StopOnFailure {
		return gobt.NewTickerStopOnFailure(ctx, r.opts.Interval, r.node())
	}
	return gobt.NewTicker(ctx, r.opts.Interval, r.node())
}

// finish halts a tree left mid-episode and builds the result. The ticker must
// be done.
func (r *run) finish(err error) (Result, error) {
	r.mu.Lock()
	res := Result{Tree: r.tree.Name(), Status: r.status, Ticks: r.ticks, Episodes: r.episodes}
	failed := r.failed
	r.mu.Unlock()

	switch {
	case errors.Is(err, errEpisodeDone):
		res.Reason, err = ReasonCompleted, nil
	case errors.Is(err, errMaxTicks):
		res.Reason, err = ReasonMaxTicks, nil
	case err == nil && failed && r.opts.StopOnFailure && r.opts.Repeat && res.Status == bt.Failure:
		res.Reason = ReasonFailure
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.Reason, err = ReasonCancelled, nil
	}

	if r.tree.Status() == bt.Running {
		r.tree.Halt()
	}
	logger := r.opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("[Runner] tree stopped",
		"tree", res.Tree,
		"reason", res.Reason,
		"status", res.Status,
		"ticks", res.Ticks,
		"episodes", res.Episodes)
	return res, err
}

func validate(opts Options) error {
	if opts.Interval <= 0 {
		return fmt.Errorf("runner: interval must be positive, got %s", opts.Interval)
	}
	if opts.MaxTicks < 0 {
		return fmt.Errorf("runner: max ticks cannot be negative, got %d", opts.MaxTicks)
	}
	return nil
}

// Run ticks tree every opts.Interval until it stops, and blocks until then.
// A tree still Running when the run stops is halted. Cancelling ctx is a
// normal stop (ReasonCancelled); the error is reserved for unexpected ticker
// failures.
func Run(ctx context.Context, tree *bt.Tree, opts Options) (Result, error) {
	if err := validate(opts); err != nil {
		return Result{Tree: tree.Name()}, err
	}
	r := &run{tree: tree, opts: opts}
	ticker := r.ticker(ctx)
	<-ticker.Done()
	return r.finish(ticker.Err())
}

// Job is one tree of a group run.
type Job struct {
	Tree    *bt.Tree
	Options Options
}

// groupTicker hides the errors that end a run normally from the manager,
// which would otherwise stop the whole group.
type groupTicker struct{ gobt.Ticker }

func (t groupTicker) Err() error {
	err := t.Ticker.Err()
	switch {
	case errors.Is(err, errEpisodeDone),
		errors.Is(err, errMaxTicks),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return nil
	}
	return err
}

// RunAll runs every job concurrently, each tree on its own ticker, grouped
// under a go-behaviortree Manager. It returns once every tree has stopped,
// with results in job order. A ticker failure stops the whole group.
func RunAll(ctx context.Context, jobs []Job) ([]Result, error) {
	for _, job := range jobs {
		if err := validate(job.Options); err != nil {
			return nil, fmt.Errorf("tree %s: %w", job.Tree.Name(), err)
		}
	}

	manager := gobt.NewManager()
	defer func() {
		manager.Stop()
		<-manager.Done()
	}()

	runs := make([]*run, 0, len(jobs))
	tickers := make([]gobt.Ticker, 0, len(jobs))
	for _, job := range jobs {
		r := &run{tree: job.Tree, opts: job.Options}
		ticker := r.ticker(ctx)
		runs = append(runs, r)
		tickers = append(tickers, ticker)
		if err := manager.Add(groupTicker{ticker}); err != nil {
			for _, t := range tickers {
				t.Stop()
				<-t.Done()
			}
			return nil, fmt.Errorf("failed to add ticker to manager: %w", err)
		}
	}

	results := make([]Result, len(runs))
	var errs []error
	for i, r := range runs {
		<-tickers[i].Done()
		res, err := r.finish(tickers[i].Err())
		results[i] = res
		if err != nil {
			errs = append(errs, fmt.Errorf("tree %s: %w", res.Tree, err))
		}
	}
	return results, errors.Join(errs...)
}
