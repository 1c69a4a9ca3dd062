package bt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// AsyncFunc is long-running leaf work. It runs on its own goroutine and must
// return promptly once ctx is cancelled. io may be used from that goroutine;
// blackboard access is synchronized.
type AsyncFunc func(ctx context.Context, io PortIO) (Status, error)

// asyncState represents the state of an asynchronous leaf execution.
type asyncState int

const (
	// asyncIdle indicates the leaf is ready to start execution.
	asyncIdle asyncState = iota
	// asyncRunning indicates the work is in flight.
	asyncRunning
	// asyncCompleted indicates the work finished and the result awaits collection.
	asyncCompleted
)

// AsyncAction runs an AsyncFunc in the background while the tree keeps
// ticking. The tick walk itself stays synchronous:
//   - Idle: on tick, starts the work and returns Running.
//   - Running: on tick, returns Running until the work completes.
//   - Completed: on tick, returns the work's status and resets to Idle.
//
// Halt cancels the work's context and waits for the goroutine to return, so
// no work outlives a halted ancestor. A generation counter discards results
// from work that was superseded by a halt.
//
// Errors from the work are logged and reported as Failure, and so is a
// non-terminal status (work cannot "keep running" after it returns).
type AsyncAction struct {
	NodeBase
	fn  AsyncFunc
	ctx context.Context

	mu sync.Mutex
	wg sync.WaitGroup

	state      asyncState
	generation uint64 // Monotonic dispatch identifier to reject stale completions
	lastStatus Status
	lastError  error
	cancel     context.CancelFunc
}

// NewAsyncAction creates an asynchronous action. ctx bounds every run: once
// it is cancelled the action fails instead of starting new work.
func NewAsyncAction(ctx context.Context, name string, ports PortsList, remap Remapping, fn AsyncFunc) (*AsyncAction, error) {
	if fn == nil {
		return nil, constructionErrorf(name, ErrInvalidConfig, "nil async func")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	base, err := NewNodeBase(name, KindAction, ports, remap)
	if err != nil {
		return nil, err
	}
	return &AsyncAction{NodeBase: base, fn: fn, ctx: ctx}, nil
}

func (a *AsyncAction) Tick() Status {
	status := a.advance()
	a.SetStatus(status)
	return status
}

func (a *AsyncAction) advance() Status {
	a.mu.Lock()
	switch a.state {
	case asyncIdle:
		if err := a.ctx.Err(); err != nil {
			a.mu.Unlock()
			slog.Warn("[BT] async action not started", "node", a.Name(), "error", err)
			return Failure
		}
		a.generation++
		gen := a.generation
		ctx, cancel := context.WithCancel(a.ctx)
		a.cancel = cancel
		a.state = asyncRunning
		a.wg.Add(1)
		a.mu.Unlock()
		go a.run(ctx, gen)
		return Running

	case asyncRunning:
		a.mu.Unlock()
		return Running

	case asyncCompleted:
		status, err := a.lastStatus, a.lastError
		a.resetLocked()
		a.mu.Unlock()
		if err != nil {
			slog.Warn("[BT] async action failed", "node", a.Name(), "error", err)
			return Failure
		}
		if !status.Completed() {
			slog.Warn("[BT] async action returned a non-terminal status", "node", a.Name(), "status", status)
			return Failure
		}
		return status

	default:
		a.mu.Unlock()
		return Failure
	}
}

func (a *AsyncAction) run(ctx context.Context, gen uint64) {
	defer a.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			a.finalize(gen, Failure, fmt.Errorf("panic in async action: %v", r))
		}
	}()
	status, err := a.fn(ctx, &a.NodeBase)
	if err == nil && ctx.Err() != nil && !status.Completed() {
		err = errors.New("execution cancelled")
	}
	a.finalize(gen, status, err)
}

// finalize records the result unless gen was superseded.
func (a *AsyncAction) finalize(gen uint64, status Status, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation {
		return
	}
	a.lastStatus = status
	a.lastError = err
	a.state = asyncCompleted
}

// resetLocked returns to Idle, releasing the run's context.
func (a *AsyncAction) resetLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.state = asyncIdle
	a.lastStatus = Idle
	a.lastError = nil
}

// Halt cancels in-flight work and blocks until it has returned.
func (a *AsyncAction) Halt() {
	a.mu.Lock()
	a.generation++
	a.resetLocked()
	a.mu.Unlock()
	a.wg.Wait()
	a.SetStatus(Idle)
}
