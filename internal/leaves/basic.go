// Package leaves provides the stock leaf nodes: constant results, blackboard
// writes, logging, timed waits, expression conditions and scripts, and an
// adapter for go-behaviortree nodes.
package leaves

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeycumines/btcore/internal/bt"
)

// NewAlwaysSuccess returns a leaf that always succeeds.
func NewAlwaysSuccess(name string) (*bt.Action, error) {
	return bt.NewAction(name, nil, nil, func(bt.PortIO) bt.Status { return bt.Success })
}

// NewAlwaysFailure returns a leaf that always fails.
func NewAlwaysFailure(name string) (*bt.Action, error) {
	return bt.NewAction(name, nil, nil, func(bt.PortIO) bt.Status { return bt.Failure })
}

// SetBlackboardPorts are the ports of the SetBlackboard leaf.
func SetBlackboardPorts() bt.PortsList {
	return bt.PortsList{
		bt.InputPort("value", bt.Required(), bt.WithDescription("value to write, a literal or {key}")),
		bt.BidirectionalPort("output_key", bt.Required(), bt.WithDescription("{key} receiving the value")),
	}
}

// NewSetBlackboard returns a leaf writing "value" to "output_key". It fails
// when "value" references a missing entry.
func NewSetBlackboard(name string, remap bt.Remapping) (*bt.Action, error) {
	return bt.NewAction(name, SetBlackboardPorts(), remap, func(io bt.PortIO) bt.Status {
		v, err := io.Input("value")
		if err != nil {
			slog.Warn("[BT] SetBlackboard: no value", "node", name, "error", err)
			return bt.Failure
		}
		if err := io.SetOutput("output_key", v); err != nil {
			slog.Warn("[BT] SetBlackboard: write failed", "node", name, "error", err)
			return bt.Failure
		}
		return bt.Success
	})
}

// LogPorts are the ports of the Log leaf.
func LogPorts() bt.PortsList {
	return bt.PortsList{bt.InputPort("message", bt.Required())}
}

// NewLog returns a leaf that logs "message" at info level and succeeds.
// logger defaults to slog.Default().
func NewLog(name string, remap bt.Remapping, logger *slog.Logger) (*bt.Action, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return bt.NewAction(name, LogPorts(), remap, func(io bt.PortIO) bt.Status {
		msg, err := bt.GetInput[string](io, "message")
		if err != nil {
			logger.Warn("[BT] Log: no message", "node", name, "error", err)
			return bt.Failure
		}
		logger.Info("[BT] "+msg, "node", name)
		return bt.Success
	})
}

// SleepPorts are the ports of the Sleep leaf.
func SleepPorts() bt.PortsList {
	return bt.PortsList{bt.InputPort("duration", bt.Required(), bt.WithDescription("e.g. 250ms, or {key}"))}
}

// NewSleep returns an asynchronous leaf that is Running for "duration", then
// succeeds. Halting it, or cancelling ctx, ends the wait early.
func NewSleep(ctx context.Context, name string, remap bt.Remapping) (*bt.AsyncAction, error) {
	return bt.NewAsyncAction(ctx, name, SleepPorts(), remap, func(ctx context.Context, io bt.PortIO) (bt.Status, error) {
		d, err := bt.GetInput[time.Duration](io, "duration")
		if err != nil {
			return bt.Failure, err
		}
		if d < 0 {
			return bt.Failure, fmt.Errorf("negative duration %s", d)
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return bt.Success, nil
		case <-ctx.Done():
			return bt.Failure, ctx.Err()
		}
	})
}
