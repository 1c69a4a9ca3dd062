package leaves

import (
	"log/slog"

	"github.com/joeycumines/btcore/internal/bt"
	gobt "github.com/joeycumines/go-behaviortree"
)

// FromBehaviorTree wraps a go-behaviortree node as a leaf, so existing
// go-behaviortree trees (sequences, selectors, memorized nodes) can run under a
// bt.Tree. Each tick ticks node once. An error, or an unknown status, is a
// Failure. go-behaviortree has no halt, so Halt only resets the status.
func FromBehaviorTree(name string, node gobt.Node) (*bt.Action, error) {
	if node == nil {
		return nil, &bt.ConstructionError{Node: name, Err: bt.ErrNilChild}
	}
	return bt.NewAction(name, nil, nil, func(bt.PortIO) bt.Status {
		status, err := node.Tick()
		if err != nil {
			slog.Warn("[BT] go-behaviortree node failed", "node", name, "error", err)
			return bt.Failure
		}
		return FromStatus(status)
	})
}

// FromStatus maps a go-behaviortree status. Unknown values are Failure.
func FromStatus(s gobt.Status) bt.Status {
	switch s {
	case gobt.Running:
		return bt.Running
	case gobt.Success:
		return bt.Success
	default:
		return bt.Failure
	}
}

// ToStatus maps a status to go-behaviortree. Idle has no counterpart and is
// reported as Failure.
func ToStatus(s bt.Status) gobt.Status {
	switch s {
	case bt.Running:
		return gobt.Running
	case bt.Success:
		return gobt.Success
	default:
		return gobt.Failure
	}
}
