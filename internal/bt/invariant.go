package bt

import (
	"log/slog"
)

// checkInvariant surfaces a contract violation. Builds tagged btdebug panic
// with the *InvariantError; other builds log it and let the caller degrade
// (an Idle tick result is reported as Failure).
func checkInvariant(err *InvariantError) {
	if debugAssertions {
		panic(err)
	}
	slog.Error("[BT] invariant violation", "node", err.Node, "reason", err.Reason)
}

// tickChecked ticks n and enforces the never-Idle-after-Tick rule.
func tickChecked(n Node) Status {
	status := n.Tick()
	if status == Idle {
		checkInvariant(&InvariantError{Node: nodeName(n), Reason: "tick returned idle"})
		return Failure
	}
	return status
}
