package bt

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a blackboard key misses the local scope and
	// every scope reachable through it. Lookups wrap it with the key.
	ErrNotFound = errors.New("blackboard key not found")

	// ErrMalformedBinding indicates a port value expression that opens a
	// blackboard reference without closing it, or references an empty key.
	ErrMalformedBinding = errors.New("malformed port binding")

	// ErrMissingRequiredPort indicates a required port with neither a binding
	// nor a default value.
	ErrMissingRequiredPort = errors.New("missing required port")

	// ErrUnknownPort indicates a binding (or an access) for a port the node
	// never declared.
	ErrUnknownPort = errors.New("unknown port")

	// ErrPortDirection indicates an access that the port direction forbids,
	// e.g. writing an input port, or binding an output port to a literal.
	ErrPortDirection = errors.New("port direction mismatch")

	// ErrUnboundPort indicates a write to an output port that has neither a
	// blackboard binding nor a blackboard-reference default.
	ErrUnboundPort = errors.New("port not bound to a blackboard key")

	// ErrInvalidConfig indicates a node parameter outside its valid range.
	ErrInvalidConfig = errors.New("invalid node configuration")

	// ErrNilChild is returned by constructors given a nil child.
	ErrNilChild = errors.New("nil child")

	// ErrChildAlreadySet is returned when a single-child decorator is given a
	// second child.
	ErrChildAlreadySet = errors.New("decorator child already set")

	// ErrChildOwned is returned when a node is attached to a second parent.
	ErrChildOwned = errors.New("child already owned by another node")

	// ErrConversion indicates a stored value that cannot be converted to the
	// requested type.
	ErrConversion = errors.New("value conversion failed")
)

// ConstructionError is returned by node constructors. Construction errors are
// fatal: the tree must not be ticked.
type ConstructionError struct {
	Node string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct node %q: %v", e.Node, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

func constructionErrorf(node string, err error, format string, args ...any) error {
	if format != "" {
		err = fmt.Errorf("%w: "+format, append([]any{err}, args...)...)
	}
	return &ConstructionError{Node: node, Err: err}
}

// InvariantError reports a broken node contract, e.g. a node returning Idle
// from Tick. See checkInvariant for how it is surfaced.
type InvariantError struct {
	Node   string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated by node %q: %s", e.Node, e.Reason)
}
