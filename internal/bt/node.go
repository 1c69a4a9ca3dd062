package bt

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Node is the contract shared by every tree element.
//
// Tick advances the node by exactly one step and never returns Idle. Halt
// forces the node, and every non-idle descendant, back to Idle before
// returning; it is safe in any state. Status returns the cached status.
type Node interface {
	Name() string
	Tick() Status
	Halt()
	Status() Status
}

// Parent is implemented by control and decorator nodes.
type Parent interface {
	Children() []Node
}

// PortUser is implemented by nodes that declare ports.
type PortUser interface {
	Ports() PortsList
	// BlackboardKeys returns the keys of the node's scope that its port
	// bindings reference, sorted.
	BlackboardKeys() []string
}

// Kind is the node category.
type Kind int

const (
	KindAction Kind = iota
	KindCondition
	KindControl
	KindDecorator
	KindSubtree
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindCondition:
		return "condition"
	case KindControl:
		return "control"
	case KindDecorator:
		return "decorator"
	case KindSubtree:
		return "subtree"
	default:
		return fmt.Sprintf("unknown kind (%d)", int(k))
	}
}

// NodeInfo identifies a node in events.
type NodeInfo struct {
	Name string
	UID  uuid.UUID
	Kind Kind
}

// StatusChange is published whenever a node's cached status changes.
type StatusChange struct {
	Time     time.Time
	Node     NodeInfo
	Previous Status
	Current  Status
}

// StatusObserver receives status changes, synchronously, on the tick goroutine.
type StatusObserver func(StatusChange)

// PortIO is the blackboard access a node gets through its declared ports.
type PortIO interface {
	// Input resolves a readable port: the bound blackboard key, the literal,
	// or the default. An unbound port or a missing key wraps ErrNotFound.
	Input(port string) (any, error)
	// SetOutput writes a writable port's bound blackboard key.
	SetOutput(port string, value any) error
}

// GetInput resolves port and converts the value to T.
func GetInput[T any](io PortIO, port string) (T, error) {
	v, err := io.Input(port)
	if err != nil {
		var zero T
		return zero, err
	}
	out, err := ConvertValue[T](v)
	if err != nil {
		return out, fmt.Errorf("port %q: %w", port, err)
	}
	return out, nil
}

// NodeBase carries the state every node has: identity, cached status, port
// bindings, and the blackboard scope the node was attached to. Concrete nodes
// embed it. It is not safe to copy after the node has been attached to a tree.
type NodeBase struct {
	name     string
	uid      uuid.UUID
	kind     Kind
	status   Status
	ports    PortsList
	bindings map[string]portBinding
	bb       *Blackboard
	owner    string
	owned    bool
	observer StatusObserver
}

// NewNodeBase validates and binds ports. Errors are *ConstructionError.
func NewNodeBase(name string, kind Kind, ports PortsList, remap Remapping) (NodeBase, error) {
	bindings, err := bindPorts(name, ports, remap)
	if err != nil {
		return NodeBase{}, err
	}
	return NodeBase{
		name:     name,
		uid:      uuid.New(),
		kind:     kind,
		ports:    ports,
		bindings: bindings,
	}, nil
}

func (n *NodeBase) Name() string { return n.name }

// UID is unique per node instance, even across instances of one subtree.
func (n *NodeBase) UID() uuid.UUID { return n.uid }

func (n *NodeBase) Kind() Kind { return n.kind }

func (n *NodeBase) Status() Status { return n.status }

// Info returns the node's identity.
func (n *NodeBase) Info() NodeInfo {
	return NodeInfo{Name: n.name, UID: n.uid, Kind: n.kind}
}

// SetStatus updates the cached status and notifies the tree's observers.
func (n *NodeBase) SetStatus(s Status) {
	prev := n.status
	n.status = s
	if prev != s && n.observer != nil {
		n.observer(StatusChange{Time: time.Now(), Node: n.Info(), Previous: prev, Current: s})
	}
}

// Ports returns the declared ports.
func (n *NodeBase) Ports() PortsList { return n.ports }

func (n *NodeBase) BlackboardKeys() []string {
	var keys []string
	seen := make(map[string]bool)
	for _, b := range n.bindings {
		if b.kind == bindKey && !seen[b.key] {
			seen[b.key] = true
			keys = append(keys, b.key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Blackboard returns the scope the node is attached to, nil before attachment.
func (n *NodeBase) Blackboard() *Blackboard { return n.bb }

func (n *NodeBase) Input(port string) (any, error) {
	b, ok := n.bindings[port]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPort, port)
	}
	if !b.port.Direction.readable() {
		return nil, fmt.Errorf("%w: read of %s port %q", ErrPortDirection, b.port.Direction, port)
	}
	switch b.kind {
	case bindKey:
		if n.bb == nil {
			return nil, fmt.Errorf("%w: port %q: node has no blackboard", ErrNotFound, port)
		}
		v, err := n.bb.Get(b.key)
		if err != nil {
			return nil, fmt.Errorf("port %q: %w", port, err)
		}
		return v, nil
	case bindLiteral:
		return b.literal, nil
	case bindDefault:
		return b.port.Default, nil
	default:
		return nil, fmt.Errorf("%w: port %q has no binding", ErrNotFound, port)
	}
}

func (n *NodeBase) SetOutput(port string, value any) error {
	b, ok := n.bindings[port]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPort, port)
	}
	if !b.port.Direction.writable() {
		return fmt.Errorf("%w: write of %s port %q", ErrPortDirection, b.port.Direction, port)
	}
	if b.kind != bindKey {
		return fmt.Errorf("%w: %q", ErrUnboundPort, port)
	}
	if n.bb == nil {
		return fmt.Errorf("%w: port %q: node has no blackboard", ErrUnboundPort, port)
	}
	n.bb.Set(b.key, value)
	return nil
}

func (n *NodeBase) bindScope(bb *Blackboard) { n.bb = bb }

func (n *NodeBase) setObserver(o StatusObserver) { n.observer = o }

func (n *NodeBase) claim(owner string) error {
	if n.owned {
		return fmt.Errorf("%w: %q is owned by %q", ErrChildOwned, n.name, n.owner)
	}
	n.owner, n.owned = owner, true
	return nil
}

func (n *NodeBase) release() { n.owner, n.owned = "", false }

// Internal capabilities, satisfied by embedding NodeBase.
type (
	scoped interface {
		bindScope(bb *Blackboard)
	}
	observed interface {
		setObserver(o StatusObserver)
	}
	ownable interface {
		claim(owner string) error
		release()
	}
	// scopeBoundary nodes create their own scope for their descendants.
	scopeBoundary interface {
		ownsScope()
	}
)

// adopt records owner as the parent of child. Nodes that do not embed
// NodeBase cannot be tracked and are accepted as is.
func adopt(owner string, child Node) error {
	if child == nil {
		return ErrNilChild
	}
	if o, ok := child.(ownable); ok {
		return o.claim(owner)
	}
	return nil
}

func disown(child Node) {
	if o, ok := child.(ownable); ok {
		o.release()
	}
}

// attachScope binds bb to n and its descendants, stopping at scope boundaries,
// which are bound to bb as their parent scope.
func attachScope(n Node, bb *Blackboard) {
	if s, ok := n.(scoped); ok {
		s.bindScope(bb)
	}
	if _, ok := n.(scopeBoundary); ok {
		return
	}
	if p, ok := n.(Parent); ok {
		for _, c := range p.Children() {
			attachScope(c, bb)
		}
	}
}

func attachObserver(root Node, o StatusObserver) {
	_ = Walk(root, func(n Node) error {
		if ob, ok := n.(observed); ok {
			ob.setObserver(o)
		}
		return nil
	})
}

// Walk visits root and its descendants depth first, parents before children.
// A non-nil error from fn stops the walk and is returned.
func Walk(root Node, fn func(n Node) error) error {
	if root == nil {
		return nil
	}
	if err := fn(root); err != nil {
		return err
	}
	if p, ok := root.(Parent); ok {
		for _, c := range p.Children() {
			if err := Walk(c, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// haltIfActive halts n unless it is already Idle.
func haltIfActive(n Node) {
	if n != nil && n.Status() != Idle {
		n.Halt()
	}
}

func nodeName(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.Name()
}
