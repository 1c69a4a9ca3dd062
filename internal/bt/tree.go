package bt

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TickEvent is published after every ExecuteTick.
type TickEvent struct {
	TreeID   uuid.UUID
	Tree     string
	Seq      uint64
	Status   Status
	Duration time.Duration
}

// TickObserver receives tick events, synchronously, after each tick.
type TickObserver func(TickEvent)

// TreeOption configures a Tree.
type TreeOption func(t *Tree)

// WithBlackboard sets the root scope. By default the tree creates its own.
func WithBlackboard(bb *Blackboard) TreeOption {
	return func(t *Tree) { t.bb = bb }
}

// WithLogger sets the tree's logger. By default slog.Default() is used.
func WithLogger(logger *slog.Logger) TreeOption {
	return func(t *Tree) { t.logger = logger }
}

// WithName labels the tree in logs, events, and metrics.
func WithName(name string) TreeOption {
	return func(t *Tree) { t.name = name }
}

// WithStatusObserver subscribes o to every node status change.
func WithStatusObserver(o StatusObserver) TreeOption {
	return func(t *Tree) { t.statusObservers = append(t.statusObservers, o) }
}

// WithTickObserver subscribes o to tick events.
func WithTickObserver(o TickObserver) TreeOption {
	return func(t *Tree) { t.tickObservers = append(t.tickObservers, o) }
}

// Tree owns a root node and its blackboard, and is the only entry point that
// ticks it. Ticks must not overlap: a tick that starts while another one is
// in flight is rejected as a contract violation.
type Tree struct {
	id     uuid.UUID
	name   string
	root   Node
	bb     *Blackboard
	logger *slog.Logger

	mu              sync.RWMutex
	statusObservers []StatusObserver
	tickObservers   []TickObserver

	ticking atomic.Bool
	ticks   atomic.Uint64
}

// NewTree takes ownership of root and binds the root scope to every node
// outside nested subtrees.
func NewTree(root Node, opts ...TreeOption) (*Tree, error) {
	t := &Tree{id: uuid.New()}
	for _, opt := range opts {
		opt(t)
	}
	if t.name == "" {
		t.name = nodeName(root)
	}
	if root == nil {
		return nil, constructionErrorf(t.name, ErrNilChild, "tree root")
	}
	if err := adopt("tree:"+t.name, root); err != nil {
		return nil, constructionErrorf(t.name, err, "tree root")
	}
	if t.bb == nil {
		t.bb = new(Blackboard)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.root = root
	attachScope(root, t.bb)
	attachObserver(root, t.publishStatus)
	return t, nil
}

func (t *Tree) ID() uuid.UUID { return t.id }

func (t *Tree) Name() string { return t.name }

func (t *Tree) Root() Node { return t.root }

// Blackboard returns the root scope.
func (t *Tree) Blackboard() *Blackboard { return t.bb }

// Status returns the root's cached status.
func (t *Tree) Status() Status { return t.root.Status() }

// TickCount returns the number of completed ticks.
func (t *Tree) TickCount() uint64 { return t.ticks.Load() }

// Nodes returns every node, parents before children.
func (t *Tree) Nodes() []Node {
	var nodes []Node
	_ = Walk(t.root, func(n Node) error {
		nodes = append(nodes, n)
		return nil
	})
	return nodes
}

// Subscribe adds a status observer after construction.
func (t *Tree) Subscribe(o StatusObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusObservers = append(t.statusObservers, o)
}

// SubscribeTicks adds a tick observer after construction.
func (t *Tree) SubscribeTicks(o TickObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tickObservers = append(t.tickObservers, o)
}

// ExecuteTick ticks the root once and returns its status. Running means the
// caller should tick again; Success and Failure end the episode, and the next
// ExecuteTick starts a new one.
func (t *Tree) ExecuteTick() Status {
	if !t.ticking.CompareAndSwap(false, true) {
		checkInvariant(&InvariantError{Node: t.name, Reason: "overlapping ticks"})
		return Failure
	}
	defer t.ticking.Store(false)

	start := time.Now()
	status := tickChecked(t.root)
	seq := t.ticks.Add(1)

	t.logger.Debug("[BT] tick", "tree", t.name, "seq", seq, "status", status)

	t.mu.RLock()
	observers := t.tickObservers
	t.mu.RUnlock()
	if len(observers) > 0 {
		ev := TickEvent{TreeID: t.id, Tree: t.name, Seq: seq, Status: status, Duration: time.Since(start)}
		for _, o := range observers {
			o(ev)
		}
	}
	return status
}

// Halt halts the whole tree, synchronously.
func (t *Tree) Halt() {
	t.root.Halt()
	t.logger.Debug("[BT] halted", "tree", t.name)
}

func (t *Tree) publishStatus(ev StatusChange) {
	t.mu.RLock()
	observers := t.statusObservers
	t.mu.RUnlock()
	for _, o := range observers {
		o(ev)
	}
}

// NewStatusLogger returns an observer that logs every status change at debug
// level.
func NewStatusLogger(logger *slog.Logger) StatusObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ev StatusChange) {
		logger.Debug("[BT] status",
			"node", ev.Node.Name,
			"kind", ev.Node.Kind.String(),
			"from", ev.Previous,
			"to", ev.Current)
	}
}
