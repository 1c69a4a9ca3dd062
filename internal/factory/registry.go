package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/joeycumines/btcore/internal/bt"
	"github.com/joeycumines/btcore/internal/leaves"
)

var (
	ErrEmptyDocument    = errors.New("tree document has no trees")
	ErrDuplicateTree    = errors.New("duplicate tree id")
	ErrUnknownTree      = errors.New("unknown tree")
	ErrUnknownType      = errors.New("unknown node type")
	ErrDuplicateType    = errors.New("node type already registered")
	ErrRecursiveSubtree = errors.New("recursive subtree")
	ErrChildCount       = errors.New("wrong number of children")
)

// BuildContext is handed to builders.
type BuildContext struct {
	// Context bounds asynchronous leaves.
	Context context.Context
	Logger  *slog.Logger
}

// BuilderFunc constructs a node of one type from its NodeSpec and its already
// built children.
type BuilderFunc func(bc BuildContext, spec *NodeSpec, children []bt.Node) (bt.Node, error)

// Registry maps node type names to builders. It is an explicit table passed
// to the Factory; there is no global registry.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]BuilderFunc
}

// NewRegistry returns a registry holding the built-in node types.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]BuilderFunc)}
	for typ, fn := range builtins {
		r.builders[typ] = fn
	}
	return r
}

// Register adds a node type.
func (r *Registry) Register(typ string, fn BuilderFunc) error {
	if typ == "" || fn == nil {
		return fmt.Errorf("register %q: empty type or nil builder", typ)
	}
	if typ == subtreeType {
		return fmt.Errorf("%w: %q", ErrDuplicateType, typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builders[typ]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateType, typ)
	}
	r.builders[typ] = fn
	return nil
}

// Has reports whether typ can be built.
func (r *Registry) Has(typ string) bool {
	if typ == subtreeType {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[typ]
	return ok
}

// Types returns the registered type names, sorted, including SubTree.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.builders)+1)
	for typ := range r.builders {
		types = append(types, typ)
	}
	types = append(types, subtreeType)
	sort.Strings(types)
	return types
}

func (r *Registry) lookup(typ string) (BuilderFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.builders[typ]
	return fn, ok
}

const subtreeType = "SubTree"

var builtins = map[string]BuilderFunc{
	"ReactiveSequence": func(_ BuildContext, spec *NodeSpec, children []bt.Node) (bt.Node, error) {
		if err := noPorts(spec); err != nil {
			return nil, err
		}
		return bt.NewReactiveSequence(spec.DisplayName(), children...)
	},
	"Retry": func(_ BuildContext, spec *NodeSpec, children []bt.Node) (bt.Node, error) {
		if err := childCount(spec, children, 1); err != nil {
			return nil, err
		}
		raw, ok := spec.Ports["num_attempts"]
		if !ok {
			return nil, &bt.ConstructionError{Node: spec.DisplayName(), Err: fmt.Errorf("%w: num_attempts", bt.ErrMissingRequiredPort)}
		}
		if bt.IsBlackboardPointer(raw) {
			return nil, &bt.ConstructionError{Node: spec.DisplayName(), Err: fmt.Errorf("%w: num_attempts must be a literal", bt.ErrInvalidConfig)}
		}
		n, err := bt.ConvertValue[int](raw)
		if err != nil {
			return nil, &bt.ConstructionError{Node: spec.DisplayName(), Err: fmt.Errorf("num_attempts: %w", err)}
		}
		if err := onlyPorts(spec, "num_attempts"); err != nil {
			return nil, err
		}
		return bt.NewRetry(spec.DisplayName(), n, children[0])
	},
	"SetBlackboard": leaf(func(_ BuildContext, spec *NodeSpec) (bt.Node, error) {
		return leaves.NewSetBlackboard(spec.DisplayName(), spec.Ports)
	}),
	"Condition": leaf(func(_ BuildContext, spec *NodeSpec) (bt.Node, error) {
		if err := onlyPorts(spec, "expression"); err != nil {
			return nil, err
		}
		return leaves.NewExprCondition(spec.DisplayName(), spec.Ports["expression"])
	}),
	"Script": leaf(func(_ BuildContext, spec *NodeSpec) (bt.Node, error) {
		remap := make(bt.Remapping, len(spec.Ports))
		for k, v := range spec.Ports {
			if k != "expression" {
				remap[k] = v
			}
		}
		return leaves.NewExprScript(spec.DisplayName(), spec.Ports["expression"], remap)
	}),
	"AlwaysSuccess": leaf(func(_ BuildContext, spec *NodeSpec) (bt.Node, error) {
		if err := noPorts(spec); err != nil {
			return nil, err
		}
		return leaves.NewAlwaysSuccess(spec.DisplayName())
	}),
	"AlwaysFailure": leaf(func(_ BuildContext, spec *NodeSpec) (bt.Node, error) {
		if err := noPorts(spec); err != nil {
			return nil, err
		}
		return leaves.NewAlwaysFailure(spec.DisplayName())
	}),
	"Log": leaf(func(bc BuildContext, spec *NodeSpec) (bt.Node, error) {
		return leaves.NewLog(spec.DisplayName(), spec.Ports, bc.Logger)
	}),
	"Sleep": leaf(func(bc BuildContext, spec *NodeSpec) (bt.Node, error) {
		return leaves.NewSleep(bc.Context, spec.DisplayName(), spec.Ports)
	}),
}

// leaf adapts a builder that takes no children.
func leaf(fn func(bc BuildContext, spec *NodeSpec) (bt.Node, error)) BuilderFunc {
	return func(bc BuildContext, spec *NodeSpec, children []bt.Node) (bt.Node, error) {
		if err := childCount(spec, children, 0); err != nil {
			return nil, err
		}
		return fn(bc, spec)
	}
}

func childCount(spec *NodeSpec, children []bt.Node, want int) error {
	if len(children) != want {
		return &bt.ConstructionError{
			Node: spec.DisplayName(),
			Err:  fmt.Errorf("%w: %s takes %d, got %d", ErrChildCount, spec.Type, want, len(children)),
		}
	}
	return nil
}

func noPorts(spec *NodeSpec) error { return onlyPorts(spec) }

func onlyPorts(spec *NodeSpec, allowed ...string) error {
	for k := range spec.Ports {
		if !slices.Contains(allowed, k) {
			return &bt.ConstructionError{Node: spec.DisplayName(), Err: fmt.Errorf("%w: %q", bt.ErrUnknownPort, k)}
		}
	}
	return nil
}
