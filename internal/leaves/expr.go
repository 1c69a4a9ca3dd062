package leaves

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	"github.com/joeycumines/btcore/internal/bt"
)

// compile returns the cached program for expression, compiling on a miss.
// asBool selects the boolean-result variant, cached separately. keys are the
// blackboard keys the expression reads; a key named like a builtin (count,
// max, len) shadows it, so bare identifiers always resolve to the blackboard.
func compile(expression string, keys []string, asBool bool) (*vm.Program, error) {
	key := "any:" + expression
	opts := make([]expr.Option, 0, len(keys)+2)
	opts = append(opts, expr.AllowUndefinedVariables())
	if asBool {
		key = "bool:" + expression
		opts = append(opts, expr.AsBool())
	}
	if program, ok := programs.Get(key); ok {
		return program, nil
	}
	for _, k := range keys {
		opts = append(opts, expr.DisableBuiltin(k))
	}
	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, err
	}
	programs.Put(key, program)
	return program, nil
}

// identifiers lists the free variables of expression, sorted: the blackboard
// keys it reads.
func identifiers(expression string) ([]string, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, err
	}
	v := &identVisitor{seen: make(map[string]bool), declared: make(map[string]bool)}
	ast.Walk(&tree.Node, v)
	keys := make([]string, 0, len(v.seen))
	for k := range v.seen {
		if !v.declared[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type identVisitor struct {
	seen     map[string]bool
	declared map[string]bool
}

func (v *identVisitor) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		v.seen[n.Value] = true
	case *ast.VariableDeclaratorNode:
		v.declared[n.Name] = true
	}
}

// exprLeaf is the state shared by expression leaves.
type exprLeaf struct {
	name       string
	expression string
	program    *vm.Program
	keys       []string

	mu      sync.Mutex
	lastErr error
}

func newExprLeaf(name, expression string, asBool bool) (*exprLeaf, error) {
	if expression == "" {
		return nil, &bt.ConstructionError{Node: name, Err: fmt.Errorf("%w: empty expression", bt.ErrInvalidConfig)}
	}
	keys, err := identifiers(expression)
	if err != nil {
		return nil, &bt.ConstructionError{Node: name, Err: fmt.Errorf("%w: expression %q: %v", bt.ErrInvalidConfig, expression, err)}
	}
	program, err := compile(expression, keys, asBool)
	if err != nil {
		return nil, &bt.ConstructionError{Node: name, Err: fmt.Errorf("%w: expression %q: %v", bt.ErrInvalidConfig, expression, err)}
	}
	return &exprLeaf{name: name, expression: expression, program: program, keys: keys}, nil
}

// eval runs the program against the current values of the referenced keys.
// Keys missing from bb evaluate as nil.
func (l *exprLeaf) eval(bb *bt.Blackboard) (any, error) {
	env := make(map[string]any, len(l.keys))
	if bb != nil {
		for _, k := range l.keys {
			if v, err := bb.Get(k); err == nil {
				env[k] = v
			}
		}
	}
	result, err := expr.Run(l.program, env)

	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()

	if err != nil {
		slog.Warn("[BT] expression evaluation failed",
			"node", l.name,
			"expression", l.expression,
			"error", err)
		return nil, err
	}
	return result, nil
}

// LastError returns the error of the latest evaluation, nil if it succeeded.
func (l *exprLeaf) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Expression returns the source expression.
func (l *exprLeaf) Expression() string { return l.expression }

// ExprCondition succeeds when a boolean expression over blackboard entries is
// true, e.g. "battery > 20 && !docked". Every identifier in the expression is
// a blackboard key, so subtrees with autoremap link them like port keys.
type ExprCondition struct {
	*bt.Condition
	*exprLeaf
}

// NewExprCondition compiles expression; syntax and type errors, such as a
// non-boolean result, are construction errors.
func NewExprCondition(name, expression string) (*ExprCondition, error) {
	leaf, err := newExprLeaf(name, expression, true)
	if err != nil {
		return nil, err
	}
	c := &ExprCondition{exprLeaf: leaf}
	c.Condition, err = bt.NewCondition(name, nil, nil, func(bt.PortIO) bool {
		result, err := leaf.eval(c.Blackboard())
		ok, _ := result.(bool)
		return err == nil && ok
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// BlackboardKeys returns the keys the expression reads.
func (c *ExprCondition) BlackboardKeys() []string {
	return append([]string(nil), c.keys...)
}

// ExprScript evaluates an expression and writes its result to the "output"
// port, when bound. It fails only when evaluation fails.
type ExprScript struct {
	*bt.Action
	*exprLeaf
}

// ScriptPorts are the ports of ExprScript.
func ScriptPorts() bt.PortsList {
	return bt.PortsList{bt.OutputPort("output", bt.WithDescription("receives the expression's result"))}
}

// NewExprScript compiles expression and binds the output port with remap.
func NewExprScript(name, expression string, remap bt.Remapping) (*ExprScript, error) {
	leaf, err := newExprLeaf(name, expression, false)
	if err != nil {
		return nil, err
	}
	s := &ExprScript{exprLeaf: leaf}
	s.Action, err = bt.NewAction(name, ScriptPorts(), remap, func(io bt.PortIO) bt.Status {
		result, err := leaf.eval(s.Blackboard())
		if err != nil {
			return bt.Failure
		}
		if _, bound := remap["output"]; bound {
			if err := io.SetOutput("output", result); err != nil {
				slog.Warn("[BT] script output failed", "node", name, "error", err)
				return bt.Failure
			}
		}
		return bt.Success
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// BlackboardKeys returns the keys the expression reads plus the output key.
func (s *ExprScript) BlackboardKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, k := range append(s.Action.BlackboardKeys(), s.keys...) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
