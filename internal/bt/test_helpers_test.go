package bt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// scripted is a leaf that returns script[i] on its i-th tick, repeating the
// last entry once the script runs out.
type scripted struct {
	NodeBase
	script []Status
	ticks  int
	halts  int // halts received while Running
}

func newScripted(t *testing.T, name string, script ...Status) *scripted {
	t.Helper()
	require.NotEmpty(t, script)
	base, err := NewNodeBase(name, KindAction, nil, nil)
	require.NoError(t, err)
	return &scripted{NodeBase: base, script: script}
}

func (s *scripted) Tick() Status {
	i := s.ticks
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.ticks++
	s.SetStatus(s.script[i])
	return s.script[i]
}

func (s *scripted) Halt() {
	if s.Status() == Running {
		s.halts++
	}
	s.SetStatus(Idle)
}

// recorder is a leaf that reads port "in", records it, and writes "out".
type recorder struct {
	*Action
	seen []any
	errs []error
}

func newRecorder(t *testing.T, name string, remap Remapping, out func(in any) any) *recorder {
	t.Helper()
	r := &recorder{}
	a, err := NewAction(name,
		PortsList{InputPort("in"), OutputPort("out")},
		remap,
		func(io PortIO) Status {
			v, err := io.Input("in")
			if err != nil {
				r.errs = append(r.errs, err)
				return Failure
			}
			r.seen = append(r.seen, v)
			if out != nil {
				if err := io.SetOutput("out", out(v)); err != nil {
					r.errs = append(r.errs, err)
					return Failure
				}
			}
			return Success
		})
	require.NoError(t, err)
	r.Action = a
	return r
}

func mustTree(t *testing.T, root Node, opts ...TreeOption) *Tree {
	t.Helper()
	tree, err := NewTree(root, opts...)
	require.NoError(t, err)
	return tree
}

// requireAllIdle asserts that every node under root is Idle.
func requireAllIdle(t *testing.T, root Node) {
	t.Helper()
	require.NoError(t, Walk(root, func(n Node) error {
		require.Equalf(t, Idle, n.Status(), "node %q", n.Name())
		return nil
	}))
}
