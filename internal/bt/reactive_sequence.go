package bt

// ReactiveSequence succeeds only if every child succeeds, and re-evaluates all
// children from the first one on every tick. It keeps no memory of which
// child succeeded before, so a condition placed ahead of a long-running action
// is checked again on each tick, and a condition that stops holding aborts
// the action.
type ReactiveSequence struct {
	NodeBase
	children []Node
}

// NewReactiveSequence takes ownership of children; a child can have one parent.
func NewReactiveSequence(name string, children ...Node) (*ReactiveSequence, error) {
	base, err := NewNodeBase(name, KindControl, nil, nil)
	if err != nil {
		return nil, err
	}
	for i, child := range children {
		if err := adopt(name, child); err != nil {
			for _, c := range children[:i] {
				disown(c)
			}
			return nil, constructionErrorf(name, err, "child %d", i)
		}
	}
	return &ReactiveSequence{NodeBase: base, children: children}, nil
}

func (s *ReactiveSequence) Children() []Node {
	return append([]Node(nil), s.children...)
}

func (s *ReactiveSequence) Tick() Status {
	for i, child := range s.children {
		switch tickChecked(child) {
		case Running:
			// A later child may still be running from a previous tick, when
			// an earlier child has now gone back to Running.
			s.haltFrom(i + 1)
			s.SetStatus(Running)
			return Running
		case Failure:
			s.haltFrom(i)
			s.SetStatus(Failure)
			return Failure
		}
	}
	s.SetStatus(Success)
	return Success
}

func (s *ReactiveSequence) Halt() {
	s.haltFrom(0)
	s.SetStatus(Idle)
}

func (s *ReactiveSequence) haltFrom(index int) {
	for _, child := range s.children[index:] {
		haltIfActive(child)
	}
}
