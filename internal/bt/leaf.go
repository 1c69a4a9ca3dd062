package bt

// ActionFunc is the body of a synchronous action.
type ActionFunc func(io PortIO) Status

// ConditionFunc is the body of a condition.
type ConditionFunc func(io PortIO) bool

// Action is a leaf that runs fn on every tick. A fn that returns Running is
// ticked again on the next tick and must keep its own progress state.
type Action struct {
	NodeBase
	fn ActionFunc
}

// NewAction creates an action leaf.
func NewAction(name string, ports PortsList, remap Remapping, fn ActionFunc) (*Action, error) {
	if fn == nil {
		return nil, constructionErrorf(name, ErrInvalidConfig, "nil action func")
	}
	base, err := NewNodeBase(name, KindAction, ports, remap)
	if err != nil {
		return nil, err
	}
	return &Action{NodeBase: base, fn: fn}, nil
}

func (a *Action) Tick() Status {
	status := a.fn(&a.NodeBase)
	a.SetStatus(status)
	return status
}

func (a *Action) Halt() { a.SetStatus(Idle) }

// Condition is a leaf that maps fn to Success or Failure. It never runs.
type Condition struct {
	NodeBase
	fn ConditionFunc
}

// NewCondition creates a condition leaf.
func NewCondition(name string, ports PortsList, remap Remapping, fn ConditionFunc) (*Condition, error) {
	if fn == nil {
		return nil, constructionErrorf(name, ErrInvalidConfig, "nil condition func")
	}
	base, err := NewNodeBase(name, KindCondition, ports, remap)
	if err != nil {
		return nil, err
	}
	return &Condition{NodeBase: base, fn: fn}, nil
}

func (c *Condition) Tick() Status {
	status := Failure
	if c.fn(&c.NodeBase) {
		status = Success
	}
	c.SetStatus(status)
	return status
}

func (c *Condition) Halt() { c.SetStatus(Idle) }

// StatefulCallbacks are the phases of a StatefulAction.
type StatefulCallbacks struct {
	// OnStart runs on the first tick of an episode.
	OnStart ActionFunc
	// OnRunning runs on every following tick while the action is Running.
	OnRunning ActionFunc
	// OnHalted runs when a Running action is halted. Optional.
	OnHalted func()
}

// StatefulAction is an action with explicit start/resume/abort phases, for
// work that spans several ticks.
type StatefulAction struct {
	NodeBase
	cb StatefulCallbacks
}

// NewStatefulAction creates a stateful action leaf.
func NewStatefulAction(name string, ports PortsList, remap Remapping, cb StatefulCallbacks) (*StatefulAction, error) {
	if cb.OnStart == nil || cb.OnRunning == nil {
		return nil, constructionErrorf(name, ErrInvalidConfig, "OnStart and OnRunning are required")
	}
	base, err := NewNodeBase(name, KindAction, ports, remap)
	if err != nil {
		return nil, err
	}
	return &StatefulAction{NodeBase: base, cb: cb}, nil
}

func (s *StatefulAction) Tick() Status {
	var status Status
	if s.Status() == Running {
		status = s.cb.OnRunning(&s.NodeBase)
	} else {
		status = s.cb.OnStart(&s.NodeBase)
	}
	s.SetStatus(status)
	return status
}

func (s *StatefulAction) Halt() {
	if s.Status() == Running && s.cb.OnHalted != nil {
		s.cb.OnHalted()
	}
	s.SetStatus(Idle)
}
