package bt

// Decorator is the base of single-child nodes.
type Decorator struct {
	NodeBase
	child Node
}

func newDecorator(name string, kind Kind, ports PortsList, remap Remapping) (Decorator, error) {
	base, err := NewNodeBase(name, kind, ports, remap)
	if err != nil {
		return Decorator{}, err
	}
	return Decorator{NodeBase: base}, nil
}

// SetChild attaches the only child. A second call fails with ErrChildAlreadySet.
func (d *Decorator) SetChild(child Node) error {
	if d.child != nil {
		return constructionErrorf(d.Name(), ErrChildAlreadySet, "")
	}
	if err := adopt(d.Name(), child); err != nil {
		return constructionErrorf(d.Name(), err, "")
	}
	d.child = child
	return nil
}

// Child returns the decorated node, nil until SetChild.
func (d *Decorator) Child() Node { return d.child }

func (d *Decorator) Children() []Node {
	if d.child == nil {
		return nil
	}
	return []Node{d.child}
}

// tickChild ticks the child; a missing child is a contract violation.
func (d *Decorator) tickChild() Status {
	if d.child == nil {
		checkInvariant(&InvariantError{Node: d.Name(), Reason: "decorator ticked without a child"})
		return Failure
	}
	return tickChecked(d.child)
}

func (d *Decorator) haltChild() { haltIfActive(d.child) }
