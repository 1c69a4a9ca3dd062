package bt

import (
	"sort"
)

// SubtreeOption configures a Subtree.
type SubtreeOption func(s *subtreeOptions)

type subtreeOptions struct {
	remap     Remapping
	autoremap bool
}

// WithRemapping sets the explicit bindings of the subtree's keys: "{parentKey}"
// links the key to parentKey in the enclosing scope, anything else is a
// literal copied into the subtree scope.
func WithRemapping(remap Remapping) SubtreeOption {
	return func(s *subtreeOptions) {
		if s.remap == nil {
			s.remap = make(Remapping, len(remap))
		}
		for k, v := range remap {
			s.remap[k] = v
		}
	}
}

// WithAutoRemap links every key referenced inside the subtree that has no
// explicit binding to the identically named key of the enclosing scope.
func WithAutoRemap(enabled bool) SubtreeOption {
	return func(s *subtreeOptions) { s.autoremap = enabled }
}

// Subtree hosts an embedded tree as a single child running in its own
// blackboard scope. The scope is created on the first tick, as a child of the
// enclosing scope, and lives as long as the Subtree: a halted subtree that is
// ticked again sees the same entries.
type Subtree struct {
	Decorator
	links     map[string]string // subtree key -> enclosing scope key
	literals  map[string]string
	autoremap bool

	parentScope *Blackboard
	scope       *Blackboard
}

// NewSubtree creates a subtree node around root. The bindings are resolved
// here, once: malformed expressions are construction errors, and with
// autoremap the keys referenced by the ports of every node below root (down
// to, and including, the parent-side keys of nested subtrees) are linked.
func NewSubtree(name string, root Node, opts ...SubtreeOption) (*Subtree, error) {
	var o subtreeOptions
	for _, opt := range opts {
		opt(&o)
	}
	d, err := newDecorator(name, KindSubtree, nil, nil)
	if err != nil {
		return nil, err
	}
	s := &Subtree{
		Decorator: d,
		links:     make(map[string]string),
		literals:  make(map[string]string),
		autoremap: o.autoremap,
	}
	for key, expr := range o.remap {
		if key == "" {
			return nil, constructionErrorf(name, ErrMalformedBinding, "empty subtree key")
		}
		parentKey, isRef, err := parseReference(expr)
		if err != nil {
			return nil, constructionErrorf(name, err, "subtree key %q", key)
		}
		if isRef {
			s.links[key] = parentKey
		} else {
			s.literals[key] = expr
		}
	}
	if root == nil {
		return nil, constructionErrorf(name, ErrNilChild, "")
	}
	if err := s.SetChild(root); err != nil {
		return nil, err
	}
	if s.autoremap {
		for _, key := range referencedKeys(root) {
			if _, ok := s.links[key]; ok {
				continue
			}
			if _, ok := s.literals[key]; ok {
				continue
			}
			s.links[key] = key
		}
	}
	return s, nil
}

// referencedKeys collects the keys of root's scope that ports below root use.
func referencedKeys(root Node) []string {
	seen := make(map[string]bool)
	var visit func(n Node)
	visit = func(n Node) {
		if p, ok := n.(PortUser); ok {
			for _, k := range p.BlackboardKeys() {
				seen[k] = true
			}
		}
		if _, ok := n.(scopeBoundary); ok {
			return
		}
		if p, ok := n.(Parent); ok {
			for _, c := range p.Children() {
				visit(c)
			}
		}
	}
	visit(root)
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Subtree) ownsScope() {}

// AutoRemap reports whether autoremap is enabled.
func (s *Subtree) AutoRemap() bool { return s.autoremap }

// BlackboardKeys returns the enclosing scope keys the subtree is linked to.
func (s *Subtree) BlackboardKeys() []string {
	seen := make(map[string]bool, len(s.links))
	keys := make([]string, 0, len(s.links))
	for _, parentKey := range s.links {
		if !seen[parentKey] {
			seen[parentKey] = true
			keys = append(keys, parentKey)
		}
	}
	sort.Strings(keys)
	return keys
}

// Links returns a copy of the subtree key -> enclosing key table.
func (s *Subtree) Links() map[string]string {
	out := make(map[string]string, len(s.links))
	for k, v := range s.links {
		out[k] = v
	}
	return out
}

// Scope returns the subtree's own blackboard, nil before the first tick.
func (s *Subtree) Scope() *Blackboard { return s.scope }

func (s *Subtree) bindScope(bb *Blackboard) {
	s.NodeBase.bindScope(bb)
	s.parentScope = bb
	if s.scope != nil {
		s.scope.setParent(bb)
	}
}

func (s *Subtree) ensureScope() {
	if s.scope != nil {
		return
	}
	var scope *Blackboard
	if s.parentScope != nil {
		scope = s.parentScope.NewScope()
	} else {
		scope = new(Blackboard)
	}
	for key, parentKey := range s.links {
		scope.Remap(key, parentKey)
	}
	for key, literal := range s.literals {
		scope.Set(key, literal)
	}
	s.scope = scope
	attachScope(s.child, scope)
}

func (s *Subtree) Tick() Status {
	if s.child != nil {
		s.ensureScope()
	}
	status := s.tickChild()
	s.SetStatus(status)
	return status
}

func (s *Subtree) Halt() {
	s.haltChild()
	s.SetStatus(Idle)
}
