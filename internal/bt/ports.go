package bt

import (
	"fmt"
	"strings"
)

// PortDirection is the data flow direction of a port, relative to the node.
type PortDirection int

const (
	PortInput PortDirection = iota
	PortOutput
	PortBidirectional
)

func (d PortDirection) String() string {
	switch d {
	case PortInput:
		return "input"
	case PortOutput:
		return "output"
	case PortBidirectional:
		return "bidirectional"
	default:
		return fmt.Sprintf("unknown direction (%d)", int(d))
	}
}

func (d PortDirection) readable() bool { return d == PortInput || d == PortBidirectional }

func (d PortDirection) writable() bool { return d == PortOutput || d == PortBidirectional }

// PortInfo declares a named data dependency of a node. It never holds a value;
// values live on the blackboard or in the node's literal bindings.
type PortInfo struct {
	Name        string
	Direction   PortDirection
	Description string
	// Default is used when the port has no binding. A string default of the
	// form {key} is itself a blackboard reference.
	Default    any
	HasDefault bool
	// Required ports without a binding or a default fail construction.
	Required bool
}

// PortOption configures a PortInfo.
type PortOption func(p *PortInfo)

// WithDefault sets the value used when the port is left unbound.
func WithDefault(v any) PortOption {
	return func(p *PortInfo) {
		p.Default = v
		p.HasDefault = true
	}
}

// Required marks the port as mandatory.
func Required() PortOption {
	return func(p *PortInfo) { p.Required = true }
}

// WithDescription documents the port.
func WithDescription(s string) PortOption {
	return func(p *PortInfo) { p.Description = s }
}

// InputPort declares a port the node reads.
func InputPort(name string, opts ...PortOption) PortInfo {
	return newPort(name, PortInput, opts)
}

// OutputPort declares a port the node writes.
func OutputPort(name string, opts ...PortOption) PortInfo {
	return newPort(name, PortOutput, opts)
}

// BidirectionalPort declares a port the node both reads and writes.
func BidirectionalPort(name string, opts ...PortOption) PortInfo {
	return newPort(name, PortBidirectional, opts)
}

func newPort(name string, dir PortDirection, opts []PortOption) PortInfo {
	p := PortInfo{Name: name, Direction: dir}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// PortsList is the static port declaration of a node type.
type PortsList []PortInfo

// Lookup returns the port declared with name.
func (l PortsList) Lookup(name string) (PortInfo, bool) {
	for _, p := range l {
		if p.Name == name {
			return p, true
		}
	}
	return PortInfo{}, false
}

// Remapping binds port names to value expressions: "{key}" references a
// blackboard key in the node's scope, anything else is a literal.
type Remapping map[string]string

// IsBlackboardPointer reports whether expr has the {key} form.
func IsBlackboardPointer(expr string) bool {
	_, ok, err := parseReference(expr)
	return ok && err == nil
}

// StripBlackboardPointer returns the key of a {key} expression.
func StripBlackboardPointer(expr string) (string, bool) {
	key, ok, err := parseReference(expr)
	if err != nil || !ok {
		return "", false
	}
	return key, true
}

// parseReference returns ok=false for literals, and an error for expressions
// that look like a reference but are not well formed.
func parseReference(expr string) (key string, ok bool, err error) {
	s := strings.TrimSpace(expr)
	opens := strings.HasPrefix(s, "{")
	closes := strings.HasSuffix(s, "}")
	switch {
	case !opens && !closes:
		return "", false, nil
	case opens != closes:
		return "", false, fmt.Errorf("%w: unbalanced braces in %q", ErrMalformedBinding, expr)
	}
	key = strings.TrimSpace(s[1 : len(s)-1])
	if key == "" {
		return "", false, fmt.Errorf("%w: empty key in %q", ErrMalformedBinding, expr)
	}
	if strings.ContainsAny(key, "{}") {
		return "", false, fmt.Errorf("%w: nested braces in %q", ErrMalformedBinding, expr)
	}
	return key, true, nil
}

type bindingKind int

const (
	bindUnbound bindingKind = iota
	bindKey
	bindLiteral
	bindDefault
)

// portBinding is a port resolved at construction time.
type portBinding struct {
	port    PortInfo
	kind    bindingKind
	key     string
	literal string
}

func bindPorts(node string, ports PortsList, remap Remapping) (map[string]portBinding, error) {
	for name := range remap {
		if _, ok := ports.Lookup(name); !ok {
			return nil, constructionErrorf(node, ErrUnknownPort, "%q", name)
		}
	}
	bindings := make(map[string]portBinding, len(ports))
	for _, p := range ports {
		if p.Name == "" {
			return nil, constructionErrorf(node, ErrMalformedBinding, "port with empty name")
		}
		if _, dup := bindings[p.Name]; dup {
			return nil, constructionErrorf(node, ErrMalformedBinding, "port %q declared twice", p.Name)
		}
		b, err := bindPort(p, remap)
		if err != nil {
			return nil, &ConstructionError{Node: node, Err: err}
		}
		bindings[p.Name] = b
	}
	return bindings, nil
}

func bindPort(p PortInfo, remap Remapping) (portBinding, error) {
	b := portBinding{port: p}
	if expr, ok := remap[p.Name]; ok {
		key, isRef, err := parseReference(expr)
		if err != nil {
			return b, fmt.Errorf("port %q: %w", p.Name, err)
		}
		if isRef {
			b.kind, b.key = bindKey, key
			return b, nil
		}
		if p.Direction.writable() {
			return b, fmt.Errorf("%w: %s port %q bound to literal %q", ErrPortDirection, p.Direction, p.Name, expr)
		}
		b.kind, b.literal = bindLiteral, expr
		return b, nil
	}
	if p.HasDefault {
		if s, ok := p.Default.(string); ok {
			key, isRef, err := parseReference(s)
			if err != nil {
				return b, fmt.Errorf("port %q default: %w", p.Name, err)
			}
			if isRef {
				b.kind, b.key = bindKey, key
				return b, nil
			}
		}
		b.kind = bindDefault
		return b, nil
	}
	if p.Required {
		return b, fmt.Errorf("%w: %q", ErrMissingRequiredPort, p.Name)
	}
	return b, nil
}
