package factory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Document is a YAML tree file: named trees, the one to run by default, and
// the initial entries of the root blackboard.
//
//	main_tree: main
//	blackboard:
//	  battery: 80
//	trees:
//	  - id: main
//	    root:
//	      type: ReactiveSequence
//	      children:
//	        - type: Condition
//	          ports: {expression: "battery > 20"}
//	        - type: SubTree
//	          subtree: patrol
//	          autoremap: true
type Document struct {
	MainTree   string         `yaml:"main_tree"`
	Blackboard map[string]any `yaml:"blackboard"`
	Trees      []TreeSpec     `yaml:"trees"`
}

// TreeSpec is one named tree.
type TreeSpec struct {
	ID   string   `yaml:"id"`
	Root NodeSpec `yaml:"root"`
}

// NodeSpec describes a node. Ports maps port names to port value expressions
// ("{key}" or a literal). For SubTree nodes, Subtree names the embedded tree
// and Remap binds its keys; the "__autoremap" remap entry is an alias of
// AutoRemap.
type NodeSpec struct {
	Type      string            `yaml:"type"`
	Name      string            `yaml:"name,omitempty"`
	Ports     map[string]string `yaml:"ports,omitempty"`
	Children  []NodeSpec        `yaml:"children,omitempty"`
	Subtree   string            `yaml:"subtree,omitempty"`
	Remap     map[string]string `yaml:"remap,omitempty"`
	AutoRemap bool              `yaml:"autoremap,omitempty"`
}

const autoremapAlias = "__autoremap"

// DisplayName returns Name, or Type when Name is empty.
func (n *NodeSpec) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Type
}

// subtreeBindings splits the remap table into explicit bindings and the
// autoremap flag.
func (n *NodeSpec) subtreeBindings() (map[string]string, bool, error) {
	autoremap := n.AutoRemap
	remap := make(map[string]string, len(n.Remap))
	for k, v := range n.Remap {
		if k == autoremapAlias {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, false, fmt.Errorf("invalid %s value %q", autoremapAlias, v)
			}
			autoremap = autoremap || b
			continue
		}
		remap[k] = v
	}
	return remap, autoremap, nil
}

// Parse decodes a document. Unknown fields are errors.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, fmt.Errorf("failed to parse tree document: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFile reads and decodes the document at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree document: %w", err)
	}
	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func (d *Document) validate() error {
	if len(d.Trees) == 0 {
		return ErrEmptyDocument
	}
	seen := make(map[string]bool, len(d.Trees))
	for i, t := range d.Trees {
		if t.ID == "" {
			return fmt.Errorf("tree %d: missing id", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateTree, t.ID)
		}
		seen[t.ID] = true
	}
	if d.MainTree != "" && !seen[d.MainTree] {
		return fmt.Errorf("main_tree: %w: %q", ErrUnknownTree, d.MainTree)
	}
	return nil
}
