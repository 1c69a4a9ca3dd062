// Package factory builds behavior trees from YAML documents, using an explicit
// registry of node types.
package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/joeycumines/btcore/internal/bt"
)

// Option configures a Factory.
type Option func(f *Factory)

// WithContext bounds the asynchronous leaves of every tree built.
func WithContext(ctx context.Context) Option {
	return func(f *Factory) { f.bc.Context = ctx }
}

// WithLogger is passed to builders, and used by Log leaves.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) { f.bc.Logger = logger }
}

// Factory instantiates the trees of one document.
type Factory struct {
	registry *Registry
	doc      *Document
	trees    map[string]*TreeSpec
	bc       BuildContext
}

// New creates a factory for doc. A nil registry means NewRegistry().
func New(doc *Document, registry *Registry, opts ...Option) (*Factory, error) {
	if doc == nil {
		return nil, ErrEmptyDocument
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry()
	}
	f := &Factory{
		registry: registry,
		doc:      doc,
		trees:    make(map[string]*TreeSpec, len(doc.Trees)),
		bc:       BuildContext{Context: context.Background(), Logger: slog.Default()},
	}
	for _, opt := range opts {
		opt(f)
	}
	for i := range doc.Trees {
		f.trees[doc.Trees[i].ID] = &doc.Trees[i]
	}
	return f, nil
}

// Document returns the document the factory was created with.
func (f *Factory) Document() *Document { return f.doc }

// TreeIDs returns the tree IDs in document order.
func (f *Factory) TreeIDs() []string {
	ids := make([]string, len(f.doc.Trees))
	for i, t := range f.doc.Trees {
		ids[i] = t.ID
	}
	return ids
}

// MainTree returns main_tree, or the only tree of a single-tree document.
func (f *Factory) MainTree() (string, error) {
	if f.doc.MainTree != "" {
		return f.doc.MainTree, nil
	}
	if len(f.doc.Trees) == 1 {
		return f.doc.Trees[0].ID, nil
	}
	return "", errors.New("main_tree is required when the document has several trees")
}

// CreateMainTree builds the main tree.
func (f *Factory) CreateMainTree(opts ...bt.TreeOption) (*bt.Tree, error) {
	id, err := f.MainTree()
	if err != nil {
		return nil, err
	}
	return f.CreateTree(id, opts...)
}

// CreateTree builds a fresh instance of the tree id, named after it, and
// seeds its root blackboard with the document's entries. Every SubTree node
// gets its own copy of the referenced tree.
func (f *Factory) CreateTree(id string, opts ...bt.TreeOption) (*bt.Tree, error) {
	root, err := f.buildTree(id, nil)
	if err != nil {
		return nil, err
	}
	tree, err := bt.NewTree(root, append([]bt.TreeOption{bt.WithName(id), bt.WithLogger(f.bc.Logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	for k, v := range f.doc.Blackboard {
		tree.Blackboard().Set(k, v)
	}
	return tree, nil
}

// Validate builds every tree once and discards it, reporting every failure.
func (f *Factory) Validate() error {
	var errs []error
	for _, id := range f.TreeIDs() {
		if _, err := f.buildTree(id, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Factory) buildTree(id string, stack []string) (bt.Node, error) {
	spec, ok := f.trees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTree, id)
	}
	if slices.Contains(stack, id) {
		return nil, fmt.Errorf("%w: %v -> %s", ErrRecursiveSubtree, stack, id)
	}
	stack = append(stack, id)
	root, err := f.buildNode(&spec.Root, stack)
	if err != nil {
		return nil, fmt.Errorf("tree %q: %w", id, err)
	}
	return root, nil
}

func (f *Factory) buildNode(spec *NodeSpec, stack []string) (bt.Node, error) {
	if spec.Type == subtreeType {
		return f.buildSubtree(spec, stack)
	}
	if spec.Subtree != "" || len(spec.Remap) > 0 || spec.AutoRemap {
		return nil, fmt.Errorf("node %q: subtree, remap and autoremap only apply to %s", spec.DisplayName(), subtreeType)
	}
	build, ok := f.registry.lookup(spec.Type)
	if !ok {
		return nil, fmt.Errorf("node %q: %w: %q", spec.DisplayName(), ErrUnknownType, spec.Type)
	}
	children := make([]bt.Node, 0, len(spec.Children))
	for i := range spec.Children {
		child, err := f.buildNode(&spec.Children[i], stack)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return build(f.bc, spec, children)
}

func (f *Factory) buildSubtree(spec *NodeSpec, stack []string) (bt.Node, error) {
	if spec.Subtree == "" {
		return nil, fmt.Errorf("node %q: %s without subtree id", spec.DisplayName(), subtreeType)
	}
	if len(spec.Children) > 0 || len(spec.Ports) > 0 {
		return nil, fmt.Errorf("node %q: %s takes no children or ports", spec.DisplayName(), subtreeType)
	}
	remap, autoremap, err := spec.subtreeBindings()
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", spec.DisplayName(), err)
	}
	root, err := f.buildTree(spec.Subtree, stack)
	if err != nil {
		return nil, err
	}
	name := spec.Name
	if name == "" {
		name = spec.Subtree
	}
	return bt.NewSubtree(name, root, bt.WithRemapping(remap), bt.WithAutoRemap(autoremap))
}
