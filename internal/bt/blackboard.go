package bt

import (
	"fmt"
	"sort"
	"sync"
)

// Blackboard is a scoped key-value store for behavior tree state.
//
// A scope owns its own entries and holds a non-owning pointer to the scope it
// was created from. Keys are isolated by default: a key missing from a scope
// is only looked up in the parent when the scope remaps it (see Remap), which
// is how subtrees share selected entries with the tree around them.
//
// Usage: Create a root scope with new(Blackboard). The internal maps are
// lazily initialized on the first write. Child scopes are created with
// NewScope.
//
// The tick loop is single threaded, but leaves may hand blackboard access to
// background work (see AsyncAction), so every operation takes the scope lock.
// The lock is never held while calling into the parent scope.
type Blackboard struct {
	mu     sync.RWMutex
	data   map[string]any
	remap  map[string]string
	parent *Blackboard
}

// NewScope creates a child scope of b. The child never owns b.
func (b *Blackboard) NewScope() *Blackboard {
	return &Blackboard{parent: b}
}

// Parent returns the enclosing scope, or nil for a root scope.
func (b *Blackboard) Parent() *Blackboard {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parent
}

func (b *Blackboard) setParent(parent *Blackboard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = parent
}

// Remap makes key a live reference to parentKey in the parent scope: reads
// and writes of key resolve against the parent from now on. Any local entry
// for key is dropped.
func (b *Blackboard) Remap(key, parentKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remap == nil {
		b.remap = make(map[string]string)
	}
	b.remap[key] = parentKey
	delete(b.data, key)
}

// Remapping returns a copy of the scope's key -> parent key table.
func (b *Blackboard) Remapping() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.remap == nil {
		return nil
	}
	result := make(map[string]string, len(b.remap))
	for k, v := range b.remap {
		result[k] = v
	}
	return result
}

// Get looks key up in this scope, then follows its remapping through the
// parent chain. Keys that are not remapped never reach the parent scope: they
// resolve locally or not at all. A miss returns an error wrapping ErrNotFound.
func (b *Blackboard) Get(key string) (any, error) {
	b.mu.RLock()
	if v, ok := b.data[key]; ok {
		b.mu.RUnlock()
		return v, nil
	}
	parentKey, remapped := b.remap[key]
	parent := b.parent
	b.mu.RUnlock()

	if !remapped || parent == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	v, err := parent.Get(parentKey)
	if err != nil {
		return nil, fmt.Errorf("key %q remapped to parent: %w", key, err)
	}
	return v, nil
}

// Lookup is Get without the error detail.
func (b *Blackboard) Lookup(key string) (any, bool) {
	v, err := b.Get(key)
	return v, err == nil
}

// Set stores value under key in this scope, creating the key if absent. A
// remapped key is written through to the parent scope instead.
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	if parentKey, ok := b.remap[key]; ok && b.parent != nil {
		parent := b.parent
		b.mu.Unlock()
		parent.Set(parentKey, value)
		return
	}
	if b.data == nil {
		b.data = make(map[string]any)
	}
	b.data[key] = value
	b.mu.Unlock()
}

// Has returns true if Get would succeed.
func (b *Blackboard) Has(key string) bool {
	_, ok := b.Lookup(key)
	return ok
}

// Delete removes a local entry. Remapped keys are untouched.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

// Keys returns the local keys, sorted.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.data) == 0 {
		return nil
	}
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of local entries.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Clear removes all local entries. Remappings are kept.
func (b *Blackboard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
}

// Snapshot returns a shallow copy of the local entries.
//
// WARNING: This is a SHALLOW copy. Mutable values (slices, maps, pointers)
// are shared with the blackboard; callers that modify them must copy first.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil
	}
	result := make(map[string]any, len(b.data))
	for k, v := range b.data {
		result[k] = v
	}
	return result
}

// View returns every key visible from this scope: the local entries plus the
// remapped keys that currently resolve. Same shallow copy caveat as Snapshot.
func (b *Blackboard) View() map[string]any {
	result := b.Snapshot()
	for key := range b.Remapping() {
		if v, err := b.Get(key); err == nil {
			if result == nil {
				result = make(map[string]any)
			}
			result[key] = v
		}
	}
	return result
}

// GetAs retrieves key and converts it to T. String values (for example
// literals copied into a subtree scope) are parsed, see ConvertValue.
func GetAs[T any](b *Blackboard, key string) (T, error) {
	v, err := b.Get(key)
	if err != nil {
		var zero T
		return zero, err
	}
	out, err := ConvertValue[T](v)
	if err != nil {
		return out, fmt.Errorf("key %q: %w", key, err)
	}
	return out, nil
}
