package leaves

import (
	"fmt"
	"sync/atomic"

	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultProgramCacheSize bounds the shared expression cache.
const DefaultProgramCacheSize = 1000

// programs is shared by every expression leaf: trees instantiated from the
// same document compile each expression once.
var programs = NewProgramCache(DefaultProgramCacheSize)

// ProgramCache is a thread-safe LRU cache of compiled expr programs.
type ProgramCache struct {
	lru    *lru.Cache[string, *vm.Program]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewProgramCache creates a cache holding at most maxSize programs.
func NewProgramCache(maxSize int) *ProgramCache {
	if maxSize < 1 {
		maxSize = DefaultProgramCacheSize
	}
	cache, err := lru.New[string, *vm.Program](maxSize)
	if err != nil {
		panic(err) // unreachable: maxSize is positive
	}
	return &ProgramCache{lru: cache}
}

// Get returns the program for key and marks it most recently used.
func (c *ProgramCache) Get(key string) (*vm.Program, bool) {
	program, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return program, true
}

// Put stores program under key, evicting the least recently used entry
// beyond capacity.
func (c *ProgramCache) Put(key string, program *vm.Program) {
	c.lru.Add(key, program)
}

// Resize changes the capacity, evicting immediately when it shrinks.
func (c *ProgramCache) Resize(maxSize int) {
	c.lru.Resize(max(maxSize, 1))
}

// Len returns the number of cached programs.
func (c *ProgramCache) Len() int { return c.lru.Len() }

// Stats returns the size, hits, misses, and hit ratio.
func (c *ProgramCache) Stats() (size int, hits, misses int64, ratio float64) {
	hits, misses = c.hits.Load(), c.misses.Load()
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return c.lru.Len(), hits, misses, ratio
}

func (c *ProgramCache) String() string {
	size, hits, misses, ratio := c.Stats()
	return fmt.Sprintf("ProgramCache{size=%d, hits=%d, misses=%d, hit_ratio=%.2f%%}",
		size, hits, misses, ratio*100)
}

// SetProgramCacheSize resizes the shared cache.
func SetProgramCacheSize(size int) { programs.Resize(size) }
