package bt

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// randomTree builds a tree of reactive sequences, retries, and subtrees over
// scripted leaves.
func randomTree(t *testing.T, r *rand.Rand, depth int, id *int) Node {
	t.Helper()
	*id++
	name := fmt.Sprintf("n%d", *id)
	if depth == 0 || r.IntN(3) == 0 {
		script := make([]Status, 1+r.IntN(4))
		for i := range script {
			script[i] = Status(1 + r.IntN(3))
		}
		return newScripted(t, name, script...)
	}
	switch r.IntN(3) {
	case 0:
		children := make([]Node, 1+r.IntN(3))
		for i := range children {
			children[i] = randomTree(t, r, depth-1, id)
		}
		n, err := NewReactiveSequence(name, children...)
		require.NoError(t, err)
		return n
	case 1:
		n, err := NewRetry(name, r.IntN(4), randomTree(t, r, depth-1, id))
		require.NoError(t, err)
		return n
	default:
		n, err := NewSubtree(name, randomTree(t, r, depth-1, id), WithAutoRemap(r.IntN(2) == 0))
		require.NoError(t, err)
		return n
	}
}

func TestProperties_RandomTrees(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 50; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			t.Parallel()
			r := rand.New(rand.NewPCG(seed, seed*31))
			var id int
			root := randomTree(t, r, 4, &id)
			tree := mustTree(t, root)

			for tick := 0; tick < 20; tick++ {
				status := tree.ExecuteTick()
				require.NotEqual(t, Idle, status, "tick %d", tick)
				require.Equal(t, status, root.Status())

				if r.IntN(4) == 0 {
					tree.Halt()
					requireAllIdle(t, root)
				}
			}
			tree.Halt()
			requireAllIdle(t, root)
		})
	}
}
