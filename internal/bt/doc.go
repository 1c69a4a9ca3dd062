/*
Package bt is a reactive behavior tree execution engine.

A Tree owns a root Node and repeatedly ticks it through ExecuteTick. Each tick
propagates down the tree according to each node's control semantics, and the
root's Status goes back to the caller, which decides whether to tick again.

# Node Contract

Every node implements Tick, Halt and Status:

  - Tick advances the node by one step and returns Running, Success or
    Failure, never Idle. Running means "tick me again"; Success and Failure
    end the current episode, and the next tick starts a new one.
  - Halt brings the node and every non-idle descendant back to Idle before it
    returns, aborting in-flight work. It is safe in any state.
  - Status returns the cached status.

Ticking is synchronous and single threaded. Work that spans several ticks is
held as explicit state inside the leaf (StatefulAction), or runs in the
background and is polled on later ticks (AsyncAction). The tick walk itself
never blocks.

Returning Idle from Tick, or overlapping calls to ExecuteTick, are contract
violations: with the btdebug build tag they panic with an *InvariantError,
otherwise they are logged and reported as Failure.

# Nodes

ReactiveSequence re-evaluates its children from the first on every tick and
halts the children it abandons. Retry allows a bounded number of failed
attempts, one per tick. Subtree runs an embedded tree in its own blackboard
scope. Action, Condition, StatefulAction and AsyncAction are leaf building
blocks.

Children are owned exclusively: constructors reject a node that already has
a parent.

# Blackboard and Ports

Nodes declare their data dependencies as a PortsList and bind each port, at
construction time, with a Remapping entry:

	"{target}"  // the blackboard key "target" of the node's scope, read and
	            // written on every tick
	"1.5"       // a literal; never touches the blackboard
	            // (absent) the port default, or an error if the port is Required

Leaves read and write through PortIO and the typed helper GetInput.

Each Subtree creates a child scope. Keys are isolated from the enclosing
scope unless the Subtree links them:

	WithRemapping(Remapping{"param": "{myParam}"}) // param <-> myParam, both ways
	WithRemapping(Remapping{"param": "World"})     // param is the constant "World"
	WithAutoRemap(true)                            // every key used inside <-> same key outside

Writes always land in the scope the key belongs to, so sibling subtrees never
see each other's data.

# Errors

Constructors return *ConstructionError values before anything is ticked.
Blackboard misses return errors wrapping ErrNotFound; a leaf should turn
those into Failure. Domain outcomes travel only as Status.
*/
package bt
