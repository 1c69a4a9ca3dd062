package bt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCondition(t *testing.T) {
	t.Parallel()

	cond, err := NewCondition("isReady", PortsList{InputPort("ready", WithDefault(false))}, Remapping{"ready": "{ready}"},
		func(io PortIO) bool {
			ready, err := GetInput[bool](io, "ready")
			return err == nil && ready
		})
	require.NoError(t, err)
	require.Equal(t, KindCondition, cond.Kind())
	tree := mustTree(t, cond)

	require.Equal(t, Failure, tree.ExecuteTick())
	tree.Blackboard().Set("ready", "true")
	require.Equal(t, Success, tree.ExecuteTick())

	cond.Halt()
	require.Equal(t, Idle, cond.Status())
}

func TestStatefulAction_Phases(t *testing.T) {
	t.Parallel()

	var log []string
	remaining := 0
	action, err := NewStatefulAction("countdown",
		PortsList{InputPort("steps", WithDefault(2))}, nil,
		StatefulCallbacks{
			OnStart: func(io PortIO) Status {
				n, err := GetInput[int](io, "steps")
				if err != nil {
					return Failure
				}
				remaining = n
				log = append(log, "start")
				return Running
			},
			OnRunning: func(PortIO) Status {
				remaining--
				log = append(log, "running")
				if remaining == 0 {
					return Success
				}
				return Running
			},
			OnHalted: func() { log = append(log, "halted") },
		})
	require.NoError(t, err)

	require.Equal(t, Running, action.Tick())
	require.Equal(t, Running, action.Tick())
	require.Equal(t, Success, action.Tick())
	require.Equal(t, []string{"start", "running", "running"}, log)

	// A completed action starts over, and a halt while idle is silent.
	log = nil
	action.Halt()
	require.Equal(t, Running, action.Tick())
	action.Halt()
	action.Halt()
	require.Equal(t, []string{"start", "halted"}, log)
	require.Equal(t, Idle, action.Status())
}

func TestLeaves_ConstructionErrors(t *testing.T) {
	t.Parallel()

	_, err := NewAction("a", nil, nil, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewCondition("c", nil, nil, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStatefulAction("s", nil, nil, StatefulCallbacks{OnStart: func(PortIO) Status { return Success }})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewAction("a", PortsList{InputPort("x")}, Remapping{"y": "1"}, func(PortIO) Status { return Success })
	require.ErrorIs(t, err, ErrUnknownPort)
}
