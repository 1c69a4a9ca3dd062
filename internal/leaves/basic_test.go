package leaves

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/joeycumines/btcore/internal/bt"
	gobt "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/require"
)

func TestConstantLeaves(t *testing.T) {
	t.Parallel()

	ok, err := NewAlwaysSuccess("ok")
	require.NoError(t, err)
	require.Equal(t, bt.Success, ok.Tick())

	fail, err := NewAlwaysFailure("fail")
	require.NoError(t, err)
	require.Equal(t, bt.Failure, fail.Tick())
}

func TestSetBlackboard(t *testing.T) {
	t.Parallel()

	literal, err := NewSetBlackboard("answer", bt.Remapping{"value": "42", "output_key": "{answer}"})
	require.NoError(t, err)
	copyNode, err := NewSetBlackboard("copy", bt.Remapping{"value": "{answer}", "output_key": "{copy}"})
	require.NoError(t, err)
	seq, err := bt.NewReactiveSequence("seq", literal, copyNode)
	require.NoError(t, err)
	tree, err := bt.NewTree(seq)
	require.NoError(t, err)

	require.Equal(t, bt.Success, tree.ExecuteTick())
	v, err := bt.GetAs[int](tree.Blackboard(), "copy")
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestSetBlackboard_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewSetBlackboard("missing", bt.Remapping{"value": "1"})
	require.ErrorIs(t, err, bt.ErrMissingRequiredPort)

	_, err = NewSetBlackboard("literal", bt.Remapping{"value": "1", "output_key": "key"})
	require.ErrorIs(t, err, bt.ErrPortDirection)

	n, err := NewSetBlackboard("absent", bt.Remapping{"value": "{nope}", "output_key": "{out}"})
	require.NoError(t, err)
	tree, err := bt.NewTree(n)
	require.NoError(t, err)
	require.Equal(t, bt.Failure, tree.ExecuteTick())
}

func TestLog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	n, err := NewLog("say", bt.Remapping{"message": "{greeting}"}, logger)
	require.NoError(t, err)
	tree, err := bt.NewTree(n)
	require.NoError(t, err)

	require.Equal(t, bt.Failure, tree.ExecuteTick())
	require.Contains(t, buf.String(), "no message")

	tree.Blackboard().Set("greeting", "hello")
	require.Equal(t, bt.Success, tree.ExecuteTick())
	require.Contains(t, buf.String(), `msg="[BT] hello" node=say`)
}

func TestSleep(t *testing.T) {
	t.Parallel()

	n, err := NewSleep(context.Background(), "nap", bt.Remapping{"duration": "5ms"})
	require.NoError(t, err)

	require.Equal(t, bt.Running, n.Tick())
	require.Eventually(t, func() bool { return n.Tick() == bt.Success }, 5*time.Second, time.Millisecond)
}

func TestSleep_Halt(t *testing.T) {
	t.Parallel()

	n, err := NewSleep(context.Background(), "nap", bt.Remapping{"duration": "1h"})
	require.NoError(t, err)
	require.Equal(t, bt.Running, n.Tick())

	done := make(chan struct{})
	go func() {
		n.Halt()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("halt did not interrupt the sleep")
	}
	require.Equal(t, bt.Idle, n.Status())
}

func TestSleep_BadDuration(t *testing.T) {
	t.Parallel()

	n, err := NewSleep(context.Background(), "nap", bt.Remapping{"duration": "soon"})
	require.NoError(t, err)
	require.Equal(t, bt.Running, n.Tick())
	require.Eventually(t, func() bool { return n.Tick() == bt.Failure }, 5*time.Second, time.Millisecond)
}

func TestFromBehaviorTree(t *testing.T) {
	t.Parallel()

	var ticks int
	counter := gobt.New(func([]gobt.Node) (gobt.Status, error) {
		ticks++
		if ticks < 2 {
			return gobt.Running, nil
		}
		return gobt.Success, nil
	})
	seq := gobt.New(gobt.Sequence, counter)

	leaf, err := FromBehaviorTree("legacy", seq)
	require.NoError(t, err)
	require.Equal(t, bt.Running, leaf.Tick())
	require.Equal(t, bt.Success, leaf.Tick())

	broken, err := FromBehaviorTree("broken", gobt.New(func([]gobt.Node) (gobt.Status, error) {
		return gobt.Success, errors.New("boom")
	}))
	require.NoError(t, err)
	require.Equal(t, bt.Failure, broken.Tick())

	_, err = FromBehaviorTree("nil", nil)
	require.ErrorIs(t, err, bt.ErrNilChild)
}

func TestStatusMapping(t *testing.T) {
	t.Parallel()

	for _, s := range []bt.Status{bt.Running, bt.Success, bt.Failure} {
		require.Equal(t, s, FromStatus(ToStatus(s)))
	}
	require.Equal(t, gobt.Failure, ToStatus(bt.Idle))
	require.Equal(t, bt.Failure, FromStatus(gobt.Status(99)))
}
