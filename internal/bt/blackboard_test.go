package bt

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestBlackboard_BasicOperations(t *testing.T) {
	t.Parallel()

	bb := new(Blackboard)

	// Test Set and Get
	bb.Set("key1", "value1")
	v, err := bb.Get("key1")
	require.NoError(t, err)
	require.Equal(t, "value1", v)

	// Test non-existent key
	_, err = bb.Get("nonexistent")
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), `"nonexistent"`)

	// Test Has
	require.True(t, bb.Has("key1"))
	require.False(t, bb.Has("nonexistent"))

	// Test Delete
	bb.Delete("key1")
	require.False(t, bb.Has("key1"))

	// Test various types
	bb.Set("int", 42)
	bb.Set("float", 3.14)
	bb.Set("bool", true)
	bb.Set("slice", []int{1, 2, 3})

	for key, want := range map[string]any{"int": 42, "float": 3.14, "bool": true, "slice": []int{1, 2, 3}} {
		got, ok := bb.Lookup(key)
		require.True(t, ok, key)
		require.Equal(t, want, got, key)
	}
}

func TestBlackboard_KeysLenClear(t *testing.T) {
	t.Parallel()

	bb := new(Blackboard)
	require.Empty(t, bb.Keys())
	require.Equal(t, 0, bb.Len())

	bb.Set("c", 3)
	bb.Set("a", 1)
	bb.Set("b", 2)
	require.Equal(t, []string{"a", "b", "c"}, bb.Keys())
	require.Equal(t, 3, bb.Len())

	bb.Clear()
	require.Equal(t, 0, bb.Len())
	require.False(t, bb.Has("a"))
}

func TestBlackboard_Snapshot(t *testing.T) {
	t.Parallel()

	bb := new(Blackboard)
	require.Nil(t, bb.Snapshot())

	bb.Set("a", 1)
	bb.Set("b", "two")

	snapshot := bb.Snapshot()
	if diff := cmp.Diff(map[string]any{"a": 1, "b": "two"}, snapshot); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	// Verify snapshot is a copy (modifying it doesn't affect original)
	snapshot["c"] = 3
	require.False(t, bb.Has("c"))
}

func TestBlackboard_ScopesAreIsolated(t *testing.T) {
	t.Parallel()

	parent := new(Blackboard)
	parent.Set("shared", "parent")
	child := parent.NewScope()
	require.Same(t, parent, child.Parent())

	// No remapping: the parent key is invisible, and a child write stays local.
	_, err := child.Get("shared")
	require.ErrorIs(t, err, ErrNotFound)

	child.Set("shared", "child")
	v, err := parent.Get("shared")
	require.NoError(t, err)
	require.Equal(t, "parent", v)
	v, err = child.Get("shared")
	require.NoError(t, err)
	require.Equal(t, "child", v)
}

func TestBlackboard_RemapIsLiveAndBidirectional(t *testing.T) {
	t.Parallel()

	parent := new(Blackboard)
	child := parent.NewScope()
	child.Remap("param", "myParam")

	// Missing in both scopes.
	_, err := child.Get("param")
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), `"myParam"`)

	parent.Set("myParam", "hello")
	v, err := child.Get("param")
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	child.Set("param", "written by child")
	v, err = parent.Get("myParam")
	require.NoError(t, err)
	require.Equal(t, "written by child", v)
	require.Zero(t, child.Len(), "remapped writes must not create local entries")

	require.Equal(t, map[string]string{"param": "myParam"}, child.Remapping())
	require.Equal(t, map[string]any{"param": "written by child"}, child.View())
}

func TestBlackboard_RemapDropsLocalEntry(t *testing.T) {
	t.Parallel()

	parent := new(Blackboard)
	parent.Set("k", "outer")
	child := parent.NewScope()
	child.Set("k", "inner")
	child.Remap("k", "k")

	v, err := child.Get("k")
	require.NoError(t, err)
	require.Equal(t, "outer", v)
}

func TestBlackboard_RemapChainsThroughSeveralScopes(t *testing.T) {
	t.Parallel()

	root := new(Blackboard)
	mid := root.NewScope()
	leaf := mid.NewScope()
	mid.Remap("b", "a")
	leaf.Remap("c", "b")

	root.Set("a", 1)
	v, err := GetAs[int](leaf, "c")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	leaf.Set("c", 2)
	v, err = GetAs[int](root, "a")
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestBlackboard_RemapWithoutParentIsLocal(t *testing.T) {
	t.Parallel()

	bb := new(Blackboard)
	bb.Remap("k", "parentKey")
	_, err := bb.Get("k")
	require.ErrorIs(t, err, ErrNotFound)

	bb.Set("k", 7)
	v, err := bb.Get("k")
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

type upper string

func (u *upper) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty")
	}
	*u = upper(fmt.Sprintf("%s!", b))
	return nil
}

func TestGetAs_Conversions(t *testing.T) {
	t.Parallel()

	bb := new(Blackboard)
	bb.Set("int", "42")
	bb.Set("float", "2.5")
	bb.Set("bool", "yes")
	bb.Set("duration", "150ms")
	bb.Set("native", 7)
	bb.Set("text", "hi")
	bb.Set("bad", "nope")
	bb.Set("slice", []int{1})

	i, err := GetAs[int](bb, "int")
	require.NoError(t, err)
	require.Equal(t, 42, i)

	f, err := GetAs[float64](bb, "float")
	require.NoError(t, err)
	require.Equal(t, 2.5, f)

	b, err := GetAs[bool](bb, "bool")
	require.NoError(t, err)
	require.True(t, b)

	d, err := GetAs[time.Duration](bb, "duration")
	require.NoError(t, err)
	require.Equal(t, 150*time.Millisecond, d)

	f, err = GetAs[float64](bb, "native")
	require.NoError(t, err)
	require.Equal(t, 7.0, f)

	s, err := GetAs[string](bb, "native")
	require.NoError(t, err)
	require.Equal(t, "7", s)

	u, err := GetAs[upper](bb, "text")
	require.NoError(t, err)
	require.Equal(t, upper("hi!"), u)

	_, err = GetAs[int](bb, "bad")
	require.ErrorIs(t, err, ErrConversion)

	_, err = GetAs[int](bb, "slice")
	require.ErrorIs(t, err, ErrConversion)

	_, err = GetAs[int](bb, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConvertValue_NumericRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		convert func() (any, error)
		want    any
	}{
		{name: "negative to uint8", convert: func() (any, error) { return ConvertValue[uint8](-1) }},
		{name: "300 to int8", convert: func() (any, error) { return ConvertValue[int8](300) }},
		{name: "fraction to int", convert: func() (any, error) { return ConvertValue[int](3.7) }},
		{name: "NaN to int", convert: func() (any, error) { return ConvertValue[int](math.NaN()) }},
		{name: "huge float to int64", convert: func() (any, error) { return ConvertValue[int64](1e19) }},
		{name: "max uint64 to int64", convert: func() (any, error) { return ConvertValue[int64](uint64(math.MaxUint64)) }},
		{name: "negative float to uint", convert: func() (any, error) { return ConvertValue[uint](-2.0) }},
		{name: "float64 overflow to float32", convert: func() (any, error) { return ConvertValue[float32](1e300) }},
		{name: "int8 bounds", convert: func() (any, error) { return ConvertValue[int8](-128) }, want: int8(-128)},
		{name: "uint8 bounds", convert: func() (any, error) { return ConvertValue[uint8](int64(255)) }, want: uint8(255)},
		{name: "integral float to int", convert: func() (any, error) { return ConvertValue[int](4.0) }, want: 4},
		{name: "uint to int", convert: func() (any, error) { return ConvertValue[int](uint16(9)) }, want: 9},
		{name: "int to float32", convert: func() (any, error) { return ConvertValue[float32](3) }, want: float32(3)},
		{name: "int to duration", convert: func() (any, error) { return ConvertValue[time.Duration](int64(5)) }, want: time.Duration(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.convert()
			if tt.want == nil {
				require.ErrorIs(t, err, ErrConversion)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBlackboard_ThreadSafety(t *testing.T) {
	t.Parallel()

	parent := new(Blackboard)
	child := parent.NewScope()
	child.Remap("shared", "shared")

	const workers = 8
	const iterations = 200

	var wg sync.WaitGroup
	for g := 0; g < workers; g++ {
		wg.Add(3)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				child.Set(fmt.Sprintf("key-%d-%d", id, i), i)
				child.Set("shared", i)
			}
		}(g)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_, _ = child.Get("shared")
				_ = child.Keys()
				_ = child.View()
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_ = parent.Snapshot()
				parent.Delete("other")
			}
		}()
	}
	wg.Wait()

	require.Equal(t, workers*iterations, child.Len())
	require.True(t, parent.Has("shared"))
}
