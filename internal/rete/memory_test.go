package rete

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	Number  string
	Balance int
}

func (a account) FactIdentity() any { return a.Number }

func TestWorkingMemory_DuplicateAndUnknown(t *testing.T) {
	wm := NewWorkingMemory()
	o := &order{ID: "o1"}

	f, err := wm.NewFact(o)
	require.NoError(t, err)
	require.NoError(t, wm.AddFact(f))

	_, err = wm.NewFact(o)
	require.Error(t, err)
	assert.True(t, IsDuplicateFact(err))

	_, err = wm.GetFact(&order{ID: "o1"})
	assert.True(t, IsUnknownFact(err), "identity is the pointer, not the value")

	wm.RemoveFact(f)
	assert.False(t, wm.Contains(o))

	f2, err := wm.NewFact(o)
	require.NoError(t, err, "insert after remove succeeds")
	assert.NotEqual(t, f.ID(), f2.ID())
}

func TestWorkingMemory_Identifiable(t *testing.T) {
	wm := NewWorkingMemory()
	f, err := wm.NewFact(account{Number: "A-1", Balance: 10})
	require.NoError(t, err)
	require.NoError(t, wm.AddFact(f))

	updated, err := wm.UpdateFact(account{Number: "A-1", Balance: 25})
	require.NoError(t, err)
	assert.Same(t, f, updated)
	assert.Equal(t, 25, f.Object().(account).Balance)
}

func TestWorkingMemory_Unsupported(t *testing.T) {
	wm := NewWorkingMemory()

	_, err := wm.NewFact(map[string]int{"a": 1})
	require.ErrorIs(t, err, ErrUnsupportedFact)

	_, err = wm.NewFact(nil)
	require.ErrorIs(t, err, ErrNilFact)
}

func TestWorkingMemory_NodeMemoriesAreLazy(t *testing.T) {
	wm := NewWorkingMemory()
	a := wm.AlphaMemory(3)
	assert.Same(t, a, wm.AlphaMemory(3))
	assert.Equal(t, 0, a.Len())

	b := wm.BetaMemory(4)
	assert.Same(t, b, wm.BetaMemory(4))
	assert.Empty(t, b.Tuples())
}

func TestTuple_Elements(t *testing.T) {
	root := newRootTuple(0)
	fa := &Fact{id: 1, object: "a"}
	fb := &Fact{id: 2, object: "b"}

	t1 := newChildTuple(root, fa, 1)
	t2 := newChildTuple(t1, nil, 2)
	t3 := newChildTuple(t2, fb, 3)

	assert.Equal(t, 0, root.Len())
	assert.Equal(t, 3, t3.Len())
	assert.Same(t, fa, t3.At(0))
	assert.Nil(t, t3.At(1))
	assert.Same(t, fb, t3.At(2))
	assert.Nil(t, t3.At(3))
	assert.Equal(t, []*Fact{fb, fa}, t3.Facts(), "newest to oldest")
	assert.Equal(t, []any{"a", nil, "b"}, t3.Objects())

	assert.Len(t, t2.Children(), 1)
	t3.detach()
	assert.Empty(t, t2.Children())
}

func TestOrderedSet_InsertionOrder(t *testing.T) {
	s := newOrderedSet[string]()
	assert.True(t, s.add("b"))
	assert.True(t, s.add("a"))
	assert.False(t, s.add("b"))
	assert.True(t, s.add("c"))
	assert.True(t, s.remove("a"))
	assert.False(t, s.remove("a"))
	assert.Equal(t, []string{"b", "c"}, s.values())
	assert.Equal(t, 2, s.len())
}
