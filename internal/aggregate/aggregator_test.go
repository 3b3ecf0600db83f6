package aggregate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	name  string
	group string
	tags  []string
	price int
}

type testFact struct{ v *item }

func (f *testFact) Value() any { return f.v }

func newFact(name, group string, price int, tags ...string) *testFact {
	return &testFact{v: &item{name: name, group: group, price: price, tags: tags}}
}

func facts(fs ...*testFact) []Fact {
	out := make([]Fact, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}

func itemOf(f Fact) *item { return f.Value().(*item) }

func actions(results []Result) []Action {
	out := make([]Action, len(results))
	for i, r := range results {
		out[i] = r.Action
	}
	return out
}

func TestCollection_SizeTracksSource(t *testing.T) {
	agg := NewCollection()

	res, err := agg.Add(nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, Added, res[0].Action)

	a, b, c := newFact("a", "x", 1), newFact("b", "x", 2), newFact("c", "y", 3)
	res, err = agg.Add(facts(a, b, c))
	require.NoError(t, err)
	assert.Equal(t, []Action{Modified}, actions(res))

	coll := res[0].Aggregate.(*Collection)
	assert.Equal(t, 3, coll.Len())

	res, err = agg.Remove(facts(b))
	require.NoError(t, err)
	assert.Equal(t, []Action{Modified}, actions(res))
	assert.Equal(t, 2, coll.Len())
	assert.Equal(t, []any{a.v, c.v}, coll.Items())

	res, err = agg.Remove(facts(a, c))
	require.NoError(t, err)
	assert.Equal(t, []Action{Modified}, actions(res), "collect never emits removed")
	assert.Equal(t, 0, coll.Len())
	assert.Len(t, agg.Aggregates(), 1)
}

func TestCollection_TypedItems(t *testing.T) {
	agg := NewCollection()
	_, err := agg.Add(facts(newFact("a", "", 1), newFact("b", "", 2)))
	require.NoError(t, err)

	coll := agg.Aggregates()[0].(*Collection)
	items := Items[*item](coll)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].name)
}

func TestProjection_Deduplicates(t *testing.T) {
	agg := NewProjection(func(f Fact) (any, error) { return itemOf(f).group, nil })

	a, b, c := newFact("a", "x", 1), newFact("b", "x", 2), newFact("c", "y", 3)
	res, err := agg.Add(facts(a, b, c))
	require.NoError(t, err)
	assert.Equal(t, []Action{Added, Added}, actions(res))
	assert.Equal(t, []any{"x", "y"}, agg.Aggregates())

	res, err = agg.Remove(facts(a))
	require.NoError(t, err)
	assert.Empty(t, res, "x is still projected by b")

	res, err = agg.Remove(facts(b))
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, Removed, res[0].Action)
	assert.Equal(t, "x", res[0].Aggregate)
}

func TestProjection_Reprojection(t *testing.T) {
	agg := NewProjection(func(f Fact) (any, error) { return itemOf(f).group, nil })
	a := newFact("a", "x", 1)
	_, err := agg.Add(facts(a))
	require.NoError(t, err)

	res, err := agg.Modify(facts(a))
	require.NoError(t, err)
	assert.Equal(t, []Action{Modified}, actions(res))

	a.v.group = "z"
	res, err = agg.Modify(facts(a))
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, Result{Action: Removed, Aggregate: "x"}, res[0])
	assert.Equal(t, Result{Action: Added, Aggregate: "z"}, res[1])
	assert.Equal(t, []any{"z"}, agg.Aggregates())
}

func TestFlattening_Diff(t *testing.T) {
	agg := NewFlattening(func(f Fact) (any, error) { return itemOf(f).tags, nil })
	a := newFact("a", "", 0, "red", "blue")
	b := newFact("b", "", 0, "blue")

	res, err := agg.Add(facts(a, b))
	require.NoError(t, err)
	assert.Equal(t, []Action{Added, Added}, actions(res))

	a.v.tags = []string{"blue", "green"}
	res, err = agg.Modify(facts(a))
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, Result{Action: Removed, Aggregate: "red"}, res[0])
	assert.Equal(t, Modified, res[1].Action)
	assert.Equal(t, "blue", res[1].Aggregate)
	assert.Equal(t, Result{Action: Added, Aggregate: "green"}, res[2])

	res, err = agg.Remove(facts(a))
	require.NoError(t, err)
	assert.Equal(t, []Result{{Action: Removed, Aggregate: "green"}}, res)
	assert.Equal(t, []any{"blue"}, agg.Aggregates())
}

func TestFlattening_RejectsScalar(t *testing.T) {
	agg := NewFlattening(func(f Fact) (any, error) { return 42, nil })
	_, err := agg.Add(facts(newFact("a", "", 0)))
	require.Error(t, err)
}

func TestGroupBy_NoEmptyGroups(t *testing.T) {
	agg := NewGroupBy(
		func(f Fact) (any, error) { return itemOf(f).group, nil },
		func(f Fact) (any, error) { return itemOf(f).name, nil },
	)
	a, b, c := newFact("a", "x", 1), newFact("b", "x", 2), newFact("c", "y", 3)

	res, err := agg.Add(facts(a, b, c))
	require.NoError(t, err)
	assert.Equal(t, []Action{Added, Added}, actions(res))

	groups := agg.Aggregates()
	require.Len(t, groups, 2)
	gx := groups[0].(*Group)
	assert.Equal(t, "x", gx.Key())
	assert.Equal(t, []any{"a", "b"}, gx.Items())

	// Re-key c from y to x: y disappears, x grows.
	c.v.group = "x"
	res, err = agg.Modify(facts(c))
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, Removed, res[0].Action)
	assert.Equal(t, "y", res[0].Aggregate.(*Group).Key())
	assert.Equal(t, Modified, res[1].Action)
	assert.Equal(t, 3, gx.Len())

	for _, g := range agg.Aggregates() {
		assert.NotZero(t, g.(*Group).Len())
	}

	res, err = agg.Remove(facts(a, b, c))
	require.NoError(t, err)
	assert.Equal(t, []Action{Removed}, actions(res))
	assert.Empty(t, agg.Aggregates())
}

func TestGroupBy_DefaultKey(t *testing.T) {
	agg := NewGroupBy(
		func(f Fact) (any, error) { return nil, nil },
		func(f Fact) (any, error) { return itemOf(f).price, nil },
	)
	res, err := agg.Add(facts(newFact("a", "", 1), newFact("b", "", 2)))
	require.NoError(t, err)
	require.Len(t, res, 1)
	g := res[0].Aggregate.(*Group)
	assert.Nil(t, g.Key())
	assert.Equal(t, []int{1, 2}, GroupItems[int](g))
}

func TestGroupBy_SelectorErrorLeavesStateUntouched(t *testing.T) {
	boom := errors.New("boom")
	agg := NewGroupBy(
		func(f Fact) (any, error) {
			if itemOf(f).name == "bad" {
				return nil, boom
			}
			return itemOf(f).group, nil
		},
		func(f Fact) (any, error) { return itemOf(f).name, nil },
	)
	_, err := agg.Add(facts(newFact("a", "x", 1), newFact("bad", "x", 2)))
	require.ErrorIs(t, err, boom)
	assert.Empty(t, agg.Aggregates())
}

func TestValueKey(t *testing.T) {
	assert.Equal(t, DefaultKey{}, ValueKey(nil))
	assert.Equal(t, "x", ValueKey("x"))
	assert.Equal(t, ValueKey([]int{1, 2}), ValueKey([]int{1, 2}))
	assert.NotEqual(t, ValueKey([]int{1, 2}), ValueKey([]int{2, 1}))

	type boxed struct{ K any }
	assert.Equal(t, boxed{K: 1}, ValueKey(boxed{K: 1}))
	assert.NotPanics(t, func() {
		keys := map[any]bool{ValueKey(boxed{K: []int{1}}): true}
		assert.True(t, keys[ValueKey(boxed{K: []int{1}})])
	})
}

func TestGroupBy_KeyHoldingSlice(t *testing.T) {
	type tagKey struct{ Tags any }
	agg := NewGroupBy(
		func(f Fact) (any, error) { return tagKey{Tags: itemOf(f).tags}, nil },
		func(f Fact) (any, error) { return itemOf(f).name, nil },
	)
	res, err := agg.Add(facts(newFact("a", "", 1, "x"), newFact("b", "", 2, "x"), newFact("c", "", 3, "y")))
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, []string{"a", "b"}, GroupItems[string](res[0].Aggregate.(*Group)))
	assert.Equal(t, []string{"c"}, GroupItems[string](res[1].Aggregate.(*Group)))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{NameCollect, NameFlatten, NameGroupBy, NameProject}, r.Names())

	f, ok := r.Lookup(NameGroupBy)
	require.True(t, ok)
	_, err := f.Create(Selectors{ExprKeySelector: func(Fact) (any, error) { return nil, nil }})
	require.Error(t, err, "missing element selector")

	custom := FactoryFunc("Count", nil, func(Selectors) (Aggregator, error) { return NewCollection(), nil })
	require.NoError(t, r.Register(custom))
	require.Error(t, r.Register(custom))
}
