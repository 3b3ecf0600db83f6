package rete

// Tuple is a partial or complete match: a parent tuple plus one element.
//
// The element is the fact joined at this level, or nil for the root tuple
// and for levels produced by not/exists nodes. Len equals the number of
// patterns joined so far, and element i corresponds to pattern i.
//
// A parent records its children so a retraction can cascade. The child
// list holds no ownership: tuples are owned by the beta memory of the node
// that created them.
type Tuple struct {
	parent   *Tuple
	fact     *Fact
	node     int
	size     int
	children []*Tuple
	state    map[int]any
}

func newRootTuple(node int) *Tuple {
	return &Tuple{node: node}
}

func newChildTuple(parent *Tuple, fact *Fact, node int) *Tuple {
	t := &Tuple{parent: parent, fact: fact, node: node, size: parent.size + 1}
	parent.children = append(parent.children, t)
	return t
}

// Len returns the number of elements.
func (t *Tuple) Len() int {
	return t.size
}

// Parent returns the parent tuple, or nil for the root tuple.
func (t *Tuple) Parent() *Tuple {
	return t.parent
}

// Fact returns the element added at this level (nil for root or placeholder levels).
func (t *Tuple) Fact() *Fact {
	return t.fact
}

// At returns element i, counted from the oldest element.
func (t *Tuple) At(i int) *Fact {
	if i < 0 || i >= t.size {
		return nil
	}
	cur := t
	for cur.size-1 > i {
		cur = cur.parent
	}
	return cur.fact
}

// Facts returns the non-placeholder elements from newest to oldest.
func (t *Tuple) Facts() []*Fact {
	out := make([]*Fact, 0, t.size)
	for cur := t; cur != nil; cur = cur.parent {
		if cur.fact != nil {
			out = append(out, cur.fact)
		}
	}
	return out
}

// Objects returns the element objects in join order, nil for placeholders.
func (t *Tuple) Objects() []any {
	out := make([]any, t.size)
	for cur := t; cur != nil && cur.size > 0; cur = cur.parent {
		if cur.fact != nil {
			out[cur.size-1] = cur.fact.object
		}
	}
	return out
}

// Children returns a snapshot of the recorded child tuples.
func (t *Tuple) Children() []*Tuple {
	return append([]*Tuple(nil), t.children...)
}

func (t *Tuple) detach() {
	if t.parent == nil {
		return
	}
	siblings := t.parent.children
	for i, c := range siblings {
		if c == t {
			t.parent.children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
}

func (t *Tuple) getState(node int) any {
	return t.state[node]
}

func (t *Tuple) setState(node int, v any) {
	if t.state == nil {
		t.state = make(map[int]any)
	}
	t.state[node] = v
}

func (t *Tuple) clearState(node int) {
	delete(t.state, node)
}
