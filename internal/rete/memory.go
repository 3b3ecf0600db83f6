package rete

import "reflect"

// AlphaMemory holds the facts accepted at the end of one alpha chain.
type AlphaMemory struct {
	facts *orderedSet[*Fact]
}

// Facts returns the facts in the order they were accepted.
func (m *AlphaMemory) Facts() []*Fact {
	return m.facts.values()
}

// Contains reports whether f is in the memory.
func (m *AlphaMemory) Contains(f *Fact) bool {
	return m.facts.has(f)
}

// Len returns the number of facts.
func (m *AlphaMemory) Len() int {
	return m.facts.len()
}

type childKey struct {
	parent *Tuple
	fact   *Fact
}

// BetaMemory holds the tuples produced by one beta node.
type BetaMemory struct {
	tuples *orderedSet[*Tuple]
	index  map[childKey]*Tuple
}

// Tuples returns the tuples in creation order.
func (m *BetaMemory) Tuples() []*Tuple {
	return m.tuples.values()
}

// Len returns the number of tuples.
func (m *BetaMemory) Len() int {
	return m.tuples.len()
}

func (m *BetaMemory) child(parent *Tuple, f *Fact) *Tuple {
	return m.index[childKey{parent: parent, fact: f}]
}

func (m *BetaMemory) add(t *Tuple) {
	m.tuples.add(t)
	m.index[childKey{parent: t.parent, fact: t.fact}] = t
}

func (m *BetaMemory) remove(t *Tuple) {
	m.tuples.remove(t)
	delete(m.index, childKey{parent: t.parent, fact: t.fact})
}

// internalKey identifies a synthetic aggregate fact: the aggregate node,
// the left tuple it aggregates for and the aggregate's value key.
type internalKey struct {
	node  int
	tuple *Tuple
	key   any
}

// WorkingMemory is the per-session fact store and node memory cache.
//
// WorkingMemory is not safe for concurrent use.
type WorkingMemory struct {
	facts    map[any]*Fact
	order    *orderedSet[*Fact]
	internal map[internalKey]*Fact
	alpha    map[int]*AlphaMemory
	beta     map[int]*BetaMemory
	nextID   int64
}

// NewWorkingMemory creates an empty working memory.
func NewWorkingMemory() *WorkingMemory {
	return &WorkingMemory{
		facts:    make(map[any]*Fact),
		order:    newOrderedSet[*Fact](),
		internal: make(map[internalKey]*Fact),
		alpha:    make(map[int]*AlphaMemory),
		beta:     make(map[int]*BetaMemory),
	}
}

// GetFact returns the fact for obj, if present.
func (wm *WorkingMemory) GetFact(obj any) (*Fact, error) {
	id, err := IdentityOf(obj)
	if err != nil {
		return nil, err
	}
	f, ok := wm.facts[id]
	if !ok {
		return nil, NewUnknownFactError(obj)
	}
	return f, nil
}

// Contains reports whether obj is in working memory.
func (wm *WorkingMemory) Contains(obj any) bool {
	id, err := IdentityOf(obj)
	if err != nil {
		return false
	}
	_, ok := wm.facts[id]
	return ok
}

// NewFact wraps obj without registering it.
// Returns a duplicate-fact error if obj is already present.
func (wm *WorkingMemory) NewFact(obj any) (*Fact, error) {
	id, err := IdentityOf(obj)
	if err != nil {
		return nil, err
	}
	if _, dup := wm.facts[id]; dup {
		return nil, NewDuplicateFactError(obj)
	}
	wm.nextID++
	return &Fact{id: wm.nextID, object: obj, typ: reflect.TypeOf(obj), identity: id}, nil
}

// AddFact registers a fact created by NewFact.
func (wm *WorkingMemory) AddFact(f *Fact) error {
	if _, dup := wm.facts[f.identity]; dup {
		return NewDuplicateFactError(f.object)
	}
	wm.facts[f.identity] = f
	wm.order.add(f)
	return nil
}

// UpdateFact replaces the object held by the fact identified by obj.
func (wm *WorkingMemory) UpdateFact(obj any) (*Fact, error) {
	f, err := wm.GetFact(obj)
	if err != nil {
		return nil, err
	}
	f.object = obj
	f.typ = reflect.TypeOf(obj)
	return f, nil
}

// RemoveFact unregisters f.
func (wm *WorkingMemory) RemoveFact(f *Fact) {
	if cur, ok := wm.facts[f.identity]; ok && cur == f {
		delete(wm.facts, f.identity)
		wm.order.remove(f)
	}
}

// Facts returns every session fact in insertion order.
func (wm *WorkingMemory) Facts() []*Fact {
	return wm.order.values()
}

// Len returns the number of session facts.
func (wm *WorkingMemory) Len() int {
	return wm.order.len()
}

// AlphaMemory returns the memory of alpha memory node id, creating it on
// first access.
func (wm *WorkingMemory) AlphaMemory(id int) *AlphaMemory {
	m, ok := wm.alpha[id]
	if !ok {
		m = &AlphaMemory{facts: newOrderedSet[*Fact]()}
		wm.alpha[id] = m
	}
	return m
}

// BetaMemory returns the memory of beta memory node id, creating it on
// first access.
func (wm *WorkingMemory) BetaMemory(id int) *BetaMemory {
	m, ok := wm.beta[id]
	if !ok {
		m = &BetaMemory{tuples: newOrderedSet[*Tuple](), index: make(map[childKey]*Tuple)}
		wm.beta[id] = m
	}
	return m
}

func (wm *WorkingMemory) internalFact(key internalKey) *Fact {
	return wm.internal[key]
}

func (wm *WorkingMemory) addInternalFact(key internalKey, obj any) *Fact {
	wm.nextID++
	f := &Fact{id: wm.nextID, object: obj, typ: reflect.TypeOf(obj), identity: key, synthetic: true}
	wm.internal[key] = f
	return f
}

func (wm *WorkingMemory) removeInternalFact(key internalKey) {
	delete(wm.internal, key)
}

// InternalLen returns the number of synthetic aggregate facts.
func (wm *WorkingMemory) InternalLen() int {
	return len(wm.internal)
}

func (wm *WorkingMemory) rekeyInternalFact(old, next internalKey, f *Fact) {
	delete(wm.internal, old)
	f.identity = next
	wm.internal[next] = f
}
