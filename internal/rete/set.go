package rete

import "container/list"

// orderedSet is a set iterating in insertion order with O(1) removal.
type orderedSet[T comparable] struct {
	items list.List
	index map[T]*list.Element
}

func newOrderedSet[T comparable]() *orderedSet[T] {
	return &orderedSet[T]{index: make(map[T]*list.Element)}
}

func (s *orderedSet[T]) add(v T) bool {
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = s.items.PushBack(v)
	return true
}

func (s *orderedSet[T]) remove(v T) bool {
	e, ok := s.index[v]
	if !ok {
		return false
	}
	s.items.Remove(e)
	delete(s.index, v)
	return true
}

func (s *orderedSet[T]) has(v T) bool {
	_, ok := s.index[v]
	return ok
}

func (s *orderedSet[T]) len() int {
	return len(s.index)
}

// values returns a snapshot, so callers may mutate the set while iterating.
func (s *orderedSet[T]) values() []T {
	out := make([]T, 0, len(s.index))
	for e := s.items.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(T))
	}
	return out
}
