package agenda

import (
	"container/heap"

	"github.com/roach88/rete/internal/rete"
)

// entry is a queued activation and its heap position.
type entry struct {
	act   *rete.Activation
	index int
}

// activationQueue is a container/heap ordered by descending priority,
// then ascending insertion sequence.
type activationQueue []*entry

var _ heap.Interface = (*activationQueue)(nil)

func (q activationQueue) Len() int { return len(q) }

func (q activationQueue) Less(i, j int) bool {
	a, b := q[i].act, q[j].act
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Seq < b.Seq
}

func (q activationQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *activationQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *activationQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	// Release the slot so the activation can be collected.
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
