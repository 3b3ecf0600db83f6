package agenda

import (
	"container/heap"
	"log/slog"

	"github.com/roach88/rete/internal/rete"
)

// Option configures an Agenda.
type Option func(*Agenda)

// WithFilter adds a global filter applied to every activation.
func WithFilter(f Filter) Option {
	return func(a *Agenda) {
		a.global = append(a.global, f)
	}
}

// WithClock replaces the insertion counter.
func WithClock(c *Clock) Option {
	return func(a *Agenda) {
		a.clock = c
	}
}

// WithLogger sets the agenda logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agenda) {
		a.logger = logger
	}
}

// Agenda is the priority queue of one session's activations.
type Agenda struct {
	queue   activationQueue
	entries map[*rete.Activation]*entry
	clock   *Clock
	events  *rete.Events
	logger  *slog.Logger

	global  []Filter
	perRule map[*rete.Rule][]Filter
}

var _ rete.ActivationSink = (*Agenda)(nil)

// New creates an empty agenda. Filter failures are raised on events.
func New(events *rete.Events, opts ...Option) *Agenda {
	a := &Agenda{
		entries: make(map[*rete.Activation]*entry),
		clock:   NewClock(),
		events:  events,
		logger:  slog.Default(),
		perRule: make(map[*rete.Rule][]Filter),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Len returns the number of queued activations.
func (a *Agenda) Len() int {
	return len(a.queue)
}

// Contains reports whether act is queued.
func (a *Agenda) Contains(act *rete.Activation) bool {
	_, ok := a.entries[act]
	return ok
}

// Activations returns the queued activations in firing order, before
// filtering.
func (a *Agenda) Activations() []*rete.Activation {
	q := make(activationQueue, len(a.queue))
	for i, e := range a.queue {
		q[i] = &entry{act: e.act, index: i}
	}
	out := make([]*rete.Activation, 0, len(q))
	for q.Len() > 0 {
		out = append(out, heap.Pop(&q).(*entry).act)
	}
	return out
}

// Add queues a new activation.
func (a *Agenda) Add(act *rete.Activation) error {
	return a.enqueue(act)
}

// Modify reacts to an update of the activation's tuple. A queued
// activation is re-prioritized in place and keeps its sequence number.
// A fired activation of a repeatable rule is queued again; one of a
// non-repeatable rule stays fired.
func (a *Agenda) Modify(act *rete.Activation) error {
	if e, ok := a.entries[act]; ok {
		p, err := a.priority(act)
		if err != nil {
			return err
		}
		if p != act.Priority {
			act.Priority = p
			heap.Fix(&a.queue, e.index)
		}
		return nil
	}
	if act.State == rete.StateFired && !act.Rule().Repeatable() {
		return nil
	}
	return a.enqueue(act)
}

// Remove drops the activation for good. It is called when the underlying
// tuple is retracted.
func (a *Agenda) Remove(act *rete.Activation) error {
	a.dequeue(act)
	act.State = rete.StateRemoved
	for _, f := range a.global {
		if fg, ok := f.(Forgetter); ok {
			fg.Forget(act)
		}
	}
	for _, f := range a.perRule[act.Rule()] {
		if fg, ok := f.(Forgetter); ok {
			fg.Forget(act)
		}
	}
	return nil
}

// Peek returns the head activation without filtering or removing it.
func (a *Agenda) Peek() *rete.Activation {
	if len(a.queue) == 0 {
		return nil
	}
	return a.queue[0].act
}

// Pop removes and returns the highest-priority activation accepted by the
// filters, marking it fired. Rejected activations are left pending and
// are queued again on their next update. Pop returns nil when no queued
// activation is accepted.
//
// A filter failure is raised as EventAgendaFilterFailed. If unhandled the
// failing activation is left pending and a *FilterError is returned; if
// handled the activation is rejected.
func (a *Agenda) Pop() (*rete.Activation, error) {
	act, filters, err := a.head()
	if act == nil {
		return nil, err
	}
	a.popHead()
	for _, f := range filters {
		if s, isSelector := f.(Selector); isSelector {
			s.Select(act)
		}
	}
	act.State = rete.StateFired
	return act, nil
}

// Ready drops rejected activations from the head of the queue and reports
// whether an accepted activation is left for Pop. Filter failures are
// raised as in Pop.
func (a *Agenda) Ready() (bool, error) {
	act, _, err := a.head()
	return act != nil, err
}

// head returns the first queued activation the filters accept, leaving it
// queued. Activations rejected on the way are dropped.
func (a *Agenda) head() (*rete.Activation, []Filter, error) {
	for len(a.queue) > 0 {
		act := a.queue[0].act
		filters := a.filtersFor(act)
		ok, err := accept(filters, act)
		if err != nil {
			ferr := &FilterError{Rule: act.Rule().Name(), Activation: act, Err: err}
			if raised := a.events.RaiseFailure(rete.EventAgendaFilterFailed, act, ferr); raised != nil {
				a.popHead()
				return nil, nil, raised
			}
			ok = false
		}
		if ok {
			return act, filters, nil
		}
		a.logger.Debug("activation rejected", "rule", act.Rule().Name())
		a.popHead()
	}
	return nil, nil, nil
}

// popHead removes the head activation and leaves it pending.
func (a *Agenda) popHead() {
	act := heap.Pop(&a.queue).(*entry).act
	delete(a.entries, act)
	act.State = rete.StatePending
}

// Clear removes every queued activation. Cleared activations are queued
// again on their next update.
func (a *Agenda) Clear() {
	for _, e := range a.queue {
		e.act.State = rete.StatePending
	}
	a.queue = nil
	clear(a.entries)
}

func (a *Agenda) enqueue(act *rete.Activation) error {
	p, err := a.priority(act)
	if err != nil {
		return err
	}
	act.Priority = p
	act.Seq = a.clock.Next()
	act.State = rete.StateActive
	e := &entry{act: act}
	heap.Push(&a.queue, e)
	a.entries[act] = e
	return nil
}

func (a *Agenda) dequeue(act *rete.Activation) {
	e, ok := a.entries[act]
	if !ok {
		return
	}
	heap.Remove(&a.queue, e.index)
	delete(a.entries, act)
}

func (a *Agenda) priority(act *rete.Activation) (int, error) {
	p, err := act.Rule().PriorityOf(act)
	if err != nil {
		return 0, &PriorityError{Rule: act.Rule().Name(), Err: err}
	}
	return p, nil
}

// filtersFor returns the global filters followed by the rule's own
// filters, compiling the latter on first use.
func (a *Agenda) filtersFor(act *rete.Activation) []Filter {
	rule := act.Rule()
	own, ok := a.perRule[rule]
	if !ok {
		own = compileRuleFilters(rule)
		a.perRule[rule] = own
	}
	if len(own) == 0 {
		return a.global
	}
	out := make([]Filter, 0, len(a.global)+len(own))
	out = append(out, a.global...)
	return append(out, own...)
}

func accept(filters []Filter, act *rete.Activation) (bool, error) {
	for _, f := range filters {
		ok, err := f.Accept(act)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
