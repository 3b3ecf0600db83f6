package rete

import "github.com/roach88/rete/internal/ir"

// EventKind identifies a session lifecycle event.
type EventKind int

const (
	EventFactInserting EventKind = iota + 1
	EventFactInserted
	EventFactUpdating
	EventFactUpdated
	EventFactRetracting
	EventFactRetracted
	EventActivationCreated
	EventActivationUpdated
	EventActivationDeleted
	EventRuleFiring
	EventRuleFired
	EventConditionFailed
	EventAgendaFilterFailed
	EventActionFailed
)

var eventKindNames = map[EventKind]string{
	EventFactInserting:      "fact_inserting",
	EventFactInserted:       "fact_inserted",
	EventFactUpdating:       "fact_updating",
	EventFactUpdated:        "fact_updated",
	EventFactRetracting:     "fact_retracting",
	EventFactRetracted:      "fact_retracted",
	EventActivationCreated:  "activation_created",
	EventActivationUpdated:  "activation_updated",
	EventActivationDeleted:  "activation_deleted",
	EventRuleFiring:         "rule_firing",
	EventRuleFired:          "rule_fired",
	EventConditionFailed:    "condition_failed",
	EventAgendaFilterFailed: "agenda_filter_failed",
	EventActionFailed:       "action_failed",
}

// String returns the snake_case event name.
func (k EventKind) String() string {
	if n, ok := eventKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// IsFailure reports whether the kind is one of the failure events.
func (k EventKind) IsFailure() bool {
	return k == EventConditionFailed || k == EventAgendaFilterFailed || k == EventActionFailed
}

// Event is published on the session's Events bus.
//
// Fact is set for fact lifecycle events, Activation for activation and rule
// events. Failure events carry Err; a handler sets Handled to suppress the
// error. A handled condition failure evaluates as "no match", a handled
// agenda filter failure rejects the activation, and a handled action failure
// lets the fire loop continue.
type Event struct {
	Kind       EventKind
	Fact       *Fact
	Object     any
	Activation *Activation
	Err        error
	Handled    bool
}

// Rule returns the definition of the rule the event concerns, if any.
func (e *Event) Rule() *ir.Rule {
	if e.Activation == nil {
		return nil
	}
	return e.Activation.Rule().Definition()
}

// Handler receives published events.
type Handler func(*Event)

// Events is a synchronous publish/subscribe bus.
//
// Handlers run on the publishing goroutine in subscription order. The bus
// is not safe for concurrent use; subscribe before using the session.
type Events struct {
	byKind map[EventKind][]Handler
	all    []Handler
}

// NewEvents creates an empty bus.
func NewEvents() *Events {
	return &Events{byKind: make(map[EventKind][]Handler)}
}

// Subscribe registers h for the given kinds, or for every kind when none
// are given.
func (b *Events) Subscribe(h Handler, kinds ...EventKind) {
	if len(kinds) == 0 {
		b.all = append(b.all, h)
		return
	}
	for _, k := range kinds {
		b.byKind[k] = append(b.byKind[k], h)
	}
}

// Publish delivers ev to the subscribed handlers.
func (b *Events) Publish(ev *Event) {
	if b == nil {
		return
	}
	for _, h := range b.byKind[ev.Kind] {
		h(ev)
	}
	for _, h := range b.all {
		h(ev)
	}
}

// RaiseFailure publishes a failure event and returns err unless a handler
// marked it handled.
func (b *Events) RaiseFailure(kind EventKind, act *Activation, err error) error {
	ev := &Event{Kind: kind, Activation: act, Err: err}
	b.Publish(ev)
	if ev.Handled {
		return nil
	}
	return err
}
