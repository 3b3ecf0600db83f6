// Package metrics exports session activity as Prometheus counters.
//
// A Metrics value is registered once and attached to any number of
// sessions; it counts their events through the session event bus.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/rete/internal/rete"
)

const namespace = "rete"

// Source is a session whose events can be counted.
type Source interface {
	Events() *rete.Events
}

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	sessions    prometheus.Counter
	facts       *prometheus.CounterVec
	activations *prometheus.CounterVec
	fired       *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "attached_total",
			Help:      "Total sessions attached to these metrics",
		}),
		facts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "facts_total",
			Help:      "Total working memory mutations by operation",
		}, []string{"op"}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agenda",
			Name:      "activations_total",
			Help:      "Total activation changes by event",
		}, []string{"event"}),
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "rules_fired_total",
			Help:      "Total rule firings by rule",
		}, []string{"rule"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "failures_total",
			Help:      "Total expression failures by kind and whether a handler handled them",
		}, []string{"kind", "handled"}),
	}

	var errs []error
	for _, c := range []prometheus.Collector{m.sessions, m.facts, m.activations, m.fired, m.failures} {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return m, nil
}

// Attach counts src's events from now on.
func (m *Metrics) Attach(src Source) {
	m.sessions.Inc()
	src.Events().Subscribe(m.observe)
}

func (m *Metrics) observe(ev *rete.Event) {
	switch ev.Kind {
	case rete.EventFactInserted:
		m.facts.WithLabelValues("insert").Inc()
	case rete.EventFactUpdated:
		m.facts.WithLabelValues("update").Inc()
	case rete.EventFactRetracted:
		m.facts.WithLabelValues("retract").Inc()
	case rete.EventActivationCreated:
		m.activations.WithLabelValues("created").Inc()
	case rete.EventActivationUpdated:
		m.activations.WithLabelValues("updated").Inc()
	case rete.EventActivationDeleted:
		m.activations.WithLabelValues("deleted").Inc()
	case rete.EventRuleFired:
		m.fired.WithLabelValues(ev.Activation.Rule().Name()).Inc()
	default:
		if ev.Kind.IsFailure() {
			// Handlers registered after Attach run later, so this sees
			// Handled only for handlers subscribed earlier.
			m.failures.WithLabelValues(ev.Kind.String(), fmt.Sprint(ev.Handled)).Inc()
		}
	}
}
