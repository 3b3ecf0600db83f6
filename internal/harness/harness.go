package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/rete/internal/agenda"
	"github.com/roach88/rete/internal/demo"
	"github.com/roach88/rete/internal/journal"
	"github.com/roach88/rete/internal/metrics"
	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/session"
)

var eventRuleFired = rete.EventRuleFired.String()

// Option configures a scenario run.
type Option func(*options)

type options struct {
	network     *rete.Network
	journal     *journal.Journal
	metrics     *metrics.Metrics
	logger      *slog.Logger
	sessionOpts []session.Option
}

// WithNetwork runs scenarios against net instead of the demo network.
func WithNetwork(net *rete.Network) Option {
	return func(o *options) {
		o.network = net
	}
}

// WithJournal records every session event in j.
func WithJournal(j *journal.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithMetrics counts session events in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger sets the session logger. Logs are discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSessionOptions passes extra options to the scenario session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) {
		o.sessionOpts = append(o.sessionOpts, opts...)
	}
}

// Harness is the test execution engine.
// It drives one session through a scenario and records its trace.
type Harness struct {
	session  *session.Session
	recorder *journal.Recorder
	clock    *agenda.Clock
	result   *Result
	step     int
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh session for isolation.
//
// Execution flow:
// 1. Create a session over the network, attaching journal and metrics
// 2. Execute steps, checking expected errors and fire counts
// 3. Snapshot working memory
// 4. Evaluate assertions and return the result
//
// An error is returned only when the scenario cannot run at all; step and
// assertion failures are reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	net := o.network
	if net == nil {
		var err error
		if net, err = demo.Build(rete.WithBuildLogger(o.logger)); err != nil {
			return nil, fmt.Errorf("failed to build demo network: %w", err)
		}
	}

	h := &Harness{clock: agenda.NewClock(), result: NewResult()}

	// Scenario settings override the options given to Run.
	var attachErr error
	sessionOpts := append([]session.Option{session.WithLogger(o.logger)}, o.sessionOpts...)
	if scenario.MaxCycles > 0 {
		sessionOpts = append(sessionOpts, session.WithMaxCycles(scenario.MaxCycles))
	}
	sessionOpts = append(sessionOpts,
		session.WithObserver(func(s *session.Session) {
			s.Events().Subscribe(h.record,
				rete.EventFactInserted, rete.EventFactUpdated, rete.EventFactRetracted, rete.EventRuleFired)
			if o.metrics != nil {
				o.metrics.Attach(s)
			}
			if o.journal != nil {
				h.recorder, attachErr = o.journal.Attach(ctx, s)
			}
		}),
	)
	if scenario.SessionID != "" {
		sessionOpts = append(sessionOpts, session.WithIDGenerator(session.NewFixedGenerator(scenario.SessionID)))
	}

	s, err := session.NewFactory(net).CreateSession(sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if attachErr != nil {
		return nil, fmt.Errorf("failed to attach journal: %w", attachErr)
	}
	h.session = s
	h.result.SessionID = s.ID()

	for i, step := range scenario.Steps {
		h.step = i
		h.execute(step)
	}

	for _, obj := range s.Facts() {
		h.result.Facts[demo.KindOf(obj)]++
		h.result.objects = append(h.result.objects, obj)
	}
	if h.recorder != nil {
		if err := h.recorder.Err(); err != nil {
			return nil, fmt.Errorf("failed to write journal: %w", err)
		}
	}

	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(errMsg)
	}
	return h.result, nil
}

// execute runs one step and records any unexpected outcome in the result.
func (h *Harness) execute(step Step) {
	var (
		err   error
		fired int
	)
	switch step.Op() {
	case OpInsert:
		err = h.session.InsertAll(demo.Objects(step.Insert)...)
	case OpUpdate:
		err = h.session.UpdateAll(demo.Objects(step.Update)...)
	case OpRetract:
		err = h.session.RetractAll(demo.Objects(step.Retract)...)
	case OpFire:
		if step.Fire.Limit > 0 {
			fired, err = h.session.FireN(step.Fire.Limit)
		} else {
			fired, err = h.session.Fire()
		}
		h.result.Fired += fired
	}

	label := fmt.Sprintf("steps[%d] (%s)", h.step, step.Op())
	switch {
	case step.ExpectError != "" && err == nil:
		h.result.AddError(fmt.Sprintf("%s: expected error containing %q, got none", label, step.ExpectError))
	case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
		h.result.AddError(fmt.Sprintf("%s: expected error containing %q, got %v", label, step.ExpectError, err))
	case step.ExpectError == "" && err != nil:
		h.result.AddError(fmt.Sprintf("%s: %v", label, err))
	}

	if step.Fire != nil && step.Fire.Expect != nil && fired != *step.Fire.Expect {
		h.result.AddError(fmt.Sprintf("%s: expected %d rules fired, got %d", label, *step.Fire.Expect, fired))
	}
}

func (h *Harness) record(ev *rete.Event) {
	te := TraceEvent{
		Seq:  h.clock.Next(),
		Step: h.step,
		Type: ev.Kind.String(),
	}
	if r := ev.Rule(); r != nil {
		te.Rule = r.Name
	}
	if ev.Fact != nil {
		te.Fact = describe(ev.Fact.Object())
	}
	h.result.Trace = append(h.result.Trace, te)
}

// describe renders a fact as "kind:identity".
func describe(obj any) string {
	if id, ok := obj.(rete.Identifiable); ok {
		return fmt.Sprintf("%s:%v", demo.KindOf(obj), id.FactIdentity())
	}
	return demo.KindOf(obj)
}
