package session

import (
	"fmt"
	"log/slog"

	"github.com/roach88/rete/internal/agenda"
	"github.com/roach88/rete/internal/rete"
)

// Option configures a Session.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	maxCycles int
	filters   []func() agenda.Filter
	ids       IDGenerator
	observers []func(*Session)
}

// WithLogger sets the session logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMaxCycles limits the number of rules one Fire call may fire.
// 0 (the default) means unlimited.
func WithMaxCycles(n int) Option {
	return func(c *config) {
		c.maxCycles = n
	}
}

// WithFilter adds a global agenda filter. newFilter is called once per
// session, so stateful filters are never shared.
func WithFilter(newFilter func() agenda.Filter) Option {
	return func(c *config) {
		c.filters = append(c.filters, newFilter)
	}
}

// WithIDGenerator replaces the session ID generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}

// WithObserver registers a callback run on every new session before it is
// returned, typically to subscribe to its events.
func WithObserver(fn func(*Session)) Option {
	return func(c *config) {
		c.observers = append(c.observers, fn)
	}
}

// Factory creates sessions over one compiled network.
//
// Factory is safe for concurrent use.
type Factory struct {
	net  *rete.Network
	opts []Option
}

// NewFactory creates a factory. opts are applied to every session before
// the options given to CreateSession.
func NewFactory(net *rete.Network, opts ...Option) *Factory {
	return &Factory{net: net, opts: opts}
}

// Network returns the compiled network.
func (f *Factory) Network() *rete.Network {
	return f.net
}

// CreateSession creates an empty session.
func (f *Factory) CreateSession(opts ...Option) (*Session, error) {
	cfg := config{logger: slog.Default(), ids: UUIDv7Generator{}}
	for _, opt := range f.opts {
		opt(&cfg)
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		id:        cfg.ids.Generate(),
		net:       f.net,
		events:    rete.NewEvents(),
		maxCycles: cfg.maxCycles,
	}
	s.logger = cfg.logger.With("session_id", s.id)

	agendaOpts := []agenda.Option{agenda.WithLogger(s.logger)}
	for _, newFilter := range cfg.filters {
		agendaOpts = append(agendaOpts, agenda.WithFilter(newFilter()))
	}
	s.agenda = agenda.New(s.events, agendaOpts...)
	s.ctx = rete.NewExecutionContext(s.agenda, s.events, s.logger)

	for _, fn := range cfg.observers {
		fn(s)
	}
	if err := f.net.Activate(s.ctx); err != nil {
		return nil, fmt.Errorf("activate network: %w", err)
	}

	s.logger.Info("session created",
		"rule_set", f.net.Name(),
		"rules", len(f.net.Rules()),
		"max_cycles", s.maxCycles,
	)
	return s, nil
}

// Session is one working memory and agenda over a shared network.
//
// Session is not safe for concurrent use.
type Session struct {
	id        string
	net       *rete.Network
	ctx       *rete.ExecutionContext
	agenda    *agenda.Agenda
	events    *rete.Events
	logger    *slog.Logger
	maxCycles int
	halted    bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Network returns the compiled network the session runs.
func (s *Session) Network() *rete.Network {
	return s.net
}

// Schema returns the diagnostic view of the network.
func (s *Session) Schema() rete.Schema {
	return s.net.Schema()
}

// Events returns the session's event bus.
func (s *Session) Events() *rete.Events {
	return s.events
}

// Agenda returns the session's agenda.
func (s *Session) Agenda() *agenda.Agenda {
	return s.agenda
}

// Len returns the number of facts in working memory.
func (s *Session) Len() int {
	return s.ctx.WM.Len()
}

// Contains reports whether obj is in working memory.
func (s *Session) Contains(obj any) bool {
	return s.ctx.WM.Contains(obj)
}

// Facts returns every fact object in insertion order.
func (s *Session) Facts() []any {
	facts := s.ctx.WM.Facts()
	out := make([]any, len(facts))
	for i, f := range facts {
		out[i] = f.Object()
	}
	return out
}

// Query returns the session's facts assignable to T, in insertion order.
func Query[T any](s *Session) []T {
	var out []T
	for _, f := range s.ctx.WM.Facts() {
		if v, ok := f.Object().(T); ok {
			out = append(out, v)
		}
	}
	return out
}
