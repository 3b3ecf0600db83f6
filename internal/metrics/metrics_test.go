package metrics

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/ir"
	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/session"
)

type job struct {
	Name string
	Fail bool
}

func newTestSession(t *testing.T, m *Metrics) *session.Session {
	t.Helper()
	net, err := rete.Build(ir.RuleSet{Name: "metrics", Rules: []ir.Rule{{
		Name:     "run",
		Patterns: []ir.Pattern{ir.Match[*job]("j")},
		Actions: []ir.Action{ir.Do1("run", "j", func(_ ir.Context, j *job) error {
			if j.Fail {
				return errors.New("job failed")
			}
			return nil
		})},
	}}})
	require.NoError(t, err)
	s, err := session.NewFactory(net).CreateSession(
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithObserver(func(s *session.Session) { m.Attach(s) }),
	)
	require.NoError(t, err)
	return s
}

func TestMetrics_CountsSessionEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	s := newTestSession(t, m)

	a, b := &job{Name: "a"}, &job{Name: "b"}
	require.NoError(t, s.InsertAll(a, b))
	require.NoError(t, s.Update(a))
	require.NoError(t, s.Retract(b))
	_, err = s.Fire()
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.facts.WithLabelValues("insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.facts.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.facts.WithLabelValues("retract")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activations.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activations.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activations.WithLabelValues("deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fired.WithLabelValues("run")))
}

func TestMetrics_CountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	s := newTestSession(t, m)

	require.NoError(t, s.Insert(&job{Name: "x", Fail: true}))
	_, err = s.Fire()
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("action_failed", "false")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.fired.WithLabelValues("run")))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_Names(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	s := newTestSession(t, m)
	require.NoError(t, s.Insert(&job{Name: "a"}))

	n, err := testutil.GatherAndCount(reg,
		"rete_session_attached_total",
		"rete_session_facts_total",
		"rete_agenda_activations_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
