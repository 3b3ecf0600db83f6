package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/ir"
	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/session"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Pragmas(t *testing.T) {
	j := openTestJournal(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			got, err := j.pragma(tt.pragma)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j1.WriteSession(ctx, SessionRecord{ID: "s1", RuleSet: "rs", RuleSetHash: "h", Rules: 1}))
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()
	rec, err := j2.ReadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "rs", rec.RuleSet)
}

func TestWriteRead(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.WriteSession(ctx, SessionRecord{ID: "s1", RuleSet: "rs", RuleSetHash: "h", Rules: 2}))
	require.NoError(t, j.WriteSession(ctx, SessionRecord{ID: "s1", RuleSet: "ignored"}), "duplicate session is a no-op")

	entries := []Entry{
		{SessionID: "s1", Seq: 2, Kind: "rule_fired", Rule: "r"},
		{SessionID: "s1", Seq: 1, Kind: "fact_inserted", Fact: "fact#1(*x.Y)", FactType: "*x.Y"},
		{SessionID: "s1", Seq: 3, Kind: "action_failed", Rule: "r", Detail: map[string]string{"error": "a < b"}},
	}
	for _, e := range entries {
		require.NoError(t, j.WriteEntry(ctx, e))
	}
	require.NoError(t, j.WriteEntry(ctx, Entry{SessionID: "s1", Seq: 1, Kind: "dup"}), "duplicate seq is ignored")

	got, err := j.Read(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].Seq, got[1].Seq, got[2].Seq})
	assert.Equal(t, entries[1], got[0])
	assert.Equal(t, map[string]string{"error": "a < b"}, got[2].Detail)

	failed, err := j.ReadKind(ctx, "s1", "action_failed")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(3), failed[0].Seq)

	none, err := j.Read(ctx, "other")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	rec, err := j.ReadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, SessionRecord{ID: "s1", RuleSet: "rs", RuleSetHash: "h", Rules: 2}, rec)
}

func TestWriteEntry_RequiresSession(t *testing.T) {
	j := openTestJournal(t)
	err := j.WriteEntry(context.Background(), Entry{SessionID: "missing", Seq: 1, Kind: "x"})
	assert.Error(t, err)
}

func TestReadSession_NotFound(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.ReadSession(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestListSessions(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, j.WriteSession(ctx, SessionRecord{ID: id, RuleSet: "rs", RuleSetHash: "h"}))
	}
	recs, err := j.ListSessions(ctx)
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

type ticket struct {
	ID string
}

func TestAttach(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	net, err := rete.Build(ir.RuleSet{Name: "journaled", Rules: []ir.Rule{{
		Name:     "close",
		Priority: 3,
		Patterns: []ir.Pattern{ir.Match[*ticket]("t")},
		Actions: []ir.Action{ir.Do1("close", "t", func(ctx ir.Context, t *ticket) error {
			return ctx.Retract(t)
		})},
	}}})
	require.NoError(t, err)

	s, err := session.NewFactory(net).CreateSession(
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithIDGenerator(session.NewFixedGenerator("session-1")),
	)
	require.NoError(t, err)
	rec, err := j.Attach(ctx, s)
	require.NoError(t, err)

	require.NoError(t, s.Insert(&ticket{ID: "T-1"}))
	_, err = s.Fire()
	require.NoError(t, err)
	require.NoError(t, rec.Err())

	entries, err := j.Read(ctx, "session-1")
	require.NoError(t, err)
	kinds := make([]string, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []string{
		"fact_inserting", "activation_created", "fact_inserted",
		"rule_firing",
		"fact_retracting", "activation_deleted", "fact_retracted",
		"rule_fired",
	}, kinds)
	assert.Equal(t, int64(len(entries)), rec.Count())

	assert.Equal(t, "fact#1(*journal.ticket)", entries[0].Fact)
	assert.Equal(t, "*journal.ticket", entries[0].FactType)
	assert.Equal(t, "close", entries[1].Rule)
	assert.Equal(t, map[string]string{"priority": "3", "tuple_len": "1"}, entries[1].Detail)

	sess, err := j.ReadSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, net.Hash(), sess.RuleSetHash)
	assert.Equal(t, 1, sess.Rules)
}
