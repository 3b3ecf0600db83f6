package journal

import (
	"context"
	"errors"
	"reflect"
	"strconv"

	"github.com/roach88/rete/internal/ir"
	"github.com/roach88/rete/internal/rete"
)

// Source is a session whose events can be journaled.
type Source interface {
	ID() string
	Network() *rete.Network
	Events() *rete.Events
}

// Recorder appends a session's events to the journal.
//
// Event handlers cannot fail, so write errors are collected and reported
// by Err.
type Recorder struct {
	journal   *Journal
	ctx       context.Context
	sessionID string
	seq       int64
	errs      []error
}

// Attach records the session and subscribes to all of its events.
// ctx bounds every write the recorder makes.
func (j *Journal) Attach(ctx context.Context, src Source) (*Recorder, error) {
	net := src.Network()
	err := j.WriteSession(ctx, SessionRecord{
		ID:          src.ID(),
		RuleSet:     net.Name(),
		RuleSetHash: net.Hash(),
		Rules:       len(net.Rules()),
	})
	if err != nil {
		return nil, err
	}
	r := &Recorder{journal: j, ctx: ctx, sessionID: src.ID()}
	src.Events().Subscribe(r.record)
	return r, nil
}

// Count returns the number of entries recorded.
func (r *Recorder) Count() int64 {
	return r.seq
}

// Err returns the write errors seen so far.
func (r *Recorder) Err() error {
	return errors.Join(r.errs...)
}

func (r *Recorder) record(ev *rete.Event) {
	r.seq++
	if err := r.journal.WriteEntry(r.ctx, toEntry(r.sessionID, r.seq, ev)); err != nil {
		r.errs = append(r.errs, err)
	}
}

func toEntry(sessionID string, seq int64, ev *rete.Event) Entry {
	e := Entry{SessionID: sessionID, Seq: seq, Kind: ev.Kind.String()}
	if ev.Fact != nil {
		e.Fact = ev.Fact.String()
		e.FactType = ir.TypeName(ev.Fact.Type())
	} else if ev.Object != nil {
		e.FactType = ir.TypeName(reflect.TypeOf(ev.Object))
	}

	detail := make(map[string]string)
	if act := ev.Activation; act != nil {
		e.Rule = act.Rule().Name()
		detail["priority"] = strconv.Itoa(act.Priority)
		detail["tuple_len"] = strconv.Itoa(act.Tuple().Len())
	}
	if ev.Err != nil {
		detail["error"] = ev.Err.Error()
	}
	if len(detail) > 0 {
		e.Detail = detail
	}
	return e
}
