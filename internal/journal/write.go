package journal

import (
	"context"
	"fmt"

	"github.com/roach88/rete/internal/ir"
)

// SessionRecord describes a journaled session.
type SessionRecord struct {
	ID          string `json:"id"`
	RuleSet     string `json:"rule_set"`
	RuleSetHash string `json:"rule_set_hash"`
	Rules       int    `json:"rules"`
}

// Entry is one journaled event.
type Entry struct {
	SessionID string            `json:"session_id"`
	Seq       int64             `json:"seq"`
	Kind      string            `json:"kind"`
	Rule      string            `json:"rule,omitempty"`
	Fact      string            `json:"fact,omitempty"`
	FactType  string            `json:"fact_type,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// WriteSession records a session. Writing the same session twice is a
// no-op.
func (j *Journal) WriteSession(ctx context.Context, rec SessionRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, rule_set, rule_set_hash, rules)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.RuleSet, rec.RuleSetHash, rec.Rules)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEntry appends an entry. The session must exist. Duplicate
// (session, seq) pairs are ignored.
func (j *Journal) WriteEntry(ctx context.Context, e Entry) error {
	detail, err := marshalDetail(e.Detail)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO entries (session_id, seq, kind, rule, fact, fact_type, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, e.SessionID, e.Seq, e.Kind, e.Rule, e.Fact, e.FactType, detail)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

// marshalDetail converts entry details to canonical JSON text.
func marshalDetail(detail map[string]string) (string, error) {
	m := make(map[string]any, len(detail))
	for k, v := range detail {
		m[k] = v
	}
	data, err := ir.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(data), nil
}
