package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by ReadSession for unknown IDs.
var ErrSessionNotFound = errors.New("session not found")

// ReadSession returns the record of one session.
func (j *Journal) ReadSession(ctx context.Context, id string) (SessionRecord, error) {
	var rec SessionRecord
	err := j.db.QueryRowContext(ctx, `
		SELECT id, rule_set, rule_set_hash, rules FROM sessions WHERE id = ?
	`, id).Scan(&rec.ID, &rec.RuleSet, &rec.RuleSetHash, &rec.Rules)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("read session: %w", err)
	}
	return rec, nil
}

// ListSessions returns every journaled session ordered by ID. UUIDv7 IDs
// sort by creation time.
func (j *Journal) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, rule_set, rule_set_hash, rules FROM sessions ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionRecord{}
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.RuleSet, &rec.RuleSetHash, &rec.Rules); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Read returns the entries of a session ordered by seq. It returns an
// empty slice, not nil, when the session has no entries.
func (j *Journal) Read(ctx context.Context, sessionID string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT session_id, seq, kind, rule, fact, fact_type, detail
		FROM entries
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
}

// ReadKind returns the entries of one kind for a session ordered by seq.
func (j *Journal) ReadKind(ctx context.Context, sessionID, kind string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT session_id, seq, kind, rule, fact, fact_type, detail
		FROM entries
		WHERE session_id = ? AND kind = ?
		ORDER BY seq ASC
	`, sessionID, kind)
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var detail string
	if err := rows.Scan(&e.SessionID, &e.Seq, &e.Kind, &e.Rule, &e.Fact, &e.FactType, &detail); err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
		return Entry{}, fmt.Errorf("unmarshal detail of entry %d: %w", e.Seq, err)
	}
	if len(e.Detail) == 0 {
		e.Detail = nil
	}
	return e, nil
}
