// Package journal records session events in SQLite.
//
// The journal is an observability sink: Attach subscribes to a session's
// event bus and appends one row per event. The journal is never read back
// into a session; working memory stays in-process.
//
// Schema:
//
//	sessions(id, rule_set, rule_set_hash, rules)
//	entries(session_id, seq, kind, rule, fact, fact_type, detail)
//
// entries are ordered by (session_id, seq). detail is canonical JSON.
//
// The database is opened in WAL mode with a single connection, so exactly
// one writer exists per process.
package journal
