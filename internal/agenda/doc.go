// Package agenda implements conflict resolution for rete sessions.
//
// The agenda is the ActivationSink of one session. It orders queued
// activations by descending priority with a strict FIFO tie-break on a
// monotonic insertion counter, and admits or rejects the head activation
// through agenda filters when it is popped:
//
//   - PredicateFilter rejects an activation if any predicate is false.
//   - KeyChangeFilter accepts an activation only if its projected key
//     differs from the key recorded when the same activation was last
//     selected. Keys are recorded in the Select hook, never while
//     filtering.
//
// Global filters apply to every activation. Per-rule filters are compiled
// from the rule definition and apply to that rule only.
//
// Activation lifecycle:
//
//	Pending -> Active (queued) -> Fired -> Removed
//
// A fired activation of a repeatable rule is queued again when its tuple is
// updated. A fired activation of a non-repeatable rule is never queued
// again for the same tuple.
//
// The agenda is not safe for concurrent use.
package agenda
