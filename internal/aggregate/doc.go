// Package aggregate provides the incremental reducers used by aggregate nodes.
//
// An Aggregator instance belongs to exactly one left tuple of an aggregate
// node. The node feeds it source-fact changes (Add, Modify, Remove) and turns
// every returned Result into exactly one assert, update or retract of a
// synthetic aggregate fact.
//
// Built-in aggregators:
//   - Collect: one *Collection holding every matching fact
//   - Project: distinct projected values, reference-counted
//   - Flatten: distinct elements of per-fact sequences, reference-counted
//   - GroupBy: one *Group per distinct key, never empty
//
// Aggregators evaluate all selectors of a call before mutating their state,
// so a selector failure leaves the aggregator unchanged.
//
// Aggregators are not safe for concurrent use; they live inside a single
// session's working memory.
package aggregate
