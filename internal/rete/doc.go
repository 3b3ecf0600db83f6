// Package rete implements the discrimination network: facts, tuples,
// working memory, the alpha and beta node graph and the builder that
// compiles an ir.RuleSet into it.
//
// ARCHITECTURE:
//
// A Network is built once by Build and is immutable afterwards. It holds no
// per-session state; every node keeps its memory in the WorkingMemory of the
// ExecutionContext passed to it, so one Network can serve any number of
// sessions concurrently.
//
// Propagation Flow:
//  1. A session inserts, updates or retracts a Fact through the root node
//  2. Type nodes forward facts whose runtime type is assignable to theirs
//  3. Selection nodes evaluate one alpha condition each
//  4. Alpha memories store accepted facts and feed the right input of beta nodes
//  5. Join, not, exists and aggregate nodes combine left tuples with right
//     facts and write child tuples into their beta memory
//  6. Rule (terminal) nodes turn complete tuples into Activations and hand
//     them to the session's ActivationSink
//
// Propagation is depth-first and synchronous. Each node evaluates every
// expression it needs for a change before it commits to its memory or
// propagates, so an expression failure leaves no partial state below the
// failing node.
//
// CRITICAL PATTERNS:
//
// Self-healing updates: an update reaching an alpha memory that does not
// hold the fact is treated as an assert. The same applies to beta memories
// receiving an update for a child tuple they never created.
//
// Deterministic iteration: memories iterate in insertion order, so activation
// creation order (and therefore FIFO conflict resolution) depends only on
// the order of mutations.
package rete
