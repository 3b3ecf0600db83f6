// Package session runs rules against facts.
//
// A Factory wraps one compiled, immutable rete.Network and may be shared by
// any number of goroutines. Each Session created from it owns its own
// working memory, agenda and event bus, and is not safe for concurrent use.
//
// Insert, Update and Retract propagate synchronously through the network
// before returning. Fire pops activations in conflict-resolution order and
// runs each rule's actions in declaration order. Actions may mutate the
// session through ir.Context; those mutations propagate immediately and
// their activations are eligible within the same Fire call.
//
// Nothing is rolled back: when an action fails, the effects of the actions
// that already ran stand.
package session
