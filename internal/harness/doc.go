// Package harness provides conformance testing for rule sets.
//
// The harness drives a fresh session through a scenario, records a trace
// of fact and rule events, and validates assertions against the trace and
// the final working memory. Scenarios run against the demo order rule set
// unless WithNetwork is given.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	session_id: fixed-id        # optional
//	max_cycles: 100             # optional, per fire step
//	steps:
//	  - insert:
//	      - customer: {id: c1, tier: gold}
//	      - order: {id: o1, customer: c1, amount: 2500, rush: true}
//	  - fire: {}
//	  - update:
//	      - order: {id: o1, customer: c1, amount: 900}
//	  - fire: {expect: 1}
//	  - retract:
//	      - order: {id: o1}
//	  - insert:
//	      - customer: {id: c1}
//	    expect_error: DUPLICATE_FACT
//	assertions:
//	  - type: fired
//	    rule: rush-gold-order
//	  - type: fired_order
//	    rules: [rush-gold-order, gold-discount]
//	  - type: fired_count
//	    rule: gold-discount
//	    count: 1
//	  - type: fact_count
//	    kind: discount
//	    count: 1
//	  - type: fact
//	    kind: summary
//	    fields: {customer: c1, orders: 1}
//
// A step holds exactly one operation. Batch operations are atomic: a step
// that fails changes nothing. "fire" needs a mapping value; use "{}" for a
// plain fire.
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON trace of a scenario with
// testdata/golden/{name}.golden. Run the tests with -update to regenerate.
package harness
