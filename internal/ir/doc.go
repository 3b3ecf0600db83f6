// Package ir provides the rule-definition model consumed by the network builder.
//
// This package contains the definition types only. The rete, agenda and
// session packages import ir; ir imports nothing internal except aggregate
// (for the result types of the built-in aggregations). The model is produced
// by an authoring layer and handed to rete.Build as an already-validated,
// immutable structure.
//
// Key design constraints:
//   - Expressions are native closures compiled once, together with an explicit
//     ordered parameter list (Expr.Params). Match-time invocation never inspects
//     types via reflection; it only indexes into the argument slice.
//   - Expr.Text is the canonical form of an expression. It identifies the
//     expression for structural sharing of alpha chains and for diagnostics,
//     so two conditions with the same text and parameter types must behave
//     identically.
//   - Patterns are joined strictly in declaration order.
package ir
