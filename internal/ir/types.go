package ir

import (
	"reflect"

	"github.com/roach88/rete/internal/aggregate"
)

// RuleSet is a named collection of rule definitions.
type RuleSet struct {
	Name  string `json:"name"`
	Rules []Rule `json:"rules"`
}

// Repeatability controls whether a rule may fire again for the same tuple.
type Repeatability int

const (
	// Repeatable rules fire again when the facts behind a fired activation
	// are updated. This is the default.
	Repeatable Repeatability = iota
	// NonRepeatable rules fire at most once per tuple, regardless of later
	// updates that keep the tuple matching.
	NonRepeatable
)

// String returns the repeatability name.
func (r Repeatability) String() string {
	if r == NonRepeatable {
		return "non_repeatable"
	}
	return "repeatable"
}

// Rule is a single rule definition.
type Rule struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Priority is the static salience. Higher fires first.
	Priority int `json:"priority"`

	// PriorityExpr, when set, recomputes the priority from the activation's
	// facts every time the activation is (re)queued. Its result must be an int.
	PriorityExpr *Expr `json:"-"`

	Repeatability Repeatability `json:"repeatability"`

	// Patterns are joined strictly in declaration order.
	Patterns []Pattern `json:"patterns"`

	// Actions execute in declaration order when the rule fires.
	Actions []Action `json:"-"`

	// Filters are agenda filters applying to this rule's activations only.
	Filters []Filter `json:"-"`

	// Produces lists fact types the actions may insert or update.
	// Used for static cycle analysis only.
	Produces []reflect.Type `json:"-"`
}

// PatternKind distinguishes the left-hand-side element kinds.
type PatternKind int

const (
	// KindMatch matches facts of the declared type.
	KindMatch PatternKind = iota
	// KindNot holds while no fact matches the source pattern.
	KindNot
	// KindExists holds while at least one fact matches the source pattern.
	KindExists
	// KindAggregate folds the facts matching the source pattern into
	// one or more aggregate facts of the declared type.
	KindAggregate
)

// String returns the pattern kind name.
func (k PatternKind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindNot:
		return "not"
	case KindExists:
		return "exists"
	case KindAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Pattern is one element of a rule's left-hand side.
//
// For KindMatch the pattern itself carries the conditions. For KindNot and
// KindExists all conditions live on Source. For KindAggregate, Name and Type
// describe the aggregate result while Source describes the aggregated facts;
// conditions on the pattern itself filter the aggregate results.
type Pattern struct {
	Name string       `json:"name,omitempty"`
	Type reflect.Type `json:"-"`
	Kind PatternKind  `json:"kind"`

	// Conditions are single-fact conditions evaluated in the alpha network.
	Conditions []Expr `json:"-"`

	// Joins are conditions referencing this pattern and earlier declarations.
	Joins []Expr `json:"-"`

	Source    *Pattern       `json:"source,omitempty"`
	Aggregate *AggregateSpec `json:"aggregate,omitempty"`
}

// Where returns a copy of the pattern with additional join conditions.
func (p Pattern) Where(joins ...Expr) Pattern {
	p.Joins = append(append([]Expr(nil), p.Joins...), joins...)
	return p
}

// Declares reports whether the pattern introduces a referenceable
// declaration into the rule's tuple.
func (p Pattern) Declares() bool {
	return p.Kind == KindMatch || p.Kind == KindAggregate
}

// AggregateSpec names the aggregator and its named expressions.
type AggregateSpec struct {
	Name  string          `json:"name"`
	Exprs map[string]Expr `json:"-"`
}

// FilterKind distinguishes agenda filter behaviours.
type FilterKind int

const (
	// FilterPredicate rejects an activation if any expression is false.
	FilterPredicate FilterKind = iota
	// FilterKeyChange accepts an activation only if the projected key
	// differs from the key recorded when it was last selected.
	FilterKeyChange
)

// String returns the filter kind name.
func (k FilterKind) String() string {
	if k == FilterKeyChange {
		return "key_change"
	}
	return "predicate"
}

// Filter is a per-rule agenda filter definition.
type Filter struct {
	Kind  FilterKind
	Exprs []Expr
}

// Match declares a pattern matching facts of type T.
func Match[T any](name string, conditions ...Expr) Pattern {
	return Pattern{
		Name:       name,
		Type:       reflect.TypeFor[T](),
		Kind:       KindMatch,
		Conditions: conditions,
	}
}

// Not declares a negative existential over source.
func Not(source Pattern) Pattern {
	return Pattern{Kind: KindNot, Source: &source}
}

// Exists declares a positive existential over source.
func Exists(source Pattern) Pattern {
	return Pattern{Kind: KindExists, Source: &source}
}

// Aggregate declares an aggregation of source into facts of type T.
func Aggregate[T any](name string, source Pattern, spec AggregateSpec) Pattern {
	return Pattern{
		Name:      name,
		Type:      reflect.TypeFor[T](),
		Kind:      KindAggregate,
		Source:    &source,
		Aggregate: &spec,
	}
}

// Collect aggregates all facts matching source into one *aggregate.Collection.
func Collect(name string, source Pattern) Pattern {
	return Aggregate[*aggregate.Collection](name, source, AggregateSpec{Name: aggregate.NameCollect})
}

// Project aggregates source into distinct projected values of type V.
func Project[V any](name string, source Pattern, selector Expr) Pattern {
	return Aggregate[V](name, source, AggregateSpec{
		Name:  aggregate.NameProject,
		Exprs: map[string]Expr{aggregate.ExprSelector: selector},
	})
}

// Flatten aggregates source into the distinct elements of the sequences
// returned by selector. Each element becomes a fact of type V.
func Flatten[V any](name string, source Pattern, selector Expr) Pattern {
	return Aggregate[V](name, source, AggregateSpec{
		Name:  aggregate.NameFlatten,
		Exprs: map[string]Expr{aggregate.ExprSelector: selector},
	})
}

// GroupBy aggregates source into one *aggregate.Group per distinct key.
func GroupBy(name string, source Pattern, key, element Expr) Pattern {
	return Aggregate[*aggregate.Group](name, source, AggregateSpec{
		Name: aggregate.NameGroupBy,
		Exprs: map[string]Expr{
			aggregate.ExprKeySelector:     key,
			aggregate.ExprElementSelector: element,
		},
	})
}
