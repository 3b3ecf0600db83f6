package aggregate

import (
	"fmt"
	"slices"
	"sort"
)

// Built-in aggregator names.
const (
	NameCollect = "Collect"
	NameProject = "Project"
	NameFlatten = "Flatten"
	NameGroupBy = "GroupBy"
)

// Expression names used by the built-in aggregators.
const (
	ExprSelector        = "Selector"
	ExprKeySelector     = "KeySelector"
	ExprElementSelector = "ElementSelector"
)

// Fact is the view of a source fact an aggregator works with.
// Implementations must be comparable; aggregators key their state by Fact.
type Fact interface {
	Value() any
}

// Selector evaluates a named aggregate expression against a source fact.
// Selectors are bound to the owning left tuple by the aggregate node.
type Selector func(f Fact) (any, error)

// Selectors maps expression names to bound selectors.
type Selectors map[string]Selector

// Action is the kind of change an aggregation result describes.
type Action int

const (
	// Added means a new aggregate exists.
	Added Action = iota + 1
	// Modified means an existing aggregate changed.
	Modified
	// Removed means an aggregate no longer exists.
	Removed
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Result is one aggregate change.
//
// Previous is set on Modified results when the aggregate value was replaced
// by a different (but key-equal) value, so the node can find the fact that
// represents it.
type Result struct {
	Action    Action
	Aggregate any
	Previous  any
}

// Aggregator folds a changing set of source facts into aggregates.
type Aggregator interface {
	Add(facts []Fact) ([]Result, error)
	Modify(facts []Fact) ([]Result, error)
	Remove(facts []Fact) ([]Result, error)

	// Aggregates returns the currently materialized aggregates.
	Aggregates() []any
}

// Factory creates aggregator instances, one per left tuple.
type Factory interface {
	Name() string

	// ExprNames lists the expression names Create requires.
	ExprNames() []string

	Create(selectors Selectors) (Aggregator, error)
}

// FactoryFunc adapts a function to the Factory interface for custom aggregators.
func FactoryFunc(name string, exprNames []string, create func(Selectors) (Aggregator, error)) Factory {
	return &funcFactory{name: name, exprNames: exprNames, create: create}
}

type funcFactory struct {
	name      string
	exprNames []string
	create    func(Selectors) (Aggregator, error)
}

func (f *funcFactory) Name() string        { return f.name }
func (f *funcFactory) ExprNames() []string { return slices.Clone(f.exprNames) }
func (f *funcFactory) Create(s Selectors) (Aggregator, error) {
	if err := requireSelectors(f.name, f.exprNames, s); err != nil {
		return nil, err
	}
	return f.create(s)
}

// Registry maps aggregator names to factories.
// A Registry is read-only once handed to the builder.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in aggregators.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for _, f := range []Factory{
		FactoryFunc(NameCollect, nil, func(Selectors) (Aggregator, error) {
			return NewCollection(), nil
		}),
		FactoryFunc(NameProject, []string{ExprSelector}, func(s Selectors) (Aggregator, error) {
			return NewProjection(s[ExprSelector]), nil
		}),
		FactoryFunc(NameFlatten, []string{ExprSelector}, func(s Selectors) (Aggregator, error) {
			return NewFlattening(s[ExprSelector]), nil
		}),
		FactoryFunc(NameGroupBy, []string{ExprKeySelector, ExprElementSelector}, func(s Selectors) (Aggregator, error) {
			return NewGroupBy(s[ExprKeySelector], s[ExprElementSelector]), nil
		}),
	} {
		r.factories[f.Name()] = f
	}
	return r
}

// Register adds a custom factory. Names must be unique.
func (r *Registry) Register(f Factory) error {
	if f == nil || f.Name() == "" {
		return fmt.Errorf("aggregator factory must have a name")
	}
	if _, exists := r.factories[f.Name()]; exists {
		return fmt.Errorf("duplicate aggregator %q", f.Name())
	}
	r.factories[f.Name()] = f
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered aggregator names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func requireSelectors(name string, required []string, s Selectors) error {
	for _, n := range required {
		if s[n] == nil {
			return fmt.Errorf("aggregator %s requires expression %q", name, n)
		}
	}
	return nil
}
