package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/rete/internal/aggregate"
	"github.com/roach88/rete/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Rule set and rule errors (E101-E109)
	ErrRuleNameEmpty     = "E101" // rule name is required
	ErrDuplicateRuleName = "E102" // rule names must be unique
	ErrRuleNoPatterns    = "E103" // at least one pattern required
	ErrRuleNoActions     = "E104" // at least one action required

	// Pattern errors (E110-E119)
	ErrPatternNoType         = "E110" // pattern type is required
	ErrDuplicateDeclaration  = "E111" // declaration names must be unique per rule
	ErrPatternNoSource       = "E112" // not/exists/aggregate need a match source
	ErrConditionShape        = "E113" // alpha condition must take only the pattern itself
	ErrUndefinedDeclaration  = "E114" // expression references an unknown declaration
	ErrParamTypeMismatch     = "E115" // parameter type incompatible with declaration
	ErrUnknownAggregator     = "E116" // aggregator not registered
	ErrMissingAggregateExpr  = "E117" // aggregator expression missing
	ErrExpressionNoFunction  = "E118" // compiled expression has no function
	ErrPatternSourceNotMatch = "E119" // source pattern must be a match pattern

	// Activation expression errors (E120-E121)
	ErrInvalidFilter      = "E120" // agenda filter without expressions
	ErrAmbiguousParameter = "E121" // by-type parameter matches zero or several declarations

	// Existential pattern errors (E122)
	ErrExistentialCondition = "E122" // not/exists conditions belong on the source pattern
)

// ValidationError represents a rule definition validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a rule set for structural errors.
// Returns all errors found (does not fail-fast).
//
// registry resolves aggregator names; nil means the built-ins only.
func Validate(rs ir.RuleSet, registry *aggregate.Registry) []ValidationError {
	if registry == nil {
		registry = aggregate.NewRegistry()
	}
	var errs []ValidationError
	names := make(map[string]bool)
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		field := fmt.Sprintf("rules[%d]", i)

		// E101: name is required
		if strings.TrimSpace(rule.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "rule name is required and must be non-empty",
				Code:    ErrRuleNameEmpty,
			})
		} else if names[rule.Name] {
			// E102: duplicate rule name
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate rule name: %q", rule.Name),
				Code:    ErrDuplicateRuleName,
			})
		}
		names[rule.Name] = true

		errs = append(errs, validateRule(rule, field, registry)...)
	}
	return errs
}

// scope is the set of declarations visible to an expression.
type scope map[string]reflect.Type

func validateRule(rule *ir.Rule, field string, registry *aggregate.Registry) []ValidationError {
	var errs []ValidationError

	// E103: at least one pattern
	if len(rule.Patterns) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".patterns",
			Message: fmt.Sprintf("rule %q must have at least one pattern", rule.Name),
			Code:    ErrRuleNoPatterns,
		})
	}

	// E104: at least one action
	if len(rule.Actions) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".actions",
			Message: fmt.Sprintf("rule %q must have at least one action", rule.Name),
			Code:    ErrRuleNoActions,
		})
	}

	declared := make(scope)
	var declaredTypes []reflect.Type
	for j := range rule.Patterns {
		p := &rule.Patterns[j]
		pfield := fmt.Sprintf("%s.patterns[%d]", field, j)
		errs = append(errs, validatePattern(p, pfield, declared, registry)...)
		if p.Declares() && p.Type != nil {
			declaredTypes = append(declaredTypes, p.Type)
			if p.Name != "" {
				if _, dup := declared[p.Name]; dup {
					errs = append(errs, ValidationError{
						Field:   pfield + ".name",
						Message: fmt.Sprintf("duplicate declaration: %q", p.Name),
						Code:    ErrDuplicateDeclaration,
					})
				}
				declared[p.Name] = p.Type
			}
		}
	}

	for k, a := range rule.Actions {
		afield := fmt.Sprintf("%s.actions[%d]", field, k)
		if a.Fn == nil {
			errs = append(errs, ValidationError{
				Field:   afield,
				Message: fmt.Sprintf("action %q has no function", a.Text),
				Code:    ErrExpressionNoFunction,
			})
		}
		// By-type action parameters are resolved against runtime fact types
		// when the rule fires, so only named ones are checked here.
		for m, param := range a.Params {
			if param.Name == "" {
				continue
			}
			errs = append(errs, checkParam(param, fmt.Sprintf("%s.params[%d]", afield, m), declared)...)
		}
	}

	if rule.PriorityExpr != nil {
		errs = append(errs, checkActivationExpr(*rule.PriorityExpr, field+".priority", declared, declaredTypes)...)
	}

	for k, f := range rule.Filters {
		ffield := fmt.Sprintf("%s.filters[%d]", field, k)
		if len(f.Exprs) == 0 {
			errs = append(errs, ValidationError{
				Field:   ffield,
				Message: fmt.Sprintf("%s filter needs at least one expression", f.Kind),
				Code:    ErrInvalidFilter,
			})
		}
		for m, e := range f.Exprs {
			errs = append(errs, checkActivationExpr(e, fmt.Sprintf("%s.exprs[%d]", ffield, m), declared, declaredTypes)...)
		}
	}
	return errs
}

func validatePattern(p *ir.Pattern, field string, declared scope, registry *aggregate.Registry) []ValidationError {
	var errs []ValidationError

	switch p.Kind {
	case ir.KindMatch:
		if p.Type == nil {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: "pattern type is required",
				Code:    ErrPatternNoType,
			})
			return errs
		}
		errs = append(errs, checkConditions(p, field)...)
		errs = append(errs, checkJoins(p, field, declared)...)

	case ir.KindNot, ir.KindExists, ir.KindAggregate:
		if p.Source == nil {
			errs = append(errs, ValidationError{
				Field:   field + ".source",
				Message: fmt.Sprintf("%s pattern requires a source pattern", p.Kind),
				Code:    ErrPatternNoSource,
			})
			return errs
		}
		if p.Kind != ir.KindAggregate && len(p.Conditions)+len(p.Joins) > 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".joins",
				Message: fmt.Sprintf("%s pattern cannot carry conditions; put them on the source pattern", p.Kind),
				Code:    ErrExistentialCondition,
			})
		}
		src := p.Source
		if src.Kind != ir.KindMatch {
			errs = append(errs, ValidationError{
				Field:   field + ".source",
				Message: fmt.Sprintf("source pattern must be a match pattern, got %s", src.Kind),
				Code:    ErrPatternSourceNotMatch,
			})
			return errs
		}
		errs = append(errs, validatePattern(src, field+".source", declared, registry)...)
		if p.Kind == ir.KindAggregate {
			if p.Type == nil {
				errs = append(errs, ValidationError{
					Field:   field + ".type",
					Message: "aggregate result type is required",
					Code:    ErrPatternNoType,
				})
			} else {
				// Conditions on the aggregate result see the result and
				// earlier declarations, like joins of a match pattern.
				errs = append(errs, checkConditions(p, field)...)
				errs = append(errs, checkJoins(p, field, declared)...)
			}
			errs = append(errs, checkAggregate(p, field, declared, registry)...)
		}
	}
	return errs
}

// checkConditions verifies alpha conditions only reference the pattern itself.
func checkConditions(p *ir.Pattern, field string) []ValidationError {
	var errs []ValidationError
	for k, c := range p.Conditions {
		cfield := fmt.Sprintf("%s.conditions[%d]", field, k)
		if c.Fn == nil {
			errs = append(errs, ValidationError{
				Field:   cfield,
				Message: fmt.Sprintf("condition %q has no function", c.Text),
				Code:    ErrExpressionNoFunction,
			})
		}
		if len(c.Params) != 1 || (c.Params[0].Name != "" && c.Params[0].Name != p.Name) {
			errs = append(errs, ValidationError{
				Field:   cfield,
				Message: fmt.Sprintf("condition %q must take exactly the pattern fact; use a join for other declarations", c.Text),
				Code:    ErrConditionShape,
			})
			continue
		}
		errs = append(errs, checkAssignable(c.Params[0], p.Type, cfield)...)
	}
	return errs
}

// checkJoins verifies join parameters reference the pattern or earlier
// declarations.
func checkJoins(p *ir.Pattern, field string, declared scope) []ValidationError {
	var errs []ValidationError
	visible := withSelf(declared, p)
	for k, j := range p.Joins {
		jfield := fmt.Sprintf("%s.joins[%d]", field, k)
		if j.Fn == nil {
			errs = append(errs, ValidationError{
				Field:   jfield,
				Message: fmt.Sprintf("join %q has no function", j.Text),
				Code:    ErrExpressionNoFunction,
			})
		}
		for m, param := range j.Params {
			errs = append(errs, checkParam(param, fmt.Sprintf("%s.params[%d]", jfield, m), visible)...)
		}
	}
	return errs
}

func checkAggregate(p *ir.Pattern, field string, declared scope, registry *aggregate.Registry) []ValidationError {
	var errs []ValidationError
	if p.Aggregate == nil {
		return append(errs, ValidationError{
			Field:   field + ".aggregate",
			Message: "aggregate pattern requires an aggregate specification",
			Code:    ErrUnknownAggregator,
		})
	}
	factory, ok := registry.Lookup(p.Aggregate.Name)
	if !ok {
		return append(errs, ValidationError{
			Field:   field + ".aggregate.name",
			Message: fmt.Sprintf("unknown aggregator %q (registered: %s)", p.Aggregate.Name, strings.Join(registry.Names(), ", ")),
			Code:    ErrUnknownAggregator,
		})
	}
	for _, name := range factory.ExprNames() {
		if _, ok := p.Aggregate.Exprs[name]; !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".aggregate.exprs",
				Message: fmt.Sprintf("aggregator %s requires expression %q", factory.Name(), name),
				Code:    ErrMissingAggregateExpr,
			})
		}
	}
	visible := withSelf(declared, p.Source)
	for _, name := range ir.SortedKeys(p.Aggregate.Exprs) {
		e := p.Aggregate.Exprs[name]
		efield := fmt.Sprintf("%s.aggregate.exprs.%s", field, name)
		if e.Fn == nil {
			errs = append(errs, ValidationError{
				Field:   efield,
				Message: fmt.Sprintf("expression %q has no function", e.Text),
				Code:    ErrExpressionNoFunction,
			})
		}
		for m, param := range e.Params {
			if param.Name == "" {
				errs = append(errs, checkAssignable(param, p.Source.Type, fmt.Sprintf("%s.params[%d]", efield, m))...)
				continue
			}
			errs = append(errs, checkParam(param, fmt.Sprintf("%s.params[%d]", efield, m), visible)...)
		}
	}
	return errs
}

// checkActivationExpr validates filter and priority expressions, which are
// evaluated against a complete tuple. Unnamed parameters bind by type and
// must match exactly one declaration.
func checkActivationExpr(e ir.Expr, field string, declared scope, types []reflect.Type) []ValidationError {
	var errs []ValidationError
	if e.Fn == nil {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("expression %q has no function", e.Text),
			Code:    ErrExpressionNoFunction,
		})
	}
	for m, param := range e.Params {
		pfield := fmt.Sprintf("%s.params[%d]", field, m)
		if param.Name != "" {
			errs = append(errs, checkParam(param, pfield, declared)...)
			continue
		}
		n := 0
		for _, t := range types {
			if t.AssignableTo(param.Type) {
				n++
			}
		}
		if n != 1 {
			errs = append(errs, ValidationError{
				Field:   pfield,
				Message: fmt.Sprintf("parameter of type %s matches %d declarations, want exactly one", param.Type, n),
				Code:    ErrAmbiguousParameter,
			})
		}
	}
	return errs
}

func checkParam(param ir.Param, field string, visible scope) []ValidationError {
	t, ok := visible[param.Name]
	if !ok {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("undefined declaration %q", param.Name),
			Code:    ErrUndefinedDeclaration,
		}}
	}
	return checkAssignable(param, t, field)
}

// checkAssignable accepts widening and narrowing conversions; only
// unrelated types are rejected. Narrowing is checked again at match time.
func checkAssignable(param ir.Param, declared reflect.Type, field string) []ValidationError {
	if param.Type == nil || declared == nil {
		return nil
	}
	if declared.AssignableTo(param.Type) || param.Type.AssignableTo(declared) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("parameter %q has type %s, declaration has type %s", param.Name, param.Type, declared),
		Code:    ErrParamTypeMismatch,
	}}
}

func withSelf(declared scope, p *ir.Pattern) scope {
	if p.Name == "" || p.Type == nil {
		return declared
	}
	visible := make(scope, len(declared)+1)
	for k, v := range declared {
		visible[k] = v
	}
	visible[p.Name] = p.Type
	return visible
}
