package compiler

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/aggregate"
	"github.com/roach88/rete/internal/ir"
)

type order struct {
	ID       string
	Customer string
	Total    int
}

type customer struct {
	Name string
	VIP  bool
}

type discount struct {
	Order   string
	Percent int
}

func noop() ir.Action {
	return ir.Do("noop", func(ir.Context) error { return nil })
}

func validRule(name string) ir.Rule {
	return ir.Rule{
		Name: name,
		Patterns: []ir.Pattern{
			ir.Match[*customer]("c", ir.Cond("c.VIP", func(c *customer) bool { return c.VIP })),
			ir.Match[*order]("o").Where(
				ir.Join2("o.Customer == c.Name", "o", "c", func(o *order, c *customer) bool { return o.Customer == c.Name }),
			),
		},
		Actions: []ir.Action{noop()},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	rs := ir.RuleSet{Name: "orders", Rules: []ir.Rule{validRule("vip-order")}}
	assert.Empty(t, Validate(rs, nil))
}

func TestValidate_RuleErrors(t *testing.T) {
	tests := []struct {
		name string
		rule func() ir.Rule
		code string
	}{
		{
			name: "empty name",
			rule: func() ir.Rule { r := validRule(" "); return r },
			code: ErrRuleNameEmpty,
		},
		{
			name: "no patterns",
			rule: func() ir.Rule { r := validRule("r"); r.Patterns = nil; return r },
			code: ErrRuleNoPatterns,
		},
		{
			name: "no actions",
			rule: func() ir.Rule { r := validRule("r"); r.Actions = nil; return r },
			code: ErrRuleNoActions,
		},
		{
			name: "missing pattern type",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns = append(r.Patterns, ir.Pattern{Name: "x", Kind: ir.KindMatch})
				return r
			},
			code: ErrPatternNoType,
		},
		{
			name: "duplicate declaration",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns = append(r.Patterns, ir.Match[*order]("o"))
				return r
			},
			code: ErrDuplicateDeclaration,
		},
		{
			name: "join references later declaration",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns[0] = r.Patterns[0].Where(
					ir.Join2("c.Name == o.Customer", "c", "o", func(c *customer, o *order) bool { return true }),
				)
				return r
			},
			code: ErrUndefinedDeclaration,
		},
		{
			name: "condition referencing another declaration",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns[1].Conditions = []ir.Expr{
					ir.Fn1[*customer, bool]("c.VIP", "c", func(c *customer) bool { return c.VIP }),
				}
				return r
			},
			code: ErrConditionShape,
		},
		{
			name: "parameter type mismatch",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns[1] = ir.Match[*order]("o").Where(
					ir.Join2("bad", "o", "c", func(o *order, c *discount) bool { return true }),
				)
				return r
			},
			code: ErrParamTypeMismatch,
		},
		{
			name: "not without source",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns = append(r.Patterns, ir.Pattern{Kind: ir.KindNot})
				return r
			},
			code: ErrPatternNoSource,
		},
		{
			name: "nested not source",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns = append(r.Patterns, ir.Not(ir.Exists(ir.Match[*discount]("d"))))
				return r
			},
			code: ErrPatternSourceNotMatch,
		},
		{
			name: "not with outer condition",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns = append(r.Patterns, ir.Not(ir.Match[*discount]("d")).Where(
					ir.Join2("d.Order == o.ID", "d", "o", func(d *discount, o *order) bool { return d.Order == o.ID }),
				))
				return r
			},
			code: ErrExistentialCondition,
		},
		{
			name: "exists with outer condition",
			rule: func() ir.Rule {
				r := validRule("r")
				p := ir.Exists(ir.Match[*discount]("d"))
				p.Conditions = []ir.Expr{ir.Cond("d.Percent > 0", func(d *discount) bool { return d.Percent > 0 })}
				r.Patterns = append(r.Patterns, p)
				return r
			},
			code: ErrExistentialCondition,
		},
		{
			name: "aggregate result condition references unknown declaration",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns = append(r.Patterns, ir.Collect("orders", ir.Match[*order]("x")).Where(
					ir.Join2("orders.Len() > d.Percent", "orders", "d",
						func(c *aggregate.Collection, d *discount) bool { return c.Len() > d.Percent }),
				))
				return r
			},
			code: ErrUndefinedDeclaration,
		},
		{
			name: "aggregate result condition with wrong type",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns = append(r.Patterns, ir.Collect("orders", ir.Match[*order]("x")).Where(
					ir.Fn1("orders.ID != \"\"", "orders", func(o *order) bool { return o.ID != "" }),
				))
				return r
			},
			code: ErrParamTypeMismatch,
		},
		{
			name: "unknown aggregator",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns = append(r.Patterns, ir.Aggregate[int]("n", ir.Match[*order]("x"), ir.AggregateSpec{Name: "Count"}))
				return r
			},
			code: ErrUnknownAggregator,
		},
		{
			name: "missing aggregate expression",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns = append(r.Patterns, ir.Aggregate[string]("ids", ir.Match[*order]("x"), ir.AggregateSpec{Name: aggregate.NameProject}))
				return r
			},
			code: ErrMissingAggregateExpr,
		},
		{
			name: "nil expression function",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Patterns[0].Conditions = append(r.Patterns[0].Conditions, ir.Expr{
					Text:   "broken",
					Params: []ir.Param{{Type: reflect.TypeFor[*customer]()}},
				})
				return r
			},
			code: ErrExpressionNoFunction,
		},
		{
			name: "action references unknown declaration",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Actions = []ir.Action{ir.Do1("use d", "d", func(ir.Context, *discount) error { return nil })}
				return r
			},
			code: ErrUndefinedDeclaration,
		},
		{
			name: "filter without expressions",
			rule: func() ir.Rule {
				r := validRule("r")
				r.Filters = []ir.Filter{{Kind: ir.FilterKeyChange}}
				return r
			},
			code: ErrInvalidFilter,
		},
		{
			name: "ambiguous priority parameter",
			rule: func() ir.Rule {
				r := validRule("r")
				p := ir.Fn1[*discount, int]("d.Percent", "", func(d *discount) int { return d.Percent })
				r.PriorityExpr = &p
				return r
			},
			code: ErrAmbiguousParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := ir.RuleSet{Rules: []ir.Rule{tt.rule()}}
			errs := Validate(rs, nil)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.code)
		})
	}
}

func TestValidate_DuplicateRuleName(t *testing.T) {
	rs := ir.RuleSet{Rules: []ir.Rule{validRule("same"), validRule("same")}}
	errs := Validate(rs, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateRuleName, errs[0].Code)
	assert.Equal(t, "rules[1].name", errs[0].Field)
}

func TestValidate_NotSourceSeesOwnName(t *testing.T) {
	r := validRule("no-discount")
	r.Patterns = append(r.Patterns, ir.Not(ir.Match[*discount]("d").Where(
		ir.Join2("d.Order == o.ID", "d", "o", func(d *discount, o *order) bool { return d.Order == o.ID }),
	)))
	assert.Empty(t, Validate(ir.RuleSet{Rules: []ir.Rule{r}}, nil))
}

func TestValidate_AggregateResultCondition(t *testing.T) {
	r := validRule("busy-customer")
	r.Patterns = append(r.Patterns, ir.Collect("orders", ir.Match[*order]("x")).Where(
		ir.Join2("orders.Len() >= 3 && c.VIP", "orders", "c",
			func(orders *aggregate.Collection, c *customer) bool { return orders.Len() >= 3 && c.VIP }),
	))
	assert.Empty(t, Validate(ir.RuleSet{Rules: []ir.Rule{r}}, nil))
}

func TestValidate_CustomAggregator(t *testing.T) {
	reg := aggregate.NewRegistry()
	require.NoError(t, reg.Register(aggregate.FactoryFunc("Count", nil, func(aggregate.Selectors) (aggregate.Aggregator, error) {
		return aggregate.NewCollection(), nil
	})))

	r := validRule("counted")
	r.Patterns = append(r.Patterns, ir.Aggregate[int]("n", ir.Match[*order]("x"), ir.AggregateSpec{Name: "Count"}))
	rs := ir.RuleSet{Rules: []ir.Rule{r}}

	assert.Contains(t, codes(Validate(rs, nil)), ErrUnknownAggregator)
	assert.Empty(t, Validate(rs, reg))
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "rules[0].name", Message: "rule name is required", Code: ErrRuleNameEmpty}
	assert.Equal(t, "[E101] rules[0].name: rule name is required", err.Error())
}
