package demo

import (
	"reflect"

	"github.com/roach88/rete/internal/aggregate"
	"github.com/roach88/rete/internal/ir"
	"github.com/roach88/rete/internal/rete"
)

// RuleSetName names the demo rule set.
const RuleSetName = "orders"

// Rule names.
const (
	RuleBlockedCustomer = "blocked-customer-orders"
	RuleRushGoldOrder   = "rush-gold-order"
	RuleGoldDiscount    = "gold-discount"
	RuleLoyalCustomer   = "loyal-customer"
	RuleCustomerSummary = "customer-summary"
	RuleStaleSummary    = "stale-summary"
)

// RuleSet returns the demo rule set. Each call returns fresh definitions.
func RuleSet() ir.RuleSet {
	return ir.RuleSet{
		Name: RuleSetName,
		Rules: []ir.Rule{
			blockedCustomer(),
			rushGoldOrder(),
			goldDiscount(),
			loyalCustomer(),
			customerSummary(),
			staleSummary(),
		},
	}
}

// Build compiles the demo rule set into a network.
func Build(opts ...rete.Option) (*rete.Network, error) {
	return rete.Build(RuleSet(), opts...)
}

func ordersOf(customer string) ir.Expr {
	return ir.Join2("o.Customer == "+customer+".ID", "o", customer, func(o *Order, c *Customer) bool {
		return o.Customer == c.ID
	})
}

func blockedCustomer() ir.Rule {
	return ir.Rule{
		Name:          RuleBlockedCustomer,
		Description:   "Flag blocked customers that still have orders",
		Priority:      20,
		Repeatability: ir.NonRepeatable,
		Patterns: []ir.Pattern{
			ir.Match[*Customer]("c", ir.Cond("c.Blocked", func(c *Customer) bool { return c.Blocked })),
			ir.Exists(ir.Match[*Order]("o").Where(ordersOf("c"))),
		},
		Actions: []ir.Action{
			ir.Do1("insert Alert{c.ID, blocked}", "c", func(ctx ir.Context, c *Customer) error {
				return ctx.Insert(&Alert{Customer: c.ID, Reason: ReasonBlocked})
			}),
		},
		Produces: []reflect.Type{reflect.TypeFor[*Alert]()},
	}
}

// rushGoldOrder ships rush orders of gold customers express. Larger orders
// are handled first.
func rushGoldOrder() ir.Rule {
	priority := ir.Fn1("o.Amount / 100", "o", func(o *Order) int { return o.Amount / 100 })
	return ir.Rule{
		Name:          RuleRushGoldOrder,
		Description:   "Ship rush orders of gold customers express",
		PriorityExpr:  &priority,
		Repeatability: ir.NonRepeatable,
		Patterns: []ir.Pattern{
			ir.Match[*Order]("o", ir.Cond("o.Rush", func(o *Order) bool { return o.Rush })),
			ir.Exists(ir.Match[*Customer]("c", isGold()).Where(
				ir.Join2("c.ID == o.Customer", "c", "o", func(c *Customer, o *Order) bool { return c.ID == o.Customer }),
			)),
		},
		Actions: []ir.Action{
			ir.Do1("insert Shipment{o.ID, express}", "o", func(ctx ir.Context, o *Order) error {
				return ctx.Insert(&Shipment{Order: o.ID, Express: true})
			}),
		},
		Produces: []reflect.Type{reflect.TypeFor[*Shipment]()},
	}
}

func isGold() ir.Expr {
	return ir.Cond("c.Tier == gold", func(c *Customer) bool { return c.Tier == TierGold })
}

func goldDiscount() ir.Rule {
	return ir.Rule{
		Name:          RuleGoldDiscount,
		Description:   "Discount every undiscounted order of a gold customer",
		Priority:      5,
		Repeatability: ir.NonRepeatable,
		Patterns: []ir.Pattern{
			ir.Match[*Customer]("c", isGold()),
			ir.Match[*Order]("o").Where(ordersOf("c")),
			ir.Not(ir.Match[*Discount]("d").Where(
				ir.Join2("d.Order == o.ID", "d", "o", func(d *Discount, o *Order) bool { return d.Order == o.ID }),
			)),
		},
		Actions: []ir.Action{
			// The Order argument is resolved by type.
			ir.Do1("insert Discount{o.ID, 10}", "", func(ctx ir.Context, o *Order) error {
				return ctx.Insert(&Discount{Order: o.ID, Percent: GoldDiscountPercent})
			}),
		},
		Produces: []reflect.Type{reflect.TypeFor[*Discount]()},
	}
}

func loyalCustomer() ir.Rule {
	return ir.Rule{
		Name:          RuleLoyalCustomer,
		Description:   "Flag customers with at least three orders",
		Repeatability: ir.NonRepeatable,
		Patterns: []ir.Pattern{
			ir.Match[*Customer]("c", ir.Cond("!c.Blocked", func(c *Customer) bool { return !c.Blocked })),
			ir.Collect("orders", ir.Match[*Order]("o").Where(ordersOf("c"))),
		},
		Filters: []ir.Filter{{
			Kind: ir.FilterPredicate,
			Exprs: []ir.Expr{
				ir.Fn1("orders.Len() >= 3", "orders", func(orders *aggregate.Collection) bool {
					return orders.Len() >= LoyalOrderCount
				}),
			},
		}},
		Actions: []ir.Action{
			ir.Do1("insert Alert{c.ID, loyal}", "c", func(ctx ir.Context, c *Customer) error {
				return ctx.Insert(&Alert{Customer: c.ID, Reason: ReasonLoyal})
			}),
		},
		Produces: []reflect.Type{reflect.TypeFor[*Alert]()},
	}
}

// customerSummary keeps one Summary per customer with orders. The key
// change filter skips firings that would write an identical summary.
func customerSummary() ir.Rule {
	return ir.Rule{
		Name:        RuleCustomerSummary,
		Description: "Total the orders of each customer",
		Patterns: []ir.Pattern{
			ir.GroupBy("g", ir.Match[*Order]("o"),
				ir.Select("o.Customer", func(o *Order) string { return o.Customer }),
				ir.Select("o", func(o *Order) *Order { return o }),
			),
		},
		Filters: []ir.Filter{{
			Kind: ir.FilterKeyChange,
			Exprs: []ir.Expr{
				ir.Fn1("summarize(g)", "g", func(g *aggregate.Group) Summary { return summarize(g) }),
			},
		}},
		Actions: []ir.Action{
			ir.Do1("upsert Summary(g)", "g", func(ctx ir.Context, g *aggregate.Group) error {
				s := summarize(g)
				return upsert(ctx, &s)
			}),
		},
		Produces: []reflect.Type{reflect.TypeFor[*Summary]()},
	}
}

func staleSummary() ir.Rule {
	return ir.Rule{
		Name:        RuleStaleSummary,
		Description: "Drop summaries of customers without orders",
		Patterns: []ir.Pattern{
			ir.Match[*Summary]("s"),
			ir.Not(ir.Match[*Order]("o").Where(
				ir.Join2("o.Customer == s.Customer", "o", "s", func(o *Order, s *Summary) bool { return o.Customer == s.Customer }),
			)),
		},
		Actions: []ir.Action{
			ir.Do1("retract s", "s", func(ctx ir.Context, s *Summary) error {
				return ctx.Retract(s)
			}),
		},
	}
}

func summarize(g *aggregate.Group) Summary {
	key, _ := g.Key().(string)
	s := Summary{Customer: key}
	for _, o := range aggregate.GroupItems[*Order](g) {
		s.Orders++
		s.Total += o.Amount
	}
	return s
}

// upsert inserts fact, or updates it when a fact with the same identity is
// already present.
func upsert(ctx ir.Context, fact any) error {
	err := ctx.Insert(fact)
	if rete.IsDuplicateFact(err) {
		return ctx.Update(fact)
	}
	return err
}
