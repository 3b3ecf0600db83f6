// Package demo provides a small order-processing rule set used by the
// scenario harness and the CLI.
//
// The rules exercise every pattern kind the network supports: joins,
// negation, existence, collection, grouping, dynamic priority and agenda
// filters. Facts are Identifiable by their ID fields so scenario files can
// update and retract them with replacement objects.
package demo

// Customer places orders.
type Customer struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	Tier    string `yaml:"tier,omitempty" json:"tier,omitempty"`
	Blocked bool   `yaml:"blocked,omitempty" json:"blocked,omitempty"`
}

// FactIdentity implements rete.Identifiable.
func (c *Customer) FactIdentity() any { return c.ID }

// Order belongs to a customer. Amount is in cents.
type Order struct {
	ID       string `yaml:"id" json:"id"`
	Customer string `yaml:"customer" json:"customer"`
	Amount   int    `yaml:"amount" json:"amount"`
	Rush     bool   `yaml:"rush,omitempty" json:"rush,omitempty"`
}

// FactIdentity implements rete.Identifiable.
func (o *Order) FactIdentity() any { return o.ID }

// Discount applies to one order.
type Discount struct {
	Order   string `yaml:"order" json:"order"`
	Percent int    `yaml:"percent" json:"percent"`
}

// FactIdentity implements rete.Identifiable.
func (d *Discount) FactIdentity() any { return d.Order }

// Shipment is derived for orders that ship express.
type Shipment struct {
	Order   string `yaml:"order" json:"order"`
	Express bool   `yaml:"express" json:"express"`
}

// FactIdentity implements rete.Identifiable.
func (s *Shipment) FactIdentity() any { return s.Order }

// Alert flags a customer for review.
type Alert struct {
	Customer string `yaml:"customer" json:"customer"`
	Reason   string `yaml:"reason" json:"reason"`
}

// FactIdentity implements rete.Identifiable. A customer carries at most one
// alert per reason.
func (a *Alert) FactIdentity() any { return [2]string{a.Customer, a.Reason} }

// Summary totals the orders of one customer.
type Summary struct {
	Customer string `yaml:"customer" json:"customer"`
	Orders   int    `yaml:"orders" json:"orders"`
	Total    int    `yaml:"total" json:"total"`
}

// FactIdentity implements rete.Identifiable.
func (s *Summary) FactIdentity() any { return s.Customer }

// Alert reasons.
const (
	ReasonBlocked = "blocked customer has open orders"
	ReasonLoyal   = "loyal customer"
)

// Customer tiers.
const (
	TierGold     = "gold"
	TierStandard = "standard"
)

// LoyalOrderCount is the number of orders that makes a customer loyal.
const LoyalOrderCount = 3

// GoldDiscountPercent is the discount applied to every gold order.
const GoldDiscountPercent = 10
