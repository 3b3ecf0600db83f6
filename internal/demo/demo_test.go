package demo

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/compiler"
	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/session"
)

type run struct {
	t     *testing.T
	s     *session.Session
	fired []string
}

func newRun(t *testing.T) *run {
	t.Helper()
	net, err := Build()
	require.NoError(t, err)
	s, err := session.NewFactory(net).CreateSession(
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	r := &run{t: t, s: s}
	s.Events().Subscribe(func(ev *rete.Event) {
		r.fired = append(r.fired, ev.Rule().Name)
	}, rete.EventRuleFired)
	return r
}

func (r *run) fire() []string {
	r.t.Helper()
	r.fired = nil
	_, err := r.s.Fire()
	require.NoError(r.t, err)
	return r.fired
}

func (r *run) seed() {
	r.t.Helper()
	require.NoError(r.t, r.s.InsertAll(
		&Customer{ID: "c1", Name: "Ann", Tier: TierGold},
		&Customer{ID: "c2", Name: "Bob", Tier: TierStandard},
		&Customer{ID: "c3", Name: "Cy", Tier: TierStandard, Blocked: true},
		&Order{ID: "o1", Customer: "c1", Amount: 2500, Rush: true},
		&Order{ID: "o2", Customer: "c1", Amount: 1000},
		&Order{ID: "o3", Customer: "c2", Amount: 500, Rush: true},
		&Order{ID: "o4", Customer: "c3", Amount: 700},
		&Order{ID: "o5", Customer: "c1", Amount: 300},
	))
}

func summaries(s *session.Session) map[string]Summary {
	out := make(map[string]Summary)
	for _, sum := range session.Query[*Summary](s) {
		out[sum.Customer] = *sum
	}
	return out
}

func TestRuleSet_Validates(t *testing.T) {
	rs := RuleSet()
	assert.Empty(t, compiler.Validate(rs, nil))

	warnings := compiler.AnalyzeCycles(rs)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Path, RuleGoldDiscount)

	net, err := Build()
	require.NoError(t, err)
	assert.Len(t, net.Rules(), 6)
	assert.Equal(t, RuleSetName, net.Name())
}

func TestDemo_InitialFire(t *testing.T) {
	r := newRun(t)
	r.seed()
	fired := r.fire()

	require.Len(t, fired, 9)
	assert.Equal(t, RuleRushGoldOrder, fired[0], "dynamic priority 25 fires first")
	assert.Equal(t, RuleBlockedCustomer, fired[1])
	assert.Equal(t, []string{RuleGoldDiscount, RuleGoldDiscount, RuleGoldDiscount}, fired[2:5])
	assert.ElementsMatch(t, []string{
		RuleLoyalCustomer, RuleCustomerSummary, RuleCustomerSummary, RuleCustomerSummary,
	}, fired[5:])

	assert.Len(t, session.Query[*Discount](r.s), 3)
	shipments := session.Query[*Shipment](r.s)
	require.Len(t, shipments, 1)
	assert.Equal(t, "o1", shipments[0].Order)

	alerts := session.Query[*Alert](r.s)
	assert.ElementsMatch(t, []*Alert{
		{Customer: "c3", Reason: ReasonBlocked},
		{Customer: "c1", Reason: ReasonLoyal},
	}, alerts)

	assert.Equal(t, map[string]Summary{
		"c1": {Customer: "c1", Orders: 3, Total: 3800},
		"c2": {Customer: "c2", Orders: 1, Total: 500},
		"c3": {Customer: "c3", Orders: 1, Total: 700},
	}, summaries(r.s))
}

func TestDemo_RetractAllOrdersDropsSummary(t *testing.T) {
	r := newRun(t)
	r.seed()
	r.fire()

	require.NoError(t, r.s.RetractAll(&Order{ID: "o1"}, &Order{ID: "o2"}, &Order{ID: "o5"}))
	assert.Equal(t, []string{RuleStaleSummary}, r.fire())

	_, ok := summaries(r.s)["c1"]
	assert.False(t, ok)
	assert.Len(t, session.Query[*Discount](r.s), 3, "derived facts are not retracted")
}

func TestDemo_UpgradeCustomer(t *testing.T) {
	r := newRun(t)
	r.seed()
	r.fire()

	require.NoError(t, r.s.Update(&Customer{ID: "c2", Name: "Bob", Tier: TierGold}))
	assert.ElementsMatch(t, []string{RuleRushGoldOrder, RuleGoldDiscount}, r.fire())

	assert.Len(t, session.Query[*Shipment](r.s), 2)
	assert.Len(t, session.Query[*Discount](r.s), 4)
}

func TestDemo_SummaryKeyChange(t *testing.T) {
	r := newRun(t)
	r.seed()
	r.fire()

	// Same values: the group is modified but the summary would not change.
	require.NoError(t, r.s.Update(&Order{ID: "o2", Customer: "c1", Amount: 1000}))
	assert.Empty(t, r.fire())

	require.NoError(t, r.s.Update(&Order{ID: "o2", Customer: "c1", Amount: 1200}))
	assert.Equal(t, []string{RuleCustomerSummary}, r.fire())
	assert.Equal(t, 4000, summaries(r.s)["c1"].Total)
}

func TestDemo_LoyalFilterWaitsForThirdOrder(t *testing.T) {
	r := newRun(t)
	require.NoError(t, r.s.InsertAll(
		&Customer{ID: "c9", Tier: TierStandard},
		&Order{ID: "a", Customer: "c9", Amount: 100},
		&Order{ID: "b", Customer: "c9", Amount: 100},
	))
	assert.NotContains(t, r.fire(), RuleLoyalCustomer)

	require.NoError(t, r.s.Insert(&Order{ID: "c", Customer: "c9", Amount: 100}))
	assert.Contains(t, r.fire(), RuleLoyalCustomer)

	require.NoError(t, r.s.Insert(&Order{ID: "d", Customer: "c9", Amount: 100}))
	assert.NotContains(t, r.fire(), RuleLoyalCustomer, "non-repeatable")
}

func TestDecodeFacts(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []any
		wantErr string
	}{
		{
			name: "all kinds",
			input: `
- customer: {id: c1, tier: gold}
- order: {id: o1, customer: c1, amount: 2500, rush: true}
- discount: {order: o1, percent: 10}
`,
			want: []any{
				&Customer{ID: "c1", Tier: TierGold},
				&Order{ID: "o1", Customer: "c1", Amount: 2500, Rush: true},
				&Discount{Order: "o1", Percent: 10},
			},
		},
		{
			name:    "unknown kind",
			input:   "- invoice: {id: i1}\n",
			wantErr: `unknown fact kind "invoice"`,
		},
		{
			name:    "unknown field",
			input:   "- order: {id: o1, custmer: c1}\n",
			wantErr: "custmer",
		},
		{
			name:    "two kinds in one entry",
			input:   "- order: {id: o1}\n  customer: {id: c1}\n",
			wantErr: "single-key mapping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFacts([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "order", KindOf(&Order{}))
	assert.Equal(t, "summary", KindOf(&Summary{}))
	assert.Equal(t, "int", KindOf(3))
	assert.Equal(t, []string{"alert", "customer", "discount", "order", "shipment", "summary"}, Kinds())
}
