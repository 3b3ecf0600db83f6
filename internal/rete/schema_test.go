package rete

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/ir"
)

func goldenRuleSet() ir.RuleSet {
	return ir.RuleSet{
		Name: "golden",
		Rules: []ir.Rule{{
			Name:     "big-order",
			Priority: 10,
			Patterns: []ir.Pattern{
				ir.Match[*order]("o", ir.Cond("o.Rush", func(o *order) bool { return o.Rush })),
				ir.Not(ir.Match[*discount]("d").Where(
					ir.Join2("d.Order == o.ID", "d", "o", func(d *discount, o *order) bool { return d.Order == o.ID }),
				)),
			},
			Actions: []ir.Action{noop()},
		}},
	}
}

func TestSchema_Golden(t *testing.T) {
	net, err := Build(goldenRuleSet())
	require.NoError(t, err)

	schema := net.Schema()
	assert.NotEmpty(t, schema.Hash)
	schema.Hash = ""

	data, err := json.MarshalIndent(schema, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "schema", data)
}

func TestSchema_IsACopy(t *testing.T) {
	net, err := Build(goldenRuleSet())
	require.NoError(t, err)

	s := net.Schema()
	s.Nodes[0].Label = "mutated"
	s.Nodes[len(s.Nodes)-1].Properties["priority"] = "0"

	fresh := net.Schema()
	assert.Equal(t, "root", fresh.Nodes[0].Label)
	assert.Equal(t, "10", fresh.Nodes[len(fresh.Nodes)-1].Properties["priority"])
}

func TestSchema_HashIsStable(t *testing.T) {
	a, err := Build(goldenRuleSet())
	require.NoError(t, err)
	b, err := Build(goldenRuleSet())
	require.NoError(t, err)
	assert.Equal(t, a.Hash(), b.Hash())

	changed := goldenRuleSet()
	changed.Rules[0].Priority = 11
	c, err := Build(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash(), c.Hash())
}
