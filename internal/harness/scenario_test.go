package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/demo"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	scenarioPath := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_scenario
description: "Test scenario for validation"
steps:
  - insert:
      - order: {id: o1, customer: c1, amount: 10}
  - fire: {limit: 3}
assertions:
  - type: fact_count
    kind: order
    count: 1
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, OpInsert, scenario.Steps[0].Op())
	assert.Equal(t, &demo.Order{ID: "o1", Customer: "c1", Amount: 10}, scenario.Steps[0].Insert[0].Object)
	assert.Equal(t, OpFire, scenario.Steps[1].Op())
	assert.Equal(t, 3, scenario.Steps[1].Fire.Limit)
	assert.Nil(t, scenario.Steps[1].Fire.Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	const steps = `
steps:
  - fire: {}
`
	const assertions = `
assertions:
  - type: fired
    rule: r
`
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "missing name",
			input:   "description: d\n" + steps + assertions,
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			input:   "name: n\n" + steps + assertions,
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			input:   "name: n\ndescription: d\n" + assertions,
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			input:   "name: n\ndescription: d\n" + steps,
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown field",
			input:   "name: n\ndescription: d\nassertion: []\n" + steps + assertions,
			wantErr: "field assertion not found",
		},
		{
			name: "two operations in one step",
			input: "name: n\ndescription: d\n" + assertions + `
steps:
  - fire: {}
    retract:
      - order: {id: o1}
`,
			wantErr: "exactly one of insert, update, retract or fire",
		},
		{
			name: "negative limit",
			input: "name: n\ndescription: d\n" + assertions + `
steps:
  - fire: {limit: -1}
`,
			wantErr: "limit must be non-negative",
		},
		{
			name: "unknown fact kind",
			input: "name: n\ndescription: d\n" + assertions + `
steps:
  - insert:
      - invoice: {id: i1}
`,
			wantErr: `unknown fact kind "invoice"`,
		},
		{
			name: "unknown assertion type",
			input: "name: n\ndescription: d\n" + steps + `
assertions:
  - type: trace_contains
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "fired without rule",
			input: "name: n\ndescription: d\n" + steps + `
assertions:
  - type: fired
`,
			wantErr: "rule is required for fired",
		},
		{
			name: "fired_order without rules",
			input: "name: n\ndescription: d\n" + steps + `
assertions:
  - type: fired_order
`,
			wantErr: "rules list is required",
		},
		{
			name: "fact_count with unknown kind",
			input: "name: n\ndescription: d\n" + steps + `
assertions:
  - type: fact_count
    kind: invoice
`,
			wantErr: `unknown fact kind "invoice"`,
		},
		{
			name: "fact without fields",
			input: "name: n\ndescription: d\n" + steps + `
assertions:
  - type: fact
    kind: order
`,
			wantErr: "fields are required for fact",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
