package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const expressScenario = "../harness/testdata/scenarios/express_and_discount.yaml"

const failingScenario = `name: failing
description: "Expects a firing that never happens"
steps:
  - insert:
      - customer: {id: c1, tier: standard}
  - fire: {}
assertions:
  - type: fired
    rule: gold-discount
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunCommandMissingArgs(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRunCommandMissingScenario(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/scenario.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load scenario")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandPasses(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{expressScenario})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "Scenario: express_and_discount")
	assert.Contains(t, output, "Session:  express-and-discount")
	assert.Contains(t, output, "Fired:    5")
	assert.Contains(t, output, "Facts:    customer=1 discount=2 order=1 shipment=1 summary=1")
	assert.Contains(t, output, "✓ Scenario passed")
	assert.NotContains(t, output, "Journal:")
}

func TestRunCommandFails(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "failing.yaml", failingScenario)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Scenario failed")
	assert.Contains(t, buf.String(), "gold-discount")
}

func TestRunCommandJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{expressScenario, "--metrics"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, 5, resp.Data.Fired)
	assert.Equal(t, 2, resp.Data.Facts["discount"])
	assert.Equal(t, float64(1), resp.Data.Metrics["rete_session_attached_total"])
	assert.Equal(t, float64(2), resp.Data.Metrics["rete_session_rules_fired_total{rule=gold-discount}"])
}

func TestRunCommandJSONFailure(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "failing.yaml", failingScenario)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_SCENARIO_FAILED", resp.Error.Code)
}

func TestRunCommandConfigFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journal.db")
	cfgPath := writeScenario(t, dir, "rete.yaml", "log_level: debug\njournal:\n  path: "+dbPath+"\n")

	buf := &bytes.Buffer{}
	logs := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text", Config: cfgPath})
	cmd.SetOut(buf)
	cmd.SetErr(logs)
	cmd.SetArgs([]string{expressScenario})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Journal:  "+dbPath)
	assert.Contains(t, logs.String(), "opening journal")
	assert.FileExists(t, dbPath)
}

func TestRunCommandBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeScenario(t, dir, "rete.yaml", "log_level: loud\n")

	cmd := NewRunCommand(&RootOptions{Format: "text", Config: cfgPath})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{expressScenario})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "(none)", formatCounts(nil))
	assert.Equal(t, "a=1 b=2", formatCounts(map[string]int{"b": 2, "a": 1}))
}
