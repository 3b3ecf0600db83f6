package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/rete/internal/harness"
	"github.com/roach88/rete/internal/journal"
	"github.com/roach88/rete/internal/metrics"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Metrics  bool
}

// RunResult is the outcome of running one scenario file.
type RunResult struct {
	Scenario  string             `json:"scenario"`
	SessionID string             `json:"session_id"`
	Pass      bool               `json:"pass"`
	Fired     int                `json:"fired"`
	Facts     map[string]int     `json:"facts"`
	Errors    []string           `json:"errors,omitempty"`
	Journal   string             `json:"journal,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against the demo rule set",
		Long: `Run a scenario file in a fresh session of the demo rule set.

Steps insert, update and retract facts and fire the agenda. With --db
(or journal.path in the config file) every session event is appended to
a SQLite journal that "rete trace" can read back.

Examples:
  rete run ./scenarios/orders.yaml
  rete run ./scenarios/orders.yaml --db ./journal.db
  rete run ./scenarios/orders.yaml --config ./rete.cue --metrics --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides journal.path)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus counters after the run")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.newLogger(cmd.ErrOrStderr(), cfg)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	hopts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithSessionOptions(cfg.SessionOptions()...),
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Journal.Path
	}
	if dbPath != "" {
		logger.Info("opening journal", "path", dbPath)
		j, err := journal.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		hopts = append(hopts, harness.WithJournal(j))
	}

	var reg *prometheus.Registry
	if opts.Metrics || cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		hopts = append(hopts, harness.WithMetrics(m))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Info("running scenario", "scenario", scenario.Name, "steps", len(scenario.Steps))
	res, err := harness.Run(ctx, scenario, hopts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	result := RunResult{
		Scenario:  scenario.Name,
		SessionID: res.SessionID,
		Pass:      res.Pass,
		Fired:     res.Fired,
		Facts:     res.Facts,
		Errors:    res.Errors,
		Journal:   dbPath,
	}
	if reg != nil {
		if result.Metrics, err = counterValues(reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		if result.Pass {
			return writeOK(w, result)
		}
		if err := writeFailure(w, result, "E_SCENARIO_FAILED", fmt.Sprintf("scenario %s failed", result.Scenario)); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", result.Scenario))
	}
	return outputRunText(w, result)
}

// counterValues flattens gathered counters to "name{label=value,...}" keys.
func counterValues(reg prometheus.Gatherer) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				pairs := make([]string, len(labels))
				for i, l := range labels {
					pairs[i] = l.GetName() + "=" + l.GetValue()
				}
				key += "{" + strings.Join(pairs, ",") + "}"
			}
			out[key] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}

func outputRunText(w io.Writer, result RunResult) error {
	fmt.Fprintf(w, "Scenario: %s\n", result.Scenario)
	fmt.Fprintf(w, "Session:  %s\n", result.SessionID)
	fmt.Fprintf(w, "Fired:    %d\n", result.Fired)
	fmt.Fprintf(w, "Facts:    %s\n", formatCounts(result.Facts))
	if result.Journal != "" {
		fmt.Fprintf(w, "Journal:  %s\n", result.Journal)
	}

	if len(result.Metrics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Metrics ===")
		keys := make([]string, 0, len(result.Metrics))
		for k := range result.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s %g\n", k, result.Metrics[k])
		}
	}
	fmt.Fprintln(w)

	if !result.Pass {
		fmt.Fprintln(w, "✗ Scenario failed")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		// Scenario failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", result.Scenario))
	}
	fmt.Fprintln(w, "✓ Scenario passed")
	return nil
}

// formatCounts renders counts with sorted keys.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
