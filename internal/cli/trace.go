package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rete/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Kind     string // optional - filter to one event kind
}

// TraceResult holds the journal of one session.
type TraceResult struct {
	Session journal.SessionRecord `json:"session"`
	Entries []journal.Entry       `json:"entries"`
	Stats   TraceStats            `json:"stats"`
}

// TraceStats counts entries per kind.
type TraceStats struct {
	TotalEntries int            `json:"total_entries"`
	ByKind       map[string]int `json:"by_kind"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [session-id]",
		Short: "Print the journal of a session",
		Long: `Read a session journal written by "rete run --db".

With a session ID, prints every journaled event in order: fact inserts,
updates and retracts, activations, rule firings and failures. Without
one, lists the journaled sessions.

Examples:
  rete trace --db ./journal.db
  rete trace --db ./journal.db 0190a1b2-...
  rete trace --db ./journal.db 0190a1b2-... --kind rule_fired
  rete trace --db ./journal.db 0190a1b2-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListSessions(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind (e.g. rule_fired)")

	return cmd
}

func openJournal(path string) (*journal.Journal, error) {
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

func runListSessions(opts *TraceOptions, cmd *cobra.Command) error {
	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	sessions, err := j.ListSessions(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeOK(w, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions journaled.")
		return nil
	}
	fmt.Fprintf(w, "=== Sessions (%d) ===\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  %s (%d rules, %s)\n", s.ID, s.RuleSet, s.Rules, truncateID(s.RuleSetHash))
	}
	return nil
}

func runTrace(opts *TraceOptions, sessionID string, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.ReadSession(ctx, sessionID)
	if errors.Is(err, journal.ErrSessionNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", sessionID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	var entries []journal.Entry
	if opts.Kind != "" {
		entries, err = j.ReadKind(ctx, sessionID, opts.Kind)
	} else {
		entries, err = j.Read(ctx, sessionID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{
		Session: rec,
		Entries: entries,
		Stats:   TraceStats{TotalEntries: len(entries), ByKind: make(map[string]int)},
	}
	for _, e := range entries {
		result.Stats.ByKind[e.Kind]++
	}

	if opts.Format == "json" {
		return writeOK(cmd.OutOrStdout(), result)
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for session: %s\n", result.Session.ID)
	fmt.Fprintf(w, "Rule set: %s (%d rules)\n", result.Session.RuleSet, result.Session.Rules)
	if verbose {
		fmt.Fprintf(w, "Hash: %s\n", result.Session.RuleSetHash)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, e := range result.Entries {
		formatEntry(w, e, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total: %d\n", result.Stats.TotalEntries)
	kinds := make([]string, 0, len(result.Stats.ByKind))
	for k := range result.Stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, result.Stats.ByKind[k])
	}
}

// formatEntry prints one journal entry for text output.
func formatEntry(w io.Writer, e journal.Entry, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s", e.Seq, e.Kind)
	if e.Rule != "" {
		fmt.Fprintf(w, " %s", e.Rule)
	}
	if e.FactType != "" {
		fmt.Fprintf(w, " %s", e.FactType)
	}
	fmt.Fprintln(w)
	if verbose {
		if e.Fact != "" {
			fmt.Fprintf(w, "       Fact: %s\n", e.Fact)
		}
		if len(e.Detail) > 0 {
			fmt.Fprintf(w, "       Detail: %s\n", formatDetail(e.Detail))
		}
	}
}

// formatDetail formats entry detail with sorted keys.
func formatDetail(detail map[string]string) string {
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + detail[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
