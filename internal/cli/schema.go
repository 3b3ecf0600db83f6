package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rete/internal/demo"
	"github.com/roach88/rete/internal/rete"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the compiled network graph",
		Long: `Build the demo rule set and print its Rete network.

The graph lists every node (type, selection, memory, join, not, exists,
aggregate and rule nodes) and the links between them. JSON output is
suitable for visualization tools.

Examples:
  rete schema
  rete schema --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	net, err := demo.Build(rete.WithBuildLogger(opts.newLogger(cmd.ErrOrStderr(), cfg)))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build network", err)
	}

	schema := net.Schema()
	if opts.Format == "json" {
		return writeOK(cmd.OutOrStdout(), schema)
	}
	writeSchemaText(cmd.OutOrStdout(), schema)
	return nil
}

func writeSchemaText(w io.Writer, s rete.Schema) {
	fmt.Fprintf(w, "Rule set: %s\n", s.RuleSet)
	fmt.Fprintf(w, "Hash: %s\n", s.Hash)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "=== Nodes (%d) ===\n", len(s.Nodes))
	for _, n := range s.Nodes {
		fmt.Fprintf(w, "  [%d] %-12s %s", n.ID, n.Kind, n.Label)
		if props := formatProperties(n.Properties); props != "" {
			fmt.Fprintf(w, " {%s}", props)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "=== Links (%d) ===\n", len(s.Links))
	for _, l := range s.Links {
		if l.Input != "" {
			fmt.Fprintf(w, "  %d -> %d (%s)\n", l.Source, l.Target, l.Input)
			continue
		}
		fmt.Fprintf(w, "  %d -> %d\n", l.Source, l.Target)
	}
}

// formatProperties renders node properties with sorted keys.
func formatProperties(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + props[k]
	}
	return strings.Join(parts, ", ")
}
