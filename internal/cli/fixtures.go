package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/spyglass-go/spyglass/internal/fixture"
)

// FixturesOptions holds flags for the fixtures command.
type FixturesOptions struct {
	*RootOptions
}

// FixtureSummary describes one compiled component fixture.
type FixtureSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Operations  []string `json:"operations,omitempty"`
	Callbacks   []string `json:"callbacks,omitempty"`
	Elements    []string `json:"elements,omitempty"`
}

// NewFixturesCommand creates the fixtures command.
func NewFixturesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FixturesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fixtures <fixtures-dir>",
		Short: "List compiled component fixtures",
		Long: `Compile the fixtures under a directory and print what each component
exposes: operations, callback props, and elements with event bindings.

Examples:
  spyglass fixtures ./components
  spyglass fixtures ./components --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixtures(opts, args[0], cmd)
		},
	}

	return cmd
}

func runFixtures(opts *FixturesOptions, dir string, cmd *cobra.Command) error {
	specs, err := fixture.LoadDir(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fixtures", err)
	}

	summaries := make([]FixtureSummary, 0, len(specs))
	for _, spec := range specs {
		summary := FixtureSummary{
			Name:        spec.Name,
			Description: spec.Description,
			Callbacks:   append([]string(nil), spec.Callbacks...),
		}
		for op := range spec.Operations {
			summary.Operations = append(summary.Operations, op)
		}
		sort.Strings(summary.Operations)
		for id := range spec.Elements {
			summary.Elements = append(summary.Elements, id)
		}
		sort.Strings(summary.Elements)
		summaries = append(summaries, summary)
	}

	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(summaries)
	}

	w := cmd.OutOrStdout()
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\n", s.Name)
		if s.Description != "" {
			fmt.Fprintf(w, "  %s\n", s.Description)
		}
		if len(s.Operations) > 0 {
			fmt.Fprintf(w, "  operations: %v\n", s.Operations)
		}
		if len(s.Callbacks) > 0 {
			fmt.Fprintf(w, "  callbacks: %v\n", s.Callbacks)
		}
		if len(s.Elements) > 0 {
			fmt.Fprintf(w, "  elements: %v\n", s.Elements)
		}
	}
	return nil
}
