package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spyglass-go/spyglass/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string
	Kind     string // optional - filter to one event kind
}

// TraceResult holds the complete trace output for one run.
type TraceResult struct {
	RunToken  string        `json:"run_token"`
	Scenario  string        `json:"scenario"`
	Component string        `json:"component"`
	Timeline  []store.Event `json:"timeline"`
	Stats     TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for a run's trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Calls       int `json:"calls"`
	Callbacks   int `json:"callbacks"`
	Steps       int `json:"steps"`
	Failures    int `json:"failures"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the stored trace of a run",
		Long: `Print the trace of a persisted run in sequence order.

Shows every harness step and every recorded call in one timeline, so the
causal chain (dispatch -> operation -> callback) reads top to bottom.

Examples:
  spyglass trace --db ./traces.db --run 0190cafe-...
  spyglass trace --db ./traces.db --run 0190cafe-... --kind callback
  spyglass trace --db ./traces.db --run 0190cafe-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to inspect (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, opts.RunToken)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadEvents(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		RunToken:  run.Token,
		Scenario:  run.Scenario,
		Component: run.Component,
		Timeline:  make([]store.Event, 0, len(events)),
	}
	for _, ev := range events {
		result.Stats.TotalEvents++
		switch ev.Kind {
		case "call":
			result.Stats.Calls++
		case "callback":
			result.Stats.Callbacks++
		default:
			result.Stats.Steps++
		}
		if ev.Err != "" {
			result.Stats.Failures++
		}

		if opts.Kind != "" && ev.Kind != opts.Kind {
			continue
		}
		result.Timeline = append(result.Timeline, ev)
	}

	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}
	return outputTraceText(cmd, result)
}

func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Run %s (%s on %s)\n\n", result.RunToken, result.Scenario, result.Component)
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %-9s %s/%s", ev.Seq, ev.Kind, ev.Target, ev.Name)
		if ev.Args != "" {
			fmt.Fprintf(w, " args=%s", ev.Args)
		}
		if ev.Result != "" {
			fmt.Fprintf(w, " result=%s", ev.Result)
		}
		if ev.Err != "" {
			fmt.Fprintf(w, " error=%q", ev.Err)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\n%d events: %d calls, %d callbacks, %d steps, %d failures\n",
		result.Stats.TotalEvents, result.Stats.Calls, result.Stats.Callbacks,
		result.Stats.Steps, result.Stats.Failures)
	return nil
}
