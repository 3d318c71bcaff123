package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/harness"
	"github.com/spyglass-go/spyglass/internal/fixture"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidateResult holds the outcome of validating fixtures and scenarios.
type ValidateResult struct {
	Components []string `json:"components"`
	Scenarios  []string `json:"scenarios,omitempty"`
	Problems   []string `json:"problems,omitempty"`
	Valid      bool     `json:"valid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <fixtures-dir> [scenarios-dir]",
		Short: "Validate fixtures and scenarios without running them",
		Long: `Compile component fixtures and parse scenario files, reporting every
problem found. Scenarios are additionally checked against the fixtures:
the component must exist, wrapped operations must be defined, and
callbacks must be declared.

Exit codes:
  0 - Everything valid
  1 - Validation problems found
  2 - Command error (invalid paths, etc.)`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenariosDir := ""
			if len(args) == 2 {
				scenariosDir = args[1]
			}
			return runValidate(opts, args[0], scenariosDir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, fixturesDir, scenariosDir string, cmd *cobra.Command) error {
	specs, err := fixture.LoadDir(fixturesDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fixtures", err)
	}

	result := ValidateResult{Valid: true}

	byName := make(map[string]*fixture.Spec, len(specs))
	for _, spec := range specs {
		result.Components = append(result.Components, spec.Name)
		byName[spec.Name] = spec
		if _, err := fixture.Build(spec); err != nil {
			result.Problems = append(result.Problems, fmt.Sprintf("fixture %s: %v", spec.Name, err))
		}
	}

	if scenariosDir != "" {
		files, err := findScenarioFiles(scenariosDir, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		for _, file := range files {
			scenario, err := harness.LoadScenario(file)
			if err != nil {
				result.Problems = append(result.Problems, fmt.Sprintf("%s: %v", filepath.Base(file), err))
				continue
			}
			result.Scenarios = append(result.Scenarios, scenario.Name)
			result.Problems = append(result.Problems, checkScenario(scenario, byName)...)
		}
	}

	result.Valid = len(result.Problems) == 0

	if opts.Format == "json" {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%d components, %d scenarios\n", len(result.Components), len(result.Scenarios))
		for _, p := range result.Problems {
			fmt.Fprintf(w, "✗ %s\n", p)
		}
		if result.Valid {
			fmt.Fprintln(w, "OK")
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation problems", len(result.Problems)))
	}
	return nil
}

// checkScenario cross-checks a scenario against the fixture it targets.
func checkScenario(scenario *harness.Scenario, fixtures map[string]*fixture.Spec) []string {
	spec, ok := fixtures[scenario.Component]
	if !ok {
		return []string{fmt.Sprintf("scenario %s: no fixture for component %q", scenario.Name, scenario.Component)}
	}

	var problems []string
	for _, op := range scenario.Wrap {
		if _, defined := spec.Operations[op]; !defined && op != component.OpRender {
			problems = append(problems, fmt.Sprintf("scenario %s: wraps undefined operation %q", scenario.Name, op))
		}
	}

	declared := make(map[string]bool, len(spec.Callbacks))
	for _, cb := range spec.Callbacks {
		declared[cb] = true
	}
	for _, cb := range scenario.Callbacks {
		if !declared[cb] {
			problems = append(problems, fmt.Sprintf("scenario %s: observes undeclared callback %q", scenario.Name, cb))
		}
	}

	for i, step := range scenario.Flow {
		if step.Dispatch == "" {
			continue
		}
		element, ok := spec.Elements[step.Element]
		if !ok {
			problems = append(problems, fmt.Sprintf("scenario %s: flow step %d targets unknown element %q", scenario.Name, i, step.Element))
			continue
		}
		if _, bound := element[step.Dispatch]; !bound && step.ExpectError == "" {
			problems = append(problems, fmt.Sprintf("scenario %s: flow step %d dispatches unbound event %q", scenario.Name, i, step.Dispatch))
		}
	}
	return problems
}
