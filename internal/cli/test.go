package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/harness"
	"github.com/spyglass-go/spyglass/internal/fixture"
	"github.com/spyglass-go/spyglass/internal/store"
	"github.com/spyglass-go/spyglass/value"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Database string // persist traces to this SQLite database
	Filter   string // scenario filter (glob pattern on scenario file name)
	Update   bool   // regenerate golden trace files
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string   `json:"name"`
	Pass     bool     `json:"pass"`
	RunToken string   `json:"run_token,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <fixtures-dir> <scenarios-dir>",
		Short: "Run scenarios against component fixtures",
		Long: `Run scenario files against CUE component fixtures.

Each scenario constructs its component, wraps the listed operations and
callbacks, executes the flow, and evaluates assertions over the recorded
trace and final state.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  spyglass test ./components ./scenarios
  spyglass test ./components ./scenarios --filter "toggle_*"
  spyglass test ./components ./scenarios --db ./traces.db
  spyglass test ./components ./scenarios --update
  spyglass test ./components ./scenarios --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "persist traces to this SQLite database")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "write golden trace files instead of comparing")

	return cmd
}

func runTests(opts *TestOptions, fixturesDir, scenariosDir string, cmd *cobra.Command) error {
	defs, err := loadDefinitions(fixturesDir)
	if err != nil {
		return err
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(scenarioFile, defs, st, opts, cmd)
		result.Scenarios = append(result.Scenarios, scenResult)
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// loadDefinitions compiles every fixture under dir into a definition map.
func loadDefinitions(dir string) (map[string]*component.Definition, error) {
	specs, err := fixture.LoadDir(dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load fixtures", err)
	}
	defs, err := fixture.BuildAll(specs)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build fixtures", err)
	}
	return defs, nil
}

// findScenarioFiles finds all YAML scenario files in a directory, optionally
// filtered by a glob pattern over the base file name without extension.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("scenarios directory not found: %s", dir)
	}

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario executes a single scenario file and returns the result.
func runScenario(scenarioFile string, defs map[string]*component.Definition, st *store.Store, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", filepath.Base(scenarioFile))
			fmt.Fprintf(w, "  Load error: %v\n", err)
		}
		return ScenarioResult{
			Name:   filepath.Base(scenarioFile),
			Pass:   false,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	def, ok := defs[scenario.Component]
	if !ok {
		msg := fmt.Sprintf("no fixture for component %q", scenario.Component)
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", scenario.Name)
			fmt.Fprintf(w, "  %s\n", msg)
		}
		return ScenarioResult{Name: scenario.Name, Pass: false, Errors: []string{msg}}
	}

	result, err := harness.RunWith(def, scenario, harness.Options{Store: st})
	if err != nil {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", scenario.Name)
			fmt.Fprintf(w, "  Execution error: %v\n", err)
		}
		return ScenarioResult{
			Name:   scenario.Name,
			Pass:   false,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	errors := result.Errors
	updated := false
	if opts.Update {
		if err := updateGoldenFile(scenarioFile, scenario, result); err != nil {
			errors = append(errors, fmt.Sprintf("failed to update golden file: %v", err))
		} else {
			updated = true
		}
	} else if err := compareWithGolden(scenarioFile, scenario, result); err != nil {
		errors = append(errors, err.Error())
	}

	if result.Pass && len(errors) == 0 {
		if opts.Format != "json" {
			if updated {
				fmt.Fprintf(w, "✓ %s (golden updated)\n", scenario.Name)
			} else {
				fmt.Fprintf(w, "✓ %s\n", scenario.Name)
			}
			if opts.Verbose {
				fmt.Fprintf(w, "  run %s, %d events\n", result.RunToken, len(result.Trace))
			}
		}
		return ScenarioResult{Name: scenario.Name, Pass: true, RunToken: result.RunToken}
	}

	if opts.Format != "json" {
		fmt.Fprintf(w, "✗ %s\n", scenario.Name)
		for _, e := range errors {
			fmt.Fprintf(w, "  %s\n", indent(e, "  "))
		}
	}
	return ScenarioResult{
		Name:     scenario.Name,
		Pass:     false,
		RunToken: result.RunToken,
		Errors:   errors,
	}
}

// goldenFilePath maps a scenario file to its golden trace file, which sits
// next to the scenario with a .golden extension.
func goldenFilePath(scenarioFile string) string {
	ext := filepath.Ext(scenarioFile)
	return strings.TrimSuffix(scenarioFile, ext) + ".golden"
}

// goldenSnapshot serializes a run trace for golden comparison. The scenario's
// own run_token is used (empty unless pinned) so the bytes do not change
// between runs.
func goldenSnapshot(scenario *harness.Scenario, result *harness.Result) ([]byte, error) {
	snapshot := harness.TraceSnapshot{
		ScenarioName: scenario.Name,
		RunToken:     scenario.RunToken,
		Trace:        result.Trace,
	}
	return value.MarshalCanonical(snapshot.Value())
}

func updateGoldenFile(scenarioFile string, scenario *harness.Scenario, result *harness.Result) error {
	data, err := goldenSnapshot(scenario, result)
	if err != nil {
		return err
	}
	return os.WriteFile(goldenFilePath(scenarioFile), data, 0o644)
}

// compareWithGolden checks the run trace against the scenario's golden file,
// if one exists. Scenarios without a golden file always pass this check.
func compareWithGolden(scenarioFile string, scenario *harness.Scenario, result *harness.Result) error {
	goldenFile := goldenFilePath(scenarioFile)
	want, err := os.ReadFile(goldenFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}

	got, err := goldenSnapshot(scenario, result)
	if err != nil {
		return err
	}
	if string(got) != strings.TrimRight(string(want), "\n") {
		return fmt.Errorf("trace differs from golden file %s (re-run with --update to regenerate)", goldenFile)
	}
	return nil
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}
