package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nakajima/serverdata/internal/dialect"
	"github.com/nakajima/serverdata/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool     // regenerate golden files
	Filter   string   // scenario filter (glob pattern)
	Bindings []string // IN-list conventions each scenario runs under
}

// ScenarioResult holds the result of one scenario under one convention.
type ScenarioResult struct {
	Name   string   `json:"name"`
	In     string   `json:"in"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
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
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against in-memory SQLite",
		Long: `Run every scenario file in scenarios-dir under each IN-list convention.

A scenario passes when all of its cases meet their expectations and, when
scenarios-dir/golden/<name>_<in>.golden exists, its snapshot matches.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  serverdata test ./scenarios
  serverdata test ./scenarios --filter "people*"
  serverdata test ./scenarios --update
  serverdata test ./scenarios --bindings array --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringSliceVar(&opts.Bindings, "bindings", []string{"scalar", "array"}, "IN-list conventions to run")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	for _, in := range opts.Bindings {
		if _, err := dialect.ParseInBinding(in); err != nil {
			return WrapExitError(ExitCommandError, "invalid --bindings", err)
		}
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	if len(files) == 0 {
		if f.JSON() {
			return f.Success(result)
		}
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	for _, file := range files {
		for _, r := range runScenario(opts, f, file) {
			result.Scenarios = append(result.Scenarios, r)
			result.Total++
			if r.Pass {
				result.Passed++
			} else {
				result.Failed++
			}
		}
	}

	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if result.Failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeTestFailed,
				Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
			}
		}
		if err := f.encode(resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(f.Writer)
		fmt.Fprintf(f.Writer, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if result.Failed == 0 {
			f.Pass("All scenarios passed")
		}
	}

	if result.Failed > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d scenario(s) failed", result.Failed), Reported: true}
	}
	return nil
}

// findScenarioFiles returns the scenario files in dir whose base name
// matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	all, err := harness.FindScenarios(dir)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return all, nil
	}

	var files []string
	for _, path := range all {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		matched, err := filepath.Match(filter, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			files = append(files, path)
		}
	}
	return files, nil
}

// runScenario runs one scenario file under every requested convention.
func runScenario(opts *TestOptions, f *OutputFormatter, file string) []ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		name := filepath.Base(file)
		if !f.JSON() {
			f.Failed("%s", name)
			fmt.Fprintf(f.Writer, "  Load error: %v\n", err)
		}
		return []ScenarioResult{{Name: name, Pass: false, Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)}}}
	}

	var out []ScenarioResult
	for _, in := range opts.Bindings {
		r := ScenarioResult{Name: scenario.Name, In: in, Pass: true}
		label := fmt.Sprintf("%s [%s]", scenario.Name, in)

		result, err := harness.Run(scenario, in)
		if err != nil {
			r.Pass = false
			r.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		} else {
			r.Errors = append(r.Errors, result.Errors...)
			r.Pass = result.Pass
			if opts.Update {
				if err := writeGolden(file, scenario, in, result); err != nil {
					r.Pass = false
					r.Errors = append(r.Errors, err.Error())
				} else {
					label += " (golden updated)"
				}
			} else if msg := compareGolden(file, scenario, in, result); msg != "" {
				r.Pass = false
				r.Errors = append(r.Errors, msg)
			}
		}

		if !f.JSON() {
			if r.Pass {
				f.Pass("%s", label)
			} else {
				f.Failed("%s", label)
				for _, e := range r.Errors {
					fmt.Fprintf(f.Writer, "  %s\n", e)
				}
			}
		}
		out = append(out, r)
	}
	return out
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile, name, in string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+"_"+in+".golden")
}

func writeGolden(file string, scenario *harness.Scenario, in string, result *harness.Result) error {
	path := goldenFilePath(file, scenario.Name, in)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, harness.Snapshot(scenario, in, result), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareGolden returns a message when the snapshot differs from its
// golden file. A missing golden file is not a failure.
func compareGolden(file string, scenario *harness.Scenario, in string, result *harness.Result) string {
	golden, err := os.ReadFile(goldenFilePath(file, scenario.Name, in))
	if os.IsNotExist(err) {
		return ""
	}
	if err != nil {
		return fmt.Sprintf("failed to read golden file: %v", err)
	}
	if !bytes.Equal(golden, harness.Snapshot(scenario, in, result)) {
		return "snapshot does not match golden file (run with --update to regenerate)"
	}
	return ""
}
