package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/nakajima/serverdata/internal/modelspec"
)

// ModelSummary describes one registered model.
type ModelSummary struct {
	Name    string   `json:"name"`
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// CheckResult holds the result of loading a specs directory.
type CheckResult struct {
	Files  int            `json:"files"`
	Models []ModelSummary `json:"models"`
	Errors []CLIError     `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [specs-dir]",
		Short: "Load and register CUE models",
		Long: `Load every model declared in the CUE package in specs-dir and register
it, reporting every model that does not compile or register.

Exit codes:
  0 - All models registered
  1 - One or more models failed
  2 - Command error (directory not found, no CUE files, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args, cmd)
		},
	}
}

func runCheck(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg, err := opts.configure(cmd, f)
	if err != nil {
		return err
	}
	dir := specsDir(cfg, args)

	loaded, errs := modelspec.Load(dir, modelspec.LoadModeCollectAll)
	if loaded == nil {
		return loadFailure(f, errs)
	}

	result := CheckResult{Files: loaded.FileCount, Models: []ModelSummary{}}
	for _, reg := range loaded.Registries {
		summary := ModelSummary{Name: reg.Model(), Table: reg.Table()}
		for _, col := range reg.Columns() {
			summary.Columns = append(summary.Columns, col.Name)
		}
		result.Models = append(result.Models, summary)
	}
	for _, e := range errs {
		ce := CLIError{Code: modelspec.ErrCodeGeneric, Message: e.Error()}
		var loadErr *modelspec.LoadError
		if errors.As(e, &loadErr) {
			ce.Code = loadErr.Code
		}
		result.Errors = append(result.Errors, ce)
	}

	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if len(errs) > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: result.Errors[0].Code, Message: "one or more models failed"}
		}
		if err := f.encode(resp); err != nil {
			return err
		}
	} else {
		for _, m := range result.Models {
			f.Pass("%s (%s): %d column(s)", m.Name, m.Table, len(m.Columns))
		}
		for _, e := range result.Errors {
			f.Failed("[%s] %s", e.Code, e.Message)
		}
		f.Note("%d model(s), %d error(s) in %d file(s)", len(result.Models), len(result.Errors), result.Files)
	}

	if len(errs) > 0 {
		return &ExitError{Code: ExitFailure, Message: "one or more models failed", Reported: true}
	}
	return nil
}
