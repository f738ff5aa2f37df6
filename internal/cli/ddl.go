package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nakajima/serverdata/internal/querysql"
)

// DDLOptions holds flags for the ddl command.
type DDLOptions struct {
	*RootOptions
	IfNotExists bool
}

// DDLResult holds the rendered table definitions.
type DDLResult struct {
	Dialect    string   `json:"dialect"`
	Statements []string `json:"statements"`
}

// NewDDLCommand creates the ddl command.
func NewDDLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DDLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ddl [specs-dir]",
		Short: "Print CREATE TABLE statements for every model",
		Long: `Print the CREATE TABLE statement of every model in specs-dir, in the
dialect selected with --dialect or the configured driver.

Examples:
  serverdata ddl ./specs
  serverdata ddl ./specs --dialect postgres`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDDL(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.IfNotExists, "if-not-exists", true, "emit IF NOT EXISTS")

	return cmd
}

func runDDL(opts *DDLOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg, err := opts.configure(cmd, f)
	if err != nil {
		return err
	}
	d, err := cfg.RenderDialect()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	loaded, err := opts.loadModels(f, specsDir(cfg, args))
	if err != nil {
		return err
	}

	result := DDLResult{Dialect: d.Name()}
	for _, reg := range loaded.Registries {
		stmt := querysql.NewBuilder(reg, d).CreateTable(opts.IfNotExists)
		result.Statements = append(result.Statements, stmt.SQL)
	}

	if f.JSON() {
		return f.Success(result)
	}
	for _, s := range result.Statements {
		fmt.Fprintf(f.Writer, "%s;\n", s)
	}
	return nil
}
