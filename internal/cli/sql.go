package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nakajima/serverdata/internal/harness"
	"github.com/nakajima/serverdata/internal/predicate"
	"github.com/nakajima/serverdata/internal/querysql"
)

// SQLOptions holds flags for the sql command.
type SQLOptions struct {
	*RootOptions
	QueryFlags
	Delete bool
	In     string
}

// SQLResult holds a rendered statement.
type SQLResult struct {
	Dialect  string `json:"dialect"`
	SQL      string `json:"sql"`
	Bindings []any  `json:"bindings"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SQLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sql <model> [predicate]",
		Short: "Compile a predicate and print the statement",
		Long: `Compile a predicate over a model's fields and print the SELECT (or with
--delete, DELETE) statement with its bindings. Nothing is executed.

Examples:
  serverdata sql Person 'age >= :min && nickname ?? "" != ""' --param min=18
  serverdata sql Person '[1, 2].contains(id)' --in array --dialect postgres
  serverdata sql Person 'age < 18' --delete`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.limitSet = cmd.Flags().Changed("limit")
			return runSQL(opts, args, cmd)
		},
	}

	addQueryFlags(cmd.Flags(), &opts.QueryFlags)
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "render a DELETE instead of a SELECT")
	cmd.Flags().StringVar(&opts.In, "in", "", "IN-list convention (scalar|array)")

	return cmd
}

func addQueryFlags(fs *pflag.FlagSet, q *QueryFlags) {
	fs.StringVar(&q.Sort, "sort", "", "sort key, field or field:desc")
	fs.IntVar(&q.Limit, "limit", 0, "maximum number of rows")
	fs.StringToStringVarP(&q.Params, "param", "p", nil, "predicate parameter name=value (repeatable)")
}

func runSQL(opts *SQLOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg, err := opts.configure(cmd, f)
	if err != nil {
		return err
	}
	d, err := cfg.RenderDialect()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	reg, err := opts.registry(f, cfg.SpecsDir, args[0])
	if err != nil {
		return err
	}

	var src string
	if len(args) > 1 {
		src = args[1]
	}
	if opts.Delete && (opts.Sort != "" || opts.limitSet) {
		return f.Fail(ExitCommandError, ErrCodeParse, "--sort and --limit do not apply to --delete", nil)
	}

	q, err := buildQuery(reg, src, opts.QueryFlags)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeParse, err.Error(), parseDetails(err))
	}

	b := querysql.NewBuilder(reg, d)
	var stmt querysql.Statement
	if opts.Delete {
		stmt, err = b.Delete(q.Where)
	} else {
		stmt, err = b.Select(q)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCompile, err.Error(), compileDetails(err))
	}

	result := SQLResult{Dialect: d.Name(), SQL: stmt.SQL, Bindings: stmt.Bindings}
	if result.Bindings == nil {
		result.Bindings = []any{}
	}
	if f.JSON() {
		return f.Success(result)
	}
	fmt.Fprintln(f.Writer, result.SQL)
	f.Note("bindings: %s", harness.FormatList(result.Bindings))
	return nil
}

func parseDetails(err error) any {
	var pe *predicate.ParseError
	if errors.As(err, &pe) && pe.Line > 0 {
		return map[string]int{"line": pe.Line, "column": pe.Column}
	}
	return nil
}

func compileDetails(err error) any {
	if code := querysql.CodeOf(err); code != "" {
		return map[string]string{"code": string(code)}
	}
	return nil
}
