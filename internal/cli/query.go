package cli

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nakajima/serverdata/internal/harness"
	"github.com/nakajima/serverdata/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	QueryFlags
	Driver string
	DSN    string
}

// QueryResult holds selected rows keyed by column name.
type QueryResult struct {
	Table   string           `json:"table"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <model> [predicate]",
		Short: "Run a SELECT against the configured database",
		Long: `Compile a predicate and run the SELECT against the database named by
--driver and --dsn (or SERVERDATA_DRIVER / SERVERDATA_DSN / DATABASE_URL).

Examples:
  serverdata query Person 'age >= 18' --sort age:desc --limit 10
  serverdata query Person --driver postgres --dsn postgres://localhost/app`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.limitSet = cmd.Flags().Changed("limit")
			return runQuery(cmd.Context(), opts, args, cmd)
		},
	}

	addQueryFlags(cmd.Flags(), &opts.QueryFlags)
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|mysql|postgres)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "data source name")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)
	cfg, err := opts.configure(cmd, f)
	if err != nil {
		return err
	}

	reg, err := opts.registry(f, cfg.SpecsDir, args[0])
	if err != nil {
		return err
	}
	var src string
	if len(args) > 1 {
		src = args[1]
	}
	q, err := buildQuery(reg, src, opts.QueryFlags)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeParse, err.Error(), parseDetails(err))
	}

	sc := cfg.Store()
	sc.Logger = opts.Logger()
	c, err := store.Open(ctx, sc)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}
	defer c.Close()

	table := c.Table(reg)
	exists, err := table.Exists(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}
	if !exists {
		return f.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("table %q does not exist in %s", table.Name(), c.Name()), nil)
	}

	rows, err := table.Select(ctx, q)
	if err != nil {
		if code := compileDetails(err); code != nil {
			return f.Fail(ExitCommandError, ErrCodeCompile, err.Error(), code)
		}
		return f.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}

	cols := reg.Columns()
	result := QueryResult{Table: reg.Table(), Rows: make([]map[string]any, 0, len(rows))}
	for _, col := range cols {
		result.Columns = append(result.Columns, col.Name)
	}
	for _, row := range rows {
		out := make(map[string]any, len(cols))
		for _, col := range cols {
			out[col.Name] = row[col.Field]
		}
		result.Rows = append(result.Rows, out)
	}

	if f.JSON() {
		return f.Success(result)
	}
	return renderRows(f, result)
}

func renderRows(f *OutputFormatter, result QueryResult) error {
	data := pterm.TableData{result.Columns}
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, name := range result.Columns {
			cells[i] = harness.FormatValue(row[name])
		}
		data = append(data, cells)
	}

	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(f.Writer, out)
	f.Note("%d row(s)", len(result.Rows))
	return nil
}
