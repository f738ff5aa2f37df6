package harness

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as deterministic text: every case's SQL, its
// bindings and the rows it selected or the count it deleted. Rows list
// their columns in declaration order.
func Snapshot(scenario *Scenario, in string, result *Result) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "scenario: %s\n", scenario.Name)
	fmt.Fprintf(&sb, "in: %s\n", inLabel(in))

	for i, cr := range result.Cases {
		fmt.Fprintf(&sb, "\n[%d] %s\n", cr.Seq, cr.Name)
		if cr.Err != nil {
			msg := scenario.Cases[i].Error
			if msg == "" {
				msg = cr.Err.Error()
			}
			// Only the expected substring is recorded; driver messages vary.
			fmt.Fprintf(&sb, "error: %s\n", msg)
			continue
		}
		fmt.Fprintf(&sb, "sql: %s\n", cr.SQL)
		fmt.Fprintf(&sb, "bindings: %s\n", FormatList(cr.Bindings))
		if scenario.Cases[i].Delete {
			fmt.Fprintf(&sb, "deleted: %d\n", cr.Deleted)
			continue
		}
		fmt.Fprintf(&sb, "rows: %d\n", len(cr.Rows))
		for _, row := range cr.Rows {
			sb.WriteString(" ")
			for _, col := range result.Columns {
				fmt.Fprintf(&sb, " %s=%s", col.Name, FormatValue(row[col.Field]))
			}
			sb.WriteString("\n")
		}
	}
	return []byte(sb.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}_{in}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Case failures fail the test before the snapshot is compared.
func RunWithGolden(t *testing.T, scenario *Scenario, in string) error {
	t.Helper()

	result, err := Run(scenario, in)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name+"_"+inLabel(in), Snapshot(scenario, in, result))
	return nil
}

func inLabel(in string) string {
	if in == "" {
		return "default"
	}
	return in
}

// FormatList renders values the way snapshots print bindings.
func FormatList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = FormatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatValue renders one value: NULL, a quoted string, 0x-prefixed hex
// bytes, an RFC 3339 time or the default formatting.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", val)
	case []byte:
		return fmt.Sprintf("0x%x", val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", val)
	}
}
