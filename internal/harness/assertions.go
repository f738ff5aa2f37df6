package harness

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/nakajima/serverdata/internal/schema"
	"github.com/nakajima/serverdata/internal/store"
	"github.com/nakajima/serverdata/internal/value"
)

// checkCase returns a message for every expectation cr does not meet.
func checkCase(reg *schema.Registry, tc Case, cr CaseResult) []string {
	if tc.Error != "" {
		if cr.Err == nil {
			return []string{fmt.Sprintf("expected error containing %q, got success", tc.Error)}
		}
		if !strings.Contains(cr.Err.Error(), tc.Error) {
			return []string{fmt.Sprintf("expected error containing %q, got %q", tc.Error, cr.Err.Error())}
		}
		return nil
	}
	if cr.Err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", cr.Err)}
	}

	var errs []string
	if tc.ExpectDeleted != nil && cr.Deleted != *tc.ExpectDeleted {
		errs = append(errs, fmt.Sprintf("expected %d rows deleted, got %d", *tc.ExpectDeleted, cr.Deleted))
	}
	if tc.ExpectCount != nil && len(cr.Rows) != *tc.ExpectCount {
		errs = append(errs, fmt.Sprintf("expected %d rows, got %d", *tc.ExpectCount, len(cr.Rows)))
	}
	if tc.Expect != nil {
		errs = append(errs, matchRows(reg, tc.Expect, cr.Rows, tc.Sort != "")...)
	}
	return errs
}

// matchRows compares expected subset rows with actual rows. Ordered
// matching compares position by position; otherwise each expected row
// claims the first unclaimed actual row it matches.
func matchRows(reg *schema.Registry, expect []map[string]any, actual []store.Row, ordered bool) []string {
	if len(expect) != len(actual) {
		return []string{fmt.Sprintf("expected %d rows, got %d", len(expect), len(actual))}
	}

	var errs []string
	if ordered {
		for i, want := range expect {
			if msg := matchRow(reg, want, actual[i]); msg != "" {
				errs = append(errs, fmt.Sprintf("row %d: %s", i, msg))
			}
		}
		return errs
	}

	claimed := make([]bool, len(actual))
	for i, want := range expect {
		found := false
		for j, got := range actual {
			if !claimed[j] && matchRow(reg, want, got) == "" {
				claimed[j] = true
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("expected row %d %v has no match", i, want))
		}
	}
	return errs
}

// matchRow returns "" when every field in want equals the field in got.
func matchRow(reg *schema.Registry, want map[string]any, got store.Row) string {
	for name, w := range want {
		col, ok := reg.Resolve(name)
		if !ok {
			return fmt.Sprintf("unknown field %q", name)
		}
		g := got[col.Field]
		if !sameValue(w, g) {
			return fmt.Sprintf("%s: expected %s, got %s", col.Name, FormatValue(w), FormatValue(g))
		}
	}
	return ""
}

// sameValue compares an expected scenario value with a value read back
// from the database. Numbers compare by value across integer and float
// kinds. Booleans normalize to the integers 1 and 0 they are stored as.
func sameValue(want, got any) bool {
	w, err := value.Normalize(want)
	if err != nil {
		return false
	}
	g, err := value.Normalize(got)
	if err != nil {
		return false
	}

	switch wv := w.(type) {
	case nil:
		return g == nil
	case int64:
		switch gv := g.(type) {
		case int64:
			return wv == gv
		case float64:
			return float64(wv) == gv
		}
		return false
	case float64:
		switch gv := g.(type) {
		case int64:
			return wv == float64(gv)
		case float64:
			return wv == gv
		}
		return false
	case string:
		switch gv := g.(type) {
		case string:
			return wv == gv
		case []byte:
			return wv == string(gv)
		}
		return false
	case []byte:
		gv, ok := g.([]byte)
		return ok && bytes.Equal(wv, gv)
	case time.Time:
		gv, ok := g.(time.Time)
		return ok && wv.Equal(gv)
	default:
		return reflect.DeepEqual(w, g)
	}
}
