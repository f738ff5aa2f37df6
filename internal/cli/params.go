package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nakajima/serverdata/internal/predicate"
	"github.com/nakajima/serverdata/internal/querysql"
	"github.com/nakajima/serverdata/internal/schema"
)

// QueryFlags are the flags shared by sql and query.
type QueryFlags struct {
	Sort   string
	Limit  int
	Params map[string]string

	limitSet bool
}

// parseParam reads a --param value: an integer, a float, true or false,
// a JSON list, a double-quoted string, or otherwise the raw text.
func parseParam(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		return x, nil
	}
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if strings.HasPrefix(s, "[") {
		var list []any
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return nil, fmt.Errorf("list %s: %w", s, err)
		}
		for i, v := range list {
			// JSON numbers decode as float64; keep whole numbers integral.
			if x, ok := v.(float64); ok && x == math.Trunc(x) && math.Abs(x) < 1<<53 {
				list[i] = int64(x)
			}
		}
		return list, nil
	}
	if strings.HasPrefix(s, `"`) {
		return strconv.Unquote(s)
	}
	return raw, nil
}

func parseParams(raw map[string]string) (map[string]any, error) {
	params := make(map[string]any, len(raw))
	for k, v := range raw {
		p, err := parseParam(v)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		params[k] = p
	}
	return params, nil
}

// buildQuery parses the predicate source and flags against reg. An empty
// source selects every row.
func buildQuery(reg *schema.Registry, src string, flags QueryFlags) (querysql.Query, error) {
	params, err := parseParams(flags.Params)
	if err != nil {
		return querysql.Query{}, err
	}

	var q querysql.Query
	if strings.TrimSpace(src) != "" {
		where, err := predicate.Parse(src, predicate.ForRegistry(reg, params))
		if err != nil {
			return querysql.Query{}, err
		}
		q.Where = where
	}
	if flags.Sort != "" {
		s, err := querysql.ParseSort(reg, flags.Sort)
		if err != nil {
			return querysql.Query{}, err
		}
		q.Sort = &s
	}
	if flags.limitSet {
		q.Limit = querysql.Limit(flags.Limit)
	}
	return q, nil
}
