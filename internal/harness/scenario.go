package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario describes one model, the rows it starts with and the queries run
// against it in order.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// CUE declares the models in the modelspec format.
	CUE string `yaml:"cue"`

	// Model selects the model to query. It may be omitted when CUE
	// declares exactly one.
	Model string `yaml:"model,omitempty"`

	// Seed rows are inserted before the first case. Keys are field
	// identifiers or column names.
	Seed []map[string]any `yaml:"seed,omitempty"`

	// Cases run in order against the same table, so a deleting case is
	// visible to the cases after it.
	Cases []Case `yaml:"cases"`
}

// Case is one select or delete.
type Case struct {
	Name string `yaml:"name"`

	// Where is a predicate in the textual predicate language. Empty
	// matches every row.
	Where string `yaml:"where,omitempty"`

	// Params supply values for :name references in Where.
	Params map[string]any `yaml:"params,omitempty"`

	// Sort is "field" or "field:desc".
	Sort  string `yaml:"sort,omitempty"`
	Limit *int   `yaml:"limit,omitempty"`

	// Delete runs a DELETE with Where instead of a SELECT.
	Delete bool `yaml:"delete,omitempty"`

	// Expect lists the selected rows. Each is a subset match: only the
	// fields given are compared. Without Sort the order is ignored.
	Expect []map[string]any `yaml:"expect,omitempty"`

	// ExpectCount is the number of selected rows.
	ExpectCount *int `yaml:"expect_count,omitempty"`

	// ExpectDeleted is the number of rows a delete removes.
	ExpectDeleted *int64 `yaml:"expect_deleted,omitempty"`

	// Error, when set, is a substring the case's error must contain. The
	// case fails if it succeeds.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files directly in dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.CUE) == "" {
		return fmt.Errorf("cue is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if c.Delete {
			if c.Sort != "" || c.Limit != nil {
				return fmt.Errorf("cases[%d]: sort and limit do not apply to a delete", i)
			}
			if len(c.Expect) > 0 || c.ExpectCount != nil {
				return fmt.Errorf("cases[%d]: a delete expects expect_deleted, not rows", i)
			}
		} else if c.ExpectDeleted != nil {
			return fmt.Errorf("cases[%d]: expect_deleted requires delete", i)
		}
		if c.Limit != nil && *c.Limit < 0 {
			return fmt.Errorf("cases[%d]: limit must be non-negative", i)
		}
		if c.Error != "" && (len(c.Expect) > 0 || c.ExpectCount != nil || c.ExpectDeleted != nil) {
			return fmt.Errorf("cases[%d]: error excludes other expectations", i)
		}
	}
	return nil
}
