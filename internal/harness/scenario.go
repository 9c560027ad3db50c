package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one translation conformance case: a where/sort input
// and the table it targets. The expected SQL lives in the golden file,
// not here, so fixtures stay the single source of truth.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Table is the row table identifier. Defaults to "kv_default".
	Table string `yaml:"table,omitempty"`

	// BodyColumn overrides the document body column. Defaults to "body".
	BodyColumn string `yaml:"body_column,omitempty"`

	// Where is the raw JSON predicate. Empty means no WHERE clause.
	Where string `yaml:"where,omitempty"`

	// Sort is the raw JSON sort spec. Empty means the default ordering.
	Sort string `yaml:"sort,omitempty"`

	// WantError marks scenarios whose input must be rejected; the golden
	// file then records the error text instead of the clauses.
	WantError bool `yaml:"want_error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "sorts:" vs "sort:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Where == "" && s.Sort == "" {
		return fmt.Errorf("at least one of where and sort is required")
	}
	if s.Table == "" {
		s.Table = "kv_default"
	}
	return nil
}
