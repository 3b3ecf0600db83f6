package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rete/internal/demo"
)

// Scenario defines a conformance test scenario.
// A scenario mutates a fresh session step by step and asserts on the
// resulting trace and final working memory.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SessionID is an optional fixed session id for deterministic journals.
	// If empty, a UUIDv7 is generated.
	SessionID string `yaml:"session_id,omitempty"`

	// MaxCycles bounds every fire step. Zero means unlimited.
	MaxCycles int `yaml:"max_cycles,omitempty"`

	// Steps run in order against one session.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and working memory.
	// Supported types: fired, fired_order, fired_count, fact_count, fact
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one session operation. Exactly one of Insert, Update, Retract
// or Fire is set.
type Step struct {
	Insert  []demo.Fact `yaml:"insert,omitempty"`
	Update  []demo.Fact `yaml:"update,omitempty"`
	Retract []demo.Fact `yaml:"retract,omitempty"`
	Fire    *FireStep   `yaml:"fire,omitempty"`

	// ExpectError, when set, requires the step to fail with an error
	// containing this text. The scenario continues after the failure.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// FireStep runs the fire loop.
type FireStep struct {
	// Limit caps the number of rules fired by this step. Zero fires until
	// the agenda is empty.
	Limit int `yaml:"limit,omitempty"`

	// Expect, when non-nil, is the exact number of rules this step fires.
	Expect *int `yaml:"expect,omitempty"`
}

// Op returns the step's operation name.
func (s Step) Op() string {
	switch {
	case s.Insert != nil:
		return OpInsert
	case s.Update != nil:
		return OpUpdate
	case s.Retract != nil:
		return OpRetract
	case s.Fire != nil:
		return OpFire
	default:
		return ""
	}
}

// Step operations.
const (
	OpInsert  = "insert"
	OpUpdate  = "update"
	OpRetract = "retract"
	OpFire    = "fire"
)

// Assertion validates the trace or final working memory.
type Assertion struct {
	// Type specifies the assertion type:
	// - "fired": Check rule fired at least once
	// - "fired_order": Check rules first fired in order
	// - "fired_count": Check rule fired exactly Count times
	// - "fact_count": Check working memory holds Count facts of Kind
	// - "fact": Check a fact of Kind with the given Fields exists
	Type string `yaml:"type"`

	// Rule is the rule name (used by fired, fired_count).
	Rule string `yaml:"rule,omitempty"`

	// Rules is the expected rule order (used by fired_order).
	Rules []string `yaml:"rules,omitempty"`

	// Kind is the fact kind (used by fact_count, fact).
	Kind string `yaml:"kind,omitempty"`

	// Fields are the expected field values (used by fact).
	// Subset match - only specified fields are validated.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Count is the expected number (used by fired_count, fact_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFired      = "fired"
	AssertFiredOrder = "fired_order"
	AssertFiredCount = "fired_count"
	AssertFactCount  = "fact_count"
	AssertFact       = "fact"
)

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
	// Strict decoding catches typos like "assertion:" vs "assertions:"
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
	if s.MaxCycles < 0 {
		return fmt.Errorf("max_cycles must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		ops := 0
		for _, set := range []bool{step.Insert != nil, step.Update != nil, step.Retract != nil, step.Fire != nil} {
			if set {
				ops++
			}
		}
		if ops != 1 {
			return fmt.Errorf("steps[%d]: exactly one of insert, update, retract or fire is required", i)
		}
		if step.Fire != nil && step.Fire.Limit < 0 {
			return fmt.Errorf("steps[%d].fire: limit must be non-negative", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFired:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for fired", index)
		}
	case AssertFiredOrder:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for fired_order", index)
		}
	case AssertFiredCount:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for fired_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fired_count", index)
		}
	case AssertFactCount, AssertFact:
		if _, err := demo.NewFact(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Type == AssertFactCount && a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fact_count", index)
		}
		if a.Type == AssertFact && len(a.Fields) == 0 {
			return fmt.Errorf("assertions[%d]: fields are required for fact", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
