package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a sequence of host-side
// timeline events (new turns, edits, retries, rewinds) played against a
// fresh ledger, plus assertions on the final ledger and world state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Capacity overrides the ledger's sliding-window size. Zero keeps the
	// default; small values make window behavior testable.
	Capacity int `yaml:"capacity,omitempty"`

	// MaxUnitSize overrides the per-unit character ceiling. Zero keeps the
	// default; small values force multi-unit sharding.
	MaxUnitSize int `yaml:"max_unit_size,omitempty"`

	// Steps are the timeline events, played in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final ledger and world.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one timeline event. Exactly one field must be set; the step
// kind is the tagged variant, not a flag.
type Step struct {
	// Turn appends a new turn with this text.
	Turn string `yaml:"turn,omitempty"`

	// Edit mutates the text of a past turn in place.
	Edit *EditStep `yaml:"edit,omitempty"`

	// Retry replaces the text of the final turn.
	Retry string `yaml:"retry,omitempty"`

	// Rewind moves the story back to this turn index and truncates the
	// host timeline after it.
	Rewind *int `yaml:"rewind,omitempty"`
}

// EditStep mutates a past turn's text.
type EditStep struct {
	Index int    `yaml:"index"`
	Text  string `yaml:"text"`
}

// kind returns the step's variant name, or an error when the step sets
// zero or several variants.
func (s *Step) kind() (string, error) {
	var kinds []string
	if s.Turn != "" {
		kinds = append(kinds, "turn")
	}
	if s.Edit != nil {
		kinds = append(kinds, "edit")
	}
	if s.Retry != "" {
		kinds = append(kinds, "retry")
	}
	if s.Rewind != nil {
		kinds = append(kinds, "rewind")
	}
	if len(kinds) != 1 {
		return "", fmt.Errorf("step must set exactly one of turn/edit/retry/rewind, got %v", kinds)
	}
	return kinds[0], nil
}

// Assertion validates final ledger or world state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "position": the ledger position equals Value
	// - "entries": the ledger holds exactly Count entries
	// - "backups": the backup ring holds exactly Count snapshots
	// - "units": the state is persisted across exactly Count storage units
	// - "character": a character's xp/hp match Expect (subset match)
	// - "item": a character holds exactly Count of Item
	// - "attribute": a character's attribute Key equals Value
	Type string `yaml:"type"`

	// Name is the character name (character, item, attribute).
	Name string `yaml:"name,omitempty"`

	// Item is the inventory item (item).
	Item string `yaml:"item,omitempty"`

	// Key is the attribute key (attribute).
	Key string `yaml:"key,omitempty"`

	// Value is the expected scalar (position: int, attribute: string).
	Value interface{} `yaml:"value,omitempty"`

	// Count is the expected count (entries, backups, units, item).
	Count int `yaml:"count,omitempty"`

	// Expect holds expected character fields, "xp" and "hp" (character).
	Expect map[string]int `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertPosition  = "position"
	AssertEntries   = "entries"
	AssertBackups   = "backups"
	AssertUnits     = "units"
	AssertCharacter = "character"
	AssertItem      = "item"
	AssertAttribute = "attribute"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		kind, err := step.kind()
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		switch kind {
		case "edit":
			if step.Edit.Index < 0 {
				return fmt.Errorf("steps[%d]: edit index must be non-negative", i)
			}
			if step.Edit.Text == "" {
				return fmt.Errorf("steps[%d]: edit text is required", i)
			}
		case "rewind":
			if *step.Rewind < -1 {
				return fmt.Errorf("steps[%d]: rewind target must be >= -1", i)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertPosition:
		if _, ok := a.Value.(int); !ok {
			return fmt.Errorf("assertions[%d]: integer value is required for position", index)
		}
	case AssertEntries, AssertBackups, AssertUnits:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertCharacter:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for character", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for character", index)
		}
		for field := range a.Expect {
			if field != "xp" && field != "hp" {
				return fmt.Errorf("assertions[%d]: unknown character field %q", index, field)
			}
		}
	case AssertItem:
		if a.Name == "" || a.Item == "" {
			return fmt.Errorf("assertions[%d]: name and item are required for item", index)
		}
	case AssertAttribute:
		if a.Name == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: name and key are required for attribute", index)
		}
		if _, ok := a.Value.(string); !ok {
			return fmt.Errorf("assertions[%d]: string value is required for attribute", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
