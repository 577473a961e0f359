package harness

import "fmt"

// CheckAssertions evaluates every assertion against a result and returns
// one error per failed assertion. An empty slice means the scenario
// passed.
func CheckAssertions(result *Result, assertions []Assertion) []error {
	var failures []error
	for i, a := range assertions {
		if err := checkAssertion(result, &a); err != nil {
			failures = append(failures, fmt.Errorf("assertions[%d] (%s): %w", i, a.Type, err))
		}
	}
	return failures
}

func checkAssertion(result *Result, a *Assertion) error {
	switch a.Type {
	case AssertPosition:
		want := a.Value.(int)
		if result.State.Position != want {
			return fmt.Errorf("position is %d, want %d", result.State.Position, want)
		}

	case AssertEntries:
		if len(result.State.Entries) != a.Count {
			return fmt.Errorf("ledger holds %d entries, want %d", len(result.State.Entries), a.Count)
		}

	case AssertBackups:
		backups, err := result.Store.Backups()
		if err != nil {
			return fmt.Errorf("reading backups: %w", err)
		}
		if len(backups) != a.Count {
			return fmt.Errorf("backup ring holds %d snapshots, want %d", len(backups), a.Count)
		}

	case AssertUnits:
		units, err := result.Store.Units()
		if err != nil {
			return fmt.Errorf("counting units: %w", err)
		}
		if units != a.Count {
			return fmt.Errorf("state spans %d units, want %d", units, a.Count)
		}

	case AssertCharacter:
		c, ok := result.World.Lookup(a.Name)
		if !ok {
			return fmt.Errorf("character %q does not exist", a.Name)
		}
		if want, set := a.Expect["xp"]; set && c.XP != want {
			return fmt.Errorf("%s has xp %d, want %d", a.Name, c.XP, want)
		}
		if want, set := a.Expect["hp"]; set && c.HP != want {
			return fmt.Errorf("%s has hp %d, want %d", a.Name, c.HP, want)
		}

	case AssertItem:
		c, ok := result.World.Lookup(a.Name)
		if !ok {
			if a.Count == 0 {
				return nil
			}
			return fmt.Errorf("character %q does not exist", a.Name)
		}
		if got := c.Inventory[a.Item]; got != a.Count {
			return fmt.Errorf("%s holds %d of %s, want %d", a.Name, got, a.Item, a.Count)
		}

	case AssertAttribute:
		c, ok := result.World.Lookup(a.Name)
		if !ok {
			return fmt.Errorf("character %q does not exist", a.Name)
		}
		want := a.Value.(string)
		if got := c.Attributes[a.Key]; got != want {
			return fmt.Errorf("%s attribute %s is %q, want %q", a.Name, a.Key, got, want)
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
