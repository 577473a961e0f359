// Package tool implements the execution port the ledger records against: a
// registration-based registry of named tools, the shared world state they
// mutate, and the inversion strategies used during rewind.
//
// Tools are registered statically - there is no dynamic code evaluation.
package tool

// Character is one actor in the world: experience, hit points, a counted
// inventory, and free-form string attributes.
type Character struct {
	XP         int
	HP         int
	Inventory  map[string]int
	Attributes map[string]string
}

// World is the shared mutable game state tools execute against. The host
// processes one turn at a time, so World needs no locking.
type World struct {
	characters map[string]*Character
}

// NewWorld returns an empty world.
func NewWorld() *World {
	return &World{characters: make(map[string]*Character)}
}

// Character returns the named character, creating it on first reference.
// Tools create actors implicitly - enforcing roster correctness is a game
// rule, not the port's job.
func (w *World) Character(name string) *Character {
	c, ok := w.characters[name]
	if !ok {
		c = &Character{
			Inventory:  make(map[string]int),
			Attributes: make(map[string]string),
		}
		w.characters[name] = c
	}
	return c
}

// Lookup returns the named character without creating it.
func (w *World) Lookup(name string) (*Character, bool) {
	c, ok := w.characters[name]
	return c, ok
}

// Len returns how many characters exist. Test helper.
func (w *World) Len() int {
	return len(w.characters)
}
