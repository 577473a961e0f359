package shard

import "sync"

// UnitStore is the physical persistence surface for storage units. Each
// unit is a named text blob; the sharded store decides what goes in it.
//
// Implementations: Memory (tests, harness) and SQLite (durable hosts).
// The ledger is single-writer per turn, so implementations only need to be
// safe for sequential use; Memory locks anyway because test harnesses are
// allowed to poke at it from helpers.
type UnitStore interface {
	// Read returns the unit payload and whether the unit exists.
	Read(name string) (payload string, ok bool, err error)

	// Write creates or overwrites the unit.
	Write(name, payload string) error

	// Delete removes the unit. Deleting a missing unit is a no-op.
	Delete(name string) error
}

// Memory is an in-memory UnitStore for tests and scenario runs.
type Memory struct {
	mu    sync.Mutex
	units map[string]string
}

// NewMemory returns an empty in-memory unit store.
func NewMemory() *Memory {
	return &Memory{units: make(map[string]string)}
}

// Read implements UnitStore.
func (m *Memory) Read(name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.units[name]
	return payload, ok, nil
}

// Write implements UnitStore.
func (m *Memory) Write(name, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[name] = payload
	return nil
}

// Delete implements UnitStore.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.units, name)
	return nil
}

// Len reports how many units exist. Test helper.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.units)
}

// Corrupt replaces a unit's payload without going through Write semantics.
// Test helper for exercising degraded loads.
func (m *Memory) Corrupt(name, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[name]; ok {
		m.units[name] = payload
	}
}
