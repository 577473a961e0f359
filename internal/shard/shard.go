// Package shard persists a single logical ledger state across N
// fixed-capacity storage units, transparently.
//
// The host platform caps every persistence unit at a hard character size,
// so the entry list is greedily packed into as many units as it needs and
// reassembled on read. A crash mid-save can leave stale or missing trailing
// units; Load degrades gracefully - a unit that fails to parse is skipped
// and logged, never fatal, and missing trailing units just mean fewer
// entries recovered.
package shard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tatterhall/fable/internal/record"
)

// Defaults match the host platform's limits.
const (
	// DefaultMaxUnitSize is the per-unit character ceiling.
	DefaultMaxUnitSize = 9000

	// DefaultCapacity is the ledger's sliding-window size.
	DefaultCapacity = 100

	// DefaultPrefix names unit 1; units 2..N append the integer.
	DefaultPrefix = "fable-ledger"
)

// Anomaly thresholds for Save. A candidate write is anomalous when the
// existing state had more than collapseFloor entries and the candidate has
// fewer than half as many, or when more than divergencePct percent of the
// overlapping-prefix hashes differ.
const (
	collapseFloor = 20
	divergencePct = 30
)

// unitPayload is the bit-exact wire shape of one storage unit.
type unitPayload struct {
	Entries  []*record.Entry `json:"entries"`
	Position int             `json:"position"`
}

// Store shards a record.State over a UnitStore.
type Store struct {
	units       UnitStore
	prefix      string
	capacity    int
	maxUnitSize int
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the unit name prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithCapacity overrides the sliding-window capacity.
func WithCapacity(capacity int) Option {
	return func(s *Store) { s.capacity = capacity }
}

// WithMaxUnitSize overrides the per-unit character ceiling.
func WithMaxUnitSize(size int) Option {
	return func(s *Store) { s.maxUnitSize = size }
}

// New creates a sharded store over the given unit store.
func New(units UnitStore, opts ...Option) *Store {
	s := &Store{
		units:       units,
		prefix:      DefaultPrefix,
		capacity:    DefaultCapacity,
		maxUnitSize: DefaultMaxUnitSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity returns the configured sliding-window capacity.
func (s *Store) Capacity() int { return s.capacity }

// unitName returns the name of unit n (1-based). Unit 1 carries no suffix.
func (s *Store) unitName(n int) string {
	if n == 1 {
		return s.prefix
	}
	return s.prefix + strconv.Itoa(n)
}

// Load reassembles the ledger state from units 1..N, stopping at the first
// missing unit number. Units that fail to read or parse are skipped with a
// warning; the rest of the ledger remains usable. Position is the max seen
// across units (unit 1 carries it by convention).
func (s *Store) Load() (record.State, error) {
	state := record.State{Position: -1}

	for n := 1; ; n++ {
		name := s.unitName(n)
		payload, ok, err := s.units.Read(name)
		if err != nil {
			// A failing backend would error on every subsequent unit too;
			// stop here and recover what was read so far.
			slog.Warn("unit read failed, stopping load", "unit", name, "error", err)
			break
		}
		if !ok {
			break
		}

		var u unitPayload
		if err := json.Unmarshal([]byte(payload), &u); err != nil {
			slog.Warn("unit parse failed, skipping", "unit", name, "error", err)
			continue
		}

		state.Entries = append(state.Entries, u.Entries...)
		if u.Position > state.Position {
			state.Position = u.Position
		}
	}

	return state, nil
}

// Save persists the state:
//
//  1. Capacity is enforced (oldest entries dropped, position decremented).
//  2. The persisted save counter advances; it stamps any backup taken in
//     step 3 and drives the ring's expiry.
//  3. The candidate is compared against the previously stored state; a
//     size collapse or hash divergence snapshots the EXISTING state to the
//     backup ring and logs a warning. The write always proceeds.
//  4. All existing units are erased, then entries are greedily packed into
//     new units and written 1..N, every unit carrying the same position.
func (s *Store) Save(state record.State) error {
	state.EnforceCapacity(s.capacity)

	turn := s.nextTurn()

	existing, err := s.Load()
	if err == nil {
		if reason := s.anomaly(existing, state); reason != "" {
			slog.Warn("anomalous ledger save, snapshotting previous state",
				"reason", reason,
				"existing_entries", len(existing.Entries),
				"candidate_entries", len(state.Entries),
				"turn", turn,
			)
			if berr := s.snapshotBackup(existing, turn, reason); berr != nil {
				slog.Warn("backup snapshot failed", "error", berr)
			}
		}
	}

	if err := s.eraseUnits(); err != nil {
		return fmt.Errorf("erase units: %w", err)
	}

	units, err := s.pack(state)
	if err != nil {
		return fmt.Errorf("pack entries: %w", err)
	}

	for i, payload := range units {
		if err := s.units.Write(s.unitName(i+1), payload); err != nil {
			return fmt.Errorf("write unit %d: %w", i+1, err)
		}
	}

	return nil
}

// turnUnit returns the unit name holding the save counter.
func (s *Store) turnUnit() string {
	return s.prefix + ".turn"
}

// nextTurn advances the persisted save counter and returns its new value.
// The counter is the expiry clock for the backup ring: it keeps moving
// once the sliding window saturates, while the entry count freezes at
// capacity and goes backward on branch truncation.
func (s *Store) nextTurn() int {
	turn := 0
	if payload, ok, err := s.units.Read(s.turnUnit()); err == nil && ok {
		if n, err := strconv.Atoi(payload); err == nil && n > 0 {
			turn = n
		}
	}
	turn++
	if err := s.units.Write(s.turnUnit(), strconv.Itoa(turn)); err != nil {
		slog.Warn("save counter write failed", "error", err)
	}
	return turn
}

// anomaly compares the candidate against the existing stored state and
// returns a reason tag, or "" when the save looks normal.
func (s *Store) anomaly(existing, candidate record.State) string {
	if len(existing.Entries) > collapseFloor && 2*len(candidate.Entries) < len(existing.Entries) {
		return ReasonSizeCollapse
	}

	overlap := len(existing.Entries)
	if len(candidate.Entries) < overlap {
		overlap = len(candidate.Entries)
	}
	if overlap == 0 {
		return ""
	}

	differing := 0
	for i := 0; i < overlap; i++ {
		if entryHash(existing.Entries[i]) != entryHash(candidate.Entries[i]) {
			differing++
		}
	}
	if differing*100 > overlap*divergencePct {
		return ReasonDivergence
	}

	return ""
}

func entryHash(e *record.Entry) string {
	if e == nil {
		return ""
	}
	return e.Hash
}

// eraseUnits deletes every existing numbered unit, walking up from 1 until
// the first missing number.
func (s *Store) eraseUnits() error {
	for n := 1; ; n++ {
		name := s.unitName(n)
		_, ok, err := s.units.Read(name)
		if err != nil {
			// An unreadable unit still gets a delete attempt so a stale
			// blob cannot shadow a future write; then stop walking, since a
			// failing backend would error on every unit after it too.
			return s.units.Delete(name)
		}
		if !ok {
			return nil
		}
		if err := s.units.Delete(name); err != nil {
			return err
		}
	}
}

// Units reports how many storage units currently hold the ledger, walking
// up from unit 1 until the first missing number.
func (s *Store) Units() (int, error) {
	count := 0
	for n := 1; ; n++ {
		_, ok, err := s.units.Read(s.unitName(n))
		if err != nil {
			return count, fmt.Errorf("read unit %d: %w", n, err)
		}
		if !ok {
			return count, nil
		}
		count++
	}
}

// pack greedily serializes entries into unit payloads: entries accumulate
// into a unit until the next one would push the payload past the size
// ceiling, then a new unit starts. Every unit carries the same position.
// An empty ledger still produces unit 1.
func (s *Store) pack(state record.State) ([]string, error) {
	serialized := make([]string, len(state.Entries))
	for i, e := range state.Entries {
		if e == nil {
			serialized[i] = "null"
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal entry %d: %w", i, err)
		}
		serialized[i] = string(data)
	}

	// Fixed overhead of a unit envelope around its entry list.
	envelope := len(`{"entries":[],"position":}`) + len(strconv.Itoa(state.Position))

	var units []string
	var current []string
	currentSize := envelope

	flush := func() {
		payload := fmt.Sprintf(`{"entries":[%s],"position":%d}`,
			strings.Join(current, ","), state.Position)
		units = append(units, payload)
		current = nil
		currentSize = envelope
	}

	for i, entry := range serialized {
		extra := len(entry)
		if len(current) > 0 {
			extra++ // separating comma
		}
		if len(current) > 0 && currentSize+extra > s.maxUnitSize {
			flush()
			extra = len(entry)
		}
		if currentSize+extra > s.maxUnitSize {
			// A single entry larger than the ceiling still gets its own
			// unit; the host may truncate it but losing one entry beats
			// failing the save.
			slog.Warn("entry exceeds unit size ceiling", "index", i, "size", len(entry))
		}
		current = append(current, entry)
		currentSize += extra
	}
	flush()

	return units, nil
}
