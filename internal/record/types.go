// Package record defines the ledger's persisted data model: per-turn
// entries, the tool operations recorded inside them, and the logical state
// reassembled from storage.
//
// The JSON forms in this package are an external contract - storage units
// written by earlier versions of the host add-on must keep parsing - so the
// wire shapes here are hand-rolled and covered by golden tests rather than
// derived from struct tags alone.
package record

import (
	"encoding/json"
	"fmt"
)

// Op is one tool call executed (or assumed executed) for a turn, together
// with the revert descriptor captured before execution.
//
// An empty Revert map means "no captured data": inversion falls back to the
// static inverse table, or to a logged no-op when the tool has no inverse.
type Op struct {
	Name   string
	Params []string
	Revert map[string]string
}

// MarshalJSON renders the op in its compact wire form:
//
//	["add_levelxp", ["Kara", "50"], {"xp": "120"}]
//
// Nil params and nil revert maps are written as empty collections so the
// wire form is stable regardless of how the op was constructed.
func (o Op) MarshalJSON() ([]byte, error) {
	params := o.Params
	if params == nil {
		params = []string{}
	}
	revert := o.Revert
	if revert == nil {
		revert = map[string]string{}
	}
	return json.Marshal([3]any{o.Name, params, revert})
}

// UnmarshalJSON parses the three-element wire form.
func (o *Op) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("op: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("op: want 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &o.Name); err != nil {
		return fmt.Errorf("op name: %w", err)
	}
	if err := json.Unmarshal(raw[1], &o.Params); err != nil {
		return fmt.Errorf("op params: %w", err)
	}
	if err := json.Unmarshal(raw[2], &o.Revert); err != nil {
		return fmt.Errorf("op revert: %w", err)
	}
	return nil
}

// Entry is one slot in the ledger, index-aligned 1:1 with a slot in the
// host timeline. Hash fingerprints the timeline text the slot was recorded
// against; Ops lists the tool calls committed for that turn in order.
type Entry struct {
	Hash string
	Ops  []Op
}

// entryWire is the persisted shape: {"h": hash, "t": [ops...]}.
type entryWire struct {
	Hash string `json:"h"`
	Ops  []Op   `json:"t"`
}

// MarshalJSON renders the entry wire form, normalizing nil Ops to [].
func (e Entry) MarshalJSON() ([]byte, error) {
	ops := e.Ops
	if ops == nil {
		ops = []Op{}
	}
	return json.Marshal(entryWire{Hash: e.Hash, Ops: ops})
}

// UnmarshalJSON parses the entry wire form.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("entry: %w", err)
	}
	e.Hash = w.Hash
	e.Ops = w.Ops
	return nil
}

// State is the logical ledger state reassembled from storage: the ordered
// entry list (slots may be nil) and the index of the most recently
// committed entry.
//
// INVARIANTS:
//   - Position is in [-1, capacity-1]; -1 means nothing committed yet.
//   - len(Entries) never exceeds the configured capacity after any
//     mutation (EnforceCapacity restores this).
type State struct {
	Entries  []*Entry
	Position int
}

// EnforceCapacity drops the oldest entries until at most capacity remain,
// decrementing Position once per dropped slot (the sliding window).
// Position is clamped to -1 if every committed slot fell off the front.
func (s *State) EnforceCapacity(capacity int) {
	if capacity <= 0 {
		return
	}
	for len(s.Entries) > capacity {
		s.Entries = s.Entries[1:]
		s.Position--
	}
	if s.Position < -1 {
		s.Position = -1
	}
}

// Clone returns a deep copy of the state. Used when snapshotting backups so
// later mutations cannot reach into the pre-image.
func (s State) Clone() State {
	out := State{Position: s.Position}
	if s.Entries == nil {
		return out
	}
	out.Entries = make([]*Entry, len(s.Entries))
	for i, e := range s.Entries {
		if e == nil {
			continue
		}
		cp := Entry{Hash: e.Hash}
		if e.Ops != nil {
			cp.Ops = make([]Op, len(e.Ops))
			for j, op := range e.Ops {
				cp.Ops[j] = op.clone()
			}
		}
		out.Entries[i] = &cp
	}
	return out
}

func (o Op) clone() Op {
	cp := Op{Name: o.Name}
	if o.Params != nil {
		cp.Params = append([]string(nil), o.Params...)
	}
	if o.Revert != nil {
		cp.Revert = make(map[string]string, len(o.Revert))
		for k, v := range o.Revert {
			cp.Revert[k] = v
		}
	}
	return cp
}
