// Package ledger implements the action ledger: a durable, replayable log
// of tool executions kept index-aligned with an externally owned, mutable
// turn timeline.
//
// The timeline is not append-only. Between turns the host may edit a past
// turn's text, replace the tail (retry), or rewind and diverge. The ledger
// detects all three using content fingerprints, repairs itself (truncate,
// rehash, selectively re-execute), and never aborts turn processing: every
// failure mode degrades to skip-and-continue with a logged diagnostic.
//
// State is read fresh from the store at the start of every operation and
// written back after every mutation. Nothing is cached across turns, since
// the timeline can change underneath between calls.
package ledger

import (
	"fmt"
	"log/slog"

	"github.com/tatterhall/fable/internal/fingerprint"
	"github.com/tatterhall/fable/internal/record"
	"github.com/tatterhall/fable/internal/shard"
)

// Confidence grades a DetectEdit report.
type Confidence string

const (
	// ConfidenceHigh means the ledger tail aligned with the timeline tail
	// and an earlier slot's fingerprint differs; the reported index is the
	// first edited slot.
	ConfidenceHigh Confidence = "high"

	// ConfidenceLow means the tails did not align at all: something was
	// edited but the position cannot be resolved.
	ConfidenceLow Confidence = "low"
)

// tailProbe is how many trailing slots DetectEdit compares to resolve the
// current position against the timeline.
const tailProbe = 3

// EditReport is the result of a read-only edit scan.
type EditReport struct {
	// Edited reports whether any divergence from the recorded fingerprints
	// was found.
	Edited bool

	// Index is the first differing slot, or -1 when the position could not
	// be resolved.
	Index int

	// Confidence grades the report. Meaningful only when Edited is true.
	Confidence Confidence
}

// Ledger records per-turn tool executions and keeps them aligned with the
// host's timeline. Construct with New; the zero value is not usable.
type Ledger struct {
	store     *shard.Store
	port      Port
	extractor Extractor
}

// New returns a ledger over the given store, execution port, and call
// extractor.
func New(store *shard.Store, port Port, extractor Extractor) *Ledger {
	return &Ledger{store: store, port: port, extractor: extractor}
}

// State returns the current persisted ledger state.
func (l *Ledger) State() (record.State, error) {
	return l.store.Load()
}

// Rewindable returns how many positions back a rewind may reach. One slot
// of the window is reserved for verification.
func (l *Ledger) Rewindable() int {
	return l.store.Capacity() - 1
}

// RecordAction writes an entry for text and its executed operations. A
// negative position appends at the end; otherwise position is clamped to
// the window.
//
// Branch rule: when an entry already occupies the position and its
// fingerprint differs from the new text, the timeline has diverged there,
// and every entry from the position onward is discarded before the write.
// Writing identical content at an occupied position replaces it in place.
func (l *Ledger) RecordAction(text string, ops []record.Op, position int) error {
	state, err := l.store.Load()
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	// A default append may land one past the window; the save's capacity
	// enforcement slides the window rather than overwriting the last slot.
	if position < 0 {
		position = len(state.Entries)
	} else if position > l.store.Capacity()-1 {
		position = l.store.Capacity() - 1
	}

	hash := fingerprint.Hash(text)
	if position < len(state.Entries) {
		if existing := state.Entries[position]; existing != nil && existing.Hash != hash {
			slog.Info("divergent branch, truncating ledger",
				"position", position,
				"discarded", len(state.Entries)-position,
			)
			state.Entries = state.Entries[:position]
		}
	}

	for len(state.Entries) < position {
		state.Entries = append(state.Entries, nil)
	}
	entry := &record.Entry{Hash: hash, Ops: ops}
	if position < len(state.Entries) {
		state.Entries[position] = entry
	} else {
		state.Entries = append(state.Entries, entry)
	}
	state.Position = position

	return l.persist(state)
}

// Reconcile aligns the ledger with the host's current timeline. Called
// once per turn, before anything trusts the ledger.
//
// Steps, in order: realign after a timeline window shift, fill slots the
// timeline has but the ledger lacks (executing only the genuinely new
// final turn), re-execute slots whose text was edited after the fact, and
// move the position to the end of the timeline.
func (l *Ledger) Reconcile(timeline []string) error {
	state, err := l.store.Load()
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	length := len(timeline)
	oldLen := len(state.Entries)
	oldPosition := state.Position

	// Shift detection: the host's window slid and the oldest turn fell off
	// the front, so every recorded index is off by one.
	if length == l.store.Capacity() && oldLen >= l.store.Capacity() &&
		entryHash(state.Entries[0]) != fingerprint.Hash(timeline[0]) {
		slog.Info("timeline window shifted, realigning", "dropped_index", 0)
		state.Entries = state.Entries[1:]
		oldLen--
		if oldPosition > -1 {
			oldPosition--
		}
	}

	// Fill slots present in the timeline but not in the ledger. Only the
	// final slot, and only when it is beyond anything previously
	// committed, is genuinely new; everything else is content reappearing
	// after a rewind and was already applied when first committed.
	for i := len(state.Entries); i < length; i++ {
		calls := l.extractor.Extract(timeline[i])
		if i == length-1 && i > oldPosition {
			state.Entries = append(state.Entries, l.executeCalls(calls, timeline[i]))
			continue
		}
		slog.Debug("restored slot recorded without execution", "index", i, "calls", len(calls))
		state.Entries = append(state.Entries, bookkeepEntry(calls, timeline[i]))
	}

	// Edit detection over the overlap: a differing fingerprint means the
	// turn text was mutated after the fact. Its calls are re-executed on
	// purpose; see the package notes on re-runnability.
	overlap := oldLen
	if length < overlap {
		overlap = length
	}
	for i := 0; i < overlap; i++ {
		if state.Entries[i] == nil {
			continue
		}
		hash := fingerprint.Hash(timeline[i])
		if state.Entries[i].Hash == hash {
			continue
		}
		slog.Warn("edited turn detected, re-executing its calls", "index", i)
		state.Entries[i] = l.executeCalls(l.extractor.Extract(timeline[i]), timeline[i])
	}

	state.Position = length - 1
	return l.persist(state)
}

// DetectEdit is the read-only variant of Reconcile's edit scan. It
// resolves the current position by matching the timeline tail against the
// ledger tail fingerprint-for-fingerprint, probing up to the last three
// overlapping slots. Misaligned tails report a low-confidence edit at an
// unknown index; aligned tails with an earlier differing slot report that
// index at high confidence.
func (l *Ledger) DetectEdit(timeline []string) (EditReport, error) {
	state, err := l.store.Load()
	if err != nil {
		return EditReport{}, fmt.Errorf("load ledger: %w", err)
	}

	overlap := len(state.Entries)
	if len(timeline) < overlap {
		overlap = len(timeline)
	}
	if overlap == 0 {
		return EditReport{Index: -1}, nil
	}

	probe := tailProbe
	if overlap < probe {
		probe = overlap
	}
	for i := overlap - probe; i < overlap; i++ {
		// Nil slots carry no fingerprint and cannot vouch either way; the
		// scan never guesses from them.
		if state.Entries[i] == nil {
			continue
		}
		if state.Entries[i].Hash != fingerprint.Hash(timeline[i]) {
			return EditReport{Edited: true, Index: -1, Confidence: ConfidenceLow}, nil
		}
	}

	for i := 0; i < overlap-probe; i++ {
		if state.Entries[i] == nil {
			continue
		}
		if state.Entries[i].Hash != fingerprint.Hash(timeline[i]) {
			return EditReport{Edited: true, Index: i, Confidence: ConfidenceHigh}, nil
		}
	}

	return EditReport{Index: -1}, nil
}

// RewindTo inverts every recorded operation behind the current position,
// newest entry first and each entry's operations in reverse order, then
// moves the position to target. Entries stay in place; a later Reconcile
// against a diverging timeline truncates them.
//
// Rewind is best-effort: operations without captured revert data fall
// back to static inverses, and operations with neither are skipped with a
// logged diagnostic. The result can be imprecise for those.
func (l *Ledger) RewindTo(target int) error {
	state, err := l.store.Load()
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	if target >= state.Position || target < -1 {
		return newInvalidRewindTargetError(state.Position, target)
	}
	if depth := state.Position - target; depth > l.Rewindable() {
		return newRewindDepthExceededError(state.Position, target, depth)
	}

	for i := state.Position; i > target; i-- {
		if i >= len(state.Entries) || state.Entries[i] == nil {
			continue
		}
		ops := state.Entries[i].Ops
		for j := len(ops) - 1; j >= 0; j-- {
			l.port.Invert(ops[j].Name, ops[j].Params, ops[j].Revert)
		}
	}

	state.Position = target
	return l.persist(state)
}

// executeCalls runs extracted calls through the port, capturing revert
// data before each execution, and returns the resulting entry. Calls that
// do not execute are logged and left out of the entry so they are never
// inverted later.
func (l *Ledger) executeCalls(calls []Call, text string) *record.Entry {
	entry := &record.Entry{Hash: fingerprint.Hash(text)}
	for _, c := range calls {
		revert := l.port.CaptureRevertData(c.Name, c.Params)
		status := l.port.Execute(c.Name, c.Params)
		if status != ExecExecuted {
			slog.Warn("call did not execute, not recorded",
				"tool", c.Name, "status", string(status))
			continue
		}
		entry.Ops = append(entry.Ops, record.Op{Name: c.Name, Params: c.Params, Revert: revert})
	}
	return entry
}

// bookkeepEntry records calls without executing them, with empty revert
// descriptors. Used for restored slots whose effects were already applied
// when the slot was first committed.
func bookkeepEntry(calls []Call, text string) *record.Entry {
	entry := &record.Entry{Hash: fingerprint.Hash(text)}
	for _, c := range calls {
		entry.Ops = append(entry.Ops, record.Op{Name: c.Name, Params: c.Params})
	}
	return entry
}

// persist writes the state back through the store.
func (l *Ledger) persist(state record.State) error {
	if err := l.store.Save(state); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func entryHash(e *record.Entry) string {
	if e == nil {
		return ""
	}
	return e.Hash
}
