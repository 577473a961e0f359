// Package hook adapts the host's turn loop to the ledger. The host calls
// exactly one hook per turn, to completion, before the next; the hook is
// the only writer the ledger ever sees.
package hook

import (
	"log/slog"

	"github.com/tatterhall/fable/internal/ledger"
)

// Hook processes host turns against a ledger.
type Hook struct {
	ledger *ledger.Ledger
}

// New returns a hook over the given ledger.
func New(l *ledger.Ledger) *Hook {
	return &Hook{ledger: l}
}

// OnTurn runs once per host turn with the host's full current timeline,
// newest turn last. Reconciliation repairs any between-turn mutations
// (edits, retries, rewinds, window shifts) and commits the new final turn,
// executing its calls with revert capture.
//
// OnTurn never aborts the host's turn: faults are logged and the turn
// proceeds with whatever state the ledger recovered.
func (h *Hook) OnTurn(timeline []string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("turn hook panicked, continuing", "panic", r)
		}
	}()

	if len(timeline) == 0 {
		return
	}
	if err := h.ledger.Reconcile(timeline); err != nil {
		slog.Error("reconcile failed, ledger unchanged this turn", "error", err)
	}
}

// OnRewind is invoked when the user rewinds the story to an earlier turn.
// Inversion is best-effort; a rejected target is logged, never fatal.
func (h *Hook) OnRewind(target int) {
	if err := h.ledger.RewindTo(target); err != nil {
		slog.Warn("rewind rejected", "target", target, "error", err)
	}
}
