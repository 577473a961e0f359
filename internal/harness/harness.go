// Package harness runs YAML timeline scenarios against a fresh ledger: a
// scripted sequence of host events (turns, edits, retries, rewinds) with
// assertions on the final ledger and world state, plus golden trace
// comparison for regression pinning.
package harness

import (
	"fmt"

	"github.com/tatterhall/fable/internal/call"
	"github.com/tatterhall/fable/internal/hook"
	"github.com/tatterhall/fable/internal/ledger"
	"github.com/tatterhall/fable/internal/record"
	"github.com/tatterhall/fable/internal/shard"
	"github.com/tatterhall/fable/internal/tool"
)

// TraceEvent records one executed step and the ledger shape after it.
type TraceEvent struct {
	Type     string `json:"type"`
	Index    int    `json:"index"`
	Timeline int    `json:"timeline"`
	Position int    `json:"position"`
	Entries  int    `json:"entries"`
}

// Result holds everything a scenario produced.
type Result struct {
	State record.State
	World *tool.World
	Store *shard.Store
	Trace []TraceEvent
}

// Run plays a scenario's steps against a fresh in-memory ledger and
// returns the final state, world, and step trace.
func Run(scenario *Scenario) (*Result, error) {
	var opts []shard.Option
	if scenario.Capacity > 0 {
		opts = append(opts, shard.WithCapacity(scenario.Capacity))
	}
	if scenario.MaxUnitSize > 0 {
		opts = append(opts, shard.WithMaxUnitSize(scenario.MaxUnitSize))
	}
	store := shard.New(shard.NewMemory(), opts...)

	world := tool.NewWorld()
	reg := tool.NewRegistry(world)
	h := hook.New(ledger.New(store, reg, call.New(reg.Known)))

	result := &Result{World: world, Store: store}
	var timeline []string

	for i, step := range scenario.Steps {
		kind, err := step.kind()
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}

		index := 0
		switch kind {
		case "turn":
			timeline = append(timeline, step.Turn)
			// The host window slides too: its oldest turn falls off once
			// the configured capacity is reached.
			if scenario.Capacity > 0 && len(timeline) > scenario.Capacity {
				timeline = timeline[1:]
			}
			index = len(timeline) - 1
			h.OnTurn(timeline)
		case "edit":
			if step.Edit.Index >= len(timeline) {
				return nil, fmt.Errorf("steps[%d]: edit index %d beyond timeline of %d", i, step.Edit.Index, len(timeline))
			}
			timeline[step.Edit.Index] = step.Edit.Text
			index = step.Edit.Index
			h.OnTurn(timeline)
		case "retry":
			if len(timeline) == 0 {
				return nil, fmt.Errorf("steps[%d]: retry with an empty timeline", i)
			}
			index = len(timeline) - 1
			timeline[index] = step.Retry
			h.OnTurn(timeline)
		case "rewind":
			index = *step.Rewind
			h.OnRewind(index)
			// The host rewinds its own timeline in lockstep.
			timeline = timeline[:index+1]
		}

		state, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: loading ledger: %w", i, err)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Type:     kind,
			Index:    index,
			Timeline: len(timeline),
			Position: state.Position,
			Entries:  len(state.Entries),
		})
	}

	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading final ledger: %w", err)
	}
	result.State = state
	return result, nil
}
