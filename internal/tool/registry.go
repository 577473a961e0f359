package tool

import (
	"log/slog"

	"github.com/tatterhall/fable/internal/ledger"
)

// Tool is one registered operation: execute, pre-execution revert capture,
// and descriptor-based inversion. Capture and Invert are optional - a tool
// without them relies on the registry's static inverse table, or is simply
// not rewindable.
type Tool struct {
	Execute func(w *World, params []string) ledger.ExecStatus
	Capture func(w *World, params []string) map[string]string
	Invert  func(w *World, params []string, revert map[string]string) bool
}

// Inverse is a static fallback for tools whose revert data was not
// captured: the generic inverse tool to run, plus an optional parameter
// transform (negate a delta, swap transfer endpoints).
type Inverse struct {
	Name      string
	Transform func(params []string) []string
}

// Registry maps tool names to implementations and implements ledger.Port.
type Registry struct {
	world    *World
	tools    map[string]Tool
	inverses map[string]Inverse
}

// NewRegistry returns a registry over the given world with the built-in
// game tools and their static inverses pre-registered.
func NewRegistry(world *World) *Registry {
	r := &Registry{
		world:    world,
		tools:    make(map[string]Tool),
		inverses: make(map[string]Inverse),
	}
	registerBuiltins(r)
	return r
}

// World returns the world this registry executes against.
func (r *Registry) World() *World { return r.world }

// Register adds or replaces a tool.
func (r *Registry) Register(name string, t Tool) {
	r.tools[name] = t
}

// RegisterInverse adds or replaces a static inverse for a tool name.
func (r *Registry) RegisterInverse(name string, inv Inverse) {
	r.inverses[name] = inv
}

// Known reports whether a tool name is registered. The call extractor uses
// this to ignore name(...)-shaped text that is not a tool call.
func (r *Registry) Known(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Execute implements ledger.Port. Unknown names and malformed arguments
// are reported in the status, never as faults.
func (r *Registry) Execute(name string, params []string) ledger.ExecStatus {
	t, ok := r.tools[name]
	if !ok {
		slog.Debug("unknown tool", "tool", name)
		return ledger.ExecUnknown
	}
	return t.Execute(r.world, params)
}

// CaptureRevertData implements ledger.Port. Must be called before Execute.
// Returns an empty descriptor for unknown tools or tools without capture.
func (r *Registry) CaptureRevertData(name string, params []string) map[string]string {
	t, ok := r.tools[name]
	if !ok || t.Capture == nil {
		return map[string]string{}
	}
	return t.Capture(r.world, params)
}

// Invert implements ledger.Port. Strategy order:
//
//  1. A non-empty revert descriptor dispatches to the tool's own inversion
//     (restore a prior scalar, restore both transfer endpoints).
//  2. Otherwise the static inverse table runs the generic inverse tool
//     with transformed params (negated delta, swapped endpoints).
//  3. Tools with neither are skipped with a warning - rewind is
//     best-effort, and the gap is reported, not hidden.
func (r *Registry) Invert(name string, params []string, revert map[string]string) {
	if t, ok := r.tools[name]; ok && len(revert) > 0 && t.Invert != nil {
		if t.Invert(r.world, params, revert) {
			return
		}
		slog.Warn("captured revert data did not apply, trying static inverse",
			"tool", name)
	}

	inv, ok := r.inverses[name]
	if !ok {
		slog.Warn("tool has no inverse, skipping during rewind", "tool", name)
		return
	}

	p := params
	if inv.Transform != nil {
		p = inv.Transform(params)
	}
	if status := r.Execute(inv.Name, p); status != ledger.ExecExecuted {
		slog.Warn("static inverse did not execute",
			"tool", name, "inverse", inv.Name, "status", string(status))
	}
}
