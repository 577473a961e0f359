package ledger

// ExecStatus reports how the port handled one tool call.
type ExecStatus string

const (
	// ExecExecuted means the side effect was applied to world state.
	ExecExecuted ExecStatus = "executed"

	// ExecMalformed means the arguments did not parse; no side effect was
	// applied and the call is not retried.
	ExecMalformed ExecStatus = "malformed"

	// ExecUnknown means the tool name is not registered; treated as a
	// no-op, never as an error that aborts the turn.
	ExecUnknown ExecStatus = "unknown"
)

// Port executes named operations against shared mutable world state and
// supports inverting them later. The ledger consumes this interface; the
// concrete registry lives with the game tools.
//
// CaptureRevertData must be called BEFORE Execute - it snapshots whatever
// the inverse needs from the world as it stands. An empty descriptor means
// "nothing captured"; Invert then falls back to a static inverse or a
// logged no-op.
type Port interface {
	Execute(name string, params []string) ExecStatus
	CaptureRevertData(name string, params []string) map[string]string
	Invert(name string, params []string, revert map[string]string)
}

// Extractor pulls tool calls out of free-form turn text. Extracted ops
// carry no revert data; capture happens at execution time.
type Extractor interface {
	Extract(text string) []Call
}

// Call is one extracted tool call: a name and its raw string arguments.
type Call struct {
	Name   string
	Params []string
}
