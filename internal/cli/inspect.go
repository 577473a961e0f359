package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tatterhall/fable/internal/record"
)

// InspectData is the payload of a successful inspect.
type InspectData struct {
	Position int            `json:"position"`
	Entries  int            `json:"entries"`
	Units    int            `json:"units"`
	Slots    []InspectEntry `json:"slots"`
}

// InspectEntry summarizes one ledger slot.
type InspectEntry struct {
	Index int      `json:"index"`
	Hash  string   `json:"hash,omitempty"`
	Null  bool     `json:"null,omitempty"`
	Ops   []string `json:"ops,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the persisted ledger state",
		Long: `Show the persisted ledger state: position, entry count, and a
per-slot summary of recorded operations.

Example:
  fable inspect --db story.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, cmd)
		},
	}
	return cmd
}

func runInspect(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	store, units, err := openStore(opts, f)
	if err != nil {
		return err
	}
	defer units.Close()

	state, err := store.Load()
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeStore, "loading ledger", err)
	}

	unitCount, err := store.Units()
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeStore, "counting units", err)
	}

	data := InspectData{
		Position: state.Position,
		Entries:  len(state.Entries),
		Units:    unitCount,
	}
	for i, e := range state.Entries {
		data.Slots = append(data.Slots, summarize(i, e))
	}

	if opts.Format == "json" {
		return f.Success(data)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "position: %d\nentries: %d\nunits: %d\n", data.Position, data.Entries, data.Units)
	for _, slot := range data.Slots {
		if slot.Null {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%d] (null)\n", slot.Index)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s  %s\n", slot.Index, slot.Hash, strings.Join(slot.Ops, " "))
	}
	return nil
}

func summarize(i int, e *record.Entry) InspectEntry {
	if e == nil {
		return InspectEntry{Index: i, Null: true}
	}
	slot := InspectEntry{Index: i, Hash: e.Hash}
	for _, op := range e.Ops {
		slot.Ops = append(slot.Ops, fmt.Sprintf("%s(%s)", op.Name, strings.Join(op.Params, ",")))
	}
	return slot
}
