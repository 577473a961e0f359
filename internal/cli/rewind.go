package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tatterhall/fable/internal/call"
	"github.com/tatterhall/fable/internal/ledger"
)

// RewindOptions holds flags for the rewind command.
type RewindOptions struct {
	*RootOptions
	To int
}

// RewindData is the payload of a successful rewind.
type RewindData struct {
	Position int      `json:"position"`
	Inverted []string `json:"inverted"`
}

// planPort records the inversions a rewind walks through. The world the
// operations acted on lives in the host process, not in the database, so
// offline rewind moves the persisted position and reports the inversion
// plan for the host to apply.
type planPort struct {
	inverted []string
}

func (p *planPort) Execute(string, []string) ledger.ExecStatus { return ledger.ExecUnknown }

func (p *planPort) CaptureRevertData(string, []string) map[string]string {
	return map[string]string{}
}

func (p *planPort) Invert(name string, params []string, revert map[string]string) {
	p.inverted = append(p.inverted, fmt.Sprintf("%s(%s)", name, strings.Join(params, ",")))
}

// NewRewindCommand creates the rewind command.
func NewRewindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RewindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rewind",
		Short: "Move the ledger position backward",
		Long: `Move the persisted ledger position backward to --to and print the
operations a host would invert, newest first. Entries stay in place; a
later reconcile against a diverging timeline prunes them.

Example:
  fable rewind --db story.db --to 12`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewind(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.To, "to", -1, "target position")
	return cmd
}

func runRewind(opts *RewindOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	store, units, err := openStore(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer units.Close()

	port := &planPort{}
	l := ledger.New(store, port, call.New(func(string) bool { return false }))

	if err := l.RewindTo(opts.To); err != nil {
		if ledger.IsInvalidRewindTarget(err) || ledger.IsRewindDepthExceeded(err) {
			return fail(f, ExitFailure, ErrCodeRewind, "rewind rejected", err)
		}
		return fail(f, ExitCommandError, ErrCodeStore, "rewinding ledger", err)
	}

	data := RewindData{Position: opts.To, Inverted: port.inverted}
	if opts.Format == "json" {
		return f.Success(data)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "position: %d\n", data.Position)
	for _, inv := range data.Inverted {
		fmt.Fprintf(cmd.OutOrStdout(), "  invert %s\n", inv)
	}
	return nil
}
