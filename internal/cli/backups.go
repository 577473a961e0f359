package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BackupData summarizes one anomaly snapshot.
type BackupData struct {
	ID       string `json:"id"`
	Turn     int    `json:"turn"`
	Reason   string `json:"reason"`
	Entries  int    `json:"entries"`
	Position int    `json:"position"`
}

// NewBackupsCommand creates the backups command.
func NewBackupsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List anomaly snapshots",
		Long: `List the retained anomaly snapshots, oldest first. A snapshot is
taken when a save looked like a size collapse or a hash divergence.

Example:
  fable backups --db story.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackups(rootOpts, cmd)
		},
	}
	return cmd
}

func runBackups(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	store, units, err := openStore(opts, f)
	if err != nil {
		return err
	}
	defer units.Close()

	backups, err := store.Backups()
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeStore, "reading backups", err)
	}

	data := make([]BackupData, 0, len(backups))
	for _, b := range backups {
		data = append(data, BackupData{
			ID:       b.ID,
			Turn:     b.Turn,
			Reason:   b.Reason,
			Entries:  len(b.Entries),
			Position: b.Position,
		})
	}

	if opts.Format == "json" {
		return f.Success(data)
	}

	if len(data) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no backups")
		return nil
	}
	for _, b := range data {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  turn=%d  reason=%s  entries=%d  position=%d\n",
			b.ID, b.Turn, b.Reason, b.Entries, b.Position)
	}
	return nil
}
