package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions is the set of persistent flags shared by every subcommand.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	DB        string // path to the SQLite unit store
	Prefix    string // unit name prefix
	Blueprint string // optional blueprint directory
}

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the fable command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fable",
		Short: "fable - action ledger tooling",
		Long:  "Inspect, verify, and rewind a persisted action ledger.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "fable.db", "path to the ledger database")
	cmd.PersistentFlags().StringVar(&opts.Prefix, "prefix", "", "unit name prefix (default from blueprint)")
	cmd.PersistentFlags().StringVar(&opts.Blueprint, "blueprint", "", "blueprint directory with ledger settings")

	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewRewindCommand(opts))
	cmd.AddCommand(NewBackupsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
