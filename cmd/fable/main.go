// Command fable is the CLI entry point for action ledger tooling.
package main

import (
	"fmt"
	"os"

	"github.com/tatterhall/fable/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
