package cli

import (
	"fmt"
	"log/slog"

	"github.com/tatterhall/fable/internal/blueprint"
	"github.com/tatterhall/fable/internal/shard"
)

// openStore opens the SQLite unit store named by the global flags and
// wraps it in a sharded store configured from the blueprint (when given)
// and the --prefix override. Failures are emitted through the formatter
// and come back as ExitErrors.
func openStore(opts *RootOptions, f *OutputFormatter) (*shard.Store, *shard.SQLite, error) {
	units, err := shard.OpenSQLite(opts.DB)
	if err != nil {
		return nil, nil, fail(f, ExitCommandError, ErrCodeStore,
			fmt.Sprintf("opening ledger database %s", opts.DB), err)
	}

	var storeOpts []shard.Option
	if opts.Blueprint != "" {
		bp, errs := blueprint.Load(opts.Blueprint, blueprint.LoadModeFailFast)
		if len(errs) > 0 {
			units.Close()
			return nil, nil, fail(f, ExitCommandError, ErrCodeBlueprint, "loading blueprint", errs[0])
		}
		storeOpts = bp.Ledger.StoreOptions()
	}
	if opts.Prefix != "" {
		storeOpts = append(storeOpts, shard.WithPrefix(opts.Prefix))
	}

	if opts.Verbose {
		slog.Debug("ledger store opened", "db", opts.DB, "blueprint", opts.Blueprint)
	}
	return shard.New(units, storeOpts...), units, nil
}
