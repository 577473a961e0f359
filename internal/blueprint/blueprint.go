// Package blueprint loads a game's ledger configuration from CUE files: the
// storage settings (window capacity, unit size ceiling, unit prefix) and
// the static inverse table for the game's custom tools.
package blueprint

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/tatterhall/fable/internal/shard"
	"github.com/tatterhall/fable/internal/tool"
)

// LoadMode controls how errors are handled during blueprint loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error code constants, unified across blueprint loading.
const (
	ErrCodeGeneric     = "B001" // Generic/unknown error
	ErrCodeNotFound    = "B002" // Path not found
	ErrCodeNoFiles     = "B003" // No CUE files found
	ErrCodeLoadFailed  = "B004" // CUE load failed
	ErrCodeBuildFailed = "B005" // CUE build failed
	ErrCodeBadLedger   = "B101" // Invalid ledger settings
	ErrCodeBadInverse  = "B102" // Invalid inverse rule
)

// LoadError represents an error that occurred during blueprint loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LedgerConfig is the storage configuration section.
type LedgerConfig struct {
	Capacity    int    `json:"capacity"`
	MaxUnitSize int    `json:"maxUnitSize"`
	UnitPrefix  string `json:"unitPrefix"`
}

// StoreOptions converts the config into sharded-store options.
func (c LedgerConfig) StoreOptions() []shard.Option {
	return []shard.Option{
		shard.WithCapacity(c.Capacity),
		shard.WithMaxUnitSize(c.MaxUnitSize),
		shard.WithPrefix(c.UnitPrefix),
	}
}

// InverseRule declares the static inverse of one custom tool: the generic
// inverse tool to run, optionally negating the trailing amount or swapping
// the first two parameters.
type InverseRule struct {
	Tool   string `json:"tool"`
	Negate bool   `json:"negate"`
	Swap   bool   `json:"swap"`
}

// Blueprint is a loaded game configuration.
type Blueprint struct {
	Ledger   LedgerConfig
	Inverses map[string]InverseRule
}

// defaults returns the configuration used when a section is absent.
func defaults() LedgerConfig {
	return LedgerConfig{
		Capacity:    shard.DefaultCapacity,
		MaxUnitSize: shard.DefaultMaxUnitSize,
		UnitPrefix:  shard.DefaultPrefix,
	}
}

// Load reads and validates CUE files from a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func Load(dir string, mode LoadMode) (*Blueprint, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("blueprint directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing blueprint directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	// Package "_" selects files without a package clause, which is how
	// blueprint directories are written.
	cfg := &load.Config{Dir: dir, Package: "_"}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	bp := &Blueprint{
		Ledger:   defaults(),
		Inverses: make(map[string]InverseRule),
	}

	ledgerVal := value.LookupPath(cue.ParsePath("ledger"))
	if ledgerVal.Exists() {
		if err := ledgerVal.Decode(&bp.Ledger); err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeBadLedger, Message: fmt.Sprintf("decoding ledger settings: %v", err), Pos: ledgerVal.Pos()})
			if mode == LoadModeFailFast {
				return bp, errs
			}
		}
	}
	if verr := validateLedger(bp.Ledger, ledgerVal.Pos()); verr != nil {
		errs = append(errs, verr)
		if mode == LoadModeFailFast {
			return bp, errs
		}
	}

	inverseVal := value.LookupPath(cue.ParsePath("inverse"))
	if inverseVal.Exists() {
		iter, iterErr := inverseVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating inverses: %v", iterErr)})
			if mode == LoadModeFailFast {
				return bp, errs
			}
		} else {
			for iter.Next() {
				var rule InverseRule
				if err := iter.Value().Decode(&rule); err != nil {
					errs = append(errs, &LoadError{Code: ErrCodeBadInverse, Message: fmt.Sprintf("decoding inverse %q: %v", iter.Label(), err), Pos: iter.Value().Pos()})
					if mode == LoadModeFailFast {
						return bp, errs
					}
					continue
				}
				if rule.Tool == "" {
					errs = append(errs, &LoadError{Code: ErrCodeBadInverse, Message: fmt.Sprintf("inverse %q names no tool", iter.Label()), Pos: iter.Value().Pos()})
					if mode == LoadModeFailFast {
						return bp, errs
					}
					continue
				}
				bp.Inverses[iter.Label()] = rule
			}
		}
	}

	return bp, errs
}

func validateLedger(c LedgerConfig, pos token.Pos) *LoadError {
	if c.Capacity < 2 {
		return &LoadError{Code: ErrCodeBadLedger, Message: fmt.Sprintf("capacity must be at least 2, got %d", c.Capacity), Pos: pos}
	}
	if c.MaxUnitSize < 64 {
		return &LoadError{Code: ErrCodeBadLedger, Message: fmt.Sprintf("maxUnitSize must be at least 64, got %d", c.MaxUnitSize), Pos: pos}
	}
	if c.UnitPrefix == "" {
		return &LoadError{Code: ErrCodeBadLedger, Message: "unitPrefix must not be empty", Pos: pos}
	}
	return nil
}

// Apply registers the blueprint's static inverses on a tool registry.
func (b *Blueprint) Apply(reg *tool.Registry) {
	for name, rule := range b.Inverses {
		inv := tool.Inverse{Name: rule.Tool}
		switch {
		case rule.Negate && rule.Swap:
			inv.Transform = compose(swapFirstTwo, negateLast)
		case rule.Negate:
			inv.Transform = negateLast
		case rule.Swap:
			inv.Transform = swapFirstTwo
		}
		reg.RegisterInverse(name, inv)
	}
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func negateLast(p []string) []string {
	if len(p) == 0 {
		return p
	}
	amount, err := strconv.Atoi(p[len(p)-1])
	if err != nil {
		return p
	}
	out := append([]string(nil), p...)
	out[len(out)-1] = strconv.Itoa(-amount)
	return out
}

func swapFirstTwo(p []string) []string {
	if len(p) < 2 {
		return p
	}
	out := append([]string(nil), p...)
	out[0], out[1] = out[1], out[0]
	return out
}

func compose(fns ...func([]string) []string) func([]string) []string {
	return func(p []string) []string {
		for _, fn := range fns {
			p = fn(p)
		}
		return p
	}
}
