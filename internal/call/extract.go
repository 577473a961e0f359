// Package call extracts tool calls from free-form turn text. Turn prose
// embeds calls as name(arg, arg, ...) spans; everything around them is
// narrative and ignored.
package call

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tatterhall/fable/internal/ledger"
)

// callPattern matches one name(args) span. Arguments never nest, so a
// single non-paren run between the parens is enough.
var callPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_]*)\(([^()]*)\)`)

var lower = cases.Lower(language.Und)

// Extractor finds registered tool calls in text. It implements
// ledger.Extractor.
type Extractor struct {
	known func(name string) bool
}

// New returns an extractor that keeps only calls whose folded name passes
// the known predicate. Prose is full of name(...)-shaped spans that are
// not tool calls; the predicate is what separates them.
func New(known func(name string) bool) *Extractor {
	return &Extractor{known: known}
}

// Extract returns the tool calls embedded in text, in order of
// appearance. Names are case-folded so prose casing does not split one
// tool into many. Unknown names are dropped silently.
func (e *Extractor) Extract(text string) []ledger.Call {
	var calls []ledger.Call
	for _, m := range callPattern.FindAllStringSubmatch(text, -1) {
		name := lower.String(m[1])
		if !e.known(name) {
			continue
		}
		calls = append(calls, ledger.Call{Name: name, Params: splitParams(m[2])})
	}
	return calls
}

// splitParams breaks a raw argument run on commas, trimming whitespace and
// optional single or double quotes around each argument. Empty parens
// yield no params.
func splitParams(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	params := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"'`)
		params = append(params, p)
	}
	return params
}
