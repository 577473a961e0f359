package tool

import (
	"strconv"

	"github.com/tatterhall/fable/internal/ledger"
)

// registerBuiltins wires the built-in game tools and their static
// inverses. Every tool validates arity and numeric parses up front and
// returns malformed without touching the world when they fail.
func registerBuiltins(r *Registry) {
	r.Register("add_levelxp", Tool{
		Execute: func(w *World, p []string) ledger.ExecStatus {
			name, amount, ok := nameAmount(p)
			if !ok {
				return ledger.ExecMalformed
			}
			w.Character(name).XP += amount
			return ledger.ExecExecuted
		},
		Capture: func(w *World, p []string) map[string]string {
			name, _, ok := nameAmount(p)
			if !ok {
				return map[string]string{}
			}
			return map[string]string{"xp": strconv.Itoa(w.Character(name).XP)}
		},
		Invert: func(w *World, p []string, revert map[string]string) bool {
			name, _, ok := nameAmount(p)
			if !ok {
				return false
			}
			prior, err := strconv.Atoi(revert["xp"])
			if err != nil {
				return false
			}
			w.Character(name).XP = prior
			return true
		},
	})
	// add_levelxp(a, b)⁻¹ = add_levelxp(a, -b)
	r.RegisterInverse("add_levelxp", Inverse{Name: "add_levelxp", Transform: negateAmount})

	r.Register("deal_damage", Tool{
		Execute: func(w *World, p []string) ledger.ExecStatus {
			name, amount, ok := nameAmount(p)
			if !ok {
				return ledger.ExecMalformed
			}
			w.Character(name).HP -= amount
			return ledger.ExecExecuted
		},
		Capture: captureHP,
		Invert:  invertHP,
	})
	r.RegisterInverse("deal_damage", Inverse{Name: "heal"})

	r.Register("heal", Tool{
		Execute: func(w *World, p []string) ledger.ExecStatus {
			name, amount, ok := nameAmount(p)
			if !ok {
				return ledger.ExecMalformed
			}
			w.Character(name).HP += amount
			return ledger.ExecExecuted
		},
		Capture: captureHP,
		Invert:  invertHP,
	})
	r.RegisterInverse("heal", Inverse{Name: "deal_damage"})

	r.Register("give_item", Tool{
		Execute: func(w *World, p []string) ledger.ExecStatus {
			name, item, count, ok := nameItemCount(p)
			if !ok {
				return ledger.ExecMalformed
			}
			addItem(w.Character(name), item, count)
			return ledger.ExecExecuted
		},
		Capture: captureItemCount,
		Invert:  invertItemCount,
	})
	r.RegisterInverse("give_item", Inverse{Name: "take_item"})

	r.Register("take_item", Tool{
		Execute: func(w *World, p []string) ledger.ExecStatus {
			name, item, count, ok := nameItemCount(p)
			if !ok {
				return ledger.ExecMalformed
			}
			addItem(w.Character(name), item, -count)
			return ledger.ExecExecuted
		},
		Capture: captureItemCount,
		Invert:  invertItemCount,
	})
	r.RegisterInverse("take_item", Inverse{Name: "give_item"})

	r.Register("transfer_item", Tool{
		Execute: func(w *World, p []string) ledger.ExecStatus {
			from, to, item, count, ok := transferParams(p)
			if !ok {
				return ledger.ExecMalformed
			}
			addItem(w.Character(from), item, -count)
			addItem(w.Character(to), item, count)
			return ledger.ExecExecuted
		},
		Capture: func(w *World, p []string) map[string]string {
			from, to, item, _, ok := transferParams(p)
			if !ok {
				return map[string]string{}
			}
			return map[string]string{
				"from_count": strconv.Itoa(w.Character(from).Inventory[item]),
				"to_count":   strconv.Itoa(w.Character(to).Inventory[item]),
			}
		},
		Invert: func(w *World, p []string, revert map[string]string) bool {
			from, to, item, _, ok := transferParams(p)
			if !ok {
				return false
			}
			fromCount, err1 := strconv.Atoi(revert["from_count"])
			toCount, err2 := strconv.Atoi(revert["to_count"])
			if err1 != nil || err2 != nil {
				return false
			}
			setItem(w.Character(from), item, fromCount)
			setItem(w.Character(to), item, toCount)
			return true
		},
	})
	// transfer_item(a, b, ...)⁻¹ = transfer_item(b, a, ...): reverse the
	// transfer by swapping source and destination.
	r.RegisterInverse("transfer_item", Inverse{Name: "transfer_item", Transform: swapEndpoints})

	r.Register("set_attribute", Tool{
		Execute: func(w *World, p []string) ledger.ExecStatus {
			if len(p) != 3 {
				return ledger.ExecMalformed
			}
			w.Character(p[0]).Attributes[p[1]] = p[2]
			return ledger.ExecExecuted
		},
		Capture: func(w *World, p []string) map[string]string {
			if len(p) != 3 {
				return map[string]string{}
			}
			prior, had := w.Character(p[0]).Attributes[p[1]]
			if !had {
				return map[string]string{"had": "false"}
			}
			return map[string]string{"had": "true", "value": prior}
		},
		Invert: func(w *World, p []string, revert map[string]string) bool {
			if len(p) != 3 {
				return false
			}
			c := w.Character(p[0])
			if revert["had"] == "true" {
				c.Attributes[p[1]] = revert["value"]
				return true
			}
			if revert["had"] == "false" {
				delete(c.Attributes, p[1])
				return true
			}
			return false
		},
	})
	// set_attribute has no static inverse: without the captured prior
	// value there is nothing to restore.
}

func nameAmount(p []string) (string, int, bool) {
	if len(p) != 2 || p[0] == "" {
		return "", 0, false
	}
	amount, err := strconv.Atoi(p[1])
	if err != nil {
		return "", 0, false
	}
	return p[0], amount, true
}

func nameItemCount(p []string) (string, string, int, bool) {
	if len(p) != 3 || p[0] == "" || p[1] == "" {
		return "", "", 0, false
	}
	count, err := strconv.Atoi(p[2])
	if err != nil {
		return "", "", 0, false
	}
	return p[0], p[1], count, true
}

func transferParams(p []string) (string, string, string, int, bool) {
	if len(p) != 4 || p[0] == "" || p[1] == "" || p[2] == "" {
		return "", "", "", 0, false
	}
	count, err := strconv.Atoi(p[3])
	if err != nil {
		return "", "", "", 0, false
	}
	return p[0], p[1], p[2], count, true
}

// addItem adjusts an inventory count, clamping at zero and removing empty
// stacks so inventories stay tidy.
func addItem(c *Character, item string, delta int) {
	setItem(c, item, c.Inventory[item]+delta)
}

func setItem(c *Character, item string, count int) {
	if count <= 0 {
		delete(c.Inventory, item)
		return
	}
	c.Inventory[item] = count
}

func captureHP(w *World, p []string) map[string]string {
	name, _, ok := nameAmount(p)
	if !ok {
		return map[string]string{}
	}
	return map[string]string{"hp": strconv.Itoa(w.Character(name).HP)}
}

func captureItemCount(w *World, p []string) map[string]string {
	name, item, _, ok := nameItemCount(p)
	if !ok {
		return map[string]string{}
	}
	return map[string]string{"count": strconv.Itoa(w.Character(name).Inventory[item])}
}

func invertItemCount(w *World, p []string, revert map[string]string) bool {
	name, item, _, ok := nameItemCount(p)
	if !ok {
		return false
	}
	prior, err := strconv.Atoi(revert["count"])
	if err != nil {
		return false
	}
	setItem(w.Character(name), item, prior)
	return true
}

func invertHP(w *World, p []string, revert map[string]string) bool {
	name, _, ok := nameAmount(p)
	if !ok {
		return false
	}
	prior, err := strconv.Atoi(revert["hp"])
	if err != nil {
		return false
	}
	w.Character(name).HP = prior
	return true
}

// negateAmount flips the sign of the trailing amount parameter.
func negateAmount(p []string) []string {
	if len(p) != 2 {
		return p
	}
	amount, err := strconv.Atoi(p[1])
	if err != nil {
		return p
	}
	return []string{p[0], strconv.Itoa(-amount)}
}

// swapEndpoints swaps the source and destination of a transfer.
func swapEndpoints(p []string) []string {
	if len(p) != 4 {
		return p
	}
	return []string{p[1], p[0], p[2], p[3]}
}
