package call

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tatterhall/fable/internal/ledger"
)

func knownSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestExtract_SingleCall(t *testing.T) {
	e := New(knownSet("add_levelxp"))

	calls := e.Extract("Kara strikes true. add_levelxp(Kara, 50)")

	assert.Equal(t, []ledger.Call{
		{Name: "add_levelxp", Params: []string{"Kara", "50"}},
	}, calls)
}

func TestExtract_MultipleCallsInOrder(t *testing.T) {
	e := New(knownSet("deal_damage", "give_item"))

	calls := e.Extract("deal_damage(Brek, 3) and then give_item(Kara, rope, 1)")

	assert.Equal(t, []ledger.Call{
		{Name: "deal_damage", Params: []string{"Brek", "3"}},
		{Name: "give_item", Params: []string{"Kara", "rope", "1"}},
	}, calls)
}

func TestExtract_UnknownNamesDropped(t *testing.T) {
	e := New(knownSet("heal"))

	calls := e.Extract("The party (all of them) rests. heal(Kara, 5) happens(not)")

	assert.Equal(t, []ledger.Call{
		{Name: "heal", Params: []string{"Kara", "5"}},
	}, calls)
}

func TestExtract_NameCaseFolded(t *testing.T) {
	e := New(knownSet("add_levelxp"))

	calls := e.Extract("Add_LevelXP(Kara, 50)")

	assert.Len(t, calls, 1)
	assert.Equal(t, "add_levelxp", calls[0].Name)
}

func TestExtract_QuotedArgsUnwrapped(t *testing.T) {
	e := New(knownSet("set_attribute"))

	calls := e.Extract(`set_attribute("Kara", 'mood', wary)`)

	assert.Equal(t, []string{"Kara", "mood", "wary"}, calls[0].Params)
}

func TestExtract_EmptyParens(t *testing.T) {
	e := New(knownSet("rest"))

	calls := e.Extract("rest()")

	assert.Equal(t, []ledger.Call{{Name: "rest", Params: []string{}}}, calls)
}

func TestExtract_NoCalls(t *testing.T) {
	e := New(knownSet("heal"))

	assert.Empty(t, e.Extract("A quiet night passes without incident."))
}
