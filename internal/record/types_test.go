package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOp_WireForm(t *testing.T) {
	op := Op{
		Name:   "add_levelxp",
		Params: []string{"Kara", "50"},
		Revert: map[string]string{"xp": "120"},
	}

	data, err := json.Marshal(op)
	require.NoError(t, err)
	assert.JSONEq(t, `["add_levelxp",["Kara","50"],{"xp":"120"}]`, string(data))

	var back Op
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, op, back)
}

func TestOp_NilCollectionsNormalized(t *testing.T) {
	data, err := json.Marshal(Op{Name: "rest"})
	require.NoError(t, err)
	assert.Equal(t, `["rest",[],{}]`, string(data))
}

func TestOp_RejectsWrongArity(t *testing.T) {
	var op Op
	err := json.Unmarshal([]byte(`["heal",["Kara"]]`), &op)
	assert.Error(t, err)
}

func TestEntry_WireForm(t *testing.T) {
	e := Entry{
		Hash: "1k2j3h",
		Ops: []Op{
			{Name: "heal", Params: []string{"Kara", "4"}, Revert: map[string]string{"hp": "6"}},
		},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"h":"1k2j3h","t":[["heal",["Kara","4"],{"hp":"6"}]]}`, string(data))

	var back Entry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e, back)
}

func TestEntry_NilSlotRoundTrips(t *testing.T) {
	entries := []*Entry{nil, {Hash: "abc"}}

	data, err := json.Marshal(entries)
	require.NoError(t, err)

	var back []*Entry
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 2)
	assert.Nil(t, back[0])
	require.NotNil(t, back[1])
	assert.Equal(t, "abc", back[1].Hash)
}

func TestState_EnforceCapacity(t *testing.T) {
	s := State{Position: 4}
	for i := 0; i < 5; i++ {
		s.Entries = append(s.Entries, &Entry{Hash: "h"})
	}

	s.EnforceCapacity(3)

	assert.Len(t, s.Entries, 3)
	assert.Equal(t, 2, s.Position)
}

func TestState_EnforceCapacity_PositionFloor(t *testing.T) {
	s := State{Position: 0, Entries: []*Entry{{}, {}, {}}}

	s.EnforceCapacity(1)

	assert.Len(t, s.Entries, 1)
	assert.Equal(t, -1, s.Position)
}

func TestState_CloneIsDeep(t *testing.T) {
	orig := State{
		Position: 0,
		Entries: []*Entry{
			{Hash: "h", Ops: []Op{{Name: "heal", Params: []string{"Kara", "2"}, Revert: map[string]string{"hp": "3"}}}},
			nil,
		},
	}

	cp := orig.Clone()
	cp.Entries[0].Hash = "mutated"
	cp.Entries[0].Ops[0].Params[0] = "Brek"
	cp.Entries[0].Ops[0].Revert["hp"] = "99"

	assert.Equal(t, "h", orig.Entries[0].Hash)
	assert.Equal(t, "Kara", orig.Entries[0].Ops[0].Params[0])
	assert.Equal(t, "3", orig.Entries[0].Ops[0].Revert["hp"])
	assert.Nil(t, cp.Entries[1])
}
