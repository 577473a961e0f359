package shard

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/tatterhall/fable/internal/record"
)

// makeEntries builds n entries with distinguishable hashes and one op each.
func makeEntries(n int) []*record.Entry {
	entries := make([]*record.Entry, n)
	for i := 0; i < n; i++ {
		entries[i] = &record.Entry{
			Hash: fmt.Sprintf("hash%03d", i),
			Ops: []record.Op{{
				Name:   "add_levelxp",
				Params: []string{"Kara", "10"},
				Revert: map[string]string{"xp": fmt.Sprintf("%d", i*10)},
			}},
		}
	}
	return entries
}

func TestSave_Load_RoundTrip(t *testing.T) {
	s := New(NewMemory())
	state := record.State{Entries: makeEntries(5), Position: 4}

	if err := s.Save(state); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(loaded.Entries) != 5 {
		t.Fatalf("Load() returned %d entries, want 5", len(loaded.Entries))
	}
	if loaded.Position != 4 {
		t.Errorf("Load() position = %d, want 4", loaded.Position)
	}
	for i, e := range loaded.Entries {
		if e.Hash != state.Entries[i].Hash {
			t.Errorf("entry %d hash = %q, want %q", i, e.Hash, state.Entries[i].Hash)
		}
	}
}

func TestSave_Load_MultiUnitRoundTrip(t *testing.T) {
	mem := NewMemory()
	// Small ceiling forces several units for a modest entry count.
	s := New(mem, WithMaxUnitSize(500))
	state := record.State{Entries: makeEntries(40), Position: 39}

	if err := s.Save(state); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// More than one data unit must exist.
	if _, ok, _ := mem.Read(s.unitName(2)); !ok {
		t.Fatal("expected at least two units for oversized state")
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(loaded.Entries) != 40 {
		t.Fatalf("Load() returned %d entries, want 40", len(loaded.Entries))
	}
	if loaded.Position != 39 {
		t.Errorf("Load() position = %d, want 39", loaded.Position)
	}
	for i, e := range loaded.Entries {
		if e == nil || e.Hash != fmt.Sprintf("hash%03d", i) {
			t.Fatalf("entry %d lost or reordered across units", i)
		}
	}
}

func TestSave_UnitsRespectSizeCeiling(t *testing.T) {
	mem := NewMemory()
	s := New(mem, WithMaxUnitSize(500))

	if err := s.Save(record.State{Entries: makeEntries(40), Position: 39}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	for n := 1; ; n++ {
		payload, ok, _ := mem.Read(s.unitName(n))
		if !ok {
			break
		}
		if len(payload) > 500 {
			t.Errorf("unit %d payload is %d chars, exceeds ceiling 500", n, len(payload))
		}
		var u unitPayload
		if err := json.Unmarshal([]byte(payload), &u); err != nil {
			t.Errorf("unit %d does not parse: %v", n, err)
		}
		if u.Position != 39 {
			t.Errorf("unit %d position = %d, want 39 (every unit carries it)", n, u.Position)
		}
	}
}

func TestSave_NilSlotsSurviveRoundTrip(t *testing.T) {
	s := New(NewMemory())
	entries := makeEntries(3)
	entries[1] = nil

	if err := s.Save(record.State{Entries: entries, Position: 2}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(loaded.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(loaded.Entries))
	}
	if loaded.Entries[1] != nil {
		t.Error("nil slot did not survive the round trip")
	}
}

func TestSave_EnforcesCapacity(t *testing.T) {
	s := New(NewMemory(), WithCapacity(10))

	if err := s.Save(record.State{Entries: makeEntries(15), Position: 14}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, _ := s.Load()
	if len(loaded.Entries) != 10 {
		t.Errorf("got %d entries, want capacity 10", len(loaded.Entries))
	}
	if loaded.Position != 9 {
		t.Errorf("position = %d, want 9 after dropping 5 oldest", loaded.Position)
	}
	// Oldest entries dropped, newest kept.
	if loaded.Entries[0].Hash != "hash005" {
		t.Errorf("entries[0].Hash = %q, want hash005", loaded.Entries[0].Hash)
	}
}

func TestSave_ErasesStaleTrailingUnits(t *testing.T) {
	mem := NewMemory()
	s := New(mem, WithMaxUnitSize(500))

	// Big save spreads over several units, small save must erase the rest.
	if err := s.Save(record.State{Entries: makeEntries(40), Position: 39}); err != nil {
		t.Fatalf("big Save() failed: %v", err)
	}
	if err := s.Save(record.State{Entries: makeEntries(1), Position: 0}); err != nil {
		t.Fatalf("small Save() failed: %v", err)
	}

	if _, ok, _ := mem.Read(s.unitName(2)); ok {
		t.Error("stale unit 2 survived the smaller save")
	}

	loaded, _ := s.Load()
	if len(loaded.Entries) != 1 {
		t.Errorf("got %d entries, want 1", len(loaded.Entries))
	}
}

func TestLoad_SkipsCorruptUnit(t *testing.T) {
	mem := NewMemory()
	s := New(mem, WithMaxUnitSize(500))

	if err := s.Save(record.State{Entries: makeEntries(40), Position: 39}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	mem.Corrupt(s.unitName(2), "{not json")

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() must not fail on a corrupt unit: %v", err)
	}
	if len(loaded.Entries) == 0 || len(loaded.Entries) >= 40 {
		t.Errorf("got %d entries, want partial recovery (some but not all)", len(loaded.Entries))
	}
	if loaded.Position != 39 {
		t.Errorf("position = %d, want 39 from surviving units", loaded.Position)
	}
}

func TestLoad_Empty(t *testing.T) {
	s := New(NewMemory())

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(state.Entries) != 0 {
		t.Errorf("got %d entries, want 0", len(state.Entries))
	}
	if state.Position != -1 {
		t.Errorf("position = %d, want -1 for empty store", state.Position)
	}
}

func TestLoad_PositionIsMaxAcrossUnits(t *testing.T) {
	mem := NewMemory()
	s := New(mem)

	// Hand-write units with diverging positions; the max wins.
	mem.Write(s.unitName(1), `{"entries":[{"h":"a","t":[]}],"position":3}`)
	mem.Write(s.unitName(2), `{"entries":[{"h":"b","t":[]}],"position":7}`)

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Position != 7 {
		t.Errorf("position = %d, want max 7", loaded.Position)
	}
}

func TestSave_SizeCollapseCreatesBackup(t *testing.T) {
	s := New(NewMemory())

	if err := s.Save(record.State{Entries: makeEntries(30), Position: 29}); err != nil {
		t.Fatalf("initial Save() failed: %v", err)
	}

	// Fewer than half the prior entries with prior > 20: anomalous.
	if err := s.Save(record.State{Entries: makeEntries(5), Position: 4}); err != nil {
		t.Fatalf("anomalous Save() must still succeed: %v", err)
	}

	backups, err := s.Backups()
	if err != nil {
		t.Fatalf("Backups() failed: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("got %d backups, want exactly 1", len(backups))
	}
	b := backups[0]
	if b.Reason != ReasonSizeCollapse {
		t.Errorf("backup reason = %q, want %q", b.Reason, ReasonSizeCollapse)
	}
	if len(b.Entries) != 30 {
		t.Errorf("backup holds %d entries, want the 30 pre-overwrite entries", len(b.Entries))
	}
	if b.Turn != 2 {
		t.Errorf("backup turn = %d, want save counter 2", b.Turn)
	}
	if b.ID == "" {
		t.Error("backup has no ID")
	}

	// The save itself went through.
	loaded, _ := s.Load()
	if len(loaded.Entries) != 5 {
		t.Errorf("post-anomaly state has %d entries, want 5", len(loaded.Entries))
	}
}

func TestSave_HashDivergenceCreatesBackup(t *testing.T) {
	s := New(NewMemory())

	if err := s.Save(record.State{Entries: makeEntries(10), Position: 9}); err != nil {
		t.Fatalf("initial Save() failed: %v", err)
	}

	// Rewrite over 30% of the overlapping hashes.
	diverged := makeEntries(10)
	for i := 0; i < 4; i++ {
		diverged[i].Hash = fmt.Sprintf("other%03d", i)
	}
	if err := s.Save(record.State{Entries: diverged, Position: 9}); err != nil {
		t.Fatalf("anomalous Save() must still succeed: %v", err)
	}

	backups, err := s.Backups()
	if err != nil {
		t.Fatalf("Backups() failed: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("got %d backups, want 1", len(backups))
	}
	if backups[0].Reason != ReasonDivergence {
		t.Errorf("backup reason = %q, want %q", backups[0].Reason, ReasonDivergence)
	}
}

func TestSave_NormalWriteCreatesNoBackup(t *testing.T) {
	s := New(NewMemory())

	if err := s.Save(record.State{Entries: makeEntries(10), Position: 9}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.Save(record.State{Entries: makeEntries(11), Position: 10}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	backups, _ := s.Backups()
	if len(backups) != 0 {
		t.Errorf("got %d backups for a normal append, want 0", len(backups))
	}
}

func TestBackups_RingTrimsToThree(t *testing.T) {
	s := New(NewMemory())

	for i := 0; i < 5; i++ {
		big := record.State{Entries: makeEntries(30), Position: 29}
		small := record.State{Entries: makeEntries(5), Position: 4}
		if err := s.Save(big); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if err := s.Save(small); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}

	backups, err := s.Backups()
	if err != nil {
		t.Fatalf("Backups() failed: %v", err)
	}
	if len(backups) > 3 {
		t.Errorf("ring holds %d backups, want at most 3", len(backups))
	}
}

func TestBackups_ExpireAfterTwentyTurns(t *testing.T) {
	mem := NewMemory()
	s := New(mem)

	if err := s.Save(record.State{Entries: makeEntries(30), Position: 29}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.Save(record.State{Entries: makeEntries(5), Position: 4}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// Fast-forward the save counter, then trigger another anomaly: the
	// snapshot from save 2 is now past the TTL and gets trimmed.
	mem.Write(s.turnUnit(), "39")
	if err := s.Save(record.State{Entries: makeEntries(30), Position: 29}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.Save(record.State{Entries: makeEntries(5), Position: 4}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	backups, _ := s.Backups()
	for _, b := range backups {
		if 41-b.Turn > backupTTL {
			t.Errorf("backup from turn %d survived past the %d-turn TTL", b.Turn, backupTTL)
		}
	}
	if len(backups) != 1 {
		t.Errorf("got %d backups, want 1 (the fresh one)", len(backups))
	}
}

func TestBackups_ExpireAtSaturatedWindow(t *testing.T) {
	s := New(NewMemory(), WithCapacity(10))

	if err := s.Save(record.State{Entries: makeEntries(10), Position: 9}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// A fully divergent window snapshots the prior state at save 2.
	diverged := makeEntries(10)
	for i := range diverged {
		diverged[i].Hash = fmt.Sprintf("edit%03d", i)
	}
	if err := s.Save(record.State{Entries: diverged, Position: 9}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// 21 saves of unchanged content. The entry count is frozen at capacity
	// the whole time; only the save counter keeps moving.
	for i := 0; i < 21; i++ {
		if err := s.Save(record.State{Entries: diverged, Position: 9}); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}

	rediverged := makeEntries(10)
	for i := range rediverged {
		rediverged[i].Hash = fmt.Sprintf("more%03d", i)
	}
	if err := s.Save(record.State{Entries: rediverged, Position: 9}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	backups, err := s.Backups()
	if err != nil {
		t.Fatalf("Backups() failed: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("got %d backups, want 1: the save-2 snapshot must expire", len(backups))
	}
	if backups[0].Turn != 24 {
		t.Errorf("backup turn = %d, want save counter 24, not the frozen entry count", backups[0].Turn)
	}
}

func TestWireFormat_Golden(t *testing.T) {
	mem := NewMemory()
	s := New(mem, WithPrefix("golden-ledger"), WithMaxUnitSize(150))

	entries := []*record.Entry{
		{Hash: "1a2b3c", Ops: []record.Op{
			{Name: "add_levelxp", Params: []string{"Kara", "50"}, Revert: map[string]string{"xp": "120"}},
		}},
		nil,
		{Hash: "4d5e6f", Ops: []record.Op{
			{Name: "transfer_item", Params: []string{"Kara", "Brek", "rope", "1"}, Revert: map[string]string{}},
			{Name: "deal_damage", Params: []string{"Brek", "3"}, Revert: map[string]string{"hp": "10"}},
		}},
		{Hash: "7g8h9i", Ops: []record.Op{}},
	}

	if err := s.Save(record.State{Entries: entries, Position: 3}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	var units []string
	for n := 1; ; n++ {
		payload, ok, _ := mem.Read(s.unitName(n))
		if !ok {
			break
		}
		units = append(units, s.unitName(n)+"\t"+payload)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "unit_wire_format", []byte(strings.Join(units, "\n")+"\n"))
}
