package shard

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tatterhall/fable/internal/record"
)

// Backup reasons. The reason is a tag for diagnostics, not an enum the
// store branches on.
const (
	ReasonSizeCollapse = "size-loss"
	ReasonDivergence   = "hash-divergence"
)

const (
	// maxBackups is how many anomaly snapshots are retained.
	maxBackups = 3

	// backupTTL is how many turns a snapshot survives before it is dropped.
	backupTTL = 20
)

// Backup is a pre-overwrite snapshot of the stored state, taken only when a
// save looked anomalous. Turn is the value of the store's save counter at
// snapshot time. IDs are UUIDv7 so snapshots sort by creation time.
type Backup struct {
	ID       string          `json:"id"`
	Turn     int             `json:"turn"`
	Reason   string          `json:"reason"`
	Entries  []*record.Entry `json:"entries"`
	Position int             `json:"position"`
}

// backupUnit returns the unit name holding the backup ring.
func (s *Store) backupUnit() string {
	return s.prefix + ".backups"
}

// Backups returns the retained anomaly snapshots, oldest first.
func (s *Store) Backups() ([]Backup, error) {
	payload, ok, err := s.units.Read(s.backupUnit())
	if err != nil {
		return nil, fmt.Errorf("read backups: %w", err)
	}
	if !ok {
		return []Backup{}, nil
	}

	var backups []Backup
	if err := json.Unmarshal([]byte(payload), &backups); err != nil {
		return nil, fmt.Errorf("parse backups: %w", err)
	}
	return backups, nil
}

// snapshotBackup appends a snapshot of the pre-overwrite state to the
// backup ring, then trims the ring: snapshots older than backupTTL turns
// are dropped, and only the most recent maxBackups survive.
func (s *Store) snapshotBackup(existing record.State, turn int, reason string) error {
	backups, err := s.Backups()
	if err != nil {
		// A corrupt ring must not block the snapshot; start fresh.
		backups = []Backup{}
	}

	snap := existing.Clone()
	backups = append(backups, Backup{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Turn:     turn,
		Reason:   reason,
		Entries:  snap.Entries,
		Position: snap.Position,
	})

	kept := backups[:0]
	for _, b := range backups {
		if turn-b.Turn > backupTTL {
			continue
		}
		kept = append(kept, b)
	}
	if len(kept) > maxBackups {
		kept = kept[len(kept)-maxBackups:]
	}

	payload, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("marshal backups: %w", err)
	}
	if err := s.units.Write(s.backupUnit(), string(payload)); err != nil {
		return fmt.Errorf("write backups: %w", err)
	}
	return nil
}
