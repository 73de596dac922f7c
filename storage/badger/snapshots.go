package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/onflow/alpenglow/consensus/alpenglow/formal"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/storage"
	"github.com/onflow/alpenglow/storage/badger/operation"
)

// Snapshots implements storage.Snapshots around a badger DB.
type Snapshots struct {
	db *badger.DB
}

var _ storage.Snapshots = (*Snapshots)(nil)

func NewSnapshots(db *badger.DB) *Snapshots {
	return &Snapshots{db: db}
}

func (s *Snapshots) Store(snap *formal.Snapshot) error {
	err := s.db.Update(operation.InsertSnapshot(snap))
	if err != nil {
		return fmt.Errorf("could not store snapshot of validator %d at clock %d: %w", snap.ValidatorID, snap.Clock, err)
	}
	return nil
}

func (s *Snapshots) ByClock(validator model.ValidatorID, clock uint64) (*formal.Snapshot, error) {
	var snap formal.Snapshot
	err := s.db.View(operation.RetrieveSnapshot(validator, clock, &snap))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve snapshot of validator %d at clock %d: %w", validator, clock, err)
	}
	return &snap, nil
}

func (s *Snapshots) Latest(validator model.ValidatorID) (*formal.Snapshot, error) {
	var snap formal.Snapshot
	err := s.db.View(func(tx *badger.Txn) error {
		var clock uint64
		var found bool
		err := operation.LookupLatestSnapshotClock(validator, &clock, &found)(tx)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		return operation.RetrieveSnapshot(validator, clock, &snap)(tx)
	})
	if err != nil {
		return nil, fmt.Errorf("could not retrieve latest snapshot of validator %d: %w", validator, err)
	}
	return &snap, nil
}

func (s *Snapshots) Clocks(validator model.ValidatorID) ([]uint64, error) {
	var clocks []uint64
	err := s.db.View(operation.LookupSnapshotClocks(validator, &clocks))
	if err != nil {
		return nil, fmt.Errorf("could not look up snapshots of validator %d: %w", validator, err)
	}
	return clocks, nil
}

func (s *Snapshots) PruneBefore(validator model.ValidatorID, clock uint64) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *badger.Txn) error {
		var clocks []uint64
		err := operation.LookupSnapshotClocks(validator, &clocks)(tx)
		if err != nil {
			return err
		}
		for _, c := range clocks {
			if c >= clock {
				break
			}
			err = operation.RemoveSnapshot(validator, c)(tx)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("could not prune snapshots of validator %d: %w", validator, err)
	}
	return removed, nil
}
