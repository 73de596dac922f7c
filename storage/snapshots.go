package storage

import (
	"github.com/onflow/alpenglow/consensus/alpenglow/formal"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Snapshots persists formal state snapshots, keyed by validator and clock.
type Snapshots interface {

	// Store persists the snapshot. It returns ErrAlreadyExists if a snapshot
	// of the same validator at the same clock is already stored.
	Store(snap *formal.Snapshot) error

	// ByClock returns the snapshot the validator exported at the given clock.
	// It returns ErrNotFound if there is none.
	ByClock(validator model.ValidatorID, clock uint64) (*formal.Snapshot, error)

	// Latest returns the validator's snapshot with the highest clock. It
	// returns ErrNotFound if the validator has no snapshots.
	Latest(validator model.ValidatorID) (*formal.Snapshot, error)

	// Clocks returns, in ascending order, the clocks of the validator's snapshots.
	Clocks(validator model.ValidatorID) ([]uint64, error)

	// PruneBefore removes the validator's snapshots older than clock and
	// returns how many were removed.
	PruneBefore(validator model.ValidatorID, clock uint64) (int, error)
}
