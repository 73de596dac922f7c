package operation

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v2"

	"github.com/onflow/alpenglow/consensus/alpenglow/formal"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// InsertSnapshot stores the snapshot under its validator and clock.
func InsertSnapshot(snap *formal.Snapshot) func(*badger.Txn) error {
	return insert(makePrefix(codeSnapshot, snap.ValidatorID, snap.Clock), snap)
}

func RetrieveSnapshot(validator model.ValidatorID, clock uint64, snap *formal.Snapshot) func(*badger.Txn) error {
	return retrieve(makePrefix(codeSnapshot, validator, clock), snap)
}

func RemoveSnapshot(validator model.ValidatorID, clock uint64) func(*badger.Txn) error {
	return remove(makePrefix(codeSnapshot, validator, clock))
}

// LookupSnapshotClocks collects the clocks of the validator's snapshots in
// ascending order.
func LookupSnapshotClocks(validator model.ValidatorID, clocks *[]uint64) func(*badger.Txn) error {
	*clocks = (*clocks)[:0]
	return traverseKeys(makePrefix(codeSnapshot, validator), false, func(key []byte) bool {
		*clocks = append(*clocks, snapshotClock(key))
		return true
	})
}

// LookupLatestSnapshotClock finds the highest clock the validator stored a
// snapshot for. found is false if there is none.
func LookupLatestSnapshotClock(validator model.ValidatorID, clock *uint64, found *bool) func(*badger.Txn) error {
	*found = false
	return traverseKeys(makePrefix(codeSnapshot, validator), true, func(key []byte) bool {
		*clock = snapshotClock(key)
		*found = true
		return false
	})
}

// snapshotClock extracts the clock from a snapshot key: code, validator, clock.
func snapshotClock(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[1+4:])
}
