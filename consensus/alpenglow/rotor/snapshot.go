package rotor

import (
	"golang.org/x/exp/maps"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Snapshot is the dissemination engine's exported sub-state.
type Snapshot struct {
	BlockShreds     map[model.Identifier][]Shred `json:"blockShreds"`
	RepairRequests  []RepairRequest              `json:"repairRequests"`
	BandwidthUsage  map[model.ValidatorID]uint64 `json:"bandwidthUsage"`
	BandwidthLimit  uint64                       `json:"bandwidthLimit"`
	DeliveredBlocks uint64                       `json:"deliveredBlocks"`
	Clock           uint64                       `json:"clock"`
}

func (s *State) Snapshot() Snapshot {
	shreds := make(map[model.Identifier][]Shred, len(s.Shreds))
	for hash, list := range s.Shreds {
		shreds[hash] = append([]Shred{}, list...)
	}
	return Snapshot{
		BlockShreds:     shreds,
		RepairRequests:  append([]RepairRequest{}, s.RepairRequests...),
		BandwidthUsage:  maps.Clone(s.BandwidthUsage),
		BandwidthLimit:  s.BandwidthLimit,
		DeliveredBlocks: s.DeliveredBlocks,
		Clock:           s.Clock,
	}
}

func (s *State) Restore(snap Snapshot) {
	s.Shreds = make(map[model.Identifier][]Shred, len(snap.BlockShreds))
	for hash, list := range snap.BlockShreds {
		s.Shreds[hash] = append([]Shred{}, list...)
	}
	s.RepairRequests = append([]RepairRequest{}, snap.RepairRequests...)
	s.BandwidthUsage = make(map[model.ValidatorID]uint64, len(snap.BandwidthUsage))
	for v, used := range snap.BandwidthUsage {
		s.BandwidthUsage[v] = used
	}
	s.BandwidthLimit = snap.BandwidthLimit
	s.DeliveredBlocks = snap.DeliveredBlocks
	s.Clock = snap.Clock
}
