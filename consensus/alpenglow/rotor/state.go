package rotor

import (
	"errors"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

var ErrBandwidthExceeded = errors.New("bandwidth limit exceeded")

// Shred is one erasure-coded fragment of a block.
type Shred struct {
	BlockHash model.Identifier  `json:"blockHash"`
	Slot      uint64            `json:"slot"`
	Index     int               `json:"index"`
	Data      bool              `json:"isData"`
	Size      uint64            `json:"size"`
	Relay     model.ValidatorID `json:"relay"`
}

// RepairRequest asks peers for a missing shred.
type RepairRequest struct {
	Requester   model.ValidatorID `json:"requester"`
	BlockHash   model.Identifier  `json:"blockHash"`
	Index       int               `json:"shredIndex"`
	RequestedAt uint64            `json:"timestamp"`
	Retries     uint64            `json:"retries"`
}

// State is the dissemination engine's state as seen by the integration layer.
// It is owned by exactly one node and is not safe for concurrent use.
type State struct {
	cfg  *model.Config
	self model.ValidatorID

	Shreds          map[model.Identifier][]Shred
	RepairRequests  []RepairRequest
	BandwidthUsage  map[model.ValidatorID]uint64
	BandwidthLimit  uint64
	DeliveredBlocks uint64
	Clock           uint64
}

func New(self model.ValidatorID, cfg *model.Config) *State {
	return &State{
		cfg:            cfg,
		self:           self,
		Shreds:         make(map[model.Identifier][]Shred),
		BandwidthUsage: make(map[model.ValidatorID]uint64),
		BandwidthLimit: cfg.BandwidthLimit,
	}
}

// CheckBandwidthLimit returns true if validator v can send another amount bytes.
func (s *State) CheckBandwidthLimit(v model.ValidatorID, amount uint64) bool {
	return s.BandwidthUsage[v]+amount <= s.BandwidthLimit
}

// HasShreds returns true if any shred of the block is stored.
func (s *State) HasShreds(hash model.Identifier) bool {
	return len(s.Shreds[hash]) > 0
}

// ShredCount returns the number of stored shreds for the block.
func (s *State) ShredCount(hash model.Identifier) int {
	return len(s.Shreds[hash])
}

// Disseminate cuts the block into shreds, stores them and charges the
// leader's bandwidth for sending one shred to every relay.
func (s *State) Disseminate(block model.Block, params ErasureParams, leader model.ValidatorID) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if s.HasShreds(block.Hash) {
		return nil
	}
	shredSize := params.ShredSize(block.Size())
	cost := shredSize * uint64(params.TotalShreds)
	if !s.CheckBandwidthLimit(leader, cost) {
		return fmt.Errorf("%w: leader %d needs %d bytes, used %d of %d",
			ErrBandwidthExceeded, leader, cost, s.BandwidthUsage[leader], s.BandwidthLimit)
	}
	shreds := make([]Shred, 0, params.TotalShreds)
	for i := 0; i < params.TotalShreds; i++ {
		shreds = append(shreds, Shred{
			BlockHash: block.Hash,
			Slot:      block.Slot,
			Index:     i,
			Data:      i < params.DataShreds,
			Size:      shredSize,
			Relay:     model.ValidatorID(i % s.cfg.Validators),
		})
	}
	s.Shreds[block.Hash] = shreds
	s.BandwidthUsage[leader] += cost
	s.DeliveredBlocks++
	return nil
}

// RequestRepair records a repair request.
func (s *State) RequestRepair(req RepairRequest) {
	s.RepairRequests = append(s.RepairRequests, req)
}

// TrimRepairs keeps only the repair requests issued within the last window ticks.
func (s *State) TrimRepairs(window uint64) int {
	var cutoff uint64
	if s.Clock > window {
		cutoff = s.Clock - window
	}
	kept := s.RepairRequests[:0]
	for _, r := range s.RepairRequests {
		if r.RequestedAt >= cutoff {
			kept = append(kept, r)
		}
	}
	removed := len(s.RepairRequests) - len(kept)
	s.RepairRequests = kept
	return removed
}

// HalveBandwidth halves every per-validator usage counter.
func (s *State) HalveBandwidth() {
	for v, used := range s.BandwidthUsage {
		s.BandwidthUsage[v] = used / 2
	}
}

// TotalBandwidthUsage sums usage across validators.
func (s *State) TotalBandwidthUsage() uint64 {
	var total uint64
	for _, used := range s.BandwidthUsage {
		total += used
	}
	return total
}

// Capacity is the aggregate bandwidth of the committee.
func (s *State) Capacity() uint64 {
	return s.BandwidthLimit * uint64(s.cfg.Validators)
}

// CheckSafety verifies shred sets are well-formed: unique indices within
// the committee size, all belonging to the block they are stored under.
func (s *State) CheckSafety() error {
	for hash, shreds := range s.Shreds {
		if len(shreds) > s.cfg.Validators {
			return fmt.Errorf("block %s has %d shreds for %d validators", hash, len(shreds), s.cfg.Validators)
		}
		seen := make(map[int]struct{}, len(shreds))
		for _, sh := range shreds {
			if sh.BlockHash != hash {
				return fmt.Errorf("shred %d stored under %s belongs to %s", sh.Index, hash, sh.BlockHash)
			}
			if _, dup := seen[sh.Index]; dup {
				return fmt.Errorf("block %s has duplicate shred %d", hash, sh.Index)
			}
			seen[sh.Index] = struct{}{}
		}
	}
	return nil
}

// CheckLiveness verifies that at least one block was delivered once the
// clock is more than timeout ticks past GST.
func (s *State) CheckLiveness(gst, timeout uint64) error {
	if s.Clock <= gst || s.Clock-gst <= timeout {
		return nil
	}
	if s.DeliveredBlocks == 0 {
		return fmt.Errorf("no block delivered %d ticks after GST", s.Clock-gst)
	}
	return nil
}

// CheckByzantineResilience verifies every stored block remains reconstructable
// when the shreds relayed by the given validators are withheld.
func (s *State) CheckByzantineResilience(byzantine []model.ValidatorID) error {
	k := NewErasureParams(s.cfg.Validators).DataShreds
	withheld := make(map[model.ValidatorID]struct{}, len(byzantine))
	for _, v := range byzantine {
		withheld[v] = struct{}{}
	}
	hashes := maps.Keys(s.Shreds)
	slices.SortFunc(hashes, func(a, b model.Identifier) int {
		return slices.Compare(a[:], b[:])
	})
	for _, hash := range hashes {
		honest := 0
		for _, sh := range s.Shreds[hash] {
			if _, ok := withheld[sh.Relay]; !ok {
				honest++
			}
		}
		if honest < k {
			return fmt.Errorf("block %s has %d honest shreds, needs %d", hash, honest, k)
		}
	}
	return nil
}
