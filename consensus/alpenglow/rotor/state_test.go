package rotor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

func newState(t *testing.T, n int) *State {
	cfg := model.DefaultConfig(n)
	require.NoError(t, cfg.Validate())
	return New(0, &cfg)
}

func TestErasureParams(t *testing.T) {
	p := NewErasureParams(10)
	assert.Equal(t, 7, p.DataShreds)
	assert.Equal(t, 10, p.TotalShreds)
	require.NoError(t, p.Validate())
	assert.Equal(t, uint64(3), p.ShredSize(15))

	require.ErrorIs(t, ErasureParams{DataShreds: 0, TotalShreds: 3}.Validate(), ErrInvalidErasureParams)
	require.ErrorIs(t, ErasureParams{DataShreds: 4, TotalShreds: 3}.Validate(), ErrInvalidErasureParams)
	require.ErrorIs(t, ErasureParams{DataShreds: 1, TotalShreds: maxShreds + 1}.Validate(), ErrInvalidErasureParams)
}

func TestDisseminate(t *testing.T) {
	s := newState(t, 4)
	params := NewErasureParams(4)
	block := model.NewBlock(1, 1, model.ZeroID, 2, make([]byte, 300))

	require.NoError(t, s.Disseminate(block, params, 2))
	require.Equal(t, 4, s.ShredCount(block.Hash))
	assert.Equal(t, uint64(1), s.DeliveredBlocks)
	// 300 bytes over 3 data shreds, sent to 4 relays
	assert.Equal(t, uint64(400), s.BandwidthUsage[2])
	assert.Equal(t, uint64(400), s.TotalBandwidthUsage())

	data := 0
	for _, sh := range s.Shreds[block.Hash] {
		if sh.Data {
			data++
		}
	}
	assert.Equal(t, params.DataShreds, data)

	// disseminating a stored block does not charge twice
	require.NoError(t, s.Disseminate(block, params, 2))
	assert.Equal(t, uint64(400), s.BandwidthUsage[2])
	require.NoError(t, s.CheckSafety())
}

func TestDisseminateBandwidthExceeded(t *testing.T) {
	s := newState(t, 4)
	s.BandwidthLimit = 100
	block := model.NewBlock(1, 1, model.ZeroID, 1, make([]byte, 300))

	err := s.Disseminate(block, NewErasureParams(4), 1)
	require.ErrorIs(t, err, ErrBandwidthExceeded)
	assert.False(t, s.HasShreds(block.Hash))
	assert.Zero(t, s.TotalBandwidthUsage())
}

func TestTrimRepairs(t *testing.T) {
	s := newState(t, 4)
	for i := uint64(0); i < 10; i++ {
		s.RequestRepair(RepairRequest{Requester: 1, Index: int(i), RequestedAt: i * 10})
	}
	s.Clock = 100
	removed := s.TrimRepairs(50)
	assert.Equal(t, 5, removed)
	require.Len(t, s.RepairRequests, 5)
	assert.Equal(t, uint64(50), s.RepairRequests[0].RequestedAt)
}

func TestHalveBandwidth(t *testing.T) {
	s := newState(t, 4)
	s.BandwidthUsage[0] = 10
	s.BandwidthUsage[3] = 7
	s.HalveBandwidth()
	assert.Equal(t, uint64(5), s.BandwidthUsage[0])
	assert.Equal(t, uint64(3), s.BandwidthUsage[3])
	assert.Equal(t, uint64(4)<<32, s.Capacity())
}

func TestLiveness(t *testing.T) {
	s := newState(t, 4)
	s.Clock = 250
	require.NoError(t, s.CheckLiveness(100, 200))
	s.Clock = 301
	require.Error(t, s.CheckLiveness(100, 200))
	s.DeliveredBlocks = 1
	require.NoError(t, s.CheckLiveness(100, 200))
}

func TestByzantineResilience(t *testing.T) {
	s := newState(t, 4)
	block := model.NewBlock(1, 1, model.ZeroID, 0, []byte("payload"))
	require.NoError(t, s.Disseminate(block, NewErasureParams(4), 0))

	// 3 of 4 shreds reconstruct the block
	require.NoError(t, s.CheckByzantineResilience([]model.ValidatorID{1}))
	require.Error(t, s.CheckByzantineResilience([]model.ValidatorID{1, 2}))
}

func TestSnapshotRestore(t *testing.T) {
	s := newState(t, 4)
	block := model.NewBlock(1, 1, model.ZeroID, 0, []byte("payload"))
	require.NoError(t, s.Disseminate(block, NewErasureParams(4), 0))
	s.RequestRepair(RepairRequest{Requester: 3, BlockHash: block.Hash, Index: 2, RequestedAt: 5})
	s.Clock = 9

	restored := newState(t, 4)
	restored.Restore(s.Snapshot())
	assert.Equal(t, s.Snapshot(), restored.Snapshot())
	assert.True(t, restored.HasShreds(block.Hash))
}
