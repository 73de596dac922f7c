package simnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

func newState(n int) *State {
	cfg := model.DefaultConfig(n)
	return New(0, &cfg)
}

func TestPartitionBuffersAndReleases(t *testing.T) {
	s := newState(4)
	id := s.Partition([]model.ValidatorID{2, 3})

	s.Send(model.Message{Sender: 0, Recipient: 1, Type: model.VoteMessage})
	s.Send(model.Message{Sender: 0, Recipient: 2, Type: model.VoteMessage})
	assert.Len(t, s.Queue, 1)
	assert.Equal(t, 1, s.BufferedCount())
	assert.True(t, s.IsPartitioned(0, 3))
	assert.False(t, s.IsPartitioned(2, 3))

	require.Len(t, s.Drain(), 1)
	require.True(t, s.Heal(id))
	assert.Empty(t, s.UnhealedPartitions())

	released := s.Drain()
	require.Len(t, released, 1)
	assert.Equal(t, model.ValidatorID(2), released[0].Recipient)
	assert.Zero(t, s.BufferedCount())
	assert.False(t, s.Heal(99))
}

func TestTrimQueueCountsDrops(t *testing.T) {
	s := newState(4)
	for ts := uint64(0); ts < 10; ts++ {
		s.Send(model.Message{Sender: 0, Recipient: 1, Timestamp: ts})
	}
	assert.Equal(t, 5, s.TrimQueue(5))
	assert.Len(t, s.Queue, 5)
	assert.Equal(t, uint64(5), s.DroppedMessages)
}

func TestDropRate(t *testing.T) {
	s := newState(4)
	assert.Zero(t, s.DropRate())
	s.Drop(model.Message{})
	s.RecordDelivery(model.Message{})
	s.RecordDelivery(model.Message{})
	s.RecordDelivery(model.Message{})
	assert.InDelta(t, 0.25, s.DropRate(), 1e-9)
}

func TestChecks(t *testing.T) {
	s := newState(10)
	s.Clock = s.cfg.GST + 1
	s.RecordDelivery(model.Message{Sender: 1, Timestamp: s.cfg.GST})
	require.NoError(t, s.CheckSafety())

	s.Clock = s.cfg.GST + s.cfg.Delta + 10
	s.RecordDelivery(model.Message{Sender: 1, Timestamp: s.cfg.GST})
	require.Error(t, s.CheckSafety())

	s.Partition([]model.ValidatorID{4})
	require.NoError(t, s.CheckLiveness(150))
	s.Clock += 200
	require.Error(t, s.CheckLiveness(150))
	s.HealAll()
	require.NoError(t, s.CheckLiveness(150))

	s.MarkByzantine(1)
	require.NoError(t, s.CheckByzantineResilience())
	s.MarkByzantine(2)
	require.Error(t, s.CheckByzantineResilience())
}

func TestSnapshotRestore(t *testing.T) {
	s := newState(4)
	s.Clock = 12
	s.Partition([]model.ValidatorID{3})
	s.Send(model.Message{Sender: 0, Recipient: 3, Timestamp: 11})
	s.Send(model.Message{Sender: 0, Recipient: 1, Timestamp: 12})
	s.MarkByzantine(2)
	s.RecordDelivery(model.Message{Sender: 1, Timestamp: 10})

	restored := newState(4)
	restored.Restore(s.Snapshot())
	assert.Equal(t, s.Snapshot(), restored.Snapshot())
	assert.Equal(t, uint64(2), restored.Partition(nil))
}

func TestTake(t *testing.T) {
	s := newState(4)
	for i := uint64(0); i < 5; i++ {
		s.Send(model.Message{Sender: 1, Recipient: 0, Timestamp: i})
	}
	first := s.Take(3)
	require.Len(t, first, 3)
	assert.Equal(t, uint64(0), first[0].Timestamp)
	rest := s.Take(10)
	require.Len(t, rest, 2)
	assert.Equal(t, uint64(3), rest[0].Timestamp)
	assert.Empty(t, s.Take(1))
}
