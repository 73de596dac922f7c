package node

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

func tag(c model.ComponentID, category model.ErrorCategory, timestamp uint64) model.ErrorTag {
	return model.ErrorTag{Component: c, Category: category, Timestamp: timestamp}
}

func TestErrorSetDeduplicates(t *testing.T) {
	s := NewErrorSet(500)
	assert.True(t, s.Add(tag(model.Transport, model.InvalidSender, 10)))
	assert.False(t, s.Add(tag(model.Transport, model.InvalidSender, 499)))
	assert.True(t, s.Add(tag(model.Transport, model.InvalidSender, 500)))
	assert.True(t, s.Add(tag(model.Voting, model.InvalidSender, 10)))
	assert.True(t, s.Add(tag(model.Transport, model.RateLimited, 10)))
	assert.Equal(t, 4, s.Len())

	tags := s.Tags()
	require.Len(t, tags, 4)
	assert.Equal(t, uint64(10), tags[0].Timestamp)
	assert.Equal(t, model.Voting, tags[0].Component)
	assert.Equal(t, uint64(500), tags[3].Timestamp)
}

func TestErrorSetRecovery(t *testing.T) {
	s := NewErrorSet(500)
	s.Add(tag(model.Transport, model.ByzantineBehavior, 1))
	s.Add(tag(model.Transport, model.QueueCongestion, 1))
	s.Add(tag(model.Voting, model.NoProgress, 1))
	s.Add(tag(model.Dissemination, model.RepairOverload, 1))

	assert.Equal(t, 1, s.RemoveRecoverable(model.Transport))
	assert.True(t, s.Has(model.Transport, model.ByzantineBehavior))
	assert.False(t, s.Has(model.Transport, model.QueueCongestion))
	assert.True(t, s.Has(model.Voting, model.NoProgress))

	assert.Equal(t, 2, s.RemoveRecoverable(model.Components[:]...))
	critical := s.Critical()
	require.Len(t, critical, 1)
	assert.Equal(t, model.ByzantineBehavior, critical[0].Category)
}

func TestErrorSetPrune(t *testing.T) {
	s := NewErrorSet(10)
	for i := uint64(0); i < 100; i += 10 {
		s.Add(tag(model.Voting, model.ClockDrift, i))
	}
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, 5, s.PruneBefore(50))
	for _, tag := range s.Tags() {
		assert.GreaterOrEqual(t, tag.Timestamp, uint64(50))
	}
	assert.Equal(t, map[string]int{model.ClockDrift.String(): 5}, s.CountByCategory())
}

func TestErrorSetReset(t *testing.T) {
	s := NewErrorSet(500)
	s.Add(tag(model.Voting, model.NoProgress, 1))
	s.Reset([]model.ErrorTag{
		tag(model.Crypto, model.MissingSignature, 3),
		tag(model.Crypto, model.MissingSignature, 4),
	})
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Has(model.Voting, model.NoProgress))
	assert.Equal(t, uint64(3), s.Tags()[0].Timestamp)
}

func TestProtocolViolation(t *testing.T) {
	violation := ProtocolViolation{Tag: tag(model.Voting, model.InvalidVote, 7), Msg: "duplicate vote"}
	wrapped := fmt.Errorf("handling vote: %w", violation)

	assert.True(t, IsProtocolViolation(wrapped))
	got, ok := AsProtocolViolation(wrapped)
	require.True(t, ok)
	assert.Equal(t, violation, *got)
	assert.Contains(t, violation.Error(), "duplicate vote")

	_, ok = AsProtocolViolation(ErrRecoveryFailed)
	assert.False(t, ok)
}
