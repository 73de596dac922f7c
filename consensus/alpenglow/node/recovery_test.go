package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

func TestAttemptRecovery(t *testing.T) {
	t.Run("no-op while running", func(t *testing.T) {
		n := newNode(t, 4)
		attempt, err := n.AttemptRecovery()
		require.NoError(t, err)
		assert.Nil(t, attempt)
		assert.Empty(t, n.RecoveryHistory())
	})

	t.Run("succeeds once repairs expire", func(t *testing.T) {
		n := newNode(t, 4)
		_, err := n.Handle(InjectRepairRequests{Count: 9})
		require.NoError(t, err)
		n.DetectFailures()
		require.Equal(t, model.DegradedState, n.SystemState())

		advance(n, 60)
		attempt, err := n.AttemptRecovery()
		require.NoError(t, err)
		require.NotNil(t, attempt)

		assert.Equal(t, RecoverySucceeded, attempt.Outcome)
		assert.Equal(t, model.DegradedState, attempt.PriorState)
		assert.True(t, attempt.Transport)
		assert.True(t, attempt.Dissemination)
		assert.True(t, attempt.Voting)
		assert.True(t, attempt.Verified)
		assert.Empty(t, attempt.StillFailing)

		assert.Equal(t, model.Running, n.SystemState())
		assert.Equal(t, model.AllHealthy(), n.Health())
		assert.Empty(t, n.Dissemination().RepairRequests)
		assert.False(t, n.HasError(model.Dissemination, model.RepairOverload))
		assert.Len(t, n.RecoveryHistory(), 1)
	})

	t.Run("halted node recovers", func(t *testing.T) {
		n := newNode(t, 4)
		_, err := n.Handle(InjectFault{Component: model.Voting, Status: model.Failed})
		require.NoError(t, err)
		require.Equal(t, model.Halted, n.SystemState())

		attempt, err := n.AttemptRecovery()
		require.NoError(t, err)
		assert.Equal(t, model.Halted, attempt.PriorState)
		assert.Equal(t, RecoverySucceeded, attempt.Outcome)
		assert.Equal(t, model.Running, n.SystemState())
		assert.Zero(t, n.Performance().FailedOperations)
	})

	t.Run("recovery request message", func(t *testing.T) {
		n := newNode(t, 4)
		res, err := n.Handle(RequestRecovery{})
		require.NoError(t, err)
		assert.Nil(t, res)

		_, err = n.Handle(InjectFault{Component: model.Transport, Status: model.Failed})
		require.NoError(t, err)
		res, err = n.Handle(RequestRecovery{})
		require.NoError(t, err)
		attempt, ok := res.(*RecoveryAttempt)
		require.True(t, ok)
		assert.Equal(t, model.Halted, attempt.PriorState)
		assert.Equal(t, model.Running, n.SystemState())
	})

	t.Run("fails while partitioned before GST", func(t *testing.T) {
		n := newNode(t, 4)
		_, err := n.Handle(InjectPartition{Members: []model.ValidatorID{1}})
		require.NoError(t, err)
		_, err = n.Handle(InjectFault{Component: model.Transport, Status: model.Degraded})
		require.NoError(t, err)

		attempt, err := n.AttemptRecovery()
		require.ErrorIs(t, err, ErrRecoveryFailed)
		require.NotNil(t, attempt)
		assert.Equal(t, RecoveryFailed, attempt.Outcome)
		assert.False(t, attempt.Transport)
		assert.False(t, attempt.Dissemination)
		assert.False(t, attempt.Voting)
		assert.Equal(t, []model.ComponentID{model.Transport}, attempt.StillFailing)

		assert.Equal(t, model.DegradedState, n.SystemState())
		assert.Len(t, n.Transport().UnhealedPartitions(), 1)
		assert.True(t, n.HasError(model.Transport, model.InjectedFault))
	})

	t.Run("heals partitions after GST", func(t *testing.T) {
		n := newNode(t, 4)
		_, err := n.Handle(InjectPartition{Members: []model.ValidatorID{1}})
		require.NoError(t, err)
		_, err = n.Handle(InjectFault{Component: model.Transport, Status: model.Degraded})
		require.NoError(t, err)

		advance(n, 101)
		attempt, err := n.AttemptRecovery()
		require.NoError(t, err)
		assert.Equal(t, RecoverySucceeded, attempt.Outcome)
		assert.Empty(t, n.Transport().UnhealedPartitions())
	})

	t.Run("partial when dissemination stays overloaded", func(t *testing.T) {
		n := newNode(t, 4)
		_, err := n.Handle(InjectRepairRequests{Count: 9})
		require.NoError(t, err)
		n.DetectFailures()
		_, err = n.Handle(InjectFault{Component: model.Transport, Status: model.Degraded})
		require.NoError(t, err)

		attempt, err := n.AttemptRecovery()
		require.NoError(t, err)
		assert.Equal(t, RecoveryPartial, attempt.Outcome)
		assert.True(t, attempt.Transport)
		assert.False(t, attempt.Dissemination)
		assert.False(t, attempt.Voting)
		assert.Equal(t, []model.ComponentID{model.Dissemination}, attempt.StillFailing)

		assert.Equal(t, model.Healthy, n.ComponentHealth(model.Transport))
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Dissemination))
		assert.False(t, n.HasError(model.Transport, model.InjectedFault))
		assert.True(t, n.HasError(model.Dissemination, model.RepairOverload))
		assert.Equal(t, model.DegradedState, n.SystemState())
	})

	t.Run("critical tags fail verification", func(t *testing.T) {
		n := newNode(t, 4)
		_, err := n.Handle(InjectByzantine{Sender: 3})
		require.Error(t, err)

		attempt, err := n.AttemptRecovery()
		require.NoError(t, err)
		assert.Equal(t, RecoverySucceeded, attempt.Outcome)
		assert.False(t, attempt.Verified)
		assert.Equal(t, []model.ComponentID{model.Transport}, attempt.StillFailing)
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Transport))
		assert.True(t, n.HasError(model.Transport, model.ByzantineBehavior))
		assert.Equal(t, model.DegradedState, n.SystemState())
	})

	t.Run("history is bounded", func(t *testing.T) {
		params := DefaultParameters()
		params.MaxRecoveryLog = 2
		n := newUninitializedNode(t, model.DefaultConfig(4), params)
		require.NoError(t, n.Initialize())
		for i := 0; i < 3; i++ {
			_, err := n.Handle(InjectFault{Component: model.Crypto, Status: model.Slow})
			require.NoError(t, err)
			advance(n, 1)
			_, err = n.AttemptRecovery()
			require.NoError(t, err)
		}
		history := n.RecoveryHistory()
		require.Len(t, history, 2)
		assert.Equal(t, uint64(2), history[0].Tick)
		assert.Equal(t, uint64(3), history[1].Tick)
	})
}
