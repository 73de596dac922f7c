package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/utils/unittest"
)

// newUninitializedNode creates validator 0 of a committee configured by cfg.
func newUninitializedNode(t require.TestingT, cfg model.Config, params Parameters, opts ...Option) *Node {
	n, err := New(unittest.Logger(), 0, cfg, params, opts...)
	require.NoError(t, err)
	return n
}

// newNode creates and initializes validator 0 of an n-validator committee.
func newNode(t require.TestingT, validators int, opts ...Option) *Node {
	n := newUninitializedNode(t, unittest.ConfigFixture(validators), DefaultParameters(), opts...)
	require.NoError(t, n.Initialize())
	return n
}

// advance moves the clock forward without delivering messages or running periodic work.
func advance(n *Node, ticks uint64) {
	for i := uint64(0); i < ticks; i++ {
		n.advanceClock()
	}
}

func TestNew(t *testing.T) {
	t.Run("starts initializing and healthy", func(t *testing.T) {
		n := newUninitializedNode(t, unittest.ConfigFixture(4), DefaultParameters())
		assert.Equal(t, model.Initializing, n.SystemState())
		assert.Equal(t, model.AllHealthy(), n.Health())
		assert.Zero(t, n.Clock())
		assert.Empty(t, n.Errors())
		assert.Empty(t, n.Interactions())
	})
	t.Run("validator outside committee", func(t *testing.T) {
		_, err := New(unittest.Logger(), 4, unittest.ConfigFixture(4), DefaultParameters())
		require.Error(t, err)
	})
	t.Run("invalid configuration", func(t *testing.T) {
		cfg := unittest.ConfigFixture(4)
		cfg.Stakes = []uint64{1, 1}
		_, err := New(unittest.Logger(), 0, cfg, DefaultParameters())
		require.Error(t, err)
	})
	t.Run("invalid parameters", func(t *testing.T) {
		params := DefaultParameters()
		params.QueueFailed = params.QueueCongested
		_, err := New(unittest.Logger(), 0, unittest.ConfigFixture(4), params)
		require.Error(t, err)
	})
}

func TestInitialize(t *testing.T) {
	n := newUninitializedNode(t, unittest.ConfigFixture(4), DefaultParameters())
	require.NoError(t, n.Initialize())
	assert.Equal(t, model.Running, n.SystemState())

	err := n.Initialize()
	require.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.Equal(t, model.Running, n.SystemState())
}

func TestHealthStateMachine(t *testing.T) {
	n := newNode(t, 4)

	require.NoError(t, n.UpdateHealth(model.Voting, model.Failed))
	assert.Equal(t, model.Halted, n.SystemState())

	require.NoError(t, n.UpdateHealth(model.Voting, model.Degraded))
	assert.Equal(t, model.DegradedState, n.SystemState())

	require.NoError(t, n.UpdateHealth(model.Voting, model.Healthy))
	assert.Equal(t, model.Running, n.SystemState())

	t.Run("partitioned is transport only", func(t *testing.T) {
		require.Error(t, n.UpdateHealth(model.Voting, model.Partitioned))
		require.NoError(t, n.UpdateHealth(model.Transport, model.Partitioned))
		assert.Equal(t, model.DegradedState, n.SystemState())
		require.NoError(t, n.UpdateHealth(model.Transport, model.Healthy))
	})
	t.Run("unknown component", func(t *testing.T) {
		require.Error(t, n.UpdateHealth(model.ComponentID(7), model.Slow))
	})
	t.Run("failed crypto takes voting down", func(t *testing.T) {
		require.NoError(t, n.UpdateHealth(model.Crypto, model.Failed))
		assert.Equal(t, model.Failed, n.ComponentHealth(model.Voting))
		assert.Equal(t, model.Halted, n.SystemState())
	})
	t.Run("halted clears once nothing is failed", func(t *testing.T) {
		require.NoError(t, n.UpdateHealth(model.Crypto, model.Healthy))
		require.NoError(t, n.UpdateHealth(model.Voting, model.Healthy))
		assert.Equal(t, model.Running, n.SystemState())
	})
}

func TestUpdateHealthToHealthy(t *testing.T) {
	t.Run("drops recoverable errors", func(t *testing.T) {
		n := newNode(t, 4)
		_, err := n.Handle(InjectFault{Component: model.Voting, Status: model.Degraded})
		require.NoError(t, err)
		require.True(t, n.HasError(model.Voting, model.InjectedFault))

		require.NoError(t, n.UpdateHealth(model.Voting, model.Healthy))
		assert.False(t, n.HasError(model.Voting, model.InjectedFault))
		assert.Equal(t, model.Running, n.SystemState())
		require.NoError(t, n.Validate())
	})

	t.Run("critical errors keep the component degraded", func(t *testing.T) {
		n := newNode(t, 4)
		_, err := n.Handle(InjectByzantine{Sender: 3})
		require.Error(t, err)

		require.NoError(t, n.UpdateHealth(model.Transport, model.Healthy))
		assert.True(t, n.HasError(model.Transport, model.ByzantineBehavior))
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Transport))
		assert.Equal(t, model.DegradedState, n.SystemState())
	})

	t.Run("failure ratio keeps the node out of running", func(t *testing.T) {
		n := newNode(t, 4)
		for i := 0; i < 10; i++ {
			msg := unittest.MessageFixture(1, 0, model.VoteMessage, 0)
			msg.Signature = nil
			require.Error(t, n.ProcessTransportMessage(msg))
		}
		require.Equal(t, model.DegradedState, n.SystemState())

		require.NoError(t, n.UpdateHealth(model.Crypto, model.Healthy))
		assert.False(t, n.HasError(model.Crypto, model.MissingSignature))
		assert.True(t, n.HasError(model.Voting, model.HighFailureRate))
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Voting))
		assert.Equal(t, model.DegradedState, n.SystemState())
		require.NoError(t, n.Validate())
	})
}

// TestSystemStateFollowsHealth checks that after every health update the
// system state is the documented function of the health tuple.
func TestSystemStateFollowsHealth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := newNode(t, 4)
		updates := rapid.IntRange(1, 30).Draw(t, "updates")
		for i := 0; i < updates; i++ {
			c := model.Components[rapid.IntRange(0, model.NumComponents-1).Draw(t, "component")]
			status := model.HealthStatus(rapid.IntRange(int(model.Healthy), int(model.Failed)).Draw(t, "status"))
			err := n.UpdateHealth(c, status)
			if !status.AllowedFor(c) {
				require.Error(t, err)
				continue
			}
			require.NoError(t, err)
			require.Equal(t, model.SystemStateOf(n.Health()), n.SystemState())
			if n.ComponentHealth(model.Crypto) == model.Failed {
				require.Equal(t, model.Failed, n.ComponentHealth(model.Voting))
			}
		}
	})
}

func TestHandleBeforeInitialize(t *testing.T) {
	n := newUninitializedNode(t, unittest.ConfigFixture(4), DefaultParameters())

	_, err := n.Handle(Tick{})
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = n.Handle(BlockProposal{Block: unittest.BlockFixture(1, 1, 1)})
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, n.Tick(), ErrNotInitialized)

	// fault injection is accepted, but the state only follows once initialized
	_, err = n.Handle(InjectFault{Component: model.Dissemination, Status: model.Congested})
	require.NoError(t, err)
	assert.Equal(t, model.Initializing, n.SystemState())
	assert.True(t, n.HasError(model.Dissemination, model.InjectedFault))

	_, err = n.Handle(RequestFormalExport{})
	require.NoError(t, err)

	_, err = n.Handle(Initialize{})
	require.NoError(t, err)
	assert.Equal(t, model.DegradedState, n.SystemState())
}

func TestHandleUnknownMessage(t *testing.T) {
	n := newNode(t, 4)
	_, err := n.Handle("not a message")
	require.ErrorIs(t, err, ErrUnknownMessage)
}

func TestInjectClockSkew(t *testing.T) {
	n := newNode(t, 4)
	advance(n, 20)

	// within the drift bound nothing is reported
	_, err := n.Handle(InjectClockSkew{Millis: 30})
	require.NoError(t, err)
	assert.False(t, n.HasError(model.Voting, model.ClockDrift))

	_, err = n.Handle(InjectClockSkew{Millis: 100})
	require.NoError(t, err)
	assert.True(t, n.HasError(model.Voting, model.ClockDrift))
	assert.Equal(t, model.Degraded, n.ComponentHealth(model.Voting))
	assert.Equal(t, model.DegradedState, n.SystemState())

	// drift is reported, the voting clock is still re-derived from the global clock
	assert.Equal(t, n.Clock()*10, n.Voting().LocalTime)

	_, err = n.Handle(InjectClockSkew{Millis: -1_000_000})
	require.NoError(t, err)
	assert.Equal(t, n.Clock()*10, n.Voting().LocalTime)
}

func TestUpdateBenchmark(t *testing.T) {
	n := newNode(t, 4)
	advance(n, 30)

	_, err := n.Handle(UpdateBenchmark{Restart: true})
	require.NoError(t, err)
	advance(n, 10)
	report := n.Report()
	require.NotNil(t, report.BenchmarkStart)
	assert.Equal(t, uint64(30), *report.BenchmarkStart)
	assert.Equal(t, uint64(10), report.ElapsedTicks)

	params := DefaultParameters()
	params.DetectionInterval = 25
	_, err = n.Handle(UpdateBenchmark{Parameters: &params})
	require.NoError(t, err)
	assert.Equal(t, uint64(25), n.Parameters().DetectionInterval)

	params.ErrorsFailed = 0
	_, err = n.Handle(UpdateBenchmark{Parameters: &params})
	require.Error(t, err)
	assert.Equal(t, uint64(25), n.Parameters().DetectionInterval)
}
