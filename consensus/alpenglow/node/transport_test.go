package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/utils/unittest"
)

func requireViolation(t *testing.T, err error, category model.ErrorCategory) {
	t.Helper()
	violation, ok := AsProtocolViolation(err)
	require.True(t, ok, "expected protocol violation, got %v", err)
	require.Equal(t, category, violation.Tag.Category)
}

func TestProcessTransportMessage(t *testing.T) {
	t.Run("delivered heartbeat", func(t *testing.T) {
		n := newNode(t, 4)
		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.HeartbeatMessage, 0)))

		assert.Equal(t, uint64(1), n.Transport().DeliveredMessages)
		assert.Zero(t, n.Transport().DroppedMessages)
		assert.Equal(t, uint64(1), n.Performance().MessagesProcessed)
		require.Len(t, n.Interactions(), 1)
		assert.Equal(t, "transport->voting", n.Interactions()[0].Route())
	})

	t.Run("missing signature", func(t *testing.T) {
		n := newNode(t, 4)
		msg := unittest.MessageFixture(1, 0, model.VoteMessage, 0)
		msg.Signature = nil

		requireViolation(t, n.ProcessTransportMessage(msg), model.MissingSignature)
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Crypto))
		assert.Equal(t, uint64(1), n.Transport().DroppedMessages)
		assert.Equal(t, uint64(1), n.Performance().FailedOperations)
	})

	t.Run("sender outside committee", func(t *testing.T) {
		n := newNode(t, 4)
		requireViolation(t, n.ProcessTransportMessage(unittest.MessageFixture(9, 0, model.VoteMessage, 0)), model.InvalidSender)
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Transport))
	})

	t.Run("delivery bound only enforced after GST", func(t *testing.T) {
		n := newNode(t, 4)
		advance(n, 50)
		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.HeartbeatMessage, 10)))

		advance(n, 60)
		requireViolation(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.HeartbeatMessage, 100)), model.DeliveryBoundExceeded)
		assert.Equal(t, model.Slow, n.ComponentHealth(model.Transport))
		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.HeartbeatMessage, 105)))
	})

	t.Run("vote spam", func(t *testing.T) {
		n := newNode(t, 4)
		for i := 0; i < 12; i++ {
			require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(model.ValidatorID(i%4), 0, model.VoteMessage, 0)))
		}
		requireViolation(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.VoteMessage, 0)), model.VoteSpam)
	})

	t.Run("empty vote", func(t *testing.T) {
		n := newNode(t, 4)
		msg := unittest.MessageFixture(1, 0, model.VoteMessage, 0)
		msg.Payload = nil
		requireViolation(t, n.ProcessTransportMessage(msg), model.MalformedPayload)
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Voting))
	})

	t.Run("block checks", func(t *testing.T) {
		cfg := unittest.ConfigFixture(4)
		cfg.BandwidthLimit = 12
		params := DefaultParameters()
		params.MaxBlockMessage = 10
		n := newUninitializedNode(t, cfg, params)
		require.NoError(t, n.Initialize())

		msg := unittest.MessageFixture(1, 0, model.BlockMessage, 0)
		msg.Payload = []byte("12345678")
		require.NoError(t, n.ProcessTransportMessage(msg))

		msg.Payload = []byte("12345678901")
		requireViolation(t, n.ProcessTransportMessage(msg), model.OversizedBlock)

		msg.Payload = nil
		requireViolation(t, n.ProcessTransportMessage(msg), model.MalformedPayload)

		msg.Payload = []byte("1234567890")
		n.Dissemination().BandwidthUsage[1] = 5
		requireViolation(t, n.ProcessTransportMessage(msg), model.BandwidthExceeded)
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Dissemination))
	})

	t.Run("certificate routed to voting and dissemination", func(t *testing.T) {
		n := newNode(t, 4)
		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(2, 0, model.CertificateMessage, 0)))
		routes := n.interactions.Routes()
		assert.Equal(t, uint64(1), routes["transport->voting"])
		assert.Equal(t, uint64(1), routes["transport->dissemination"])
	})

	t.Run("repair backlog", func(t *testing.T) {
		n := newNode(t, 4)
		for i := 0; i < 50; i++ {
			require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(2, 0, model.RepairRequestMessage, 0)))
		}
		assert.Len(t, n.Dissemination().RepairRequests, 50)
		requireViolation(t, n.ProcessTransportMessage(unittest.MessageFixture(2, 0, model.RepairRequestMessage, 0)), model.RepairBacklog)
		assert.Equal(t, model.Congested, n.ComponentHealth(model.Dissemination))
	})

	t.Run("stale heartbeat", func(t *testing.T) {
		cfg := unittest.ConfigFixture(4)
		cfg.GST = 1000
		n := newUninitializedNode(t, cfg, DefaultParameters())
		require.NoError(t, n.Initialize())
		advance(n, 150)

		requireViolation(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.HeartbeatMessage, 10)), model.StaleHeartbeat)
		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.HeartbeatMessage, 60)))
	})

	t.Run("byzantine message", func(t *testing.T) {
		n := newNode(t, 4)
		_, err := n.Handle(InjectByzantine{Sender: 3, Payload: []byte("equivocation")})
		requireViolation(t, err, model.ByzantineBehavior)
		assert.True(t, n.Transport().IsByzantine(3))
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Transport))

		// even an empty byzantine message is tagged
		_, err = n.Handle(InjectByzantine{Sender: 2})
		requireViolation(t, err, model.ByzantineBehavior)
		assert.Equal(t, []model.ValidatorID{2, 3}, n.Transport().ByzantineNodes())
	})

	t.Run("stale byzantine message is still tagged", func(t *testing.T) {
		n := newNode(t, 4)
		advance(n, n.Config().GST+20)

		msg := unittest.MessageFixture(1, 0, model.ByzantineMessage, 1)
		requireViolation(t, n.ProcessTransportMessage(msg), model.ByzantineBehavior)
		assert.True(t, n.HasError(model.Transport, model.ByzantineBehavior))
		assert.False(t, n.HasError(model.Transport, model.DeliveryBoundExceeded))
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Transport))
		assert.True(t, n.Transport().IsByzantine(1))
	})

	t.Run("byzantine message from outside the committee", func(t *testing.T) {
		n := newNode(t, 4)
		requireViolation(t, n.ProcessTransportMessage(unittest.MessageFixture(9, 0, model.ByzantineMessage, 0)), model.ByzantineBehavior)
		assert.Empty(t, n.Transport().ByzantineNodes())
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Transport))
	})

	t.Run("shreds are logged only", func(t *testing.T) {
		n := newNode(t, 4)
		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.ShredMessage, 0)))
		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.RepairMessage, 0)))
		assert.Len(t, n.Interactions(), 2)
	})

	t.Run("unknown type", func(t *testing.T) {
		n := newNode(t, 4)
		requireViolation(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.MessageType(42), 0)), model.MalformedPayload)
		assert.Equal(t, model.Degraded, n.ComponentHealth(model.Transport))
	})

	t.Run("rate limit", func(t *testing.T) {
		params := DefaultParameters()
		params.SenderRateLimit = 1
		params.SenderBurst = 2
		n := newUninitializedNode(t, unittest.ConfigFixture(4), params)
		require.NoError(t, n.Initialize())

		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.HeartbeatMessage, 0)))
		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.HeartbeatMessage, 0)))
		requireViolation(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.HeartbeatMessage, 0)), model.RateLimited)
		assert.Equal(t, model.Congested, n.ComponentHealth(model.Transport))
		// other senders are limited independently
		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(2, 0, model.HeartbeatMessage, 0)))

		// the budget refills with logical time
		advance(n, 1)
		require.NoError(t, n.ProcessTransportMessage(unittest.MessageFixture(1, 0, model.HeartbeatMessage, 1)))
	})
}

func TestQueuedMessagesDeliveredOnTick(t *testing.T) {
	n := newNode(t, 4)
	_, err := n.Handle(SendMessage{Message: unittest.MessageFixture(1, 0, model.HeartbeatMessage, 0)})
	require.NoError(t, err)
	assert.Zero(t, n.Transport().DeliveredMessages)

	_, err = n.Handle(Tick{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n.Transport().DeliveredMessages)
	assert.Empty(t, n.Transport().Queue)
}

func TestPartitionHoldsMessages(t *testing.T) {
	n := newNode(t, 4)
	id, err := n.Handle(InjectPartition{Members: []model.ValidatorID{1}})
	require.NoError(t, err)

	_, err = n.Handle(SendMessage{Message: unittest.MessageFixture(1, 0, model.HeartbeatMessage, 0)})
	require.NoError(t, err)
	_, err = n.Handle(Tick{})
	require.NoError(t, err)
	assert.Zero(t, n.Transport().DeliveredMessages)
	assert.Equal(t, 1, n.Transport().BufferedCount())

	_, err = n.Handle(HealPartition{ID: id.(uint64)})
	require.NoError(t, err)
	_, err = n.Handle(Tick{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n.Transport().DeliveredMessages)

	_, err = n.Handle(HealPartition{ID: 99})
	require.Error(t, err)
}
