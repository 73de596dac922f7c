package node

import (
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/consensus/alpenglow/rotor"
)

// ProcessTransportMessage validates an inbound transport message and routes
// it to the component it is meant for. Byzantine-typed messages are rejected
// before any other check. Counters are updated whatever the outcome.
func (n *Node) ProcessTransportMessage(msg model.Message) (err error) {
	defer func() {
		n.perf.MessagesProcessed++
		n.collector.MessageProcessed(msg.Type, msg.Size(), err == nil)
		if err != nil {
			n.network.Drop(msg)
			return
		}
		n.network.RecordDelivery(msg)
	}()

	if msg.Type == model.ByzantineMessage {
		if n.cfg.IsValidator(msg.Sender) {
			n.network.MarkByzantine(msg.Sender)
		}
		return n.fail(model.Transport, model.ByzantineBehavior, model.Degraded,
			"byzantine message from validator %d", msg.Sender)
	}
	if !n.network.IsByzantine(msg.Sender) && !msg.Signed() {
		return n.fail(model.Crypto, model.MissingSignature, model.Degraded,
			"unsigned %s message from validator %d", msg.Type, msg.Sender)
	}
	if n.clock > n.cfg.GST && msg.Timestamp+n.cfg.Delta < n.clock {
		return n.fail(model.Transport, model.DeliveryBoundExceeded, model.Slow,
			"%s message sent at %d delivered at %d exceeds delta %d", msg.Type, msg.Timestamp, n.clock, n.cfg.Delta)
	}
	if !n.cfg.IsValidator(msg.Sender) {
		return n.fail(model.Transport, model.InvalidSender, model.Degraded,
			"sender %d outside committee of %d", msg.Sender, n.cfg.Validators)
	}
	if !n.allow(msg.Sender) {
		return n.fail(model.Transport, model.RateLimited, model.Congested,
			"validator %d exceeded %v messages per tick", msg.Sender, n.params.SenderRateLimit)
	}

	switch msg.Type {
	case model.VoteMessage:
		return n.routeVote(msg)
	case model.BlockMessage:
		return n.routeBlock(msg)
	case model.CertificateMessage:
		if len(msg.Payload) == 0 {
			return n.fail(model.Voting, model.MalformedPayload, model.Degraded,
				"empty certificate message from validator %d", msg.Sender)
		}
		n.logInteraction(model.Transport, model.Voting, model.MessageDelivery, messageMetadata(msg))
		n.logInteraction(model.Transport, model.Dissemination, model.MessageDelivery, messageMetadata(msg))
		return nil
	case model.RepairRequestMessage:
		return n.routeRepairRequest(msg)
	case model.RepairResponseMessage:
		if len(msg.Payload) == 0 {
			return n.fail(model.Dissemination, model.MalformedPayload, model.Degraded,
				"empty repair response from validator %d", msg.Sender)
		}
		n.logInteraction(model.Transport, model.Dissemination, model.MessageDelivery, messageMetadata(msg))
		return nil
	case model.HeartbeatMessage:
		if msg.Timestamp+n.params.HeartbeatWindow < n.clock {
			return n.fail(model.Transport, model.StaleHeartbeat, model.Slow,
				"heartbeat from validator %d is %d ticks old", msg.Sender, n.clock-msg.Timestamp)
		}
		n.logInteraction(model.Transport, model.Voting, model.MessageDelivery, messageMetadata(msg))
		return nil
	case model.ShredMessage, model.RepairMessage:
		n.logInteraction(model.Transport, model.Dissemination, model.MessageDelivery, messageMetadata(msg))
		return nil
	default:
		return n.fail(model.Transport, model.MalformedPayload, model.Degraded,
			"unknown message type %d from validator %d", int(msg.Type), msg.Sender)
	}
}

func (n *Node) routeVote(msg model.Message) error {
	if len(msg.Payload) == 0 {
		return n.fail(model.Voting, model.MalformedPayload, model.Degraded,
			"empty vote from validator %d", msg.Sender)
	}
	view := n.votor.CurrentView
	count, _ := n.voteTally.Get(view)
	count++
	n.voteTally.Add(view, count)
	if limit := n.params.VoteSpamFactor * n.cfg.Validators; count > limit {
		return n.fail(model.Voting, model.VoteSpam, model.Degraded,
			"%d votes in view %d exceed %d", count, view, limit)
	}
	n.logInteraction(model.Transport, model.Voting, model.VoteReceived, messageMetadata(msg))
	return nil
}

func (n *Node) routeBlock(msg model.Message) error {
	size := msg.Size()
	if size == 0 {
		return n.fail(model.Dissemination, model.MalformedPayload, model.Degraded,
			"empty block from validator %d", msg.Sender)
	}
	if size > n.params.MaxBlockMessage {
		return n.fail(model.Dissemination, model.OversizedBlock, model.Degraded,
			"block message of %d bytes from validator %d exceeds %d", size, msg.Sender, n.params.MaxBlockMessage)
	}
	if !n.rotor.CheckBandwidthLimit(msg.Sender, size) {
		return n.fail(model.Dissemination, model.BandwidthExceeded, model.Congested,
			"validator %d cannot send %d more bytes", msg.Sender, size)
	}
	n.logInteraction(model.Transport, model.Dissemination, model.MessageDelivery, messageMetadata(msg))
	return nil
}

func (n *Node) routeRepairRequest(msg model.Message) error {
	if len(msg.Payload) == 0 {
		return n.fail(model.Dissemination, model.MalformedPayload, model.Degraded,
			"empty repair request from validator %d", msg.Sender)
	}
	if backlog := len(n.rotor.RepairRequests); backlog >= n.params.RepairBacklog {
		return n.fail(model.Dissemination, model.RepairBacklog, model.Congested,
			"repair backlog of %d requests is full", backlog)
	}
	n.rotor.RequestRepair(rotor.RepairRequest{
		Requester:   msg.Sender,
		RequestedAt: n.clock,
	})
	n.logInteraction(model.Transport, model.Dissemination, model.RepairIssued, messageMetadata(msg))
	return nil
}

// allow applies the per-sender rate limit. The limiter runs on logical time:
// one tick corresponds to MillisPerTick milliseconds.
func (n *Node) allow(sender model.ValidatorID) bool {
	if n.params.SenderRateLimit <= 0 {
		return true
	}
	limiter, ok := n.limiters[sender]
	if !ok {
		perSecond := n.params.SenderRateLimit * 1000 / float64(n.params.MillisPerTick)
		burst := n.params.SenderBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		n.limiters[sender] = limiter
	}
	return limiter.AllowN(n.logicalTime(), 1)
}

func (n *Node) logicalTime() time.Time {
	return time.Unix(0, 0).Add(time.Duration(n.clock*n.params.MillisPerTick) * time.Millisecond)
}

func messageMetadata(msg model.Message) map[string]string {
	return map[string]string{
		"type":   msg.Type.String(),
		"sender": strconv.FormatUint(uint64(msg.Sender), 10),
	}
}
