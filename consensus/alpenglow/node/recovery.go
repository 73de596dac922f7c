package node

import (
	"fmt"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// recovery outcomes
const (
	RecoverySucceeded = "success"
	RecoveryPartial   = "partial"
	RecoveryFailed    = "failed"
)

// RecoveryAttempt records one run of the recovery orchestrator.
type RecoveryAttempt struct {
	Tick          uint64              `json:"tick"`
	PriorState    model.SystemState   `json:"priorState"`
	Transport     bool                `json:"transport"`
	Dissemination bool                `json:"dissemination"`
	Voting        bool                `json:"voting"`
	StillFailing  []model.ComponentID `json:"stillFailing"`
	Verified      bool                `json:"verified"`
	Outcome       string              `json:"outcome"`
}

// AttemptRecovery runs the staged recovery when the node is Degraded or
// Halted and is a no-op otherwise. Transport is recovered first,
// dissemination only once transport is healthy, and voting only once both
// are. ErrRecoveryFailed is returned when no stage succeeds, in which case
// the prior system state is restored.
func (n *Node) AttemptRecovery() (*RecoveryAttempt, error) {
	if n.state != model.DegradedState && n.state != model.Halted {
		return nil, nil
	}

	attempt := RecoveryAttempt{
		Tick:       n.clock,
		PriorState: n.state,
	}
	n.setState(model.Recovering)

	attempt.Transport = n.recoverTransport()
	if attempt.Transport {
		attempt.Dissemination = n.recoverDissemination()
	}
	if attempt.Transport && attempt.Dissemination {
		attempt.Voting = n.recoverVoting()
	}

	var err error
	switch {
	case attempt.Transport && attempt.Dissemination && attempt.Voting:
		attempt.Outcome = RecoverySucceeded
		for _, c := range model.Components {
			n.setHealth(c, model.Healthy)
		}
		n.errors.RemoveRecoverable(model.Components[:]...)
		n.perf.FailedOperations = 0
	case attempt.Transport:
		attempt.Outcome = RecoveryPartial
		recovered := []model.ComponentID{model.Transport}
		if attempt.Dissemination {
			recovered = append(recovered, model.Dissemination)
		}
		for _, c := range recovered {
			n.setHealth(c, model.Healthy)
		}
		n.errors.RemoveRecoverable(recovered...)
	default:
		attempt.Outcome = RecoveryFailed
		err = fmt.Errorf("no component recovered at tick %d: %w", n.clock, ErrRecoveryFailed)
	}

	if err == nil {
		attempt.Verified = n.verifyRecovery()
		n.settleState()
	} else {
		n.setState(attempt.PriorState)
	}
	attempt.StillFailing = append([]model.ComponentID{}, n.health.Unhealthy()...)

	n.recordRecovery(attempt)
	return &attempt, err
}

// recoverTransport heals partitions once past GST and sheds backlog.
func (n *Node) recoverTransport() bool {
	if n.clock > n.cfg.GST {
		if healed := n.network.HealAll(); healed > 0 {
			n.log.Info().Int("partitions", healed).Msg("healed network partitions")
		}
	}
	if len(n.network.Queue) > n.params.QueueCongested {
		var cutoff uint64
		if n.clock > n.params.RecoveryQueueWindow {
			cutoff = n.clock - n.params.RecoveryQueueWindow
		}
		trimmed := n.network.TrimQueue(cutoff)
		n.log.Info().Int("messages", trimmed).Msg("trimmed message queue")
	}
	if n.network.DroppedMessages > n.params.MaxDroppedMessages {
		n.network.DroppedMessages = 0
	}
	return len(n.network.UnhealedPartitions()) == 0 && len(n.network.Queue) <= n.params.QueueCongested
}

// recoverDissemination expires stale repair requests and relieves bandwidth pressure.
func (n *Node) recoverDissemination() bool {
	n.rotor.TrimRepairs(n.cfg.RetryTimeout)
	limit := n.params.BandwidthRecovery * float64(n.rotor.Capacity())
	if float64(n.rotor.TotalBandwidthUsage()) > limit {
		n.rotor.HalveBandwidth()
	}
	return len(n.rotor.RepairRequests) <= n.params.RepairDegradedFactor*n.cfg.Validators &&
		float64(n.rotor.TotalBandwidthUsage()) <= limit
}

// recoverVoting changes nothing; it checks whether voting is stable.
func (n *Node) recoverVoting() bool {
	if rate, ok := n.viewRate(); ok && rate >= n.params.ViewRateDegraded {
		return false
	}
	if !n.hasProgress() {
		return false
	}
	if r, ok := n.votor.Rounds[n.votor.CurrentView]; ok && r.VoteCount() >= n.params.VoteSpamFactor*n.cfg.Validators {
		return false
	}
	return true
}

// hasProgress is false once the node is well past GST without a finalized block.
func (n *Node) hasProgress() bool {
	return n.ticksSinceGST() <= n.params.ProgressGrace || len(n.votor.Finalized) > 0
}

// verifyRecovery re-checks the restored health. Components still named by a
// critical tag, and voting when there is no progress, are set back to Degraded.
func (n *Node) verifyRecovery() bool {
	verified := true
	for _, c := range model.Components {
		if n.health[c] == model.Failed {
			verified = false
		}
	}
	for _, tag := range n.errors.Critical() {
		verified = false
		n.degrade(tag.Component, model.Degraded)
	}
	if !n.hasProgress() {
		verified = false
		n.degrade(model.Voting, model.Degraded)
	}
	return verified
}

func (n *Node) recordRecovery(attempt RecoveryAttempt) {
	n.recoveries = append(n.recoveries, attempt)
	if len(n.recoveries) > n.params.MaxRecoveryLog {
		n.recoveries = append([]RecoveryAttempt{}, n.recoveries[len(n.recoveries)-n.params.MaxRecoveryLog:]...)
	}
	n.collector.RecoveryAttempted(attempt.Outcome)

	still := make([]string, 0, len(attempt.StillFailing))
	for _, c := range attempt.StillFailing {
		still = append(still, c.String())
	}
	event := n.log.Info()
	if attempt.Outcome != RecoverySucceeded {
		event = n.log.Warn()
	}
	event.
		Str("outcome", attempt.Outcome).
		Str("prior_state", attempt.PriorState.String()).
		Bool("transport", attempt.Transport).
		Bool("dissemination", attempt.Dissemination).
		Bool("voting", attempt.Voting).
		Bool("verified", attempt.Verified).
		Strs("still_failing", still).
		Msg("recovery attempted")
}
