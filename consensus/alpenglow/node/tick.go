package node

import (
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Tick advances the clock by one, delivers queued transport messages and
// runs the periodic work that falls due on the new tick.
func (n *Node) Tick() error {
	if n.state == model.Initializing {
		return ErrNotInitialized
	}
	n.advanceClock()

	for _, msg := range n.network.Take(n.params.DeliveryBudget) {
		err := n.ProcessTransportMessage(msg)
		if err != nil {
			n.log.Debug().Err(err).Msg("dropped transport message")
		}
	}
	n.collector.InboundQueueLength(len(n.network.Queue))

	if n.clock%n.params.MetricsInterval == 0 {
		n.refreshMetrics()
	}
	if n.clock%n.params.DetectionInterval == 0 {
		n.DetectFailures()
	}
	if n.clock%n.params.RecoveryInterval == 0 && n.state == model.DegradedState {
		_, err := n.AttemptRecovery()
		if err != nil {
			n.log.Warn().Err(err).Msg("scheduled recovery failed")
		}
	}
	if n.clock > n.cfg.GST && n.clock%n.params.AuditInterval == 0 {
		n.auditProgress()
	}
	if n.clock%n.params.PruneInterval == 0 {
		n.prune()
	}
	return nil
}

type subsystemCheck struct {
	component model.ComponentID
	check     func() error
}

// auditProgress checks that the finalized chain grew since the previous audit
// and runs the sub-states' own safety, liveness and resilience checks.
func (n *Node) auditProgress() {
	finalized := len(n.votor.Finalized)
	if finalized <= n.lastAuditFinalized {
		n.recordError(model.Voting, model.NoProgress, model.Degraded,
			"finalized chain did not grow since the previous audit")
	}
	n.lastAuditFinalized = finalized

	byzantine := n.network.ByzantineNodes()
	safety := []subsystemCheck{
		{model.Voting, n.votor.CheckSafety},
		{model.Dissemination, n.rotor.CheckSafety},
		{model.Transport, n.network.CheckSafety},
	}
	for _, s := range safety {
		if err := s.check(); err != nil {
			n.recordError(s.component, model.SafetyViolation, model.Failed, err.Error())
		}
	}

	liveness := []subsystemCheck{
		{model.Voting, func() error { return n.votor.CheckLiveness(n.clock, n.cfg.GST, n.params.LivenessTimeout) }},
		{model.Dissemination, func() error { return n.rotor.CheckLiveness(n.cfg.GST, n.params.LivenessTimeout) }},
		{model.Transport, func() error { return n.network.CheckLiveness(n.params.LivenessTimeout) }},
	}
	for _, l := range liveness {
		if err := l.check(); err != nil {
			n.recordError(l.component, model.LivenessViolation, model.Degraded, err.Error())
		}
	}

	resilience := []subsystemCheck{
		{model.Voting, func() error { return n.votor.CheckByzantineResilience(byzantine) }},
		{model.Dissemination, func() error { return n.rotor.CheckByzantineResilience(byzantine) }},
		{model.Transport, n.network.CheckByzantineResilience},
	}
	for _, r := range resilience {
		if err := r.check(); err != nil {
			n.recordError(r.component, model.ResilienceViolation, model.Degraded, err.Error())
		}
	}
}

// prune drops interactions and error tags older than the interaction window.
func (n *Node) prune() {
	var cutoff uint64
	if n.clock > n.params.InteractionWindow {
		cutoff = n.clock - n.params.InteractionWindow
	}
	interactions := n.interactions.PruneBefore(cutoff)
	tags := n.errors.PruneBefore(cutoff)
	if interactions > 0 || tags > 0 {
		n.log.Debug().
			Int("interactions", interactions).
			Int("errors", tags).
			Uint64("cutoff", cutoff).
			Msg("pruned integration logs")
	}
}
