package node

import (
	"fmt"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Initialize moves the node from Initializing to the state its health implies.
func (n *Node) Initialize() error {
	if n.state != model.Initializing {
		return fmt.Errorf("cannot initialize in state %s: %w", n.state, ErrAlreadyInitialized)
	}
	n.synchronizeTime()
	n.settleState()
	n.log.Info().
		Int("validators", n.cfg.Validators).
		Uint64("gst", n.cfg.GST).
		Uint64("delta", n.cfg.Delta).
		Msg("node initialized")
	return nil
}

// UpdateHealth sets the health of one component and recomputes the system
// state. Partitioned is only valid for the transport component. A component
// set back to Healthy drops its recoverable errors; while critical errors
// remain it stays Degraded.
func (n *Node) UpdateHealth(c model.ComponentID, status model.HealthStatus) error {
	if !c.Valid() {
		return fmt.Errorf("unknown component %d", int(c))
	}
	if !status.AllowedFor(c) {
		return fmt.Errorf("health %s is not allowed for component %s", status, c)
	}
	n.setHealth(c, status)
	if status == model.Healthy {
		n.errors.RemoveRecoverable(c)
		if n.errors.HasCritical(c) {
			n.log.Warn().
				Str("health_component", c.String()).
				Msg("critical errors remain, component kept degraded")
			n.setHealth(c, model.Degraded)
		}
	}
	n.recomputeSystemState()
	return nil
}

// setHealth assigns a status. A failed crypto component takes voting down with it.
func (n *Node) setHealth(c model.ComponentID, status model.HealthStatus) {
	if n.health[c] != status {
		n.log.Debug().
			Str("health_component", c.String()).
			Str("from", n.health[c].String()).
			Str("to", status.String()).
			Msg("component health changed")
	}
	n.health[c] = status
	n.collector.ComponentHealth(c, status)
	if c == model.Crypto && status == model.Failed && n.health[model.Voting] != model.Failed {
		n.setHealth(model.Voting, model.Failed)
	}
}

// degrade worsens the health of c to status; it never improves it.
func (n *Node) degrade(c model.ComponentID, status model.HealthStatus) {
	if !status.Worse(n.health[c]) {
		return
	}
	n.setHealth(c, status)
	n.recomputeSystemState()
}

// recomputeSystemState derives the system state from the health map. The
// state is left alone before initialization and while recovery is running.
func (n *Node) recomputeSystemState() {
	if n.state == model.Initializing || n.state == model.Recovering {
		return
	}
	n.settleState()
}

// settleState sets the system state implied by the health map. A node whose
// failure ratio is above the limit is not let back into Running: the ratio is
// charged to voting first.
func (n *Node) settleState() {
	state := model.SystemStateOf(n.health)
	if state == model.Running && n.perf.MessagesProcessed > 0 {
		if ratio := n.perf.FailureRatio(); ratio > n.params.FailureRatio {
			n.recordError(model.Voting, model.HighFailureRate, model.Degraded,
				fmt.Sprintf("%d of %d operations failed", n.perf.FailedOperations, n.perf.MessagesProcessed))
			state = model.SystemStateOf(n.health)
		}
	}
	n.setState(state)
}

func (n *Node) setState(state model.SystemState) {
	if state == n.state {
		return
	}
	n.log.Info().
		Str("from", n.state.String()).
		Str("to", state.String()).
		Uint64("clock", n.clock).
		Msg("system state changed")
	n.state = state
	n.collector.SystemState(state)
}
