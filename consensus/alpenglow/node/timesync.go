package node

import (
	"fmt"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// advanceClock moves the authoritative clock forward by one tick.
func (n *Node) advanceClock() {
	n.clock++
	n.synchronizeTime()
	if !n.gstViewSet && n.clock >= n.cfg.GST {
		n.gstView = n.votor.CurrentView
		n.gstViewTick = n.clock
		n.gstViewSet = true
	}
	n.collector.ClockTick(n.clock)
}

// synchronizeTime checks the voting engine's clock for drift, then re-derives
// every sub-state's local time from the authoritative clock. Drift is
// reported, not corrected.
func (n *Node) synchronizeTime() {
	if drift := n.drift(); drift > n.params.MaxDrift {
		n.recordError(model.Voting, model.ClockDrift, model.Degraded,
			fmt.Sprintf("voting clock drifted %d ticks from global clock %d", drift, n.clock))
	}
	n.votor.LocalTime = n.clock * n.params.MillisPerTick
	n.rotor.Clock = n.clock
	n.network.Clock = n.clock
}

// drift is the distance, in ticks, between the voting engine's clock and the global clock.
func (n *Node) drift() uint64 {
	votorTicks := n.votor.LocalTime / n.params.MillisPerTick
	if votorTicks > n.clock {
		return votorTicks - n.clock
	}
	return n.clock - votorTicks
}
