package node

import (
	"fmt"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Failure identifies a condition raised by the failure detector.
type Failure struct {
	Component model.ComponentID   `json:"component"`
	Category  model.ErrorCategory `json:"category"`
	Status    model.HealthStatus  `json:"status"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s:%s", f.Component, f.Category)
}

// detection accumulates the failures raised during one detector pass.
type detection struct {
	n        *Node
	failures []Failure
}

func (d *detection) raise(component model.ComponentID, category model.ErrorCategory, status model.HealthStatus, format string, args ...interface{}) {
	d.n.recordError(component, category, status, fmt.Sprintf(format, args...))
	d.failures = append(d.failures, Failure{
		Component: component,
		Category:  category,
		Status:    status,
	})
}

// DetectFailures scans the sub-states for failure conditions. Every
// condition found worsens the owning component's health and is tagged.
// The returned list is for observation only.
func (n *Node) DetectFailures() []Failure {
	d := &detection{n: n}
	n.detectVoting(d)
	n.detectDissemination(d)
	n.detectTransport(d)
	n.detectSystem(d)

	if len(d.failures) > 0 {
		n.log.Warn().
			Int("failures", len(d.failures)).
			Str("state", n.state.String()).
			Msg("failure detection raised conditions")
	}
	n.collector.FailuresDetected(len(d.failures))
	return d.failures
}

// viewRate is the number of view changes per tick since GST. It is only
// meaningful once a full detection interval has passed since GST.
func (n *Node) viewRate() (float64, bool) {
	if !n.gstViewSet || n.clock <= n.gstViewTick {
		return 0, false
	}
	span := n.clock - n.gstViewTick
	if span < n.params.DetectionInterval {
		return 0, false
	}
	if n.votor.CurrentView <= n.gstView {
		return 0, true
	}
	return float64(n.votor.CurrentView-n.gstView) / float64(span), true
}

// ticksSinceGST returns zero before GST.
func (n *Node) ticksSinceGST() uint64 {
	if n.clock <= n.cfg.GST {
		return 0
	}
	return n.clock - n.cfg.GST
}

// openViews counts the voting rounds above the highest finalized view.
func (n *Node) openViews() int {
	var highest uint64
	for _, f := range n.votor.Finalized {
		if f.Block.View > highest {
			highest = f.Block.View
		}
	}
	open := 0
	for view := range n.votor.Rounds {
		if view > highest {
			open++
		}
	}
	return open
}

func (n *Node) detectVoting(d *detection) {
	if rate, ok := n.viewRate(); ok {
		switch {
		case rate > n.params.ViewRateFailed:
			d.raise(model.Voting, model.ViewInstability, model.Failed,
				"view change rate %.3f per tick exceeds %.3f", rate, n.params.ViewRateFailed)
		case rate > n.params.ViewRateDegraded:
			d.raise(model.Voting, model.ViewInstability, model.Degraded,
				"view change rate %.3f per tick exceeds %.3f", rate, n.params.ViewRateDegraded)
		}
	}
	if open := n.openViews(); open > n.params.MaxOpenViews {
		d.raise(model.Voting, model.ExcessiveViews, model.Degraded,
			"%d views without finalization exceed %d", open, n.params.MaxOpenViews)
	}
	sinceGST := n.ticksSinceGST()
	if sinceGST > n.params.FinalizationTimeout && len(n.votor.Finalized) == 0 {
		d.raise(model.Voting, model.NoFinalization, model.Degraded,
			"no block finalized %d ticks after GST", sinceGST)
	}
	if sinceGST > 0 {
		last := n.lastBlockTick
		if last < n.cfg.GST {
			last = n.cfg.GST
		}
		if n.clock-last > n.params.BlockStallTimeout {
			d.raise(model.Voting, model.BlockStall, model.Degraded,
				"no new block for %d ticks", n.clock-last)
		}
	}
}

func (n *Node) detectDissemination(d *detection) {
	repairs := len(n.rotor.RepairRequests)
	switch {
	case repairs > n.params.RepairFailedFactor*n.cfg.Validators:
		d.raise(model.Dissemination, model.RepairOverload, model.Failed,
			"%d active repair requests exceed %d", repairs, n.params.RepairFailedFactor*n.cfg.Validators)
	case repairs > n.params.RepairDegradedFactor*n.cfg.Validators:
		d.raise(model.Dissemination, model.RepairOverload, model.Degraded,
			"%d active repair requests exceed %d", repairs, n.params.RepairDegradedFactor*n.cfg.Validators)
	}
	usage, capacity := n.rotor.TotalBandwidthUsage(), n.rotor.Capacity()
	if capacity > 0 && float64(usage) > n.params.BandwidthPressure*float64(capacity) {
		d.raise(model.Dissemination, model.BandwidthPressure, model.Degraded,
			"bandwidth usage %d above %.0f%% of capacity %d", usage, n.params.BandwidthPressure*100, capacity)
	}
	if sinceGST := n.ticksSinceGST(); sinceGST > n.params.DeliveryTimeout && n.rotor.DeliveredBlocks == 0 {
		d.raise(model.Dissemination, model.NoDelivery, model.Degraded,
			"no block delivered %d ticks after GST", sinceGST)
	}
}

func (n *Node) detectTransport(d *detection) {
	if n.clock > n.cfg.GST+n.params.PartitionTimeout {
		if unhealed := n.network.UnhealedPartitions(); len(unhealed) > 0 {
			d.raise(model.Transport, model.PartitionPersisting, model.Partitioned,
				"%d partitions unhealed %d ticks after GST", len(unhealed), n.ticksSinceGST())
		}
	}
	queued := len(n.network.Queue)
	switch {
	case queued > n.params.QueueFailed:
		d.raise(model.Transport, model.QueueCongestion, model.Failed,
			"%d queued messages exceed %d", queued, n.params.QueueFailed)
	case queued > n.params.QueueCongested:
		d.raise(model.Transport, model.QueueCongestion, model.Congested,
			"%d queued messages exceed %d", queued, n.params.QueueCongested)
	}
	if buffered := n.network.BufferedCount(); buffered > n.params.BufferCongested {
		d.raise(model.Transport, model.BufferOverflow, model.Congested,
			"%d buffered messages exceed %d", buffered, n.params.BufferCongested)
	}
	if n.clock > n.params.DropRateGrace {
		if rate := n.network.DropRate(); rate > n.params.DropRateThreshold {
			d.raise(model.Transport, model.HighDropRate, model.Degraded,
				"drop rate %.3f exceeds %.3f", rate, n.params.DropRateThreshold)
		}
	}
}

// detectSystem checks node-wide conditions. They are charged to the voting
// component, which owns the node's progress.
func (n *Node) detectSystem(d *detection) {
	errs := n.errors.Len()
	switch {
	case errs > n.params.ErrorsFailed:
		d.raise(model.Voting, model.ErrorAccumulation, model.Failed,
			"%d integration errors exceed %d", errs, n.params.ErrorsFailed)
	case errs > n.params.ErrorsDegraded:
		d.raise(model.Voting, model.ErrorAccumulation, model.Degraded,
			"%d integration errors exceed %d", errs, n.params.ErrorsDegraded)
	}
	if n.perf.MessagesProcessed >= n.params.MinOperations && n.perf.MessagesProcessed > 0 {
		if ratio := n.perf.FailureRatio(); ratio > n.params.FailureRatio {
			d.raise(model.Voting, model.HighFailureRate, model.Degraded,
				"%d of %d operations failed", n.perf.FailedOperations, n.perf.MessagesProcessed)
		}
	}
	if sinceGST := n.ticksSinceGST(); sinceGST > n.params.ThroughputTimeout && n.perf.Throughput == 0 {
		d.raise(model.Voting, model.ZeroThroughput, model.Degraded,
			"zero throughput %d ticks after GST", sinceGST)
	}
}
