package node

import (
	"github.com/montanaflynn/stats"
)

// benchmarkFrom is the tick the current benchmark started at, or zero.
func (n *Node) benchmarkFrom() uint64 {
	if n.benchmarkStart != nil {
		return *n.benchmarkStart
	}
	return 0
}

// elapsed is the number of ticks since the benchmark started, or since
// startup when no benchmark is running.
func (n *Node) elapsed() uint64 {
	start := n.benchmarkFrom()
	if n.clock <= start {
		return 0
	}
	return n.clock - start
}

// finalizationLatencies returns, per finalized block, the ticks from proposal
// to finalization. A block cannot finalize faster than one delivery bound.
func (n *Node) finalizationLatencies() []float64 {
	out := make([]float64, 0, len(n.votor.Finalized))
	for _, f := range n.votor.Finalized {
		latency := uint64(0)
		if f.FinalizedAt > f.ProposedAt {
			latency = f.FinalizedAt - f.ProposedAt
		}
		if latency < n.cfg.Delta {
			latency = n.cfg.Delta
		}
		out = append(out, float64(latency))
	}
	return out
}

// refreshMetrics recomputes the derived performance figures from the sub-states.
func (n *Node) refreshMetrics() {
	elapsed := n.elapsed()
	start := n.benchmarkFrom()

	var finalizedBytes uint64
	for _, f := range n.votor.Finalized {
		if f.FinalizedAt >= start {
			finalizedBytes += f.Block.Size()
		}
	}
	n.perf.Throughput = 0
	if elapsed > 0 {
		n.perf.Throughput = float64(finalizedBytes) / float64(elapsed)
	}
	n.perf.CertificateRate = 0
	if n.clock > 0 {
		n.perf.CertificateRate = float64(len(n.votor.Certificates)) * 100 / float64(n.clock)
	}

	n.perf.Latency = 0
	if latencies := n.finalizationLatencies(); len(latencies) > 0 {
		mean, err := stats.Mean(latencies)
		if err == nil {
			n.perf.Latency = mean
		}
	}

	n.perf.Bandwidth = n.rotor.TotalBandwidthUsage()
	n.perf.RepairRate = uint64(len(n.rotor.RepairRequests))
	n.collector.PerformanceUpdated(n.perf)
}
