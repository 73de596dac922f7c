package node

import (
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// BenchmarkReport summarizes a node's performance for reporting tools.
// The JSON field names are consumed by external tooling.
type BenchmarkReport struct {
	ID                 string                   `json:"id"`
	Validator          model.ValidatorID        `json:"validator"`
	Clock              uint64                   `json:"clock"`
	BenchmarkStart     *uint64                  `json:"benchmarkStartTime"`
	ElapsedTicks       uint64                   `json:"elapsedTicks"`
	SystemState        model.SystemState        `json:"systemState"`
	ComponentHealth    map[string]string        `json:"componentHealth"`
	Metrics            model.PerformanceMetrics `json:"performanceMetrics"`
	FailureRatio       float64                  `json:"failureRatio"`
	FinalizedBlocks    int                      `json:"finalizedBlocks"`
	Interactions       map[string]uint64        `json:"interactionCounts"`
	Errors             map[string]int           `json:"errorCounts"`
	Recovery           RecoverySummary          `json:"recovery"`
	LatencyPercentiles LatencyPercentiles       `json:"latencyPercentiles"`
}

type RecoverySummary struct {
	Attempts  int              `json:"attempts"`
	Succeeded int              `json:"succeeded"`
	Partial   int              `json:"partial"`
	Failed    int              `json:"failed"`
	Last      *RecoveryAttempt `json:"last,omitempty"`
}

// LatencyPercentiles are finalization latencies in ticks.
type LatencyPercentiles struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

// Report builds a benchmark report from the current state. Metrics are
// reported as of the last refresh.
func (n *Node) Report() *BenchmarkReport {
	var start *uint64
	if n.benchmarkStart != nil {
		s := *n.benchmarkStart
		start = &s
	}
	report := &BenchmarkReport{
		ID:                 uuid.New().String(),
		Validator:          n.id,
		Clock:              n.clock,
		BenchmarkStart:     start,
		ElapsedTicks:       n.elapsed(),
		SystemState:        n.state,
		ComponentHealth:    n.health.ToMap(),
		Metrics:            n.perf,
		FailureRatio:       n.perf.FailureRatio(),
		FinalizedBlocks:    len(n.votor.Finalized),
		Interactions:       n.interactions.CountByType(),
		Errors:             n.errors.CountByCategory(),
		Recovery:           n.recoverySummary(),
		LatencyPercentiles: latencyPercentiles(n.finalizationLatencies()),
	}
	return report
}

func (n *Node) recoverySummary() RecoverySummary {
	summary := RecoverySummary{Attempts: len(n.recoveries)}
	for _, attempt := range n.recoveries {
		switch attempt.Outcome {
		case RecoverySucceeded:
			summary.Succeeded++
		case RecoveryPartial:
			summary.Partial++
		case RecoveryFailed:
			summary.Failed++
		}
	}
	if len(n.recoveries) > 0 {
		last := n.recoveries[len(n.recoveries)-1]
		summary.Last = &last
	}
	return summary
}

func latencyPercentiles(latencies []float64) LatencyPercentiles {
	var out LatencyPercentiles
	if len(latencies) == 0 {
		return out
	}
	out.P50, _ = stats.Percentile(latencies, 50)
	out.P90, _ = stats.Percentile(latencies, 90)
	out.P99, _ = stats.Percentile(latencies, 99)
	return out
}
