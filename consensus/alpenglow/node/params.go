package node

import (
	"fmt"
)

// Parameters hold the cadences and thresholds of the integration layer.
// Intervals, windows and timeouts are in ticks.
type Parameters struct {
	MetricsInterval   uint64 `mapstructure:"metrics-interval" json:"metricsInterval" validate:"gt=0"`
	DetectionInterval uint64 `mapstructure:"detection-interval" json:"detectionInterval" validate:"gt=0"`
	RecoveryInterval  uint64 `mapstructure:"recovery-interval" json:"recoveryInterval" validate:"gt=0"`
	AuditInterval     uint64 `mapstructure:"audit-interval" json:"auditInterval" validate:"gt=0"`
	PruneInterval     uint64 `mapstructure:"prune-interval" json:"pruneInterval" validate:"gt=0"`
	// InteractionWindow is how far back the interaction log and the error set reach after pruning.
	InteractionWindow uint64 `mapstructure:"interaction-window" json:"interactionWindow" validate:"gt=0"`
	// ErrorDedupWindow collapses error tags of one component and category raised within the same window.
	ErrorDedupWindow uint64 `mapstructure:"error-dedup-window" json:"errorDedupWindow" validate:"gt=0"`

	MillisPerTick uint64 `mapstructure:"millis-per-tick" json:"millisPerTick" validate:"gt=0"`
	MaxDrift      uint64 `mapstructure:"max-drift" json:"maxDrift"`

	VoteSpamFactor  int    `mapstructure:"vote-spam-factor" json:"voteSpamFactor" validate:"gt=0"`
	RepairBacklog   int    `mapstructure:"repair-backlog" json:"repairBacklog" validate:"gt=0"`
	HeartbeatWindow uint64 `mapstructure:"heartbeat-window" json:"heartbeatWindow" validate:"gt=0"`
	MaxBlockMessage uint64 `mapstructure:"max-block-message" json:"maxBlockMessage" validate:"gt=0"`
	// SenderRateLimit is the sustained number of messages per tick accepted from one sender. Zero disables the limit.
	SenderRateLimit float64 `mapstructure:"sender-rate-limit" json:"senderRateLimit" validate:"gte=0"`
	SenderBurst     int     `mapstructure:"sender-burst" json:"senderBurst" validate:"gte=0"`
	// DeliveryBudget is the number of queued transport messages delivered per tick.
	DeliveryBudget int `mapstructure:"delivery-budget" json:"deliveryBudget" validate:"gt=0"`

	ViewRateDegraded    float64 `mapstructure:"view-rate-degraded" json:"viewRateDegraded" validate:"gt=0"`
	ViewRateFailed      float64 `mapstructure:"view-rate-failed" json:"viewRateFailed" validate:"gt=0"`
	MaxOpenViews        int     `mapstructure:"max-open-views" json:"maxOpenViews" validate:"gt=0"`
	FinalizationTimeout uint64  `mapstructure:"finalization-timeout" json:"finalizationTimeout" validate:"gt=0"`
	BlockStallTimeout   uint64  `mapstructure:"block-stall-timeout" json:"blockStallTimeout" validate:"gt=0"`

	RepairDegradedFactor int     `mapstructure:"repair-degraded-factor" json:"repairDegradedFactor" validate:"gt=0"`
	RepairFailedFactor   int     `mapstructure:"repair-failed-factor" json:"repairFailedFactor" validate:"gt=0"`
	BandwidthPressure    float64 `mapstructure:"bandwidth-pressure" json:"bandwidthPressure" validate:"gt=0,lte=1"`
	BandwidthRecovery    float64 `mapstructure:"bandwidth-recovery" json:"bandwidthRecovery" validate:"gt=0,lte=1"`
	DeliveryTimeout      uint64  `mapstructure:"delivery-timeout" json:"deliveryTimeout" validate:"gt=0"`

	PartitionTimeout    uint64  `mapstructure:"partition-timeout" json:"partitionTimeout" validate:"gt=0"`
	QueueCongested      int     `mapstructure:"queue-congested" json:"queueCongested" validate:"gt=0"`
	QueueFailed         int     `mapstructure:"queue-failed" json:"queueFailed" validate:"gt=0"`
	BufferCongested     int     `mapstructure:"buffer-congested" json:"bufferCongested" validate:"gt=0"`
	DropRateThreshold   float64 `mapstructure:"drop-rate-threshold" json:"dropRateThreshold" validate:"gt=0,lte=1"`
	DropRateGrace       uint64  `mapstructure:"drop-rate-grace" json:"dropRateGrace"`
	RecoveryQueueWindow uint64  `mapstructure:"recovery-queue-window" json:"recoveryQueueWindow" validate:"gt=0"`
	MaxDroppedMessages  uint64  `mapstructure:"max-dropped-messages" json:"maxDroppedMessages" validate:"gt=0"`

	ErrorsDegraded    int     `mapstructure:"errors-degraded" json:"errorsDegraded" validate:"gt=0"`
	ErrorsFailed      int     `mapstructure:"errors-failed" json:"errorsFailed" validate:"gt=0"`
	FailureRatio      float64 `mapstructure:"failure-ratio" json:"failureRatio" validate:"gt=0,lte=1"`
	MinOperations     uint64  `mapstructure:"min-operations" json:"minOperations"`
	ThroughputTimeout uint64  `mapstructure:"throughput-timeout" json:"throughputTimeout" validate:"gt=0"`
	ProgressGrace     uint64  `mapstructure:"progress-grace" json:"progressGrace" validate:"gt=0"`
	LivenessTimeout   uint64  `mapstructure:"liveness-timeout" json:"livenessTimeout" validate:"gt=0"`
	MaxRecoveryLog    int     `mapstructure:"max-recovery-log" json:"maxRecoveryLog" validate:"gt=0"`
}

// DefaultParameters returns the reference cadences and thresholds.
func DefaultParameters() Parameters {
	return Parameters{
		MetricsInterval:   10,
		DetectionInterval: 50,
		RecoveryInterval:  100,
		AuditInterval:     200,
		PruneInterval:     1000,
		InteractionWindow: 5000,
		ErrorDedupWindow:  500,

		MillisPerTick: 10,
		MaxDrift:      5,

		VoteSpamFactor:  3,
		RepairBacklog:   50,
		HeartbeatWindow: 100,
		MaxBlockMessage: 1 << 20,
		SenderRateLimit: 50,
		SenderBurst:     500,
		DeliveryBudget:  256,

		ViewRateDegraded:    0.2,
		ViewRateFailed:      0.5,
		MaxOpenViews:        200,
		FinalizationTimeout: 200,
		BlockStallTimeout:   300,

		RepairDegradedFactor: 2,
		RepairFailedFactor:   5,
		BandwidthPressure:    0.8,
		BandwidthRecovery:    0.9,
		DeliveryTimeout:      200,

		PartitionTimeout:    150,
		QueueCongested:      1000,
		QueueFailed:         2000,
		BufferCongested:     5000,
		DropRateThreshold:   0.2,
		DropRateGrace:       100,
		RecoveryQueueWindow: 100,
		MaxDroppedMessages:  1000,

		ErrorsDegraded:    10,
		ErrorsFailed:      20,
		FailureRatio:      0.25,
		MinOperations:     20,
		ThroughputTimeout: 300,
		ProgressGrace:     200,
		LivenessTimeout:   200,
		MaxRecoveryLog:    64,
	}
}

// Validate checks the relations between thresholds.
func (p Parameters) Validate() error {
	if p.MetricsInterval == 0 || p.DetectionInterval == 0 || p.RecoveryInterval == 0 ||
		p.AuditInterval == 0 || p.PruneInterval == 0 {
		return fmt.Errorf("periodic intervals must be positive")
	}
	if p.InteractionWindow == 0 || p.ErrorDedupWindow == 0 || p.MillisPerTick == 0 {
		return fmt.Errorf("interaction window, dedup window and tick length must be positive")
	}
	if p.DeliveryBudget <= 0 {
		return fmt.Errorf("delivery budget must be positive, got %d", p.DeliveryBudget)
	}
	if p.QueueFailed <= p.QueueCongested {
		return fmt.Errorf("failed queue length %d must exceed congested length %d", p.QueueFailed, p.QueueCongested)
	}
	if p.ErrorsFailed <= p.ErrorsDegraded {
		return fmt.Errorf("failed error count %d must exceed degraded count %d", p.ErrorsFailed, p.ErrorsDegraded)
	}
	if p.ViewRateFailed <= p.ViewRateDegraded {
		return fmt.Errorf("failed view rate %v must exceed degraded rate %v", p.ViewRateFailed, p.ViewRateDegraded)
	}
	if p.RepairFailedFactor <= p.RepairDegradedFactor {
		return fmt.Errorf("failed repair factor %d must exceed degraded factor %d", p.RepairFailedFactor, p.RepairDegradedFactor)
	}
	if p.BandwidthRecovery < p.BandwidthPressure {
		return fmt.Errorf("bandwidth recovery ratio %v below pressure ratio %v", p.BandwidthRecovery, p.BandwidthPressure)
	}
	if p.SenderRateLimit < 0 || p.SenderBurst < 0 {
		return fmt.Errorf("sender rate limit and burst must not be negative")
	}
	return nil
}
