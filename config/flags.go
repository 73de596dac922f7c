package config

import (
	"github.com/spf13/pflag"
)

const (
	// All constant strings are used for CLI flag names and corresponding keys for config values.
	configFile = "config"
	// protocol
	validators        = "validators"
	stakes            = "stakes"
	fastPathThreshold = "fast-path-threshold"
	slowPathThreshold = "slow-path-threshold"
	skipThreshold     = "skip-threshold"
	gst               = "gst"
	delta             = "delta"
	maxBlockSize      = "max-block-size"
	bandwidthLimit    = "bandwidth-limit"
	maxSlot           = "max-slot"
	maxBlocks         = "max-blocks"
	maxRetries        = "max-retries"
	retryTimeout      = "retry-timeout"
	// integration cadences
	metricsInterval   = "metrics-interval"
	detectionInterval = "detection-interval"
	recoveryInterval  = "recovery-interval"
	auditInterval     = "audit-interval"
	pruneInterval     = "prune-interval"
	interactionWindow = "interaction-window"
	errorDedupWindow  = "error-dedup-window"
	millisPerTick     = "millis-per-tick"
	maxDrift          = "max-drift"
	// transport validation
	voteSpamFactor  = "vote-spam-factor"
	repairBacklog   = "repair-backlog"
	heartbeatWindow = "heartbeat-window"
	maxBlockMessage = "max-block-message"
	senderRateLimit = "sender-rate-limit"
	senderBurst     = "sender-burst"
	deliveryBudget  = "delivery-budget"
	// failure detection
	viewRateDegraded     = "view-rate-degraded"
	viewRateFailed       = "view-rate-failed"
	maxOpenViews         = "max-open-views"
	finalizationTimeout  = "finalization-timeout"
	blockStallTimeout    = "block-stall-timeout"
	repairDegradedFactor = "repair-degraded-factor"
	repairFailedFactor   = "repair-failed-factor"
	bandwidthPressure    = "bandwidth-pressure"
	bandwidthRecovery    = "bandwidth-recovery"
	deliveryTimeout      = "delivery-timeout"
	partitionTimeout     = "partition-timeout"
	queueCongested       = "queue-congested"
	queueFailed          = "queue-failed"
	bufferCongested      = "buffer-congested"
	dropRateThreshold    = "drop-rate-threshold"
	dropRateGrace        = "drop-rate-grace"
	recoveryQueueWindow  = "recovery-queue-window"
	maxDroppedMessages   = "max-dropped-messages"
	errorsDegraded       = "errors-degraded"
	errorsFailed         = "errors-failed"
	failureRatio         = "failure-ratio"
	minOperations        = "min-operations"
	throughputTimeout    = "throughput-timeout"
	progressGrace        = "progress-grace"
	livenessTimeout      = "liveness-timeout"
	maxRecoveryLog       = "max-recovery-log"
	// simulation
	ticks              = "ticks"
	workers            = "workers"
	blockInterval      = "block-interval"
	messagesPerTick    = "messages-per-tick"
	byzantine          = "byzantine"
	seed               = "seed"
	checkpointInterval = "checkpoint-interval"
	datadir            = "datadir"
	logLevel           = "loglevel"
	reportFile         = "report-file"
	metricsAddr        = "metrics-addr"
)

// InitializeFlags initializes all CLI flags of the simulation configuration on the provided pflag set.
// Args:
//
//	*pflag.FlagSet: the pflag set of the command.
//	*Config: the default config used to set default values on the flags
func InitializeFlags(flags *pflag.FlagSet, config *Config) {
	flags.String(configFile, "", "path of a YAML config file")
	initProtocolFlags(flags, config)
	initIntegrationFlags(flags, config)
	initSimulationFlags(flags, config)
}

func initProtocolFlags(flags *pflag.FlagSet, config *Config) {
	p := config.Protocol
	defaultStakes := make([]int, 0, len(p.Stakes))
	for _, s := range p.Stakes {
		defaultStakes = append(defaultStakes, int(s))
	}
	flags.Int(validators, p.Validators, "committee size")
	flags.IntSlice(stakes, defaultStakes, "per-validator stake, one unit each when empty")
	flags.Uint64(fastPathThreshold, p.FastPathThreshold, "stake needed for a fast certificate, 80% of the total when 0")
	flags.Uint64(slowPathThreshold, p.SlowPathThreshold, "stake needed for a slow certificate, 60% of the total when 0")
	flags.Uint64(skipThreshold, p.SkipThreshold, "stake needed for a skip certificate, 60% of the total when 0")
	flags.Uint64(gst, p.GST, "global stabilization time in ticks")
	flags.Uint64(delta, p.Delta, "maximum message delay after GST in ticks")
	flags.Uint64(maxBlockSize, p.MaxBlockSize, "maximum block size in bytes")
	flags.Uint64(bandwidthLimit, p.BandwidthLimit, "per-validator dissemination bandwidth in bytes")
	flags.Uint64(maxSlot, p.MaxSlot, "highest slot a certificate may reference")
	flags.Uint64(maxBlocks, p.MaxBlocks, "maximum number of blocks held by the voting engine")
	flags.Uint64(maxRetries, p.MaxRetries, "repair retries per shred")
	flags.Uint64(retryTimeout, p.RetryTimeout, "ticks a repair request stays active")
}

func initIntegrationFlags(flags *pflag.FlagSet, config *Config) {
	p := config.Integration
	flags.Uint64(metricsInterval, p.MetricsInterval, "ticks between performance metric refreshes")
	flags.Uint64(detectionInterval, p.DetectionInterval, "ticks between failure detection passes")
	flags.Uint64(recoveryInterval, p.RecoveryInterval, "ticks between scheduled recovery attempts while degraded")
	flags.Uint64(auditInterval, p.AuditInterval, "ticks between progress audits after GST")
	flags.Uint64(pruneInterval, p.PruneInterval, "ticks between interaction log pruning")
	flags.Uint64(interactionWindow, p.InteractionWindow, "ticks of interactions and errors kept by pruning")
	flags.Uint64(errorDedupWindow, p.ErrorDedupWindow, "ticks within which equal error tags are collapsed")
	flags.Uint64(millisPerTick, p.MillisPerTick, "length of a tick in milliseconds of voting engine time")
	flags.Uint64(maxDrift, p.MaxDrift, "tolerated drift between component clocks in ticks")

	flags.Int(voteSpamFactor, p.VoteSpamFactor, "votes per view accepted per validator")
	flags.Int(repairBacklog, p.RepairBacklog, "pending repair requests accepted before rejecting new ones")
	flags.Uint64(heartbeatWindow, p.HeartbeatWindow, "maximum age of a heartbeat in ticks")
	flags.Uint64(maxBlockMessage, p.MaxBlockMessage, "maximum size of a block message in bytes")
	flags.Float64(senderRateLimit, p.SenderRateLimit, "messages per tick accepted from one sender, 0 disables the limit")
	flags.Int(senderBurst, p.SenderBurst, "burst of messages accepted from one sender")
	flags.Int(deliveryBudget, p.DeliveryBudget, "queued transport messages delivered per tick")

	flags.Float64(viewRateDegraded, p.ViewRateDegraded, "view changes per tick after GST that degrade voting")
	flags.Float64(viewRateFailed, p.ViewRateFailed, "view changes per tick after GST that fail voting")
	flags.Int(maxOpenViews, p.MaxOpenViews, "views without finalization that degrade voting")
	flags.Uint64(finalizationTimeout, p.FinalizationTimeout, "ticks after GST without any finalized block")
	flags.Uint64(blockStallTimeout, p.BlockStallTimeout, "ticks after GST without a new block")
	flags.Int(repairDegradedFactor, p.RepairDegradedFactor, "pending repairs per validator that degrade dissemination")
	flags.Int(repairFailedFactor, p.RepairFailedFactor, "pending repairs per validator that fail dissemination")
	flags.Float64(bandwidthPressure, p.BandwidthPressure, "share of the bandwidth capacity that congests dissemination")
	flags.Float64(bandwidthRecovery, p.BandwidthRecovery, "share of the bandwidth capacity recovery brings usage under")
	flags.Uint64(deliveryTimeout, p.DeliveryTimeout, "ticks after GST without block delivery")
	flags.Uint64(partitionTimeout, p.PartitionTimeout, "ticks an unhealed partition persists before transport is partitioned")
	flags.Int(queueCongested, p.QueueCongested, "queued messages that congest transport")
	flags.Int(queueFailed, p.QueueFailed, "queued messages that fail transport")
	flags.Int(bufferCongested, p.BufferCongested, "partition-buffered messages that congest transport")
	flags.Float64(dropRateThreshold, p.DropRateThreshold, "share of dropped messages that degrades transport")
	flags.Uint64(dropRateGrace, p.DropRateGrace, "ticks before the drop rate is checked")
	flags.Uint64(recoveryQueueWindow, p.RecoveryQueueWindow, "age in ticks of queued messages kept by recovery")
	flags.Uint64(maxDroppedMessages, p.MaxDroppedMessages, "dropped messages tolerated by post-recovery verification")
	flags.Int(errorsDegraded, p.ErrorsDegraded, "recent errors of one component that degrade it")
	flags.Int(errorsFailed, p.ErrorsFailed, "recent errors of one component that fail it")
	flags.Float64(failureRatio, p.FailureRatio, "share of failed operations that degrades the node")
	flags.Uint64(minOperations, p.MinOperations, "operations needed before the failure ratio is checked")
	flags.Uint64(throughputTimeout, p.ThroughputTimeout, "ticks after GST with zero throughput")
	flags.Uint64(progressGrace, p.ProgressGrace, "ticks after GST before progress is verified after recovery")
	flags.Uint64(livenessTimeout, p.LivenessTimeout, "timeout of the voting engine liveness check")
	flags.Int(maxRecoveryLog, p.MaxRecoveryLog, "recovery attempts kept in the history")
}

func initSimulationFlags(flags *pflag.FlagSet, config *Config) {
	s := config.Simulation
	flags.Uint64(ticks, s.Ticks, "number of ticks to simulate")
	flags.Int(workers, s.Workers, "validators driven concurrently")
	flags.Uint64(blockInterval, s.BlockInterval, "ticks between slots")
	flags.Int(messagesPerTick, s.MessagesPerTick, "heartbeats sent per tick")
	flags.IntSlice(byzantine, s.Byzantine, "validators that neither vote nor propose")
	flags.Int64(seed, s.Seed, "seed of the workload generator")
	flags.Uint64(checkpointInterval, s.CheckpointInterval, "ticks between stored snapshots, 0 disables checkpoints")
	flags.String(datadir, s.Datadir, "directory of the snapshot database")
	flags.String(logLevel, s.LogLevel, "log level, one of trace, debug, info, warn, error")
	flags.String(reportFile, s.ReportFile, "file the benchmark reports are written to, stdout when empty")
	flags.String(metricsAddr, s.MetricsAddr, "address prometheus metrics are served on, disabled when empty")
}
