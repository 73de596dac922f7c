package formal

import (
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Bounds are the node parameters the integration invariants depend on.
type Bounds struct {
	MillisPerTick uint64
	MaxDrift      uint64
	// InteractionRetention is the maximum age, in ticks, of a logged
	// interaction. Zero disables the check.
	InteractionRetention uint64
	// MaxInteractions caps the interaction log length. Zero disables the check.
	MaxInteractions int
	// MaxFailureRatio is the failed share of processed operations above which
	// the node may not be Running. Zero disables the check.
	MaxFailureRatio float64
}

// Validate checks the snapshot against the formal invariants in order and
// returns an InvariantViolation for the first one that does not hold.
func Validate(snap *Snapshot, bounds Bounds) error {
	stages := []func(*Snapshot, Bounds) error{
		checkTypes,
		checkComponentConsistency,
		checkCrossComponentSafety,
		checkPerformanceBounds,
		checkIntegration,
	}
	for _, stage := range stages {
		if err := stage(snap, bounds); err != nil {
			return err
		}
	}
	return nil
}

func checkTypes(snap *Snapshot, _ Bounds) error {
	if snap.SchemaVersion != SchemaVersion {
		return newViolation(TypeOK, "schema version %q, expected %q", snap.SchemaVersion, SchemaVersion)
	}
	if !snap.SystemState.Valid() {
		return newViolation(TypeOK, "system state %s", snap.SystemState)
	}
	if len(snap.ComponentHealth) != model.NumComponents {
		return newViolation(TypeOK, "expected health for %d components, got %d", model.NumComponents, len(snap.ComponentHealth))
	}
	for _, c := range model.Components {
		h, ok := snap.ComponentHealth[c]
		if !ok {
			return newViolation(TypeOK, "missing health of component %s", c)
		}
		if !h.AllowedFor(c) {
			return newViolation(TypeOK, "component %s cannot be %s", c, h)
		}
	}
	if !snap.Configuration.IsValidator(snap.ValidatorID) {
		return newViolation(TypeOK, "validator %d outside committee of %d", snap.ValidatorID, snap.Configuration.Validators)
	}
	for i, entry := range snap.InteractionLog {
		if !entry.Type.Valid() || !entry.Source.Valid() || !entry.Target.Valid() {
			return newViolation(TypeOK, "interaction %d is %s from %s to %s", i, entry.Type, entry.Source, entry.Target)
		}
	}
	for _, tag := range snap.IntegrationErrors {
		if !tag.Category.Valid() || !tag.Component.Valid() {
			return newViolation(TypeOK, "error tag %s", tag.Label())
		}
	}
	for _, cert := range snap.VotorState.Certificates {
		if !cert.Type.Valid() {
			return newViolation(TypeOK, "certificate for slot %d has type %s", cert.Slot, cert.Type)
		}
	}
	for _, msg := range snap.NetworkState.MessageQueue {
		if !msg.Type.Valid() {
			return newViolation(TypeOK, "queued message from %d has type %s", msg.Sender, msg.Type)
		}
	}
	return nil
}

func checkComponentConsistency(snap *Snapshot, _ Bounds) error {
	health, _ := snap.Health()
	if health[model.Crypto] == model.Failed && health[model.Voting] != model.Failed {
		return newViolation(ComponentConsistency, "crypto failed while voting is %s", health[model.Voting])
	}
	if health[model.Voting] == model.Failed {
		switch snap.SystemState {
		case model.DegradedState, model.Halted, model.Recovering, model.Initializing:
		default:
			return newViolation(ComponentConsistency, "voting failed while system is %s", snap.SystemState)
		}
	}
	switch snap.SystemState {
	case model.Initializing, model.Recovering:
		return nil
	}
	if expected := model.SystemStateOf(health); expected != snap.SystemState {
		return newViolation(ComponentConsistency, "system is %s but component health implies %s", snap.SystemState, expected)
	}
	return nil
}

func checkCrossComponentSafety(snap *Snapshot, _ Bounds) error {
	finalized := make(map[model.Identifier]struct{}, len(snap.VotorState.Finalized))
	slots := make(map[uint64]model.Identifier, len(snap.VotorState.Finalized))
	for _, f := range snap.VotorState.Finalized {
		if other, ok := slots[f.Block.Slot]; ok && other != f.Block.Hash {
			return newViolation(CrossComponentSafety, "slot %d finalized as %s and %s", f.Block.Slot, other, f.Block.Hash)
		}
		slots[f.Block.Slot] = f.Block.Hash
		finalized[f.Block.Hash] = struct{}{}
	}
	for _, cert := range snap.VotorState.Certificates {
		if cert.Type == model.SkipCertificate {
			continue
		}
		if _, ok := finalized[cert.BlockHash]; !ok {
			continue
		}
		if len(snap.RotorState.BlockShreds[cert.BlockHash]) == 0 {
			return newViolation(CrossComponentSafety, "finalized block %s has no shreds", cert.BlockHash)
		}
	}

	gst, delta := snap.Configuration.GST, snap.Configuration.Delta
	byzantine := make(map[model.ValidatorID]struct{}, len(snap.NetworkState.ByzantineNodes))
	for _, v := range snap.NetworkState.ByzantineNodes {
		byzantine[v] = struct{}{}
	}
	for _, d := range snap.NetworkState.Deliveries {
		if _, ok := byzantine[d.Sender]; ok || d.SentAt < gst {
			continue
		}
		if d.DeliveredAt > d.SentAt+delta {
			return newViolation(CrossComponentSafety, "message from %d sent at %d delivered at %d", d.Sender, d.SentAt, d.DeliveredAt)
		}
	}
	return nil
}

func checkPerformanceBounds(snap *Snapshot, _ Bounds) error {
	cfg := snap.Configuration
	perf := snap.PerformanceMetrics
	n := uint64(cfg.Validators)

	if maxThroughput := float64(cfg.MaxBlockSize * n); perf.Throughput > maxThroughput {
		return newViolation(PerformanceBounds, "throughput %.2f above %.0f", perf.Throughput, maxThroughput)
	}
	if perf.Latency != 0 && perf.Latency < float64(cfg.Delta) {
		return newViolation(PerformanceBounds, "latency %.2f below delta %d", perf.Latency, cfg.Delta)
	}
	if capacity := cfg.BandwidthLimit * n; perf.Bandwidth > capacity {
		return newViolation(PerformanceBounds, "bandwidth %d above capacity %d", perf.Bandwidth, capacity)
	}
	if perf.CertificateRate > float64(cfg.MaxSlot) {
		return newViolation(PerformanceBounds, "certificate rate %.2f above max slot %d", perf.CertificateRate, cfg.MaxSlot)
	}
	if maxRepairs := cfg.MaxBlocks * cfg.MaxRetries; perf.RepairRate > maxRepairs {
		return newViolation(PerformanceBounds, "repair rate %d above %d", perf.RepairRate, maxRepairs)
	}
	return nil
}

func checkIntegration(snap *Snapshot, bounds Bounds) error {
	log := snap.InteractionLog
	if bounds.MaxInteractions > 0 && len(log) > bounds.MaxInteractions {
		return newViolation(IntegrationInvariants, "%d interactions exceed %d", len(log), bounds.MaxInteractions)
	}
	for i, entry := range log {
		if entry.Timestamp > snap.Clock {
			return newViolation(IntegrationInvariants, "interaction %d logged at %d after clock %d", i, entry.Timestamp, snap.Clock)
		}
		if i > 0 && entry.Timestamp < log[i-1].Timestamp {
			return newViolation(IntegrationInvariants, "interaction %d logged out of order", i)
		}
		if bounds.InteractionRetention > 0 && snap.Clock-entry.Timestamp > bounds.InteractionRetention {
			return newViolation(IntegrationInvariants, "interaction %d is %d ticks old", i, snap.Clock-entry.Timestamp)
		}
	}
	var total uint64
	for _, count := range snap.CrossComponentInteractions {
		total += count
	}
	if total != uint64(len(log)) {
		return newViolation(IntegrationInvariants, "cross-component counts sum to %d for %d interactions", total, len(log))
	}

	for _, tag := range snap.IntegrationErrors {
		if tag.Timestamp > snap.Clock {
			return newViolation(IntegrationInvariants, "error %s raised after clock %d", tag.Label(), snap.Clock)
		}
		if snap.ComponentHealth[tag.Component] == model.Healthy {
			return newViolation(IntegrationInvariants, "error %s charged to healthy component", tag.Label())
		}
	}

	if bounds.MillisPerTick > 0 {
		votorTicks := snap.VotorState.LocalTime / bounds.MillisPerTick
		drift := votorTicks - snap.Clock
		if snap.Clock > votorTicks {
			drift = snap.Clock - votorTicks
		}
		if drift > bounds.MaxDrift {
			return newViolation(IntegrationInvariants, "voting clock drifted %d ticks", drift)
		}
	}
	if snap.RotorState.Clock != snap.Clock || snap.NetworkState.Clock != snap.Clock {
		return newViolation(IntegrationInvariants, "sub-state clocks %d and %d differ from clock %d",
			snap.RotorState.Clock, snap.NetworkState.Clock, snap.Clock)
	}

	perf := snap.PerformanceMetrics
	if perf.FailedOperations > perf.MessagesProcessed {
		return newViolation(IntegrationInvariants, "%d failed operations out of %d processed", perf.FailedOperations, perf.MessagesProcessed)
	}
	if bounds.MaxFailureRatio > 0 && snap.SystemState == model.Running {
		if ratio := perf.FailureRatio(); ratio > bounds.MaxFailureRatio {
			return newViolation(IntegrationInvariants, "running with failure ratio %.3f above %.3f", ratio, bounds.MaxFailureRatio)
		}
	}
	return nil
}
