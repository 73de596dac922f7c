package node

import (
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Initialize moves a freshly created node out of the Initializing state.
type Initialize struct{}

// Tick advances the logical clock by one. With Reschedule set the engine
// enqueues the next tick after handling this one.
type Tick struct {
	Reschedule bool
}

// TransportMessage delivers a message to the node's transport layer immediately.
type TransportMessage struct {
	Message model.Message
}

// SendMessage queues a message on the simulated network. It is delivered on
// a later tick, or held back while a partition separates its endpoints.
type SendMessage struct {
	Message model.Message
}

// BlockProposal hands a proposed block to the voting engine.
type BlockProposal struct {
	Block model.Block
}

// VoteCast hands a vote to the voting engine.
type VoteCast struct {
	Vote model.Vote
}

// PropagateCertificate processes a locally formed certificate and
// broadcasts it to the peers on success.
type PropagateCertificate struct {
	Certificate model.Certificate
}

// PeerCertificate is a certificate broadcast by another validator. It is not
// broadcast again.
type PeerCertificate struct {
	From        model.ValidatorID
	Certificate model.Certificate
}

// InjectFault sets the health of a component. Test only.
type InjectFault struct {
	Component model.ComponentID
	Status    model.HealthStatus
}

// InjectByzantine feeds a Byzantine-typed message from sender. Test only.
type InjectByzantine struct {
	Sender  model.ValidatorID
	Payload []byte
}

// InjectPartition splits Members off from the rest of the committee. The
// reply is the partition id.
type InjectPartition struct {
	Members []model.ValidatorID
}

// HealPartition heals the partition with the given id.
type HealPartition struct {
	ID uint64
}

// InjectClockSkew moves the voting engine's clock by Millis milliseconds. Test only.
type InjectClockSkew struct {
	Millis int64
}

// InjectRepairRequests adds Count repair requests issued at the current tick. Test only.
type InjectRepairRequests struct {
	Count int
}

// RequestRecovery runs the recovery orchestrator. The reply is a
// *RecoveryAttempt, nil when there was nothing to recover.
type RequestRecovery struct{}

// RequestPerformanceReport refreshes the metrics; the reply is a *BenchmarkReport.
type RequestPerformanceReport struct{}

// RequestFormalExport replies with the node's *formal.Snapshot.
type RequestFormalExport struct{}

// UpdateBenchmark restarts the benchmark window and/or replaces the
// integration parameters.
type UpdateBenchmark struct {
	Restart    bool
	Parameters *Parameters
}
