package module

import (
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// IntegrationMetrics tracks the integration layer of an Alpenglow node.
type IntegrationMetrics interface {
	// MessageProcessed records a transport message of the given type and size
	// together with the outcome of its validation.
	MessageProcessed(msgType model.MessageType, sizeBytes uint64, accepted bool)

	// CertificateProcessed records a certificate that went through the
	// voting-to-dissemination protocol.
	CertificateProcessed(certType model.CertificateType, accepted bool)

	// CertificateBroadcast records a certificate forwarded to the peers.
	CertificateBroadcast()

	// InteractionLogged records an entry appended to the interaction log.
	InteractionLogged(typ model.InteractionType)

	// IntegrationError records a new error tag.
	IntegrationError(tag model.ErrorTag)

	// ComponentHealth reports the health of one component.
	ComponentHealth(component model.ComponentID, status model.HealthStatus)

	// SystemState reports the node-level state.
	SystemState(state model.SystemState)

	// PerformanceUpdated reports freshly recomputed performance figures.
	PerformanceUpdated(perf model.PerformanceMetrics)

	// FailuresDetected reports the number of failures found by one detection pass.
	FailuresDetected(count int)

	// RecoveryAttempted records the outcome of a recovery attempt, one of
	// "success", "partial" or "failure".
	RecoveryAttempted(outcome string)

	// ClockTick reports the logical clock after a tick.
	ClockTick(clock uint64)

	// InboundQueueLength reports the length of the node's inbound queue.
	InboundQueueLength(length int)
}
