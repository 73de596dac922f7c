package model

import (
	"fmt"
)

// InteractionType classifies an entry of the cross-component interaction log.
type InteractionType int

const (
	CertificatePropagation InteractionType = iota
	SkipCertificatePropagation
	ShreddingRequired
	ShredVerification
	BlockPropagation
	VoteReceived
	MessageDelivery
	RepairIssued
	Finalization
	CertificateBroadcast
)

var interactionNames = [...]string{
	"certificate_propagation",
	"skip_certificate",
	"shredding_required",
	"shred_verification",
	"block_propagation",
	"vote_received",
	"message_delivery",
	"repair_issued",
	"finalization",
	"certificate_broadcast",
}

func (t InteractionType) String() string {
	if t.Valid() {
		return interactionNames[t]
	}
	return fmt.Sprintf("unknown_interaction_%d", int(t))
}

func (t InteractionType) Valid() bool {
	return t >= CertificatePropagation && int(t) < len(interactionNames)
}

func ParseInteractionType(s string) (InteractionType, error) {
	for i, name := range interactionNames {
		if name == s {
			return InteractionType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown interaction type %q", s)
}

func (t InteractionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *InteractionType) UnmarshalText(text []byte) error {
	parsed, err := ParseInteractionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Interaction is one observed hand-off between two components.
type Interaction struct {
	Source    ComponentID       `json:"source"`
	Target    ComponentID       `json:"target"`
	Type      InteractionType   `json:"type"`
	Timestamp uint64            `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Route is the "source->target" label used to aggregate interactions.
func (i Interaction) Route() string {
	return i.Source.String() + "->" + i.Target.String()
}

// ErrorCategory names the condition behind an integration error tag.
type ErrorCategory int

const (
	InvalidCertificate ErrorCategory = iota
	InsufficientSkipStake
	BlockNotFound
	BlockCertificateMismatch
	InvalidErasureParams
	BandwidthExceeded
	InsufficientShreds
	InsufficientStake
	DisseminationFailed
	FinalizationConflict
	InvalidProposal
	InvalidVote
	MissingSignature
	DeliveryBoundExceeded
	InvalidSender
	MalformedPayload
	VoteSpam
	OversizedBlock
	RepairBacklog
	StaleHeartbeat
	ByzantineBehavior
	RateLimited
	ClockDrift
	InjectedFault
	ViewInstability
	ExcessiveViews
	NoFinalization
	BlockStall
	RepairOverload
	BandwidthPressure
	NoDelivery
	PartitionPersisting
	QueueCongestion
	BufferOverflow
	HighDropRate
	ErrorAccumulation
	HighFailureRate
	ZeroThroughput
	NoProgress
	SafetyViolation
	LivenessViolation
	ResilienceViolation
)

var categoryNames = [...]string{
	"invalid_certificate",
	"insufficient_skip_stake",
	"block_not_found",
	"block_certificate_mismatch",
	"invalid_erasure_params",
	"bandwidth_exceeded",
	"insufficient_shreds",
	"insufficient_stake",
	"dissemination_failed",
	"finalization_conflict",
	"invalid_proposal",
	"invalid_vote",
	"missing_signature",
	"delivery_bound_exceeded",
	"invalid_sender",
	"malformed_payload",
	"vote_spam",
	"oversized_block",
	"repair_backlog",
	"stale_heartbeat",
	"byzantine_message",
	"rate_limit_exceeded",
	"clock_drift",
	"injected_fault",
	"view_instability",
	"excessive_views",
	"no_finalization",
	"block_stall",
	"repair_overload",
	"bandwidth_pressure",
	"no_delivery",
	"partition_persisting",
	"queue_congestion",
	"buffer_overflow",
	"high_drop_rate",
	"error_accumulation",
	"high_failure_rate",
	"zero_throughput",
	"no_progress",
	"safety_violation",
	"liveness_violation",
	"resilience_violation",
}

func (c ErrorCategory) String() string {
	if c.Valid() {
		return categoryNames[c]
	}
	return fmt.Sprintf("unknown_error_%d", int(c))
}

func (c ErrorCategory) Valid() bool {
	return c >= InvalidCertificate && int(c) < len(categoryNames)
}

// Recoverable returns false for categories that indicate misbehaviour or a
// broken protocol guarantee. Those tags survive a successful recovery.
func (c ErrorCategory) Recoverable() bool {
	switch c {
	case ByzantineBehavior, FinalizationConflict, SafetyViolation, ResilienceViolation:
		return false
	default:
		return true
	}
}

func ParseErrorCategory(s string) (ErrorCategory, error) {
	for i, name := range categoryNames {
		if name == s {
			return ErrorCategory(i), nil
		}
	}
	return 0, fmt.Errorf("unknown error category %q", s)
}

func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ErrorCategory) UnmarshalText(text []byte) error {
	parsed, err := ParseErrorCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ErrorTag records one integration error: which component it was charged to,
// what went wrong and when.
type ErrorTag struct {
	Component ComponentID   `json:"component"`
	Category  ErrorCategory `json:"category"`
	Timestamp uint64        `json:"timestamp"`
	Detail    string        `json:"detail,omitempty"`
}

// Label renders the tag as "component:category@tick".
func (t ErrorTag) Label() string {
	return fmt.Sprintf("%s:%s@%d", t.Component, t.Category, t.Timestamp)
}

// PerformanceMetrics are the node's running performance figures. Throughput
// is in payload bytes per tick and Latency in ticks.
type PerformanceMetrics struct {
	Throughput        float64 `json:"throughput"`
	Latency           float64 `json:"latency"`
	Bandwidth         uint64  `json:"bandwidth"`
	CertificateRate   float64 `json:"certificateRate"`
	RepairRate        uint64  `json:"repairRate"`
	MessagesProcessed uint64  `json:"messagesProcessed"`
	FailedOperations  uint64  `json:"failedOperations"`
}

// FailureRatio is FailedOperations over MessagesProcessed, zero when idle.
func (m PerformanceMetrics) FailureRatio() float64 {
	if m.MessagesProcessed == 0 {
		return 0
	}
	return float64(m.FailedOperations) / float64(m.MessagesProcessed)
}
