package formal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/formal"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/consensus/alpenglow/votor"
	"github.com/onflow/alpenglow/network/simnet"
	"github.com/onflow/alpenglow/utils/unittest"
)

func TestValidate(t *testing.T) {
	snap, bounds := activeSnapshot(t)
	require.NoError(t, formal.Validate(snap, bounds))

	cases := []struct {
		name      string
		invariant formal.Invariant
		corrupt   func(*formal.Snapshot)
	}{
		{"schema version", formal.TypeOK, func(s *formal.Snapshot) {
			s.SchemaVersion = "other"
		}},
		{"partitioned voting", formal.TypeOK, func(s *formal.Snapshot) {
			s.ComponentHealth[model.Voting] = model.Partitioned
		}},
		{"validator outside committee", formal.TypeOK, func(s *formal.Snapshot) {
			s.ValidatorID = 12
		}},
		{"unknown interaction type", formal.TypeOK, func(s *formal.Snapshot) {
			s.InteractionLog[0].Type = model.InteractionType(99)
		}},
		{"crypto failed without voting", formal.ComponentConsistency, func(s *formal.Snapshot) {
			s.ComponentHealth[model.Crypto] = model.Failed
		}},
		{"state disagrees with health", formal.ComponentConsistency, func(s *formal.Snapshot) {
			s.ComponentHealth[model.Transport] = model.Degraded
		}},
		{"slot finalized twice", formal.CrossComponentSafety, func(s *formal.Snapshot) {
			a, b := unittest.BlockFixture(1, 1, 1), unittest.BlockFixture(1, 2, 2)
			s.VotorState.Finalized = []votor.FinalizedRecord{
				{Block: a, Type: model.SlowCertificate},
				{Block: b, Type: model.SlowCertificate},
			}
		}},
		{"finalized block without shreds", formal.CrossComponentSafety, func(s *formal.Snapshot) {
			block := unittest.BlockFixture(1, 1, 1)
			s.VotorState.Finalized = []votor.FinalizedRecord{{Block: block, Type: model.FastCertificate}}
			s.VotorState.Certificates = []model.Certificate{unittest.CertificateFixture(block, model.FastCertificate, 0, 1, 2, 3)}
		}},
		{"late delivery after GST", formal.CrossComponentSafety, func(s *formal.Snapshot) {
			s.NetworkState.Deliveries = append(s.NetworkState.Deliveries, simnet.Delivery{
				Sender: 1, Type: model.VoteMessage, SentAt: 120, DeliveredAt: 130,
			})
		}},
		{"latency below delta", formal.PerformanceBounds, func(s *formal.Snapshot) {
			s.PerformanceMetrics.Latency = 1
		}},
		{"bandwidth above capacity", formal.PerformanceBounds, func(s *formal.Snapshot) {
			s.PerformanceMetrics.Bandwidth = s.Configuration.BandwidthLimit*4 + 1
		}},
		{"interaction from the future", formal.IntegrationInvariants, func(s *formal.Snapshot) {
			s.InteractionLog[len(s.InteractionLog)-1].Timestamp = s.Clock + 1
		}},
		{"route counts disagree", formal.IntegrationInvariants, func(s *formal.Snapshot) {
			s.CrossComponentInteractions["transport->crypto"] = 1
		}},
		{"voting clock drift", formal.IntegrationInvariants, func(s *formal.Snapshot) {
			s.VotorState.LocalTime += (bounds.MaxDrift + 1) * bounds.MillisPerTick
		}},
		{"sub-state clock", formal.IntegrationInvariants, func(s *formal.Snapshot) {
			s.RotorState.Clock++
		}},
		{"more failures than operations", formal.IntegrationInvariants, func(s *formal.Snapshot) {
			s.PerformanceMetrics.FailedOperations = s.PerformanceMetrics.MessagesProcessed + 1
		}},
		{"error charged to healthy component", formal.IntegrationInvariants, func(s *formal.Snapshot) {
			s.IntegrationErrors = append(s.IntegrationErrors, model.ErrorTag{
				Component: model.Voting,
				Category:  model.InjectedFault,
				Timestamp: s.Clock,
			})
		}},
		{"running above failure ratio", formal.IntegrationInvariants, func(s *formal.Snapshot) {
			s.PerformanceMetrics.FailedOperations = s.PerformanceMetrics.MessagesProcessed
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap, bounds := activeSnapshot(t)
			tc.corrupt(snap)

			err := formal.Validate(snap, bounds)
			violation, ok := formal.AsInvariantViolation(err)
			require.True(t, ok, "expected invariant violation, got %v", err)
			assert.Equal(t, tc.invariant, violation.Invariant)
		})
	}
}

func TestValidateInteractionLimits(t *testing.T) {
	snap, bounds := activeSnapshot(t)

	bounds.MaxInteractions = len(snap.InteractionLog) - 1
	err := formal.Validate(snap, bounds)
	violation, ok := formal.AsInvariantViolation(err)
	require.True(t, ok)
	assert.Equal(t, formal.IntegrationInvariants, violation.Invariant)

	bounds.MaxInteractions = 0
	bounds.InteractionRetention = 1
	_, ok = formal.AsInvariantViolation(formal.Validate(snap, bounds))
	assert.True(t, ok)
}

func TestValidateFailureRatio(t *testing.T) {
	snap, bounds := activeSnapshot(t)
	require.Equal(t, model.Running, snap.SystemState)
	snap.PerformanceMetrics.FailedOperations = snap.PerformanceMetrics.MessagesProcessed

	bounds.MaxFailureRatio = 0
	require.NoError(t, formal.Validate(snap, bounds))

	bounds.MaxFailureRatio = 0.25
	violation, ok := formal.AsInvariantViolation(formal.Validate(snap, bounds))
	require.True(t, ok)
	assert.Equal(t, formal.IntegrationInvariants, violation.Invariant)

	// a degraded node may carry any failure ratio
	snap.SystemState = model.DegradedState
	snap.ComponentHealth[model.Crypto] = model.Degraded
	require.NoError(t, formal.Validate(snap, bounds))
}
