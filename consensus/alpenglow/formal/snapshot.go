package formal

import (
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/consensus/alpenglow/rotor"
	"github.com/onflow/alpenglow/consensus/alpenglow/votor"
	"github.com/onflow/alpenglow/network/simnet"
)

// SchemaVersion marks the layout of Snapshot and of the documents derived
// from it. It changes whenever a field is renamed or removed.
const SchemaVersion = "alpenglow-integration/1"

// Snapshot is the node's state in terms of the formal model's variables.
type Snapshot struct {
	SchemaVersion      string                                   `json:"schemaVersion"`
	ValidatorID        model.ValidatorID                        `json:"validatorId"`
	Clock              uint64                                   `json:"clock"`
	BenchmarkStartTime *uint64                                  `json:"benchmarkStartTime"`
	SystemState        model.SystemState                        `json:"systemState"`
	ComponentHealth    map[model.ComponentID]model.HealthStatus `json:"componentHealth"`
	InteractionLog     []model.Interaction                      `json:"interactionLog"`
	PerformanceMetrics model.PerformanceMetrics                 `json:"performanceMetrics"`
	IntegrationErrors  []model.ErrorTag                         `json:"integrationErrors"`

	VotorState   votor.Snapshot  `json:"votorState"`
	RotorState   rotor.Snapshot  `json:"rotorState"`
	NetworkState simnet.Snapshot `json:"networkState"`

	// derived aggregates
	CrossComponentInteractions map[string]uint64 `json:"crossComponentInteractions"`
	Configuration              model.Config      `json:"configuration"`
}

// Health converts the component health entries to a HealthMap. Missing
// components are reported as false.
func (s *Snapshot) Health() (model.HealthMap, bool) {
	var m model.HealthMap
	for _, c := range model.Components {
		h, ok := s.ComponentHealth[c]
		if !ok {
			return m, false
		}
		m[c] = h
	}
	return m, true
}

// HealthEntries converts a HealthMap to the snapshot representation.
func HealthEntries(m model.HealthMap) map[model.ComponentID]model.HealthStatus {
	out := make(map[model.ComponentID]model.HealthStatus, model.NumComponents)
	for _, c := range model.Components {
		out[c] = m[c]
	}
	return out
}
