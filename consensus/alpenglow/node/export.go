package node

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/onflow/alpenglow/consensus/alpenglow/formal"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// ExportFormalState captures the node's state in terms of the formal model.
// It does not modify the node.
func (n *Node) ExportFormalState() *formal.Snapshot {
	var start *uint64
	if n.benchmarkStart != nil {
		s := *n.benchmarkStart
		start = &s
	}
	return &formal.Snapshot{
		SchemaVersion:              formal.SchemaVersion,
		ValidatorID:                n.id,
		Clock:                      n.clock,
		BenchmarkStartTime:         start,
		SystemState:                n.state,
		ComponentHealth:            formal.HealthEntries(n.health),
		InteractionLog:             n.interactions.Entries(),
		PerformanceMetrics:         n.perf,
		IntegrationErrors:          append([]model.ErrorTag{}, n.errors.Tags()...),
		VotorState:                 n.votor.Snapshot(),
		RotorState:                 n.rotor.Snapshot(),
		NetworkState:               n.network.Snapshot(),
		CrossComponentInteractions: n.interactions.Routes(),
		Configuration:              *n.cfg,
	}
}

// ExportDocument renders the formal state in its generic document form.
func (n *Node) ExportDocument() (formal.Document, error) {
	return formal.Encode(n.ExportFormalState())
}

// ImportFormalState replaces the node's state with snap. The snapshot must
// belong to this validator and a committee of the same size. Time is
// re-synchronized once the state is restored.
func (n *Node) ImportFormalState(snap *formal.Snapshot) error {
	if snap.SchemaVersion != formal.SchemaVersion {
		return fmt.Errorf("unsupported schema version %q", snap.SchemaVersion)
	}
	if snap.ValidatorID != n.id {
		return fmt.Errorf("snapshot of validator %d cannot be imported by validator %d", snap.ValidatorID, n.id)
	}
	if snap.Configuration.Validators != n.cfg.Validators {
		return fmt.Errorf("snapshot committee of %d differs from committee of %d", snap.Configuration.Validators, n.cfg.Validators)
	}
	if !snap.SystemState.Valid() {
		return fmt.Errorf("invalid system state %d", int(snap.SystemState))
	}
	health, ok := snap.Health()
	if !ok {
		return fmt.Errorf("snapshot lacks the health of some components")
	}
	cfg := snap.Configuration
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot configuration: %w", err)
	}

	*n.cfg = cfg
	n.clock = snap.Clock
	n.benchmarkStart = nil
	if snap.BenchmarkStartTime != nil {
		start := *snap.BenchmarkStartTime
		n.benchmarkStart = &start
	}
	n.state = snap.SystemState
	n.health = health
	n.interactions.Reset(snap.InteractionLog)
	n.errors.Reset(snap.IntegrationErrors)
	n.perf = snap.PerformanceMetrics
	n.votor.Restore(snap.VotorState)
	n.rotor.Restore(snap.RotorState)
	n.network.Restore(snap.NetworkState)

	n.voteTally.Purge()
	n.limiters = make(map[model.ValidatorID]*rate.Limiter)
	n.lastBlockTick = 0
	for _, f := range n.votor.Finalized {
		if f.FinalizedAt > n.lastBlockTick {
			n.lastBlockTick = f.FinalizedAt
		}
	}
	for _, r := range n.votor.Rounds {
		if r.ProposedAt > n.lastBlockTick {
			n.lastBlockTick = r.ProposedAt
		}
	}
	n.lastAuditFinalized = len(n.votor.Finalized)
	n.gstView = n.votor.CurrentView
	n.gstViewTick = n.clock
	n.gstViewSet = n.clock >= n.cfg.GST

	n.synchronizeTime()
	n.log.Info().
		Uint64("clock", n.clock).
		Str("state", n.state.String()).
		Msg("formal state imported")
	return nil
}

// ImportDocument decodes a document and imports it.
func (n *Node) ImportDocument(doc formal.Document) error {
	snap, err := formal.Decode(doc)
	if err != nil {
		return err
	}
	return n.ImportFormalState(snap)
}

// Bounds returns the limits the formal invariants are checked against.
func (n *Node) Bounds() formal.Bounds {
	return n.params.Bounds()
}

// Bounds returns the limits the formal invariants are checked against for
// a node running with these parameters.
func (p Parameters) Bounds() formal.Bounds {
	return formal.Bounds{
		MillisPerTick:        p.MillisPerTick,
		MaxDrift:             p.MaxDrift,
		InteractionRetention: p.InteractionWindow + p.PruneInterval,
		MaxFailureRatio:      p.FailureRatio,
	}
}

// Validate checks the node's current state against the formal invariants.
func (n *Node) Validate() error {
	return formal.Validate(n.ExportFormalState(), n.Bounds())
}
