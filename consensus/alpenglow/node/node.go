package node

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/consensus/alpenglow/rotor"
	"github.com/onflow/alpenglow/consensus/alpenglow/votor"
	"github.com/onflow/alpenglow/module"
	"github.com/onflow/alpenglow/module/metrics"
	"github.com/onflow/alpenglow/network/simnet"
)

// voteTallyViews bounds the number of views tracked by the vote-spam guard.
const voteTallyViews = 256

// Broadcaster forwards certificates to the other validators.
type Broadcaster interface {
	BroadcastCertificate(from model.ValidatorID, cert model.Certificate)
}

// Node is the integration layer of one validator. It owns the voting,
// dissemination and transport sub-states and mutates them only while
// handling a message. Node is not safe for concurrent use; Engine
// serializes access to it.
type Node struct {
	log         zerolog.Logger
	id          model.ValidatorID
	cfg         *model.Config
	params      Parameters
	collector   module.IntegrationMetrics
	broadcaster Broadcaster

	state  model.SystemState
	health model.HealthMap

	votor   *votor.State
	rotor   *rotor.State
	network *simnet.State

	interactions   *InteractionLog
	errors         *ErrorSet
	perf           model.PerformanceMetrics
	clock          uint64
	benchmarkStart *uint64
	recoveries     []RecoveryAttempt

	voteTally *lru.Cache[uint64, int]
	limiters  map[model.ValidatorID]*rate.Limiter

	// bookkeeping for the detector and the progress audit
	lastBlockTick      uint64
	gstView            uint64
	gstViewTick        uint64
	gstViewSet         bool
	lastAuditFinalized int
}

type Option func(*Node)

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(collector module.IntegrationMetrics) Option {
	return func(n *Node) {
		n.collector = collector
	}
}

// WithBroadcaster sets where processed certificates are forwarded.
func WithBroadcaster(b Broadcaster) Option {
	return func(n *Node) {
		n.broadcaster = b
	}
}

// New creates the node of validator id in state Initializing with every component healthy.
func New(log zerolog.Logger, id model.ValidatorID, cfg model.Config, params Parameters, opts ...Option) (*Node, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid protocol configuration: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid integration parameters: %w", err)
	}
	if !cfg.IsValidator(id) {
		return nil, fmt.Errorf("validator %d outside committee of %d", id, cfg.Validators)
	}
	tally, err := lru.New[uint64, int](voteTallyViews)
	if err != nil {
		return nil, fmt.Errorf("could not create vote tally: %w", err)
	}

	n := &Node{
		log: log.With().
			Str("component", "alpenglow_node").
			Uint32("validator", uint32(id)).
			Logger(),
		id:           id,
		cfg:          &cfg,
		params:       params,
		collector:    metrics.NewNoopCollector(),
		state:        model.Initializing,
		health:       model.AllHealthy(),
		interactions: NewInteractionLog(),
		errors:       NewErrorSet(params.ErrorDedupWindow),
		voteTally:    tally,
		limiters:     make(map[model.ValidatorID]*rate.Limiter),
	}
	n.votor = votor.New(id, n.cfg)
	n.rotor = rotor.New(id, n.cfg)
	n.network = simnet.New(id, n.cfg)
	for _, opt := range opts {
		opt(n)
	}
	n.synchronizeTime()
	return n, nil
}

func (n *Node) ID() model.ValidatorID {
	return n.id
}

func (n *Node) Config() model.Config {
	return *n.cfg
}

func (n *Node) Parameters() Parameters {
	return n.params
}

func (n *Node) Clock() uint64 {
	return n.clock
}

func (n *Node) SystemState() model.SystemState {
	return n.state
}

func (n *Node) Health() model.HealthMap {
	return n.health
}

func (n *Node) ComponentHealth(c model.ComponentID) model.HealthStatus {
	return n.health[c]
}

func (n *Node) Performance() model.PerformanceMetrics {
	return n.perf
}

// Errors returns the current integration error tags, oldest first.
func (n *Node) Errors() []model.ErrorTag {
	return n.errors.Tags()
}

// HasError returns true if a tag of the given component and category is present.
func (n *Node) HasError(component model.ComponentID, category model.ErrorCategory) bool {
	return n.errors.Has(component, category)
}

// Interactions returns the interaction log, oldest first.
func (n *Node) Interactions() []model.Interaction {
	return n.interactions.Entries()
}

func (n *Node) RecoveryHistory() []RecoveryAttempt {
	return append([]RecoveryAttempt{}, n.recoveries...)
}

// Voting exposes the voting sub-state for inspection.
func (n *Node) Voting() *votor.State {
	return n.votor
}

// Dissemination exposes the dissemination sub-state for inspection.
func (n *Node) Dissemination() *rotor.State {
	return n.rotor
}

// Transport exposes the transport sub-state for inspection.
func (n *Node) Transport() *simnet.State {
	return n.network
}

func (n *Node) logInteraction(source, target model.ComponentID, typ model.InteractionType, metadata map[string]string) {
	n.interactions.Append(model.Interaction{
		Source:    source,
		Target:    target,
		Type:      typ,
		Timestamp: n.clock,
		Metadata:  metadata,
	})
	n.collector.InteractionLogged(typ)
}

// recordError adds a tag charged to component and worsens its health to at least status.
func (n *Node) recordError(component model.ComponentID, category model.ErrorCategory, status model.HealthStatus, detail string) model.ErrorTag {
	tag := model.ErrorTag{
		Component: component,
		Category:  category,
		Timestamp: n.clock,
		Detail:    detail,
	}
	if n.errors.Add(tag) {
		n.collector.IntegrationError(tag)
	}
	n.degrade(component, status)
	n.log.Warn().
		Str("tag", tag.Label()).
		Str("health", n.health[component].String()).
		Msg(detail)
	return tag
}

// fail records a failed operation and returns the ProtocolViolation for it.
func (n *Node) fail(component model.ComponentID, category model.ErrorCategory, status model.HealthStatus, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	tag := n.recordError(component, category, status, msg)
	n.perf.FailedOperations++
	return ProtocolViolation{Tag: tag, Msg: msg}
}
