package cluster

import (
	"github.com/rs/zerolog"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/consensus/alpenglow/node"
)

// Hub connects the engines of a cluster. A certificate broadcast by one
// validator is queued on every other engine as a node.PeerCertificate.
type Hub struct {
	log     zerolog.Logger
	engines []*node.Engine
}

var _ node.Broadcaster = (*Hub)(nil)

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log.With().Str("component", "alpenglow_hub").Logger(),
	}
}

// Attach registers the engines. It must be called before any engine starts.
func (h *Hub) Attach(engines ...*node.Engine) {
	h.engines = append(h.engines, engines...)
}

// BroadcastCertificate is called on the sender's engine worker, so it only
// queues and never waits for a peer.
func (h *Hub) BroadcastCertificate(from model.ValidatorID, cert model.Certificate) {
	for _, e := range h.engines {
		if e.Node().ID() == from {
			continue
		}
		err := e.Submit(node.PeerCertificate{From: from, Certificate: cert})
		if err != nil {
			h.log.Warn().
				Err(err).
				Uint32("from", uint32(from)).
				Uint32("to", uint32(e.Node().ID())).
				Msg("dropped certificate broadcast")
		}
	}
}
