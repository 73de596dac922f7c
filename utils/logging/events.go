package logging

import (
	"github.com/rs/zerolog"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Block adds the identifying fields of a block to a log event.
func Block(e *zerolog.Event, block model.Block) *zerolog.Event {
	return e.Uint64("slot", block.Slot).
		Uint64("view", block.View).
		Str("block_id", block.Hash.String()).
		Uint32("proposer", uint32(block.Proposer))
}

// Certificate adds the identifying fields of a certificate to a log event.
func Certificate(e *zerolog.Event, cert model.Certificate) *zerolog.Event {
	return e.Str("certificate_type", cert.Type.String()).
		Uint64("slot", cert.Slot).
		Uint64("view", cert.View).
		Str("block_id", cert.BlockHash.String()).
		Uint64("stake", cert.Stake)
}
