package unittest

import (
	"crypto/rand"
	"fmt"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

func IdentifierFixture() model.Identifier {
	var id model.Identifier
	_, _ = rand.Read(id[:])
	return id
}

// ConfigFixture returns the default protocol configuration for n unit-stake validators.
func ConfigFixture(n int) model.Config {
	return model.DefaultConfig(n)
}

// BlockFixture returns a block for the given slot and view, proposed by proposer
// on top of a random parent.
func BlockFixture(slot, view uint64, proposer model.ValidatorID) model.Block {
	payload := []byte(fmt.Sprintf("block-%d-%d", slot, view))
	return model.NewBlock(slot, view, IdentifierFixture(), proposer, payload)
}

// BlockWithPayloadFixture returns a block whose payload has the given size.
func BlockWithPayloadFixture(slot, view uint64, proposer model.ValidatorID, size int) model.Block {
	payload := make([]byte, size)
	_, _ = rand.Read(payload)
	return model.NewBlock(slot, view, IdentifierFixture(), proposer, payload)
}

// CertificateFixture certifies block with the given voters, each of unit stake.
func CertificateFixture(block model.Block, typ model.CertificateType, voters ...model.ValidatorID) model.Certificate {
	return model.Certificate{
		Slot:      block.Slot,
		View:      block.View,
		BlockHash: block.Hash,
		Type:      typ,
		Stake:     uint64(len(voters)),
		Voters:    voters,
	}
}

// SkipCertificateFixture returns a skip certificate for slot and view.
func SkipCertificateFixture(slot, view uint64, voters ...model.ValidatorID) model.Certificate {
	return model.Certificate{
		Slot:   slot,
		View:   view,
		Type:   model.SkipCertificate,
		Stake:  uint64(len(voters)),
		Voters: voters,
	}
}

// MessageFixture returns a signed message of the given type with a small payload.
func MessageFixture(sender, recipient model.ValidatorID, typ model.MessageType, timestamp uint64) model.Message {
	return model.Message{
		Sender:    sender,
		Recipient: recipient,
		Timestamp: timestamp,
		Type:      typ,
		Payload:   []byte(fmt.Sprintf("%s-%d", typ, timestamp)),
		Signature: []byte{0x1},
	}
}
